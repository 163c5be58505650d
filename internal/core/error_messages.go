// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Schema error: The table's column definition is invalid
//	         Action: Check the table schema for duplicate or empty column ids
//	         Patterns: "schema error"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date: Invalid date format detected
//	         Action: Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024
//	         Patterns: "invalid date"
//
//	VAL002 - Missing filename: An export filename is required
//	         Action: Enter a filename before exporting
//	         Patterns: "filename is required"
//
//	VAL003 - Invalid filename: Filename contains characters that are not allowed
//	         Action: Remove slashes and characters such as < > : " | ? *
//	         Patterns: "reserved characters"
//
//	VAL004 - Filename too long: Filename exceeds 100 characters
//	         Action: Use a shorter filename
//	         Patterns: "filename exceeds"
//
//	VAL005 - Unsupported format: Export format is not supported
//	         Action: Choose CSV, XLSX or PDF
//	         Patterns: "unsupported export format"
//
//	VAL006 - Not a facet: Column does not offer faceted filtering
//	         Action: Pick one of the columns shown in the toolbar
//	         Patterns: "facets require an enum column"
//
//	VAL007 - Invalid input: The request contained an invalid value
//	         Action: Check the highlighted field and try again
//	         Patterns: "validation error"
//
//	VAL008 - Wrong filter: The filter does not suit this column
//	         Action: Use a text search, option list or date range matching the column
//	         Patterns: "filter kind does not match column"
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - System busy: Too many exports in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many exports"
//
//	EXP002 - Export cancelled: The export was cancelled
//	         Action: Start a new export when ready
//	         Patterns: "export cancelled"
//
//	EXP003 - Job not found: Export job not found
//	         Action: The export may have expired. Please start a new export
//	         Patterns: "export job not found"
//
//	EXP004 - Too large: The export exceeds the spreadsheet size limit
//	         Action: Apply filters or choose CSV
//	         Patterns: "sheet limit"
//
//	EXP005 - Delivery failed: The file could not be delivered
//	         Action: Please try again
//	         Patterns: "export failed: deliver"
//
//	EXP006 - Export failed: The file could not be generated
//	         Action: Please try again or choose another format
//	         Patterns: "export failed"
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Connection refused: Unable to connect to the data source
//	         Action: Please try again in a few moments
//	         Patterns: "connection refused"
//
//	SRC002 - Missing file: The data file does not exist
//	         Action: Check the configured source path
//	         Patterns: "no such file"
//
//	SRC003 - Load failed: Table data could not be read
//	         Action: Please try again
//	         Patterns: "load rows"
//
// # View Errors (VIEW001-VIEW099)
//
//	VIEW001 - View not found: The table view has expired
//	          Action: Reload the page to open a new view
//	          Patterns: "view not found"
//
//	VIEW002 - Unknown column: The column does not exist
//	          Action: Verify the column name is correct
//	          Patterns: "unknown column"
//
//	VIEW003 - Unknown table: The table is not configured
//	          Action: Verify the table name is correct
//	          Patterns: "unknown table"
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled: Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
//	REQ002 - Request timeout: Request timed out
//	         Action: Apply filters to reduce the data or try again later
//	         Patterns: "context deadline exceeded"
//
//	REQ003 - Rate limited: Too many requests
//	         Action: Please wait a moment before trying again
//	         Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.

package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Schema Errors
	// =========================================================================
	{
		pattern: "schema error",
		msg: UserMessage{
			Message: "The table's column definition is invalid",
			Action:  "Check the table schema for duplicate or empty column ids",
			Code:    "SCH001",
		},
	},

	// =========================================================================
	// Validation Errors
	// =========================================================================
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
			Code:    "VAL001",
		},
	},
	{
		pattern: "filename is required",
		msg: UserMessage{
			Message: "An export filename is required",
			Action:  "Enter a filename before exporting",
			Code:    "VAL002",
		},
	},
	{
		pattern: "reserved characters",
		msg: UserMessage{
			Message: "Filename contains characters that are not allowed",
			Action:  `Remove slashes and characters such as < > : " | ? *`,
			Code:    "VAL003",
		},
	},
	{
		pattern: "filename exceeds",
		msg: UserMessage{
			Message: "Filename exceeds 100 characters",
			Action:  "Use a shorter filename",
			Code:    "VAL004",
		},
	},
	{
		pattern: "unsupported export format",
		msg: UserMessage{
			Message: "Export format is not supported",
			Action:  "Choose CSV, XLSX or PDF",
			Code:    "VAL005",
		},
	},
	{
		pattern: "facets require an enum column",
		msg: UserMessage{
			Message: "Column does not offer faceted filtering",
			Action:  "Pick one of the columns shown in the toolbar",
			Code:    "VAL006",
		},
	},
	{
		pattern: "filter kind does not match column",
		msg: UserMessage{
			Message: "The filter does not suit this column",
			Action:  "Use a text search, option list or date range matching the column",
			Code:    "VAL008",
		},
	},
	{
		pattern: "validation error",
		msg: UserMessage{
			Message: "The request contained an invalid value",
			Action:  "Check the highlighted field and try again",
			Code:    "VAL007",
		},
	},

	// =========================================================================
	// Export Errors
	// =========================================================================
	{
		pattern: "too many exports",
		msg: UserMessage{
			Message: "System is busy processing other exports",
			Action:  "Please wait a moment and try again",
			Code:    "EXP001",
		},
	},
	{
		pattern: "export cancelled",
		msg: UserMessage{
			Message: "The export was cancelled",
			Action:  "Start a new export when ready",
			Code:    "EXP002",
		},
	},
	{
		pattern: "export job not found",
		msg: UserMessage{
			Message: "Export job not found",
			Action:  "The export may have expired. Please start a new export",
			Code:    "EXP003",
		},
	},
	{
		pattern: "sheet limit",
		msg: UserMessage{
			Message: "The export exceeds the spreadsheet size limit",
			Action:  "Apply filters or choose CSV",
			Code:    "EXP004",
		},
	},
	{
		pattern: "export failed: deliver",
		msg: UserMessage{
			Message: "The file could not be delivered",
			Action:  "Please try again",
			Code:    "EXP005",
		},
	},
	{
		pattern: "export failed",
		msg: UserMessage{
			Message: "The file could not be generated",
			Action:  "Please try again or choose another format",
			Code:    "EXP006",
		},
	},

	// =========================================================================
	// Source Errors
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the data source",
			Action:  "Please try again in a few moments",
			Code:    "SRC001",
		},
	},
	{
		pattern: "no such file",
		msg: UserMessage{
			Message: "The data file does not exist",
			Action:  "Check the configured source path",
			Code:    "SRC002",
		},
	},
	{
		pattern: "load rows",
		msg: UserMessage{
			Message: "Table data could not be read",
			Action:  "Please try again",
			Code:    "SRC003",
		},
	},

	// =========================================================================
	// View Errors
	// =========================================================================
	{
		pattern: "view not found",
		msg: UserMessage{
			Message: "The table view has expired",
			Action:  "Reload the page to open a new view",
			Code:    "VIEW001",
		},
	},
	{
		pattern: "unknown column",
		msg: UserMessage{
			Message: "The column does not exist",
			Action:  "Verify the column name is correct",
			Code:    "VIEW002",
		},
	},
	{
		pattern: "unknown table",
		msg: UserMessage{
			Message: "Unknown table",
			Action:  "This table is not configured",
			Code:    "VIEW003",
		},
	},

	// =========================================================================
	// Request Errors
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Apply filters to reduce the data or try again later",
			Code:    "REQ002",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "REQ003",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
