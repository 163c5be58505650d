package export

import (
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/datagrid/internal/core"
)

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		format  Format
		want    string
		wantErr string
	}{
		{name: "plain", input: "tasks", format: FormatCSV, want: "tasks"},
		{name: "trimmed", input: "  tasks  ", format: FormatCSV, want: "tasks"},
		{name: "matching extension stripped", input: "tasks.csv", format: FormatCSV, want: "tasks"},
		{name: "extension case-insensitive", input: "Report.PDF", format: FormatPDF, want: "Report"},
		{name: "other extension kept", input: "tasks.csv", format: FormatXLSX, want: "tasks.csv"},
		{name: "spaces inside kept", input: "Q1 tasks", format: FormatXLSX, want: "Q1 tasks"},
		{name: "unicode", input: "tâches", format: FormatCSV, want: "tâches"},
		{name: "empty", input: "", format: FormatCSV, wantErr: "filename is required"},
		{name: "whitespace only", input: "   ", format: FormatCSV, wantErr: "filename is required"},
		{name: "extension only", input: ".xlsx", format: FormatXLSX, wantErr: "filename is required"},
		{name: "slash", input: "a/b", format: FormatCSV, wantErr: "reserved characters"},
		{name: "backslash", input: `a\b`, format: FormatCSV, wantErr: "reserved characters"},
		{name: "colon", input: "a:b", format: FormatCSV, wantErr: "reserved characters"},
		{name: "control character", input: "a\x00b", format: FormatCSV, wantErr: "reserved characters"},
		{name: "dot dot", input: "..", format: FormatCSV, wantErr: "reserved characters"},
		{name: "at limit", input: strings.Repeat("a", MaxFilenameLength), format: FormatCSV, want: strings.Repeat("a", MaxFilenameLength)},
		{name: "over limit", input: strings.Repeat("a", MaxFilenameLength+1), format: FormatCSV, wantErr: "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateFilename(tt.input, tt.format)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("ValidateFilename(%q) = %q, want error containing %q", tt.input, got, tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				if !core.IsValidation(err) {
					t.Errorf("error %T is not a validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateFilename(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ValidateFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateFilename_UserMessages(t *testing.T) {
	tests := []struct {
		input string
		code  string
	}{
		{"", "VAL002"},
		{"a|b", "VAL003"},
		{strings.Repeat("x", 200), "VAL004"},
	}

	for _, tt := range tests {
		_, err := ValidateFilename(tt.input, FormatCSV)
		if got := core.MapError(err).Code; got != tt.code {
			t.Errorf("MapError(ValidateFilename(%.10q)).Code = %s, want %s", tt.input, got, tt.code)
		}
	}
}

func TestRequestValidate(t *testing.T) {
	got, err := Request{Format: FormatXLSX, Filename: "tasks"}.validate()
	if err != nil {
		t.Fatalf("validate() error = %v", err)
	}
	if got != "tasks.xlsx" {
		t.Errorf("validate() = %q, want %q", got, "tasks.xlsx")
	}

	_, err = Request{Format: Format(9), Filename: "tasks"}.validate()
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "format" {
		t.Errorf("validate() with unknown format error = %v, want format validation error", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{"CSV", FormatCSV, false},
		{".xlsx", FormatXLSX, false},
		{"excel", FormatXLSX, false},
		{" pdf ", FormatPDF, false},
		{"docx", FormatCSV, true},
		{"", FormatCSV, true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFormat_TextRoundTrip(t *testing.T) {
	for _, f := range Formats() {
		b, err := f.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error = %v", f, err)
		}
		var got Format
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", b, err)
		}
		if got != f {
			t.Errorf("round trip of %v = %v", f, got)
		}
	}
}

func TestFormat_MIMEType(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatCSV, "text/csv; charset=utf-8"},
		{FormatXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{FormatPDF, "application/pdf"},
		{Format(42), "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := tt.format.MIMEType(); got != tt.want {
			t.Errorf("%v.MIMEType() = %q, want %q", tt.format, got, tt.want)
		}
	}
}
