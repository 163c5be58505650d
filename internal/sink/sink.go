// Package sink implements download sinks: destinations that accept a
// finished export payload under its filename.
package sink

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrAlreadyDelivered is returned by single-use sinks on a second delivery.
var ErrAlreadyDelivered = errors.New("sink already delivered a payload")

// ErrInvalidFilename is returned when a filename would escape its destination.
var ErrInvalidFilename = errors.New("invalid delivery filename")

// checkName rejects empty names and names carrying a path.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidFilename
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return ErrInvalidFilename
	}
	return nil
}
