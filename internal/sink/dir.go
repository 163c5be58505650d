package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/datagrid/internal/logging"
)

// Dir writes each payload to a file in a directory. Files appear atomically:
// the payload is written to a temporary file that is renamed into place, so
// a reader never observes a partial export.
type Dir struct {
	root string
	perm os.FileMode
}

// NewDir creates root if needed and returns a sink writing into it.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &Dir{root: root, perm: 0o644}, nil
}

// Root returns the directory files are written to.
func (d *Dir) Root() string { return d.root }

// Path returns where filename is (or would be) written.
func (d *Dir) Path(filename string) string {
	return filepath.Join(d.root, filename)
}

// Deliver writes payload to root/filename, replacing any existing file.
func (d *Dir) Deliver(ctx context.Context, filename string, payload []byte, mimeType string) error {
	if err := checkName(filename); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.root, ".export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filename, err)
	}
	if err := os.Chmod(tmpName, d.perm); err != nil {
		return fmt.Errorf("chmod %s: %w", filename, err)
	}

	// Last chance to abandon before the file becomes visible.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, d.Path(filename)); err != nil {
		return fmt.Errorf("move %s into place: %w", filename, err)
	}
	committed = true

	logging.FromContext(ctx).Info("export written",
		"path", d.Path(filename),
		"mime_type", mimeType,
		"bytes", len(payload),
	)
	return nil
}
