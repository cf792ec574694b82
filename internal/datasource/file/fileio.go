// Package file implements the local filesystem collaborator: whole-buffer
// text reads and writes plus helpers for list files of input paths.
package file

import (
	"fmt"
	"io"
	"os"
)

// ReadText reads the whole file at path. Errors are wrapped with the path and
// still satisfy errors.Is(err, fs.ErrNotExist) and friends.
func ReadText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	adviseSequential(f)

	b, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

// WriteText writes text to path, creating or truncating it.
func WriteText(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
