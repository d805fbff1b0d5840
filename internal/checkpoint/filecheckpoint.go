package checkpoint

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"
)

// checkpointSize is the encoded size: one little-endian uint64.
const checkpointSize = 8

// FileCheckpoint stores the committed length in a small local file.
type FileCheckpoint struct {
	fs   afero.Fs
	path string
}

// NewFileCheckpoint returns a checkpoint persisting to the file at path.
func NewFileCheckpoint(fs afero.Fs, path string) *FileCheckpoint {
	return &FileCheckpoint{fs: fs, path: path}
}

func (c *FileCheckpoint) Read(ctx context.Context) (int64, error) {
	raw, err := afero.ReadFile(c.fs, c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("checkpoint: error reading %s: %w", c.path, err)
	}

	if len(raw) < checkpointSize {
		return 0, fmt.Errorf(
			"checkpoint: %s holds %d bytes, want %d", c.path, len(raw), checkpointSize)
	}
	return int64(binary.LittleEndian.Uint64(raw)), nil
}

func (c *FileCheckpoint) GetOrInit(ctx context.Context) (int64, error) {
	exists, err := afero.Exists(c.fs, c.path)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: error checking %s: %w", c.path, err)
	}

	if !exists {
		if err := c.write(0); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return c.Read(ctx)
}

func (c *FileCheckpoint) Update(ctx context.Context, n int64) error {
	stored, err := c.Read(ctx)
	if err != nil {
		return err
	}
	if n < stored {
		return fmt.Errorf("checkpoint: %d below stored %d: %w",
			n, stored, ErrNonMonotonic)
	}
	return c.write(n)
}

func (c *FileCheckpoint) write(n int64) error {
	var raw [checkpointSize]byte
	binary.LittleEndian.PutUint64(raw[:], uint64(n))

	if err := afero.WriteFile(c.fs, c.path, raw[:], 0o666); err != nil {
		return fmt.Errorf("checkpoint: error writing %s: %w", c.path, err)
	}
	return nil
}
