package pagestore

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

const (
	// DefaultPageSize matches the page granularity of cloud page blobs.
	DefaultPageSize = 512

	// DefaultMaxCommitSize bounds the bytes persisted by one write call
	// and therefore the vault writer's buffer capacity.
	DefaultMaxCommitSize = 4 << 20
)

// FileStore is a page store over a single local file.
//
// It is the storage driver used by the CLI and by tests; the same engine
// runs unchanged against cloud page blobs.
type FileStore struct {
	fs   afero.Fs
	path string

	pageSize      int64
	maxCommitSize int64

	file afero.File // nil until Init
}

// FileStoreOptions configures a FileStore.
//
// Zero values select DefaultPageSize and DefaultMaxCommitSize.
type FileStoreOptions struct {
	PageSize      int64
	MaxCommitSize int64
}

// NewFileStore returns a page store persisting to the file at path.
//
// The store is unusable until Init is called.
func NewFileStore(fs afero.Fs, path string, opts FileStoreOptions) (*FileStore, error) {
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	maxCommitSize := opts.MaxCommitSize
	if maxCommitSize == 0 {
		maxCommitSize = DefaultMaxCommitSize
	}

	if pageSize <= 0 || pageSize%512 != 0 {
		return nil, fmt.Errorf(
			"pagestore: page size %d is not a multiple of 512", pageSize)
	}
	if maxCommitSize < pageSize || maxCommitSize%pageSize != 0 {
		return nil, fmt.Errorf(
			"pagestore: max commit size %d is not a multiple of page size %d",
			maxCommitSize, pageSize)
	}

	return &FileStore{
		fs:            fs,
		path:          path,
		pageSize:      pageSize,
		maxCommitSize: maxCommitSize,
	}, nil
}

func (s *FileStore) PageSize() int64 { return s.pageSize }

func (s *FileStore) MaxCommitSize() int64 { return s.maxCommitSize }

// Init opens the backing file, creating it empty if missing.
func (s *FileStore) Init(ctx context.Context) error {
	if s.file != nil {
		return nil
	}

	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_RDWR, 0o666)
	if err != nil {
		return fmt.Errorf("pagestore: error opening %s: %w", s.path, err)
	}

	s.file = f
	return nil
}

func (s *FileStore) Size(ctx context.Context) (int64, error) {
	if s.file == nil {
		return 0, fmt.Errorf("pagestore: %s is not initialized", s.path)
	}

	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("pagestore: error sizing %s: %w", s.path, err)
	}
	return info.Size(), nil
}

func (s *FileStore) EnsureSize(ctx context.Context, n int64) error {
	size, err := s.Size(ctx)
	if err != nil {
		return err
	}

	target := RoundUpToPages(n, s.pageSize)
	if size >= target {
		return nil
	}

	if err := s.file.Truncate(target); err != nil {
		return fmt.Errorf("pagestore: error growing %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) WritePages(ctx context.Context, src []byte, offset int64) error {
	if s.file == nil {
		return fmt.Errorf("pagestore: %s is not initialized", s.path)
	}
	if err := CheckAligned(offset, int64(len(src)), s.pageSize); err != nil {
		return err
	}
	if int64(len(src)) > s.maxCommitSize {
		return fmt.Errorf(
			"pagestore: write of %d bytes exceeds max commit size %d",
			len(src), s.maxCommitSize)
	}

	// The io.WriterAt contract guarantees a non-nil error on short writes.
	if _, err := s.file.WriteAt(src, offset); err != nil {
		return fmt.Errorf("pagestore: error writing %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) ReadRange(ctx context.Context, dst []byte, offset int64) error {
	if s.file == nil {
		return fmt.Errorf("pagestore: %s is not initialized", s.path)
	}

	size, err := s.Size(ctx)
	if err != nil {
		return err
	}
	if offset < 0 || offset+int64(len(dst)) > size {
		return fmt.Errorf("pagestore: [%d, %d) with size %d: %w",
			offset, offset+int64(len(dst)), size, ErrOutOfRange)
	}

	if _, err := s.file.ReadAt(dst, offset); err != nil {
		return fmt.Errorf("pagestore: error reading %s: %w", s.path, err)
	}
	return nil
}

// Close releases the backing file. The store may not be used after.
func (s *FileStore) Close() error {
	if s.file == nil {
		return nil
	}

	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("pagestore: error closing %s: %w", s.path, err)
	}
	return nil
}
