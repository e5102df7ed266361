// Package archive keeps released signals in cold storage on the local
// filesystem or an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/newthinker/signalcore/internal/core"
)

// Storage defines the interface for cold/archive storage backends
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a backend
type Config struct {
	Backend   string // localfs | s3
	LocalPath string
	S3        S3Config
}

// Open builds the configured backend. An empty backend disables archiving
// and returns nil.
func Open(cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Backend) {
	case "":
		return nil, nil
	case "localfs":
		if cfg.LocalPath == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive.local_path"))
		}
		fs, err := NewLocalFS(cfg.LocalPath)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("archive.s3.bucket"))
		}
		s3, err := NewS3(cfg.S3)
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive backend %q", cfg.Backend))
	}
}
