// Package storage fetches OCR payloads from the local filesystem or from
// S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/easyml-code/ocr-data-insertion/internal/domain/shared"
)

// MaxPayloadSize bounds a single OCR payload.
const MaxPayloadSize = 32 << 20

// Source reads the raw bytes of an OCR payload.
type Source interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// FileSource reads payloads from local paths. "-" is stdin.
type FileSource struct {
	stdin io.Reader
}

// NewFileSource creates a FileSource reading "-" from os.Stdin.
func NewFileSource() *FileSource {
	return &FileSource{stdin: os.Stdin}
}

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if location == "" {
		return nil, fmt.Errorf("%w: empty payload path", shared.ErrInvalidInput)
	}
	if location == "-" {
		return readLimited(s.stdin, "stdin")
	}

	f, err := os.Open(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: payload %s", shared.ErrNotFound, location)
		}
		return nil, fmt.Errorf("open payload %s: %w", location, err)
	}
	defer f.Close()
	return readLimited(f, location)
}

func readLimited(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read payload %s: %w", name, err)
	}
	if len(data) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload %s exceeds %d bytes", shared.ErrInvalidInput, name, MaxPayloadSize)
	}
	return data, nil
}

// Router dispatches s3:// locations to an S3 source and everything else to
// the file source. The S3 source is created on first use.
type Router struct {
	files  Source
	s3     Source
	newS3  func() (Source, error)
	logger *zap.Logger
}

// NewRouter creates a Router. newS3 may be nil when S3 is not configured.
func NewRouter(files Source, newS3 func() (Source, error), logger *zap.Logger) *Router {
	if files == nil {
		files = NewFileSource()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{files: files, newS3: newS3, logger: logger.Named("storage")}
}

// Fetch implements Source.
func (r *Router) Fetch(ctx context.Context, location string) ([]byte, error) {
	if !IsS3URI(location) {
		r.logger.Debug("Reading payload from file", zap.String("location", location))
		return r.files.Fetch(ctx, location)
	}
	if r.s3 == nil {
		if r.newS3 == nil {
			return nil, fmt.Errorf("%w: no object storage configured for %s", shared.ErrInvalidInput, location)
		}
		src, err := r.newS3()
		if err != nil {
			return nil, err
		}
		r.s3 = src
	}
	r.logger.Debug("Reading payload from object storage", zap.String("location", location))
	return r.s3.Fetch(ctx, location)
}

// IsS3URI reports whether location is an s3:// URI.
func IsS3URI(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// ParseS3URI splits s3://bucket/key. A location without the scheme is a key
// in defaultBucket.
func ParseS3URI(location, defaultBucket string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, "s3://")
	if !ok {
		bucket, key = defaultBucket, strings.TrimPrefix(location, "/")
	} else {
		bucket, key, _ = strings.Cut(rest, "/")
	}
	if bucket == "" {
		return "", "", fmt.Errorf("%w: no bucket in %q", shared.ErrInvalidInput, location)
	}
	if key == "" {
		return "", "", fmt.Errorf("%w: no object key in %q", shared.ErrInvalidInput, location)
	}
	return bucket, key, nil
}
