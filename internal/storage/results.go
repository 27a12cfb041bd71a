package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ResultStore keeps the CSV files produced by path jobs.
type ResultStore interface {
	Put(ctx context.Context, key string, r io.ReadSeeker) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Link returns a direct download URL, or "" when results must be
	// streamed through the API.
	Link(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ResultKey returns the object key of a job result.
func ResultKey(jobID string) string {
	return "results/" + jobID + ".csv"
}

// NewResultStore uses S3 when a client is configured and dir otherwise.
func NewResultStore(client *s3.Client, dir string) ResultStore {
	if client != nil {
		return &S3ResultStore{client: client}
	}
	return &DirResultStore{Dir: dir}
}

type S3ResultStore struct {
	client *s3.Client
}

func (s *S3ResultStore) Put(ctx context.Context, key string, r io.ReadSeeker) error {
	return PutFile(ctx, s.client, key, r)
}

func (s *S3ResultStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return GetFile(ctx, s.client, key)
}

func (s *S3ResultStore) Link(ctx context.Context, key string) (string, error) {
	return GenerateDownloadLink(ctx, s.client, key)
}

func (s *S3ResultStore) Delete(ctx context.Context, key string) error {
	return DeleteFile(ctx, s.client, key)
}

// DirResultStore writes results below a local directory.
type DirResultStore struct {
	Dir string
}

func (s *DirResultStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid result key %q", key)
	}
	return filepath.Join(s.Dir, clean), nil
}

func (s *DirResultStore) Put(_ context.Context, key string, r io.ReadSeeker) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *DirResultStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (s *DirResultStore) Link(context.Context, string) (string, error) {
	return "", nil
}

func (s *DirResultStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
