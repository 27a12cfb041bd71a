package io

import (
	"context"
	"fmt"
	stdio "io"
	"os"
	"path/filepath"

	"github.com/txgnn-explorer/backend/pkg/loader"
)

// FSDataFileLoader reads and writes artifacts on the local filesystem.
type FSDataFileLoader struct{}

func NewFSDataFileLoader() *FSDataFileLoader {
	return &FSDataFileLoader{}
}

func (l *FSDataFileLoader) Open(ctx context.Context, file loader.DataFile) (stdio.ReadCloser, error) {
	return os.Open(filepath.FromSlash(file.Path))
}

func (l *FSDataFileLoader) Exists(ctx context.Context, file loader.DataFile) bool {
	info, err := os.Stat(filepath.FromSlash(file.Path))
	return err == nil && !info.IsDir()
}

// Create writes to a temporary file next to the target and renames it over
// the target on Close, so readers never observe a half written snapshot.
func (l *FSDataFileLoader) Create(ctx context.Context, file loader.DataFile) (stdio.WriteCloser, error) {
	target := filepath.FromSlash(file.Path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return nil, fmt.Errorf("create temp for %s: %w", target, err)
	}
	return &atomicFile{File: tmp, target: target}, nil
}

type atomicFile struct {
	*os.File
	target string
}

func (f *atomicFile) Close() error {
	if err := f.File.Close(); err != nil {
		os.Remove(f.File.Name())
		return err
	}
	if err := os.Rename(f.File.Name(), f.target); err != nil {
		os.Remove(f.File.Name())
		return fmt.Errorf("rename into %s: %w", f.target, err)
	}
	return nil
}
