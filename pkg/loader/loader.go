package loader

import (
	"context"
	"io"
	"path"
	"strings"
)

type DataFileKind string

const (
	DataFileKindCSV      DataFileKind = "csv"
	DataFileKindJSON     DataFileKind = "json"
	DataFileKindPickle   DataFileKind = "pickle"
	DataFileKindSnapshot DataFileKind = "snapshot"
	DataFileKindOther    DataFileKind = "other"
)

// DataFile is one precomputed artifact of the data folder, such as the
// attention edge table or the prediction table.
//
// The bytes are retrieved via the associated DataFileLoader, which decides
// whether Path points at the local filesystem or an object store key.
type DataFile struct {
	Name   string
	Path   string
	Kind   DataFileKind
	Loader DataFileLoader
}

// NewDataFile creates a DataFile for name inside dir. The kind is derived
// from the file extension.
func NewDataFile(dir, name string, l DataFileLoader) DataFile {
	return DataFile{
		Name:   name,
		Path:   path.Join(dir, name),
		Kind:   kindFromName(name),
		Loader: l,
	}
}

func kindFromName(name string) DataFileKind {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return DataFileKindCSV
	case ".json":
		return DataFileKindJSON
	case ".pkl", ".pickle":
		return DataFileKindPickle
	case ".gob":
		return DataFileKindSnapshot
	}
	return DataFileKindOther
}

// Open returns a reader over the file content. The caller closes it.
func (f DataFile) Open(ctx context.Context) (io.ReadCloser, error) {
	return f.Loader.Open(ctx, f)
}

// Create returns a writer that replaces the file content once closed.
func (f DataFile) Create(ctx context.Context) (io.WriteCloser, error) {
	return f.Loader.Create(ctx, f)
}

// Exists reports whether the file can be opened.
func (f DataFile) Exists(ctx context.Context) bool {
	return f.Loader.Exists(ctx, f)
}

// ReadAll reads the whole file.
func (f DataFile) ReadAll(ctx context.Context) ([]byte, error) {
	rc, err := f.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// DataFileLoader defines how artifact bytes are read and written.
// Implementations load from disk or from an S3 bucket.
type DataFileLoader interface {
	Open(ctx context.Context, file DataFile) (io.ReadCloser, error)
	Create(ctx context.Context, file DataFile) (io.WriteCloser, error)
	Exists(ctx context.Context, file DataFile) bool
}

func CacheKey(file DataFile) string {
	return string(file.Kind) + ":" + file.Path
}
