package binary

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"trellis.io/ldp/identifier"
	"trellis.io/ldp/trelliserr"
)

// FilesystemStore is the default binary driver: one file per binary id,
// written with a temp-file-then-rename so Get never observes a partial
// write, per spec.md §4.2/§5.
type FilesystemStore struct {
	BasePath string
	IDs      identifier.BinaryIDSupplier
	Log      *logrus.Logger
}

func NewFilesystemStore(basePath string, ids identifier.BinaryIDSupplier, log *logrus.Logger) *FilesystemStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FilesystemStore{BasePath: basePath, IDs: ids, Log: log}
}

// path resolves a binary id to its absolute file path by joining the id
// directly onto BasePath. The hierarchy path returned by
// identifier.BinaryIDSupplier.New is not applied here, so binary files sit
// flat under BasePath rather than in sharded subdirectories.
func (s *FilesystemStore) path(id string) string {
	return filepath.Join(s.BasePath, id)
}

func (s *FilesystemStore) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, trelliserr.Wrap(trelliserr.NotFound, "binary not found: "+id, err)
		}
		return nil, trelliserr.Wrap(trelliserr.Internal, "open binary", err)
	}
	return f, nil
}

func (s *FilesystemStore) GetRange(ctx context.Context, id string, from, to int64) (io.ReadCloser, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, trelliserr.Wrap(trelliserr.NotFound, "binary not found: "+id, err)
		}
		return nil, trelliserr.Wrap(trelliserr.Internal, "open binary", err)
	}
	if _, err := f.Seek(from, io.SeekStart); err != nil {
		f.Close()
		return nil, trelliserr.Wrap(trelliserr.Internal, "seek binary", err)
	}
	length := to - from + 1
	return &limitedReadCloser{r: io.LimitReader(f, length), c: f}, nil
}

type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error                { return l.c.Close() }

func (s *FilesystemStore) Put(ctx context.Context, id string, r io.Reader, meta Metadata) error {
	dest := s.path(id)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return trelliserr.Wrap(trelliserr.Internal, "create binary directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return trelliserr.Wrap(trelliserr.Internal, "create temp binary file", err)
	}
	tmpName := tmp.Name()
	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return trelliserr.Wrap(trelliserr.Internal, "write binary", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return trelliserr.Wrap(trelliserr.Internal, "finalize binary write", err)
	}
	s.Log.WithFields(logrus.Fields{
		"id":   id,
		"size": humanize.Bytes(uint64(written)),
	}).Debug("wrote binary")
	return nil
}

func (s *FilesystemStore) Purge(ctx context.Context, id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return trelliserr.Wrap(trelliserr.Internal, "purge binary", err)
	}
	if err != nil {
		s.Log.WithField("id", id).Warn("purge requested for missing binary")
	}
	return nil
}

func (s *FilesystemStore) Digest(ctx context.Context, id string, algorithm string) (string, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", trelliserr.Wrap(trelliserr.NotFound, "binary not found: "+id, err)
		}
		return "", trelliserr.Wrap(trelliserr.Internal, "open binary", err)
	}
	defer f.Close()
	digest, supported, err := digestReader(f, algorithm)
	if err != nil {
		return "", trelliserr.Wrap(trelliserr.Internal, "compute digest", err)
	}
	if !supported {
		return "", fmt.Errorf("unsupported digest algorithm %q", algorithm)
	}
	return digest, nil
}
