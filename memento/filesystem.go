package memento

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"trellis.io/ldp/identifier"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/trelliserr"
)

// FilesystemStore is the C6 driver described in spec.md §6: each resource
// gets a directory (via identifier.Layout) holding one "<epoch-seconds>.nq"
// file per Memento.
type FilesystemStore struct {
	BasePath string
	Layout   identifier.Layout
	Log      *logrus.Logger
}

func NewFilesystemStore(basePath string, layout identifier.Layout, log *logrus.Logger) *FilesystemStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FilesystemStore{BasePath: basePath, Layout: layout, Log: log}
}

func (s *FilesystemStore) dir(id string) string {
	return s.Layout.Dir(s.BasePath, id)
}

func (s *FilesystemStore) Put(ctx context.Context, id string, instant time.Time, quads []rdf.Quad) error {
	dir := s.dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return trelliserr.Wrap(trelliserr.Internal, "create memento directory", err)
	}
	epoch := truncate(instant).Unix()
	dest := filepath.Join(dir, strconv.FormatInt(epoch, 10)+".nq")

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return trelliserr.Wrap(trelliserr.Internal, "create temp memento file", err)
	}
	tmpName := tmp.Name()
	writeErr := rdf.WriteNQuads(tmp, quads)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return trelliserr.Wrap(trelliserr.Internal, "write memento snapshot", writeErr)
		}
		return trelliserr.Wrap(trelliserr.Internal, "close memento snapshot", closeErr)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return trelliserr.Wrap(trelliserr.Internal, "finalize memento snapshot", err)
	}
	return nil
}

// epochs returns every snapshot epoch second on record for id, sorted
// ascending.
func (s *FilesystemStore) epochs(id string) ([]int64, error) {
	entries, err := os.ReadDir(s.dir(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var epochs []int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".nq") || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSuffix(name, ".nq"), 10, 64)
		if err != nil {
			continue
		}
		epochs = append(epochs, n)
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i] < epochs[j] })
	return epochs, nil
}

// Get returns the memento that was current at instant: the latest epoch at
// or before it. When instant (truncated to the second) lands exactly on an
// epoch, that epoch's own snapshot is returned, not the preceding one,
// consistent with RFC 7089's "state of the resource at time T" semantics
// rather than a nearest-neighbor search.
func (s *FilesystemStore) Get(ctx context.Context, id string, instant time.Time) ([]rdf.Quad, bool, error) {
	epochs, err := s.epochs(id)
	if err != nil {
		return nil, false, trelliserr.Wrap(trelliserr.Internal, "list mementos", err)
	}
	target := truncate(instant).Unix()
	var chosen int64 = -1
	for _, e := range epochs {
		if e <= target {
			chosen = e
		} else {
			break
		}
	}
	if chosen == -1 {
		return nil, false, nil
	}
	f, err := os.Open(filepath.Join(s.dir(id), strconv.FormatInt(chosen, 10)+".nq"))
	if err != nil {
		return nil, false, trelliserr.Wrap(trelliserr.Internal, "open memento snapshot", err)
	}
	defer f.Close()
	quads, err := rdf.ReadNQuads(f, s.Log)
	if err != nil {
		return nil, false, trelliserr.Wrap(trelliserr.Internal, "read memento snapshot", err)
	}
	return quads, true, nil
}

func (s *FilesystemStore) List(ctx context.Context, id string) ([]Interval, error) {
	epochs, err := s.epochs(id)
	if err != nil {
		return nil, trelliserr.Wrap(trelliserr.Internal, "list mementos", err)
	}
	intervals := make([]Interval, 0, len(epochs))
	for i, e := range epochs {
		start := time.Unix(e, 0).UTC()
		if i == len(epochs)-1 {
			intervals = append(intervals, Interval{Start: start, Open: true})
			continue
		}
		end := time.Unix(epochs[i+1], 0).UTC()
		intervals = append(intervals, Interval{Start: start, End: end})
	}
	return intervals, nil
}

func (s *FilesystemStore) Delete(ctx context.Context, id string, instant time.Time) error {
	epoch := truncate(instant).Unix()
	path := filepath.Join(s.dir(id), strconv.FormatInt(epoch, 10)+".nq")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return trelliserr.New(trelliserr.NotFound, "memento not found at given instant")
		}
		return trelliserr.Wrap(trelliserr.Internal, "delete memento snapshot", err)
	}
	return nil
}
