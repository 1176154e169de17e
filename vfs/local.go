package vfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"golang.org/x/sys/unix"
)

// Local is the production FS: directory enumeration and existence checks go
// through afs.Service (so a remote or mocked afs backend can stand in during
// higher-level integration tests), while the byte-precise operations that
// mmregion needs go straight through *os.File, exactly the split
// indexer/fs (afs-backed) and vectordb/storage/mmapstore (os-backed) make in
// the source tree this facade was grounded on.
type Local struct {
	afs afs.Service
}

// NewLocal constructs the production filesystem facade.
func NewLocal() *Local {
	return &Local{afs: afs.New()}
}

func (l *Local) Exists(ctx context.Context, path string) bool {
	ok, err := l.afs.Exists(ctx, path)
	return err == nil && ok
}

func (l *Local) OpenRead(ctx context.Context, path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, &IOError{Op: "open", Path: path, Errno: err}
	}
	return f, nil
}

func (l *Local) ReadDir(ctx context.Context, path string) ([]Entry, error) {
	objects, err := l.afs.List(ctx, path)
	if err != nil {
		if !l.Exists(ctx, path) {
			return nil, nil
		}
		return nil, &IOError{Op: "readdir", Path: path, Errno: err}
	}
	entries := make([]Entry, 0, len(objects))
	self := filepath.Clean(path)
	for i, obj := range objects {
		if obj.URL() == path || obj.Name() == "." ||
			filepath.Clean(strings.TrimPrefix(obj.URL(), "file://")) == self ||
			(i == 0 && obj.IsDir() && obj.Name() == filepath.Base(self)) {
			// afs.List includes the directory itself as the first entry.
			continue
		}
		entries = append(entries, Entry{Name: obj.Name(), Kind: kindOf(obj)})
	}
	return entries, nil
}

func kindOf(obj storage.Object) Kind {
	mode := obj.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	case obj.IsDir():
		return KindDir
	default:
		return KindFile
	}
}

func (l *Local) PageSize() int {
	if sz := unix.Getpagesize(); sz > 0 {
		return sz
	}
	return os.Getpagesize()
}
