package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"agora/internal/protocol"
)

// FileStore keeps one JSON file per entity under a shared directory, the
// reference medium for agents coordinating over a shared filesystem. Writes
// go to a temp file in the target directory and are renamed into place, which
// gives per-key replace atomicity on POSIX filesystems.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed and returns a store over it.
func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, protocol.Validationf("empty file store root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, protocol.Storagef("create store root %s: %v", root, err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the shared directory this store operates on.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) Put(ctx context.Context, key string, record []byte) error {
	if err := ctx.Err(); err != nil {
		return protocol.Storagef("put %s: %v", key, err)
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	path := s.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return protocol.Storagef("create dir for %s: %v", key, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return protocol.Storagef("stage %s: %v", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(record); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return protocol.Storagef("write %s: %v", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return protocol.Storagef("write %s: %v", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return protocol.Storagef("replace %s: %v", key, err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, protocol.Storagef("get %s: %v", key, err)
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, protocol.NotFoundf("record %s", key)
		}
		return nil, protocol.Storagef("read %s: %v", key, err)
	}
	return b, nil
}

func (s *FileStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, protocol.Storagef("list %s: %v", prefix, err)
	}
	out := make(map[string][]byte)
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A concurrently replaced file may vanish mid-walk.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), ".json")
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		out[key] = b
		return nil
	})
	if err != nil {
		return nil, protocol.Storagef("list %s: %v", prefix, err)
	}
	return out, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key)+".json")
}
