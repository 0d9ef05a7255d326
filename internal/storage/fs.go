package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// FS stores documents as files below a root directory of an afero filesystem.
type FS struct {
	fs    afero.Fs
	root  string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFS roots a store at dir on the OS filesystem.
func NewFS(dir string) (*FS, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage root is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return NewFSWith(afero.NewBasePathFs(afero.NewOsFs(), abs), abs), nil
}

// NewFSWith wraps an existing afero filesystem. root is only used to build
// file:// links.
func NewFSWith(fsys afero.Fs, root string) *FS {
	return &FS{fs: fsys, root: root, locks: make(map[string]*sync.Mutex)}
}

func (s *FS) name(key string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(key))
	if clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return clean, nil
}

func (s *FS) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *FS) read(name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *FS) write(name string, data []byte) error {
	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return err
	}
	tmp := name + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return s.fs.Rename(tmp, name)
}

func (s *FS) GetJSON(ctx context.Context, key string, dst any) error {
	data, err := s.DownloadFile(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *FS) PutJSON(ctx context.Context, key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.UploadFile(ctx, key, data, "application/json")
}

func (s *FS) UpdateJSON(ctx context.Context, key string, mutate MutateFunc) error {
	name, err := s.name(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lock(name)
	defer unlock()

	current, err := s.read(name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("read %s: %w", key, err)
	}

	next, err := mutate(current)
	if err != nil {
		return err
	}
	if err := s.write(name, next); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// UploadFile ignores contentType; the extension carries it on disk.
func (s *FS) UploadFile(ctx context.Context, key string, data []byte, _ string) error {
	name, err := s.name(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lock(name)
	defer unlock()

	if err := s.write(name, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *FS) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	name, err := s.name(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.read(name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, err
}

func (s *FS) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := afero.Walk(s.fs, "/", func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		key := strings.TrimPrefix(filepath.ToSlash(p), "/")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}

	sort.Strings(keys)
	return keys, nil
}

// PresignedURL returns a file:// link; ttl has no meaning on local disk.
func (s *FS) PresignedURL(ctx context.Context, key string, _ time.Duration) (string, error) {
	name, err := s.name(key)
	if err != nil {
		return "", err
	}
	if _, err := s.fs.Stat(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	u := url.URL{Scheme: "file", Path: path.Join(filepath.ToSlash(s.root), name)}
	return u.String(), nil
}
