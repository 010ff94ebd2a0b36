package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/id"
)

const fileSuffix = ".val"

// File stores one file per key under a directory. Change events reach
// subscribers of the same File value only.
type File struct {
	dir string
	mu  sync.Mutex
	hub *hub
}

// NewFile creates the directory if needed
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &File{dir: dir, hub: newHub()}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+fileSuffix)
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (f *File) Set(_ context.Context, key, value string, source id.TabID) error {
	f.mu.Lock()
	err := writeAtomic(f.dir, f.path(key), []byte(value))
	f.mu.Unlock()
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	f.hub.publish(Event{Key: key, Value: value, Source: source})
	return nil
}

func (f *File) Remove(_ context.Context, key string, source id.TabID) error {
	f.mu.Lock()
	err := os.Remove(f.path(key))
	f.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}

	f.hub.publish(Event{Key: key, Removed: true, Source: source})
	return nil
}

func (f *File) Keys(_ context.Context) ([]string, error) {
	var (
		mu   sync.Mutex
		keys []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, f.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != f.dir {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, fileSuffix) {
			return nil
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			return nil
		}
		mu.Lock()
		keys = append(keys, key)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *File) Subscribe(ctx context.Context) (<-chan Event, error) {
	return f.hub.subscribe(ctx)
}

func (f *File) Close() error {
	f.hub.close()
	return nil
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
