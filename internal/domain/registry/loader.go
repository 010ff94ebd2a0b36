package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// Loader reads registry manifests from disk
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a manifest loader
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// Load reads a manifest file, or every manifest under a directory merged
// in path order
func (l *Loader) Load(path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("registry source: %w", err)
	}
	if !info.IsDir() {
		return l.loadFile(path)
	}
	return l.loadDir(path)
}

func (l *Loader) loadDir(dir string) (*Manifest, error) {
	var (
		mu    sync.Mutex
		paths []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || formatOf(p) == "" {
			return nil
		}
		mu.Lock()
		paths = append(paths, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	merged := &Manifest{}
	var loaded, failed int
	for _, p := range paths {
		m, err := l.loadFile(p)
		if err != nil {
			l.logger.Warn("Skipping manifest", zap.String("path", p), zap.Error(err))
			failed++
			continue
		}
		merged.merge(m)
		loaded++
	}

	l.logger.Info("Registry manifests loaded",
		zap.String("dir", dir),
		zap.Int("loaded", loaded),
		zap.Int("failed", failed),
		zap.Int("apps", len(merged.Apps)))
	return merged, nil
}

func (l *Loader) loadFile(path string) (*Manifest, error) {
	format := formatOf(path)
	if format == "" {
		return nil, fmt.Errorf("unsupported manifest extension: %s", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest; format is "yaml", "toml" or "json"
func Parse(data []byte, format string) (*Manifest, error) {
	var m Manifest
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &m)
	case "toml":
		err = toml.Unmarshal(data, &m)
	case "json":
		err = sonic.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s manifest: %w", format, err)
	}
	return &m, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".json":
		return "json"
	default:
		return ""
	}
}
