package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// ErrRejected marks a catalog that was read but refused, either by Validate
// or by an OnChange callback. The previous catalog stays current.
var ErrRejected = errors.New("catalog rejected")

// Loader reads a workflow catalog file and watches it for changes.
// The format is picked from the extension: .toml, .hcl, anything else is YAML.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Catalog
	onChange []func(*Catalog) error
	reloads  singleflight.Group
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Path returns the watched file path.
func (l *Loader) Path() string { return l.path }

// Config returns the current (latest) catalog.
func (l *Loader) Config() *Catalog {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked with every validated catalog before it
// becomes current. An error from any callback rejects the reload.
func (l *Loader) OnChange(fn func(*Catalog) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the catalog on file changes.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("config reload failed, keeping previous catalog", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "path", l.path, "err", err)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload forces an immediate re-read of the catalog file. Concurrent calls
// (API reload racing a file event) share one read. The new catalog becomes
// current only after it validates and every callback accepts it.
func (l *Loader) Reload() (*Catalog, error) {
	v, err, _ := l.reloads.Do("reload", func() (interface{}, error) {
		cfg, err := l.load()
		if err != nil {
			return nil, err
		}
		if err := Validate(cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRejected, err)
		}
		l.mu.RLock()
		callbacks := make([]func(*Catalog) error, len(l.onChange))
		copy(callbacks, l.onChange)
		l.mu.RUnlock()
		for _, fn := range callbacks {
			if err := fn(cfg); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrRejected, err)
			}
		}
		l.mu.Lock()
		l.current = cfg
		l.mu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}

func (l *Loader) load() (*Catalog, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	cfg, err := Parse(l.path, data)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// Parse decodes a catalog, choosing the decoder from the file name.
func Parse(name string, data []byte) (*Catalog, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".hcl":
		return decodeHCL(name, data)
	case ".toml":
		var cfg Catalog
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", name, err)
		}
		return &cfg, nil
	default:
		var cfg Catalog
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", name, err)
		}
		return &cfg, nil
	}
}

// ApplyDefaults fills zero-valued runner settings.
func ApplyDefaults(cfg *Catalog) {
	if cfg.Runner.Workers == 0 {
		cfg.Runner.Workers = 4
	}
	if cfg.Runner.QueueDepth == 0 {
		cfg.Runner.QueueDepth = 64
	}
	if cfg.Runner.RunTimeoutMs == 0 {
		cfg.Runner.RunTimeoutMs = 30000
	}
	if cfg.Runner.HistoryLimit == 0 {
		cfg.Runner.HistoryLimit = 500
	}
}
