// Package templates loads response texts from a flat YAML catalog and
// renders them with text/template. A catalog maps template names to template
// bodies:
//
//	welcome: Welcome to the guessing game!
//	correct: 'Correct! That makes {{ .QuestionsAnswered }} right answers.'
//
// Catalogs can be reloaded on file change, so response copy is editable
// without redeploying the agent. Template values must be strings; list
// values are rejected.
package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ErrTemplateNotFound indicates a Render call for a name the catalog does
// not contain.
var ErrTemplateNotFound = errors.New("templates: template not found")

// Catalog is a set of named response templates loaded from one YAML file.
// Render is safe for concurrent use with Watch.
type Catalog struct {
	path     string
	log      *slog.Logger
	debounce time.Duration

	mu        sync.RWMutex
	templates map[string]*template.Template
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used by Watch. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Catalog) { c.log = log }
}

// WithReloadDebounce sets how long Watch waits after a file event before
// reloading, coalescing editor save bursts. Defaults to 100ms.
func WithReloadDebounce(d time.Duration) Option {
	return func(c *Catalog) { c.debounce = d }
}

// Load reads and parses the catalog at path.
func Load(path string, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		path:     path,
		log:      slog.Default(),
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalog file. On error the previously loaded templates
// stay in effect.
func (c *Catalog) Reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("templates: reading catalog: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("templates: parsing catalog %s: %w", c.path, err)
	}

	parsed := make(map[string]*template.Template, len(raw))
	for name, value := range raw {
		source, ok := value.(string)
		if !ok {
			return fmt.Errorf("templates: template %q must be a string, got %T", name, value)
		}
		tmpl, err := template.New(name).Parse(source)
		if err != nil {
			return fmt.Errorf("templates: parsing template %q: %w", name, err)
		}
		parsed[name] = tmpl
	}

	c.mu.Lock()
	c.templates = parsed
	c.mu.Unlock()
	return nil
}

// Render executes the named template with data.
func (c *Catalog) Render(name string, data any) (string, error) {
	c.mu.RLock()
	tmpl, ok := c.templates[name]
	c.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: rendering %q: %w", name, err)
	}
	return buf.String(), nil
}

// Names returns the names of all loaded templates, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Watch reloads the catalog whenever its file changes, until ctx is done.
// The parent directory is watched because editors typically replace the file
// by rename. Reload failures are logged; the last good catalog stays live.
func (c *Catalog) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("templates: creating watcher: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()

	dir := filepath.Dir(c.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("templates: watching %s: %w", dir, err)
	}

	base := filepath.Base(c.path)
	reload := &debouncer{
		interval: c.debounce,
		fire: func() {
			if err := c.Reload(); err != nil {
				c.log.Error("template catalog reload failed", slog.String("err", err.Error()))
				return
			}
			c.log.Debug("template catalog reloaded", slog.String("path", c.path))
		},
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) != 0 {
				reload.trigger()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Debug("template watcher error", slog.String("err", err.Error()))
		}
	}
}

type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	pending  bool
	interval time.Duration
	fire     func()
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.interval <= 0 {
		d.fire()
		return
	}
	if d.pending {
		return
	}
	d.pending = true
	if d.timer == nil {
		d.timer = time.AfterFunc(d.interval, d.flush)
	} else {
		d.timer.Reset(d.interval)
	}
}

func (d *debouncer) flush() {
	d.mu.Lock()
	d.pending = false
	d.mu.Unlock()
	d.fire()
}
