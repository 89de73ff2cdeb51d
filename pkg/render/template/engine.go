// Package template compiles component sources with pongo2 and memoises the
// compiled templates by a (type, override scope, handle) key.
package template

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/flosch/pongo2/v6"
)

// Key identifies a compiled template. Scope is the override chain key, empty
// when no overrides are active.
type Key struct {
	Type   string
	Scope  string
	Handle string
}

// Option configures the Engine before construction.
type Option func(*config)

type config struct {
	templates fs.FS
	globals   map[string]any
}

// WithFS lets component templates {% include %} partials from an fs.FS.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithGlobals seeds values available to every template.
func WithGlobals(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globals == nil {
			cfg.globals = make(map[string]any, len(data))
		}
		for key, val := range data {
			cfg.globals[strings.TrimSpace(key)] = val
		}
	}
}

// Engine compiles template sources through a pongo2 TemplateSet.
type Engine struct {
	set *pongo2.TemplateSet

	mu       sync.RWMutex
	compiled map[Key]*pongo2.Template
	compiles atomic.Int64
}

// New constructs an Engine.
func New(options ...Option) *Engine {
	cfg := &config{}
	for _, opt := range options {
		if opt != nil {
			opt(cfg)
		}
	}
	files := cfg.templates
	if files == nil {
		files = emptyFS{}
	}

	set := pongo2.NewSet("semval", pongo2.NewFSLoader(files))
	if len(cfg.globals) > 0 {
		set.Globals = make(pongo2.Context, len(cfg.globals))
		set.Globals.Update(pongo2.Context(cfg.globals))
	}
	return &Engine{
		set:      set,
		compiled: make(map[Key]*pongo2.Template),
	}
}

// Compile returns the template for key, compiling source on first use.
func (e *Engine) Compile(key Key, source string) (*pongo2.Template, error) {
	if e == nil || e.set == nil {
		return nil, errors.New("template: engine is nil")
	}
	e.mu.RLock()
	if tmpl, ok := e.compiled[key]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.compiled[key]; ok {
		return tmpl, nil
	}
	tmpl, err := e.set.FromString(source)
	if err != nil {
		return nil, fmt.Errorf("template: compile %s/%s: %w", key.Type, key.Handle, err)
	}
	e.compiles.Add(1)
	e.compiled[key] = tmpl
	return tmpl, nil
}

// Execute runs a compiled template against data.
func (e *Engine) Execute(tmpl *pongo2.Template, data map[string]any) (string, error) {
	if tmpl == nil {
		return "", errors.New("template: template is nil")
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(pongo2.Context(data), &buf); err != nil {
		return "", fmt.Errorf("template: execute: %w", err)
	}
	return buf.String(), nil
}

// Render compiles (or reuses) the template for key and executes it.
func (e *Engine) Render(key Key, source string, data map[string]any) (string, error) {
	tmpl, err := e.Compile(key, source)
	if err != nil {
		return "", err
	}
	return e.Execute(tmpl, data)
}

// Clear drops every compiled template.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[Key]*pongo2.Template)
}

// Len reports how many templates are cached.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Compiles reports how many compilations ran since construction.
func (e *Engine) Compiles() int64 {
	return e.compiles.Load()
}

type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
