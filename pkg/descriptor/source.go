package descriptor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"
)

// ErrTypeNotFound reports that a source has no descriptor for a type name.
var ErrTypeNotFound = errors.New("descriptor: type not found")

// Source resolves type descriptors. Implementations include static Sets,
// catalog files, the reflection HTTP endpoint and the memoising Cache.
type Source interface {
	Get(ctx context.Context, name string) (Descriptor, error)
	GetWithDependencies(ctx context.Context, name string) (Set, error)
}

// Ensure Set satisfies Source.
var _ Source = Set(nil)

// Get returns the descriptor for name.
func (s Set) Get(ctx context.Context, name string) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, err
	}
	desc, ok := s[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrTypeNotFound, name)
	}
	return desc, nil
}

// GetWithDependencies returns the transitive closure rooted at name.
func (s Set) GetWithDependencies(ctx context.Context, name string) (Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	closure, ok := s.Closure(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTypeNotFound, name)
	}
	return closure, nil
}

// LoaderOptions configures how descriptor sources are reached.
type LoaderOptions struct {
	// FileSystem enables loading catalogs from an abstract filesystem.
	FileSystem fs.FS
	// HTTPClient is used for the reflection endpoint. A client with
	// RequestTimeout is created when nil.
	HTTPClient *http.Client
	// RequestTimeout bounds each reflection request when positive.
	RequestTimeout time.Duration
	// Headers are added to every reflection request.
	Headers map[string]string
}

// LoaderOption mutates LoaderOptions prior to construction.
type LoaderOption func(*LoaderOptions)

// WithFileSystem injects an fs.FS for catalog lookups.
func WithFileSystem(files fs.FS) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.FileSystem = files
	}
}

// WithHTTPClient overrides the HTTP client used for reflection requests.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.HTTPClient = client
	}
}

// WithRequestTimeout bounds each reflection request.
func WithRequestTimeout(timeout time.Duration) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.RequestTimeout = timeout
	}
}

// WithHeader adds a header to reflection requests.
func WithHeader(key, val string) LoaderOption {
	return func(opts *LoaderOptions) {
		if opts.Headers == nil {
			opts.Headers = make(map[string]string)
		}
		opts.Headers[key] = val
	}
}

// NewLoaderOptions applies a set of LoaderOption values and returns the
// resulting configuration.
func NewLoaderOptions(options ...LoaderOption) LoaderOptions {
	cfg := LoaderOptions{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return cfg
}
