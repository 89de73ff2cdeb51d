// Package semval wires descriptor sources, the handle registry, the renderer
// and the form engine into one stack. Callers that need finer control can use
// the pkg/* packages directly.
package semval

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	theme "github.com/goliatone/go-theme"
	"go.uber.org/zap"

	"github.com/goliatone/go-semval/internal/descriptor/loader"
	"github.com/goliatone/go-semval/internal/descriptor/openapi"
	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/diff"
	"github.com/goliatone/go-semval/pkg/events"
	"github.com/goliatone/go-semval/pkg/form"
	"github.com/goliatone/go-semval/pkg/poll"
	"github.com/goliatone/go-semval/pkg/registry"
	"github.com/goliatone/go-semval/pkg/render"
	"github.com/goliatone/go-semval/pkg/value"
)

// NewHTTPSource constructs a descriptor source backed by the reflection
// endpoint while keeping the concrete type hidden from consumers.
func NewHTTPSource(baseURL string, options ...descriptor.LoaderOption) (descriptor.Source, error) {
	return loader.NewHTTP(baseURL, descriptor.NewLoaderOptions(options...))
}

// LoadCatalog reads a descriptor catalog file. The encoding (JSON, YAML or
// TOML) follows the file extension.
func LoadCatalog(ctx context.Context, path string) (descriptor.Set, error) {
	return loader.LoadFile(ctx, path)
}

// LoadCatalogFS reads a descriptor catalog from files.
func LoadCatalogFS(ctx context.Context, files fs.FS, name string) (descriptor.Set, error) {
	return loader.LoadFS(ctx, files, name)
}

// ParseOpenAPI derives descriptors from the component schemas of an OpenAPI 3
// document.
func ParseOpenAPI(ctx context.Context, raw []byte) (descriptor.Set, error) {
	return openapi.Parse(ctx, raw)
}

// Option configures a Stack.
type Option func(*config)

type config struct {
	logger        *zap.Logger
	bus           *events.Bus
	theme         *theme.RendererConfig
	renderOptions []render.Option
}

// WithLogger attaches a zap logger to every component of the stack.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithBus shares an existing event bus instead of creating one.
func WithBus(bus *events.Bus) Option {
	return func(cfg *config) {
		if bus != nil {
			cfg.bus = bus
		}
	}
}

// WithTheme forwards resolved theme partials and tokens to the renderer.
func WithTheme(rc *theme.RendererConfig) Option {
	return func(cfg *config) {
		cfg.theme = rc
	}
}

// WithRenderOptions appends renderer options applied after the stack's own.
func WithRenderOptions(options ...render.Option) Option {
	return func(cfg *config) {
		cfg.renderOptions = append(cfg.renderOptions, options...)
	}
}

// Stack bundles the cached descriptor source, the value registry and the
// renderer built on top of them.
type Stack struct {
	Types    *descriptor.Cache
	Values   *registry.Registry
	Renderer *render.Renderer
	Bus      *events.Bus

	logger *zap.Logger
}

// New builds a Stack over source. The built-in handles are registered; later
// registrations on Values replace them.
func New(source descriptor.Source, options ...Option) (*Stack, error) {
	if source == nil {
		return nil, errors.New("semval: descriptor source is required")
	}
	cfg := config{logger: zap.NewNop()}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.bus == nil {
		cfg.bus = events.NewBus()
	}

	types := descriptor.NewCache(source, descriptor.WithLogger(cfg.logger))
	values := registry.New(registry.WithDescriptors(types))
	render.RegisterDefaults(values)

	renderOptions := []render.Option{
		render.WithDescriptors(types),
		render.WithLogger(cfg.logger),
		render.WithBus(cfg.bus),
	}
	if cfg.theme != nil {
		renderOptions = append(renderOptions, render.WithTheme(cfg.theme))
	}
	renderOptions = append(renderOptions, cfg.renderOptions...)

	return &Stack{
		Types:    types,
		Values:   values,
		Renderer: render.New(values, renderOptions...),
		Bus:      cfg.bus,
		logger:   cfg.logger,
	}, nil
}

// Render produces HTML for v.
func (s *Stack) Render(ctx context.Context, v *value.Value, opts render.Options) (string, error) {
	return s.Renderer.Render(ctx, v, opts)
}

// NewForm binds a form to v using the stack's cached descriptors.
func (s *Stack) NewForm(ctx context.Context, v *value.Value, options ...form.Option) (*form.Form, error) {
	options = append([]form.Option{form.WithLogger(s.logger)}, options...)
	return form.New(ctx, s.Types, v, options...)
}

// RenderForm renders f as an HTML form.
func (s *Stack) RenderForm(ctx context.Context, f *form.Form, opts render.FormOptions) (string, error) {
	return s.Renderer.RenderForm(ctx, f, opts)
}

// Update is one refresh delivered by Watch.
type Update struct {
	Value   *value.Value
	HTML    string
	Changes []diff.Change
	Err     error
}

// Watch polls fetch and hands every result to onUpdate rendered to HTML.
// From the second result on, the value is annotated against the previous one
// so the HTML and Changes highlight what moved. The returned poller is
// running; callers must Stop it on teardown. Fetch failures are published on
// the stack's bus.
func (s *Stack) Watch(ctx context.Context, fetch poll.FetchFunc, onUpdate func(Update), options ...poll.Option) (*poll.Poller, error) {
	if onUpdate == nil {
		return nil, errors.New("semval: update handler is required")
	}

	var (
		mu       sync.Mutex
		previous *value.Value
	)
	handle := func(next *value.Value) {
		mu.Lock()
		defer mu.Unlock()

		current := next.Clone()
		update := Update{Value: current}
		if previous != nil {
			diff.Annotate(previous.Clone(), current)
			update.Changes = diff.Changes(current)
		}
		update.HTML, update.Err = s.Renderer.Render(ctx, current, render.Options{})
		previous = next.Clone()
		onUpdate(update)
	}

	base := []poll.Option{poll.WithBus(s.Bus), poll.WithLogger(s.logger), poll.OnResult(handle)}
	p := poll.New(fetch, append(base, options...)...)
	if err := p.Start(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// SelectTheme resolves name and variant through selector and converts the
// selection into renderer configuration.
func SelectTheme(selector theme.ThemeSelector, name, variant string) (*theme.RendererConfig, error) {
	if selector == nil {
		return nil, errors.New("semval: theme selector is required")
	}
	selection, err := selector.Select(name, variant)
	if err != nil {
		return nil, err
	}
	return ThemeConfig(selection), nil
}

// ThemeConfig flattens a theme selection into renderer configuration. Variant
// tokens, templates and assets override the manifest's.
func ThemeConfig(selection *theme.Selection) *theme.RendererConfig {
	if selection == nil {
		return nil
	}
	cfg := &theme.RendererConfig{
		Theme:    selection.Theme,
		Variant:  selection.Variant,
		Tokens:   map[string]string{},
		CSSVars:  map[string]string{},
		Partials: map[string]string{},
	}
	manifest := selection.Manifest
	if manifest == nil {
		return cfg
	}

	prefix := manifest.Assets.Prefix
	files := map[string]string{}
	merge(cfg.Tokens, manifest.Tokens)
	merge(cfg.Partials, manifest.Templates)
	merge(files, manifest.Assets.Files)
	if variant, ok := manifest.Variants[selection.Variant]; ok {
		merge(cfg.Tokens, variant.Tokens)
		merge(cfg.Partials, variant.Templates)
		merge(files, variant.Assets.Files)
		if variant.Assets.Prefix != "" {
			prefix = variant.Assets.Prefix
		}
	}
	for key, token := range cfg.Tokens {
		cfg.CSSVars["--"+key] = token
	}
	cfg.AssetURL = func(key string) string {
		file, ok := files[key]
		if !ok {
			return ""
		}
		if prefix == "" {
			return file
		}
		return prefix + "/" + file
	}
	return cfg
}

func merge(dst, src map[string]string) {
	for key, val := range src {
		dst[key] = val
	}
}
