package render

import (
	theme "github.com/goliatone/go-theme"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/events"
	"github.com/goliatone/go-semval/pkg/registry"
	"github.com/goliatone/go-semval/pkg/render/template"
	"github.com/goliatone/go-semval/pkg/widgets"
)

// Options describe per-call data that does not belong to the value itself.
type Options struct {
	// Overrides is the active override chain; nil means none.
	Overrides *registry.Overrides
	// Metadata is handed to component templates as "metadata".
	Metadata map[string]any
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithDescriptors supplies field order and titles for struct rendering.
func WithDescriptors(source descriptor.Source) Option {
	return func(r *Renderer) {
		r.types = source
	}
}

// WithEngine overrides the template engine, e.g. to share compiled templates
// or expose include partials.
func WithEngine(engine *template.Engine) Option {
	return func(r *Renderer) {
		if engine != nil {
			r.engine = engine
		}
	}
}

// WithLogger attaches a zap logger; fallbacks are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLocale selects the locale used to format scalars without a handle.
func WithLocale(tag language.Tag) Option {
	return func(r *Renderer) {
		r.locale = tag
	}
}

// WithTheme lets theme partials replace handle templates by handle name and
// exposes theme tokens to templates as "theme".
func WithTheme(cfg *theme.RendererConfig) Option {
	return func(r *Renderer) {
		r.theme = cfg
	}
}

// WithSanitizer overrides the policy applied to literal fallbacks.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(r *Renderer) {
		if policy != nil {
			r.sanitizer = policy
		}
	}
}

// WithBus lets mounted instances subscribe to events and release the
// subscriptions on teardown.
func WithBus(bus *events.Bus) Option {
	return func(r *Renderer) {
		r.bus = bus
	}
}

// WithForms sets the registry of form handles consulted before the built-in
// widgets when rendering forms.
func WithForms(forms *registry.Registry) Option {
	return func(r *Renderer) {
		r.forms = forms
	}
}

// WithWidgets overrides the matcher registry picking built-in form widgets.
func WithWidgets(reg *widgets.Registry) Option {
	return func(r *Renderer) {
		r.widgets = reg
	}
}
