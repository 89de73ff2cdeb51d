package tui

import "github.com/goliatone/go-semval/pkg/widgets"

// OutputFormat controls how the edited value is serialized.
type OutputFormat string

const (
	// OutputFormatJSON emits the tagged value as JSON.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatPrettyText emits one path=value line per leaf.
	OutputFormatPrettyText OutputFormat = "pretty"
)

// Theme captures optional message prefixes the renderer applies when
// printing. Keep minimal to avoid coupling editing logic to ANSI specifics.
type Theme struct {
	PromptPrefix string
	InfoPrefix   string
	ErrorPrefix  string
}

// Option configures the TUI renderer.
type Option func(*Renderer)

// WithPromptDriver overrides the prompt driver used by the renderer.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Renderer) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithOutputFormat selects the output serialization format.
func WithOutputFormat(format OutputFormat) Option {
	return func(r *Renderer) {
		if format != "" {
			r.outputFormat = format
		}
	}
}

// WithWidgets overrides the matcher registry that picks a prompt per field.
func WithWidgets(reg *widgets.Registry) Option {
	return func(r *Renderer) {
		if reg != nil {
			r.widgets = reg
		}
	}
}

// WithTheme applies optional message prefixes.
func WithTheme(theme Theme) Option {
	return func(r *Renderer) {
		r.theme = theme
	}
}
