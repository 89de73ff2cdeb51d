// Package tui edits struct-typed values interactively in a terminal. Each
// visible field of a form.Form is prompted through a PromptDriver and the
// answer is applied with the form's edit entry points, so defaults are
// pruned exactly as in the HTML form.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-semval/pkg/form"
	"github.com/goliatone/go-semval/pkg/value"
	"github.com/goliatone/go-semval/pkg/widgets"
)

// Renderer drives terminal editing sessions.
type Renderer struct {
	driver       PromptDriver
	outputFormat OutputFormat
	widgets      *widgets.Registry
	theme        Theme
}

// New constructs a TUI renderer with defaults (survey driver, JSON output).
func New(options ...Option) *Renderer {
	r := &Renderer{
		driver:       newSurveyDriver(),
		outputFormat: OutputFormatJSON,
		widgets:      widgets.NewRegistry(),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// ContentType reports the serialization format used by Render.
func (r *Renderer) ContentType() string {
	if r.outputFormat == OutputFormatPrettyText {
		return "text/plain"
	}
	return "application/json"
}

// Render edits f interactively and serializes the resulting value.
func (r *Renderer) Render(ctx context.Context, f *form.Form) ([]byte, error) {
	if err := r.Edit(ctx, f); err != nil {
		return nil, err
	}
	return r.serialize(f.Value())
}

// Edit prompts every visible field of f, then offers the advanced fields.
func (r *Renderer) Edit(ctx context.Context, f *form.Form) error {
	if ctx == nil {
		return errors.New("tui: context is required")
	}
	if f == nil {
		return errors.New("tui: form is nil")
	}
	if r.driver == nil {
		return errors.New("tui: prompt driver is nil")
	}
	return r.editForm(ctx, f)
}

func (r *Renderer) editForm(ctx context.Context, f *form.Form) error {
	// Views are re-read after every answer: a union discriminator changes
	// which branch follows it.
	for idx := 0; ; idx++ {
		views := f.Fields()
		if idx >= len(views) {
			break
		}
		if err := r.promptField(ctx, f, views[idx]); err != nil {
			return err
		}
	}

	advanced := f.AdvancedFields()
	if len(advanced) == 0 {
		return nil
	}
	show, err := r.driver.Confirm(ctx, ConfirmConfig{
		Message: r.prompt(labelFor(f, "Edit advanced fields")),
		Default: f.ShowAdvanced(),
	})
	if err != nil {
		return err
	}
	if show != f.ShowAdvanced() {
		f.ToggleAdvanced()
	}
	if !show {
		return nil
	}
	for _, view := range advanced {
		if err := r.promptField(ctx, f, view); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) promptField(ctx context.Context, f *form.Form, view form.FieldView) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	widget, ok := r.widgets.Resolve(view)
	if !ok {
		widget = widgets.WidgetText
	}
	name := view.Descriptor.Name
	label := r.prompt(view.Descriptor.Title())
	help := view.Descriptor.Doc

	switch widget {
	case widgets.WidgetToggle:
		current, _ := payloadOf(view).(bool)
		answer, err := r.driver.Confirm(ctx, ConfirmConfig{Message: label, Default: current, Help: help})
		if err != nil {
			return err
		}
		return f.Apply(name, value.New(view.Descriptor.Type, answer))

	case widgets.WidgetSelect:
		options := view.Descriptor.AllowedValues
		current, _ := payloadOf(view).(string)
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      label,
			Options:      options,
			DefaultIndex: indexOf(options, current),
			Help:         help,
		})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(options) {
			return nil
		}
		return f.Apply(name, value.New(view.Descriptor.Type, options[idx]))

	case widgets.WidgetStruct:
		if view.Collapsed {
			expand, err := r.driver.Confirm(ctx, ConfirmConfig{Message: r.prompt("Edit " + view.Descriptor.Title())})
			if err != nil || !expand {
				return err
			}
			if err := f.Toggle(name); err != nil {
				return err
			}
		}
		child, err := f.Child(name)
		if err != nil {
			return err
		}
		return r.editForm(ctx, child)

	case widgets.WidgetRepeated, widgets.WidgetJSON:
		for {
			text, err := r.driver.TextArea(ctx, TextAreaConfig{
				Message: label,
				Default: textOf(view),
				Help:    repeatedHelp(view, help),
			})
			if err != nil {
				return err
			}
			if err := f.ApplyInput(name, text); err != nil {
				if infoErr := r.info(ctx, err); infoErr != nil {
					return infoErr
				}
				continue
			}
			return nil
		}

	default:
		sample := payloadOf(view)
		text, err := r.driver.Input(ctx, InputConfig{
			Message: label,
			Default: textOf(view),
			Help:    help,
			Validator: func(raw string) error {
				_, err := value.Coerce(sample, raw)
				return err
			},
		})
		if err != nil {
			return err
		}
		if err := f.ApplyInput(name, text); err != nil {
			return r.info(ctx, err)
		}
		return nil
	}
}

func (r *Renderer) prompt(message string) string {
	return r.theme.PromptPrefix + message
}

func (r *Renderer) info(ctx context.Context, err error) error {
	return r.driver.Info(ctx, fmt.Sprintf("%sInvalid input: %v", r.theme.ErrorPrefix, err))
}

func (r *Renderer) serialize(v *value.Value) ([]byte, error) {
	if r.outputFormat == OutputFormatPrettyText {
		var b strings.Builder
		writePretty(&b, "", v)
		return []byte(b.String()), nil
	}
	return json.MarshalIndent(v, "", "  ")
}

func labelFor(f *form.Form, message string) string {
	if path := f.Path(); path != "" {
		return message + " (" + path + ")"
	}
	return message
}

func repeatedHelp(view form.FieldView, help string) string {
	if !view.Descriptor.Repeated {
		return help
	}
	if help == "" {
		return "One item per line."
	}
	return help + " One item per line."
}

func payloadOf(view form.FieldView) any {
	if view.Value != nil && view.Value.Value != nil {
		return view.Value.Value
	}
	if view.Default != nil {
		return view.Default.Value
	}
	return ""
}

// textOf renders the current value the way ApplyInput parses it back.
func textOf(view form.FieldView) string {
	if view.Value == nil {
		return ""
	}
	switch {
	case view.Descriptor.Dynamic:
		encoded, err := json.Marshal(view.Value)
		if err != nil {
			return ""
		}
		return string(encoded)
	case view.Descriptor.Repeated:
		lines := make([]string, 0, len(view.Value.Items()))
		for _, item := range view.Value.Items() {
			lines = append(lines, scalarText(item.Value))
		}
		return strings.Join(lines, "\n")
	}
	return scalarText(view.Value.Value)
}

func scalarText(payload any) string {
	switch typed := payload.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

func writePretty(b *strings.Builder, prefix string, v *value.Value) {
	if v == nil {
		return
	}
	switch {
	case v.IsStruct():
		fields := v.Fields()
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			next := name
			if prefix != "" {
				next = prefix + "." + name
			}
			writePretty(b, next, fields[name])
		}
	case v.IsList():
		for idx, item := range v.Items() {
			writePretty(b, fmt.Sprintf("%s[%d]", prefix, idx), item)
		}
	default:
		if prefix != "" {
			fmt.Fprintf(b, "%s=%s\n", prefix, scalarText(v.Value))
		}
	}
}
