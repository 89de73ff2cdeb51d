package render

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-semval/pkg/form"
	"github.com/goliatone/go-semval/pkg/registry"
	"github.com/goliatone/go-semval/pkg/render/template"
	"github.com/goliatone/go-semval/pkg/value"
	"github.com/goliatone/go-semval/pkg/widgets"
)

// FormOptions describe one form render.
type FormOptions struct {
	Options
	Action string
	// Method defaults to POST.
	Method string
	Hidden []HiddenField
	// Errors are shown next to the matching fields; see form.MapErrorPayload.
	Errors form.ErrorMapping
}

// RenderForm renders f as an HTML form. Each visible field is edited by the
// handle registered for its type in the form registry, or else by the
// built-in widget the widget registry picks for it. Struct fields recurse
// into child forms; advanced fields sit behind a disclosure.
func (r *Renderer) RenderForm(ctx context.Context, f *form.Form, opts FormOptions) (string, error) {
	if f == nil {
		return "", fmt.Errorf("render: form is nil")
	}
	body, err := r.renderFormBody(ctx, f, opts)
	if err != nil {
		return "", err
	}
	method := strings.ToUpper(strings.TrimSpace(opts.Method))
	if method == "" {
		method = "POST"
	}

	hidden := SortedHiddenFields(opts.Hidden)
	hiddenData := make([]map[string]any, 0, len(hidden))
	for _, field := range hidden {
		hiddenData = append(hiddenData, map[string]any{"name": field.Name, "value": field.Value})
	}
	data := map[string]any{
		"id":          f.ID,
		"type":        f.Descriptor().Name,
		"action":      opts.Action,
		"method":      method,
		"hidden":      hiddenData,
		"form_errors": opts.Errors.Form,
		"body":        body,
		"metadata":    opts.Metadata,
		"theme":       r.themeData(),
	}
	return r.executeForm(formShellHandle, opts, data)
}

func (r *Renderer) renderFormBody(ctx context.Context, f *form.Form, opts FormOptions) (string, error) {
	var body strings.Builder
	for _, view := range f.Fields() {
		out, err := r.renderField(ctx, f, view, opts)
		if err != nil {
			return "", err
		}
		body.WriteString(out)
	}

	advancedViews := f.AdvancedFields()
	if len(advancedViews) == 0 {
		return body.String(), nil
	}
	var advanced strings.Builder
	for _, view := range advancedViews {
		out, err := r.renderField(ctx, f, view, opts)
		if err != nil {
			return "", err
		}
		advanced.WriteString(out)
	}
	out, err := r.executeForm(advancedHandle, opts, map[string]any{
		"open": f.ShowAdvanced(),
		"body": advanced.String(),
	})
	if err != nil {
		return "", err
	}
	body.WriteString(out)
	return body.String(), nil
}

func (r *Renderer) renderField(ctx context.Context, f *form.Form, view form.FieldView, opts FormOptions) (string, error) {
	data := r.fieldData(view, opts)

	if !view.Descriptor.Repeated && !view.Descriptor.Dynamic {
		handle, err := r.forms.Find(ctx, view.Descriptor.Type, opts.Overrides)
		if err == nil {
			key := template.Key{Type: formKeyType + view.Descriptor.Type, Scope: opts.Overrides.Key(), Handle: handle.Name}
			out, err := r.engine.Render(key, r.source(handle), data)
			if err != nil {
				return "", fmt.Errorf("render: form field %s: %w", view.Path, err)
			}
			return out, nil
		}
	}

	widget, ok := r.widgets.Resolve(view)
	if !ok {
		widget = widgets.WidgetText
	}
	switch widget {
	case widgets.WidgetStruct:
		child, err := f.Child(view.Descriptor.Name)
		if err != nil {
			return "", err
		}
		body, err := r.renderFormBody(ctx, child, opts)
		if err != nil {
			return "", err
		}
		data["body"] = body
	case widgets.WidgetRepeated:
		items, err := r.renderItems(ctx, view, opts)
		if err != nil {
			return "", err
		}
		data["items"] = items
	}

	handle, ok := widgetHandles[widget]
	if !ok {
		handle = widgetHandles[widgets.WidgetText]
	}
	return r.executeForm(handle, opts, data)
}

// renderItems renders one control per item of a repeated field. Struct items
// are shown read-only through the value renderer.
func (r *Renderer) renderItems(ctx context.Context, view form.FieldView, opts FormOptions) ([]string, error) {
	itemView := widgets.Item(view)
	widget, ok := r.widgets.Resolve(itemView)
	if !ok {
		widget = widgets.WidgetText
	}

	items := view.Value.Items()
	out := make([]string, 0, len(items))
	for idx, item := range items {
		if widget == widgets.WidgetStruct || item.IsStruct() {
			html, err := r.Render(ctx, item, opts.Options)
			if err != nil {
				return nil, err
			}
			out = append(out, html)
			continue
		}
		current := itemView
		current.Value = item
		current.ID = view.ID + "-" + strconv.Itoa(idx)
		data := r.fieldData(current, opts)
		data["errors"] = nil
		handle, ok := widgetHandles[widget]
		if !ok {
			handle = widgetHandles[widgets.WidgetText]
		}
		html, err := r.executeForm(handle, opts, data)
		if err != nil {
			return nil, err
		}
		out = append(out, html)
	}
	return out, nil
}

func (r *Renderer) fieldData(view form.FieldView, opts FormOptions) map[string]any {
	var payload any
	if view.Value != nil {
		payload = view.Value.Value
	}
	text := inputText(payload)
	if view.Descriptor.Dynamic && view.Value != nil {
		if encoded, err := json.Marshal(view.Value); err == nil {
			text = string(encoded)
		}
	}
	checked, _ := payload.(bool)

	return map[string]any{
		"id":        view.ID,
		"name":      view.Path,
		"title":     view.Descriptor.Title(),
		"doc":       view.Descriptor.Doc,
		"type":      view.Descriptor.Type,
		"value":     payload,
		"text":      text,
		"checked":   checked,
		"options":   view.Descriptor.AllowedValues,
		"set":       view.Set,
		"advanced":  view.Advanced,
		"collapsed": view.Collapsed,
		"errors":    opts.Errors.Fields[view.Path],
		"metadata":  opts.Metadata,
		"theme":     r.themeData(),
	}
}

func (r *Renderer) executeForm(handle registry.Handle, opts FormOptions, data map[string]any) (string, error) {
	key := template.Key{Type: formKeyType, Scope: opts.Overrides.Key(), Handle: handle.Name}
	out, err := r.engine.Render(key, r.source(handle), data)
	if err != nil {
		return "", fmt.Errorf("render: form %q: %w", handle.Name, err)
	}
	return out, nil
}

// inputText formats a payload for an input's value attribute. Numbers keep
// their wire form so they parse back unchanged.
func inputText(payload any) string {
	switch typed := payload.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	case value.Struct, value.List:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}
