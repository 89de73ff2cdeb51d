package render

import (
	"github.com/goliatone/go-semval/pkg/registry"
	"github.com/goliatone/go-semval/pkg/widgets"
)

const formKeyType = "form:"

const fieldErrors = `{% for e in errors %}<p class="semval-error">{{ e }}</p>{% endfor %}`

const fieldLabel = `<label for="{{ id }}">{{ title }}</label>`

var (
	formShellHandle = registry.Handle{
		Name: "semantic-form",
		Template: `<form class="semval-form" id="{{ id }}" method="{{ method }}"{% if action %} action="{{ action }}"{% endif %} data-type="{{ type }}">` +
			`{% for h in hidden %}<input type="hidden" name="{{ h.name }}" value="{{ h.value }}">{% endfor %}` +
			`{% if form_errors %}<ul class="semval-form-errors">{% for e in form_errors %}<li>{{ e }}</li>{% endfor %}</ul>{% endif %}` +
			`{{ body|safe }}</form>`,
	}
	advancedHandle = registry.Handle{
		Name:     "semantic-form-advanced",
		Template: `<details class="semval-advanced"{% if open %} open{% endif %}><summary>Advanced</summary>{{ body|safe }}</details>`,
	}

	widgetHandles = map[string]registry.Handle{
		widgets.WidgetText: {
			Name: "semantic-form-text",
			Template: `<div class="semval-field{% if errors %} has-error{% endif %}">` + fieldLabel +
				`<input type="text" id="{{ id }}" name="{{ name }}" value="{{ text }}">` + fieldErrors + `</div>`,
		},
		widgets.WidgetNumber: {
			Name: "semantic-form-number",
			Template: `<div class="semval-field{% if errors %} has-error{% endif %}">` + fieldLabel +
				`<input type="number" step="any" id="{{ id }}" name="{{ name }}" value="{{ text }}">` + fieldErrors + `</div>`,
		},
		widgets.WidgetToggle: {
			Name: "semantic-form-toggle",
			Template: `<div class="semval-field{% if errors %} has-error{% endif %}">` +
				`<input type="hidden" name="{{ name }}" value="false">` +
				`<input type="checkbox" id="{{ id }}" name="{{ name }}" value="true"{% if checked %} checked{% endif %}>` +
				fieldLabel + fieldErrors + `</div>`,
		},
		widgets.WidgetSelect: {
			Name: "semantic-form-select",
			Template: `<div class="semval-field{% if errors %} has-error{% endif %}">` + fieldLabel +
				`<select id="{{ id }}" name="{{ name }}">{% for o in options %}` +
				`<option value="{{ o }}"{% if o == text %} selected{% endif %}>{{ o }}</option>{% endfor %}</select>` +
				fieldErrors + `</div>`,
		},
		widgets.WidgetJSON: {
			Name: "semantic-form-json",
			Template: `<div class="semval-field{% if errors %} has-error{% endif %}">` + fieldLabel +
				`<textarea class="semval-json" id="{{ id }}" name="{{ name }}">{{ text }}</textarea>` + fieldErrors + `</div>`,
		},
		widgets.WidgetStruct: {
			Name: "semantic-form-struct",
			Template: `<fieldset class="semval-struct" id="{{ id }}">` +
				`<details{% if not collapsed %} open{% endif %}><summary>{{ title }}</summary>{{ body|safe }}</details>` +
				fieldErrors + `</fieldset>`,
		},
		widgets.WidgetRepeated: {
			Name: "semantic-form-repeated",
			Template: `<div class="semval-repeated" id="{{ id }}"><span class="semval-label">{{ title }}</span><ol>` +
				`{% for item in items %}<li>{{ item|safe }}` +
				`<button type="submit" name="_remove" value="{{ name }}[{{ forloop.Counter0 }}]">Remove</button></li>{% endfor %}` +
				`</ol><button type="submit" name="_append" value="{{ name }}">Add</button>` + fieldErrors + `</div>`,
		},
	}
)
