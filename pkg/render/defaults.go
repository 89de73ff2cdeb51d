package render

import "github.com/goliatone/go-semval/pkg/registry"

// Built-in handle names.
const (
	HandleProto      = "semantic-proto"
	HandleList       = "semantic-list"
	HandleScalar     = "semantic-scalar"
	HandleFlags      = "semantic-flags"
	HandleUnresolved = "semantic-unresolved"
)

const listKeyType = "[]"

var (
	protoHandle = registry.Handle{
		Name: HandleProto,
		Template: `<table class="semval-proto" data-type="{{ type }}">` +
			`{% for child in children %}<tr{% if child.diff %} class="diff-{{ child.diff }}"{% endif %}>` +
			`{% if child.no_label %}<td colspan="2">{{ child.html|safe }}</td>` +
			`{% else %}<td class="semval-label">{{ child.title }}</td><td>{{ child.html|safe }}</td>{% endif %}` +
			`</tr>{% endfor %}</table>`,
	}
	listHandle = registry.Handle{
		Name: HandleList,
		Template: `<ul class="semval-list">{% for item in items %}` +
			`<li{% if item.diff %} class="diff-{{ item.diff }}"{% endif %}>{{ item.html|safe }}</li>` +
			`{% endfor %}</ul>`,
	}
	scalarHandle = registry.Handle{
		Name:     HandleScalar,
		Template: `<span class="semval-scalar"{% if diff %} data-diff="{{ diff }}"{% endif %}>{{ text }}</span>`,
	}
	flagsHandle = registry.Handle{
		Name: HandleFlags,
		Template: `{% if flags.malformed %}<span class="semval-flags malformed">malformed ({{ text }})</span>` +
			`{% else %}<span class="semval-flags">{{ flags.names|join:", " }}</span>{% endif %}`,
	}
)

// RegisterDefaults installs handles for the common primitive types.
func RegisterDefaults(reg *registry.Registry) {
	reg.MustRegister("RDFString", registry.Handle{
		Name:     "semantic-string",
		Template: `<span class="semval-string">{{ value }}</span>`,
	})
	reg.MustRegister("RDFBool", registry.Handle{
		Name:     "semantic-bool",
		Template: `<span class="semval-bool">{% if value %}true{% else %}false{% endif %}</span>`,
	})
	reg.MustRegister("RDFInteger", registry.Handle{
		Name:     "semantic-integer",
		Template: `<span class="semval-number">{{ text }}</span>`,
	})
	reg.MustRegister("RDFFloat", registry.Handle{
		Name:     "semantic-float",
		Template: `<span class="semval-number">{{ text }}</span>`,
	})
	reg.MustRegister("RDFURN", registry.Handle{
		Name:     "semantic-urn",
		Template: `<a class="semval-urn" href="#{{ value }}">{{ value }}</a>`,
	})
}
