package form

import (
	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/value"
)

// FieldView is the render-ready state of one field.
type FieldView struct {
	ID         string
	Path       string
	Descriptor descriptor.Field
	// Kind is the kind of the field's type; empty when the type is unknown.
	Kind descriptor.Kind
	// Value is the shadow value bound to the control.
	Value *value.Value
	// Default is the computed default, nil for dynamic fields.
	Default *value.Value
	// Set reports whether the field is present in the serialised value.
	Set       bool
	Advanced  bool
	Collapsed bool
}

// Fields returns the regular, non-advanced fields in descriptor order. For
// unions only the discriminator and the active branch are included.
func (f *Form) Fields() []FieldView {
	return f.views(false)
}

// AdvancedFields returns the fields labelled ADVANCED.
func (f *Form) AdvancedFields() []FieldView {
	return f.views(true)
}

// HiddenFields returns the names of hidden fields in descriptor order.
func (f *Form) HiddenFields() []string {
	var names []string
	for _, field := range f.desc.Fields {
		if f.isHidden(field) {
			names = append(names, field.Name)
		}
	}
	return names
}

// Field returns the view of a single field, whether or not it is shown.
func (f *Form) Field(name string) (FieldView, error) {
	field, err := f.field(name)
	if err != nil {
		return FieldView{}, err
	}
	return f.view(field), nil
}

// ShowAdvanced reports whether advanced fields are disclosed.
func (f *Form) ShowAdvanced() bool { return f.showAdvanced }

// ToggleAdvanced flips the disclosure of advanced fields.
func (f *Form) ToggleAdvanced() { f.showAdvanced = !f.showAdvanced }

// Toggle expands or collapses the struct field name.
func (f *Form) Toggle(name string) error {
	if _, err := f.field(name); err != nil {
		return err
	}
	if f.expanded == nil {
		f.expanded = make(map[string]bool)
	}
	f.expanded[name] = !f.expanded[name]
	return nil
}

func (f *Form) views(advanced bool) []FieldView {
	branch, hasBranch := f.ActiveBranch()
	var out []FieldView
	for _, field := range f.desc.Fields {
		if f.isHidden(field) || field.Advanced() != advanced {
			continue
		}
		if f.desc.IsUnion() && field.Name != f.desc.UnionField && (!hasBranch || field.Name != branch) {
			continue
		}
		out = append(out, f.view(field))
	}
	return out
}

func (f *Form) view(field descriptor.Field) FieldView {
	shadow, _ := f.shadow.Field(field.Name)
	_, set := f.bound.Field(field.Name)
	def, _ := f.types.DefaultFor(field)

	view := FieldView{
		ID:         f.controlIDs[field.Name],
		Path:       joinPath(f.Path(), field.Name),
		Descriptor: field,
		Value:      shadow.Clone(),
		Default:    f.typed(field, def),
		Set:        set,
		Advanced:   field.Advanced(),
	}
	if desc, ok := f.types[field.Type]; ok {
		view.Kind = desc.Kind
		if desc.IsStruct() && !field.Repeated && f.cfg.collapseDepth > 0 {
			view.Collapsed = f.level+1 > f.cfg.collapseDepth && !f.expanded[field.Name]
		}
	}
	return view
}
