package form

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/value"
)

// Apply sets field name of the shadow to v and writes the change through to
// the bound value. A nil v resets the field to its default. Changing the
// discriminator of a union resets the previously selected branch.
func (f *Form) Apply(name string, v *value.Value) error {
	field, err := f.field(name)
	if err != nil {
		return err
	}

	previousBranch, hadBranch := f.ActiveBranch()
	f.setShadow(field, v)

	if f.desc.IsUnion() && name == f.desc.UnionField {
		if next, ok := f.ActiveBranch(); hadBranch && (!ok || next != previousBranch) {
			if branch, err := f.field(previousBranch); err == nil {
				f.setShadow(branch, nil)
				delete(f.children, previousBranch)
				f.cfg.logger.Debug("form union branch reset",
					zap.String("type", f.desc.Name), zap.String("branch", previousBranch))
			}
		}
	}

	f.commit()
	return nil
}

// Append adds item to the repeated field name. A nil item appends the default
// of the element type.
func (f *Form) Append(name string, item *value.Value) error {
	field, err := f.repeated(name)
	if err != nil {
		return err
	}
	if item == nil {
		def, ok := f.types.DefaultFor(descriptor.Field{Name: field.Name, Type: field.Type})
		if !ok {
			def = value.New(field.Type, nil)
		}
		item = f.typed(field, def)
	}
	items := append(f.items(field), item.Clone())
	return f.Apply(name, value.NewList(items...))
}

// RemoveAt deletes the item at idx from the repeated field name.
func (f *Form) RemoveAt(name string, idx int) error {
	field, err := f.repeated(name)
	if err != nil {
		return err
	}
	items := f.items(field)
	if idx < 0 || idx >= len(items) {
		return fmt.Errorf("form: %s index %d out of range [0,%d)", name, idx, len(items))
	}
	items = append(items[:idx], items[idx+1:]...)
	return f.Apply(name, value.NewList(items...))
}

// Child returns the nested form editing the struct-typed field name. Edits
// applied to the child are written back to this form through Apply.
func (f *Form) Child(name string) (*Form, error) {
	field, err := f.field(name)
	if err != nil {
		return nil, err
	}
	if child, ok := f.children[name]; ok {
		return child, nil
	}
	desc, ok := f.types[field.Type]
	if field.Repeated || field.Dynamic || !ok || !desc.IsStruct() {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotStruct, f.desc.Name, name)
	}

	bound, ok := f.shadow.Field(name)
	if !ok || bound == nil {
		bound = value.New(field.Type, value.Struct{})
	}
	child := &Form{
		ID:          f.controlIDs[name],
		source:      f.source,
		cfg:         f.cfg,
		types:       f.types,
		desc:        desc,
		level:       f.level + 1,
		parent:      f,
		parentField: name,
	}
	child.bind(bound.Clone())
	if f.children == nil {
		f.children = make(map[string]*Form)
	}
	f.children[name] = child
	return child, nil
}

// ActiveBranch returns the union branch selected by the discriminator. The
// branch field is named after the lower-cased discriminator value. ok is
// false for non-union types and for discriminator values that match no field.
func (f *Form) ActiveBranch() (string, bool) {
	if !f.desc.IsUnion() {
		return "", false
	}
	disc, ok := f.shadow.Field(f.desc.UnionField)
	if !ok || disc == nil {
		return "", false
	}
	raw, ok := disc.Value.(string)
	if !ok {
		return "", false
	}
	branch := strings.ToLower(strings.TrimSpace(raw))
	if branch == "" || branch == f.desc.UnionField {
		return "", false
	}
	if _, exists := f.desc.Field(branch); !exists {
		return "", false
	}
	return branch, true
}

func (f *Form) setShadow(field descriptor.Field, v *value.Value) {
	if v != nil {
		f.shadow.SetField(field.Name, v.Clone())
		if child, ok := f.children[field.Name]; ok && !value.Equal(child.bound, v) {
			delete(f.children, field.Name)
		}
		return
	}
	delete(f.children, field.Name)
	if def, ok := f.types.DefaultFor(field); ok && !f.isHidden(field) {
		f.shadow.SetField(field.Name, f.typed(field, def))
		return
	}
	f.shadow.DeleteField(field.Name)
}

// commit propagates the shadow into the bound value and hands the result to
// the parent form, if any.
func (f *Form) commit() {
	f.propagate()
	if f.parent == nil {
		return
	}
	parent := f.parent
	field, err := parent.field(f.parentField)
	if err != nil {
		return
	}
	parent.shadow.SetField(field.Name, f.bound.Clone())
	parent.commit()
}

func (f *Form) repeated(name string) (descriptor.Field, error) {
	field, err := f.field(name)
	if err != nil {
		return descriptor.Field{}, err
	}
	if !field.Repeated {
		return descriptor.Field{}, fmt.Errorf("form: %s.%s is not repeated", f.desc.Name, name)
	}
	return field, nil
}

func (f *Form) items(field descriptor.Field) value.List {
	current, _ := f.shadow.Field(field.Name)
	items := current.Items()
	out := make(value.List, 0, len(items)+1)
	for _, item := range items {
		out = append(out, item.Clone())
	}
	return out
}
