// Package form implements an editable form over struct-typed tagged values.
//
// A Form keeps two copies of the value it edits. The shadow holds every
// visible field, with computed defaults filled in for unset fields, so
// controls always have something to bind to. The bound value is what gets
// serialised back to the server: it only carries fields that differ from
// their defaults. Edits enter through Apply; values arriving from outside the
// form enter through Reconcile. A Form is not safe for concurrent use.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/value"
)

var (
	// ErrConflictingFieldFilters is returned when both an allow-list and a
	// deny-list of field names are supplied.
	ErrConflictingFieldFilters = errors.New("form: visible and hidden field lists are mutually exclusive")
	// ErrUnknownField is returned when an edit targets a field the type does
	// not declare.
	ErrUnknownField = errors.New("form: unknown field")
	// ErrNotStruct is returned when the bound value's type is not a struct.
	ErrNotStruct = errors.New("form: type is not a struct")
	// ErrStructInput is returned when raw text targets a struct-typed field.
	// Struct fields are edited through nested paths such as "nested.name".
	ErrStructInput = errors.New("form: struct field takes input through nested paths")
)

// Option configures a Form.
type Option func(*config)

type config struct {
	visible       []string
	hidden        []string
	collapseDepth int
	logger        *zap.Logger
}

// WithVisibleFields restricts the top-level form to the named fields.
func WithVisibleFields(names ...string) Option {
	return func(cfg *config) {
		cfg.visible = append(cfg.visible, names...)
	}
}

// WithHiddenFields hides the named top-level fields.
func WithHiddenFields(names ...string) Option {
	return func(cfg *config) {
		cfg.hidden = append(cfg.hidden, names...)
	}
}

// WithCollapseDepth renders struct fields nested deeper than depth collapsed.
// Zero disables collapsing.
func WithCollapseDepth(depth int) Option {
	return func(cfg *config) {
		if depth >= 0 {
			cfg.collapseDepth = depth
		}
	}
}

// WithLogger attaches a zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Form edits one struct-typed value.
type Form struct {
	ID string

	source descriptor.Source
	cfg    config
	filter map[string]bool
	allow  bool

	types descriptor.Set
	desc  descriptor.Descriptor

	bound  *value.Value
	shadow *value.Value

	level        int
	parent       *Form
	parentField  string
	children     map[string]*Form
	controlIDs   map[string]string
	expanded     map[string]bool
	showAdvanced bool
}

// New builds a form for bound, fetching the descriptors of its type and every
// type it references. Supplying both WithVisibleFields and WithHiddenFields
// fails with ErrConflictingFieldFilters.
func New(ctx context.Context, source descriptor.Source, bound *value.Value, options ...Option) (*Form, error) {
	cfg := config{logger: zap.NewNop()}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	if len(cfg.visible) > 0 && len(cfg.hidden) > 0 {
		return nil, ErrConflictingFieldFilters
	}
	if source == nil {
		return nil, errors.New("form: descriptor source is required")
	}

	f := &Form{
		ID:     uuid.NewString(),
		source: source,
		cfg:    cfg,
		filter: make(map[string]bool),
		level:  0,
	}
	names := cfg.hidden
	if len(cfg.visible) > 0 {
		names = cfg.visible
		f.allow = true
	}
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			f.filter[trimmed] = true
		}
	}

	if err := f.Load(ctx, bound); err != nil {
		return nil, err
	}
	return f, nil
}

// Load binds a new value. When its type differs from the current one the
// descriptor set is fetched again; either way the shadow is rebuilt and the
// bound copy is pruned of default-valued fields.
func (f *Form) Load(ctx context.Context, bound *value.Value) error {
	if bound.IsPending() || bound.IsList() {
		return errors.New("form: bound value has no type")
	}
	if f.types == nil || f.desc.Name != bound.Type {
		set, err := f.source.GetWithDependencies(ctx, bound.Type)
		if err != nil {
			return fmt.Errorf("form: load %s: %w", bound.Type, err)
		}
		desc, ok := set[bound.Type]
		if !ok {
			return fmt.Errorf("form: load %s: %w", bound.Type, descriptor.ErrTypeNotFound)
		}
		if !desc.IsStruct() {
			return fmt.Errorf("%w: %s", ErrNotStruct, bound.Type)
		}
		f.types = set
		f.desc = desc
		f.cfg.logger.Debug("form descriptors loaded",
			zap.String("type", desc.Name), zap.Int("types", len(set)))
	}

	f.bind(bound.Clone())
	return nil
}

// Reconcile accepts a value changed outside the form. A different type
// reloads the form. Otherwise next always becomes the bound value, and its
// visible fields are compared with the current ones, treating absent fields
// as their defaults. The shadow is rebuilt only when one of them actually
// differs; otherwise only the hidden fields are copied into it. The result
// reports whether the form was reseeded.
func (f *Form) Reconcile(ctx context.Context, next *value.Value) (bool, error) {
	if next.IsPending() {
		return false, errors.New("form: bound value has no type")
	}
	if next.Type != f.desc.Name {
		if err := f.Load(ctx, next); err != nil {
			return false, err
		}
		return true, nil
	}

	for _, field := range f.desc.Fields {
		if f.isHidden(field) {
			continue
		}
		if !value.Equal(f.effective(f.bound, field), f.effective(next, field)) {
			f.cfg.logger.Debug("form reseeded from external value",
				zap.String("type", f.desc.Name), zap.String("field", field.Name))
			f.bind(next.Clone())
			return true, nil
		}
	}

	bound := next.Clone()
	if bound.Fields() == nil {
		bound.Value = value.Struct{}
	}
	f.bound = bound
	for _, field := range f.desc.Fields {
		if !f.isHidden(field) {
			continue
		}
		delete(f.children, field.Name)
		if current, ok := bound.Field(field.Name); ok {
			f.shadow.SetField(field.Name, current.Clone())
		} else {
			f.shadow.DeleteField(field.Name)
		}
	}
	f.prune()
	return false, nil
}

// Value returns a copy of the value to serialise back to the server.
func (f *Form) Value() *value.Value {
	return f.bound.Clone()
}

// Shadow returns a copy of the working value controls bind to.
func (f *Form) Shadow() *value.Value {
	return f.shadow.Clone()
}

// Descriptor returns the struct descriptor of the bound type.
func (f *Form) Descriptor() descriptor.Descriptor {
	return f.desc
}

// Types returns the descriptor set the form was loaded with.
func (f *Form) Types() descriptor.Set {
	return f.types
}

// Path returns the dotted path of the form relative to the root form.
func (f *Form) Path() string {
	if f.parent == nil {
		return ""
	}
	return joinPath(f.parent.Path(), f.parentField)
}

func (f *Form) bind(bound *value.Value) {
	if bound.Fields() == nil {
		bound.Value = value.Struct{}
	}
	f.bound = bound
	f.children = nil
	f.seed()
	f.prune()
}

// seed rebuilds the shadow from the bound fields plus defaults for unset
// visible fields.
func (f *Form) seed() {
	shadow := value.New(f.bound.Type, value.Struct{})
	for name, field := range f.bound.Fields() {
		shadow.SetField(name, field.Clone())
	}
	for _, field := range f.desc.Fields {
		if _, set := shadow.Field(field.Name); set || f.isHidden(field) {
			continue
		}
		if def, ok := f.types.DefaultFor(field); ok {
			shadow.SetField(field.Name, f.typed(field, def))
		}
	}
	f.shadow = shadow

	ids := make(map[string]string, len(f.desc.Fields))
	for _, field := range f.desc.Fields {
		if id, ok := f.controlIDs[field.Name]; ok {
			ids[field.Name] = id
			continue
		}
		ids[field.Name] = uuid.NewString()
	}
	f.controlIDs = ids
}

// propagate copies shadow fields that changed into the bound value, drops
// bound fields the shadow no longer has, then prunes.
func (f *Form) propagate() {
	shadowFields := f.shadow.Fields()
	for name, field := range shadowFields {
		current, ok := f.bound.Field(name)
		if ok && value.Equal(current, field) {
			continue
		}
		f.bound.SetField(name, field.Clone())
	}
	for name := range f.bound.Fields() {
		if _, ok := shadowFields[name]; !ok {
			f.bound.DeleteField(name)
		}
	}
	f.prune()
}

// prune deletes bound fields equal to their computed default. Fields labelled
// HIDDEN are never pruned.
func (f *Form) prune() {
	for _, field := range f.desc.Fields {
		if field.Hidden() {
			continue
		}
		current, ok := f.bound.Field(field.Name)
		if !ok {
			continue
		}
		def, ok := f.types.DefaultFor(field)
		if !ok {
			continue
		}
		if value.Equal(current, f.typed(field, def)) {
			f.bound.DeleteField(field.Name)
		}
	}
}

// effective returns the field value of v or, when unset, its default.
func (f *Form) effective(v *value.Value, field descriptor.Field) *value.Value {
	if current, ok := v.Field(field.Name); ok {
		return current
	}
	def, _ := f.types.DefaultFor(field)
	if def == nil {
		return nil
	}
	return f.typed(field, def)
}

// typed stamps the field type on a default that arrived without one.
func (f *Form) typed(field descriptor.Field, def *value.Value) *value.Value {
	if def != nil && def.Type == "" && !def.IsList() {
		def.Type = field.Type
	}
	return def
}

func (f *Form) isHidden(field descriptor.Field) bool {
	if field.Hidden() {
		return true
	}
	if f.parent != nil || len(f.filter) == 0 {
		return false
	}
	if f.allow {
		return !f.filter[field.Name]
	}
	return f.filter[field.Name]
}

func (f *Form) field(name string) (descriptor.Field, error) {
	field, ok := f.desc.Field(name)
	if !ok {
		return descriptor.Field{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, f.desc.Name, name)
	}
	return field, nil
}

func joinPath(parent, child string) string {
	parent = strings.TrimSpace(parent)
	child = strings.TrimSpace(child)
	if parent == "" {
		return child
	}
	if child == "" {
		return parent
	}
	return parent + "." + child
}
