// Package openapi derives type descriptors from the component schemas of an
// OpenAPI 3 document so services without a reflection endpoint can still
// drive the renderer and form engine.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-semval/pkg/descriptor"
	"github.com/goliatone/go-semval/pkg/value"
)

// Primitive type names synthesised for OpenAPI scalar types.
const (
	TypeString  = "RDFString"
	TypeInteger = "RDFInteger"
	TypeFloat   = "RDFFloat"
	TypeBool    = "RDFBool"
	TypeDict    = "Dict"
)

const labelsExtensionKey = "x-semval-labels"

// Parse loads an OpenAPI document and converts components.schemas into a
// descriptor Set. Object schemas become structs; a discriminator becomes the
// union field.
func Parse(ctx context.Context, raw []byte) (descriptor.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("openapi descriptors: document payload is empty")
	}

	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi descriptors: load document: %w", err)
	}

	set := primitives()
	if spec.Components == nil || len(spec.Components.Schemas) == 0 {
		return set, nil
	}

	for name, ref := range spec.Components.Schemas {
		if ref == nil || ref.Value == nil {
			continue
		}
		set[name] = convertSchema(name, ref.Value)
	}
	return set, nil
}

func primitives() descriptor.Set {
	return descriptor.Set{
		TypeString:  primitive(TypeString, ""),
		TypeInteger: primitive(TypeInteger, 0),
		TypeFloat:   primitive(TypeFloat, 0.0),
		TypeBool:    primitive(TypeBool, false),
		TypeDict:    {Name: TypeDict, Kind: descriptor.KindPrimitive, Mro: []string{TypeDict}},
	}
}

func primitive(name string, zero any) descriptor.Descriptor {
	return descriptor.Descriptor{
		Name:    name,
		Kind:    descriptor.KindPrimitive,
		Default: value.New(name, zero),
		Mro:     []string{name},
	}
}

func convertSchema(name string, src *openapi3.Schema) descriptor.Descriptor {
	typeName := firstSchemaType(src.Type)
	if typeName != "object" && len(src.Properties) == 0 {
		base := scalarTypeName(typeName)
		desc := descriptor.Descriptor{
			Name: name,
			Kind: descriptor.KindPrimitive,
			Doc:  src.Description,
			Mro:  []string{name, base},
		}
		if src.Default != nil {
			desc.Default = value.New(name, src.Default)
		}
		return desc
	}

	names := make([]string, 0, len(src.Properties))
	for prop := range src.Properties {
		names = append(names, prop)
	}
	sort.Strings(names)

	desc := descriptor.Descriptor{
		Name: name,
		Kind: descriptor.KindStruct,
		Doc:  src.Description,
		Mro:  []string{name, "RDFProtoStruct"},
	}
	if src.Discriminator != nil {
		desc.UnionField = src.Discriminator.PropertyName
	}
	for _, prop := range names {
		desc.Fields = append(desc.Fields, convertField(prop, src.Properties[prop]))
	}
	return desc
}

func convertField(name string, ref *openapi3.SchemaRef) descriptor.Field {
	field := descriptor.Field{Name: name}
	if ref == nil {
		field.Dynamic = true
		return field
	}

	target := ref
	if ref.Value != nil && firstSchemaType(ref.Value.Type) == "array" {
		field.Repeated = true
		target = ref.Value.Items
	}
	field.Type = referencedType(target)
	if field.Type == "" {
		field.Dynamic = true
	}

	if ref.Value == nil {
		return field
	}
	src := ref.Value
	field.Doc = src.Description
	field.FriendlyName = src.Title
	if len(src.Enum) > 0 {
		for _, item := range src.Enum {
			field.AllowedValues = append(field.AllowedValues, fmt.Sprint(item))
		}
	}
	if src.Default != nil && !field.Repeated && field.Type != "" {
		field.Default = value.New(field.Type, src.Default)
	}
	field.Labels = extractLabels(src.Extensions)
	return field
}

func referencedType(ref *openapi3.SchemaRef) string {
	if ref == nil {
		return ""
	}
	if ref.Ref != "" {
		idx := strings.LastIndex(ref.Ref, "/")
		return ref.Ref[idx+1:]
	}
	if ref.Value == nil {
		return ""
	}
	typeName := firstSchemaType(ref.Value.Type)
	if typeName == "object" {
		if len(ref.Value.Properties) == 0 {
			return TypeDict
		}
		return ""
	}
	return scalarTypeName(typeName)
}

func scalarTypeName(openapiType string) string {
	switch openapiType {
	case "integer":
		return TypeInteger
	case "number":
		return TypeFloat
	case "boolean":
		return TypeBool
	default:
		return TypeString
	}
}

func firstSchemaType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	values := types.Slice()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func extractLabels(ext map[string]any) []descriptor.Label {
	raw, ok := ext[labelsExtensionKey]
	if !ok {
		return nil
	}
	var labels []descriptor.Label
	add := func(item any) {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			labels = append(labels, descriptor.Label(strings.ToUpper(strings.TrimSpace(s))))
		}
	}
	switch typed := raw.(type) {
	case []any:
		for _, item := range typed {
			add(item)
		}
	case []string:
		for _, item := range typed {
			add(item)
		}
	default:
		add(typed)
	}
	return labels
}
