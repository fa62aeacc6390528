package definition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ExtensionKey is the schema extension carrying field overrides, e.g.
//
//	x-inlineform: {kind: image, accept: "image/*"}
const ExtensionKey = "x-inlineform"

var ErrOperationNotFound = errors.New("definition: operation not found")

// FromOpenAPI derives a definition from the JSON request body of the
// operation with operationID. Nested objects become dotted paths.
func FromOpenAPI(ctx context.Context, data []byte, operationID string) (Definition, error) {
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return Definition{}, fmt.Errorf("definition: load openapi: %w", err)
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return Definition{}, errors.New("definition: openapi document has no paths")
	}

	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil || op.OperationID != operationID {
				continue
			}
			schema := requestSchema(op.RequestBody)
			if schema == nil {
				return Definition{}, fmt.Errorf("definition: operation %q (%s %s) has no request body schema", operationID, method, path)
			}
			def := Definition{
				ID:       operationID,
				Title:    op.Summary,
				Endpoint: strings.ReplaceAll(path, "{"+firstParam(path)+"}", "{id}"),
				Source:   "openapi:" + operationID,
			}
			collectFields(&def, "", schema, schema.Required)
			if err := def.Normalize(); err != nil {
				return Definition{}, err
			}
			return def, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %q", ErrOperationNotFound, operationID)
}

func requestSchema(body *openapi3.RequestBodyRef) *openapi3.Schema {
	if body == nil || body.Value == nil {
		return nil
	}
	for _, mediaType := range []string{"application/json", "application/merge-patch+json"} {
		if mt, ok := body.Value.Content[mediaType]; ok && mt.Schema != nil && mt.Schema.Value != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

func collectFields(def *Definition, prefix string, schema *openapi3.Schema, required []string) {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil || ref.Value.ReadOnly {
			continue
		}
		prop := ref.Value
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		override := extension(prop)
		if typeOf(prop) == openapi3.TypeObject && override.Kind == "" {
			collectFields(def, path, prop, prop.Required)
			continue
		}

		f := Field{
			Path:     path,
			Label:    prop.Title,
			Required: contains(required, name),
		}
		fieldFromSchema(&f, prop)
		override.apply(&f)
		def.Fields = append(def.Fields, f)
	}
}

func fieldFromSchema(f *Field, prop *openapi3.Schema) {
	switch typeOf(prop) {
	case openapi3.TypeBoolean:
		f.Kind = KindBoolean
	case openapi3.TypeInteger, openapi3.TypeNumber:
		f.Kind = KindNumber
		if prop.Min != nil {
			v := *prop.Min
			f.Min = &v
		}
		if prop.Max != nil {
			v := *prop.Max
			f.Max = &v
		}
	case openapi3.TypeArray:
		if prop.Items != nil && prop.Items.Value != nil && len(prop.Items.Value.Enum) > 0 {
			f.Kind = KindAutocomplete
			f.Options = append([]any(nil), prop.Items.Value.Enum...)
			return
		}
		f.Kind = KindFile
		f.Multiple = true
	default:
		switch {
		case len(prop.Enum) > 0:
			f.Kind = KindSelect
			f.Options = append([]any(nil), prop.Enum...)
		case prop.Format == "date":
			f.Kind = KindDate
		case prop.Format == "date-time":
			f.Kind = KindDateTime
		case prop.Format == "binary" || (prop.Format == "uri" && strings.Contains(strings.ToLower(f.Path), "image")):
			f.Kind = KindImage
		case prop.MaxLength != nil && *prop.MaxLength > 255:
			f.Kind = KindTextarea
			f.Sanitize = true
		default:
			f.Kind = KindText
		}
	}
}

type fieldOverride struct {
	Kind     Kind
	Format   string
	Prefix   string
	Length   int
	Accept   string
	Multiple *bool
	Limit    int
	Label    string
	Visible  string
}

func extension(prop *openapi3.Schema) fieldOverride {
	raw, ok := prop.Extensions[ExtensionKey].(map[string]any)
	if !ok {
		return fieldOverride{}
	}
	var o fieldOverride
	if v, ok := raw["kind"].(string); ok {
		o.Kind = Kind(v)
	}
	o.Format, _ = raw["format"].(string)
	o.Prefix, _ = raw["prefix"].(string)
	o.Accept, _ = raw["accept"].(string)
	o.Label, _ = raw["label"].(string)
	o.Visible, _ = raw["visibleWhen"].(string)
	if v, ok := raw["length"].(float64); ok {
		o.Length = int(v)
	}
	if v, ok := raw["limit"].(float64); ok {
		o.Limit = int(v)
	}
	if v, ok := raw["multiple"].(bool); ok {
		o.Multiple = &v
	}
	return o
}

func (o fieldOverride) apply(f *Field) {
	if o.Kind != "" {
		f.Kind = o.Kind
	}
	if o.Format != "" {
		f.Format = o.Format
	}
	if o.Prefix != "" {
		f.Prefix = o.Prefix
	}
	if o.Length > 0 {
		f.Length = o.Length
	}
	if o.Accept != "" {
		f.Accept = o.Accept
	}
	if o.Multiple != nil {
		f.Multiple = *o.Multiple
	}
	if o.Limit > 0 {
		f.Limit = o.Limit
	}
	if o.Label != "" {
		f.Label = o.Label
	}
	if o.Visible != "" {
		f.VisibleWhen = o.Visible
	}
}

func typeOf(schema *openapi3.Schema) string {
	if schema.Type == nil {
		if len(schema.Properties) > 0 {
			return openapi3.TypeObject
		}
		return ""
	}
	for _, t := range schema.Type.Slice() {
		if t != openapi3.TypeNull {
			return t
		}
	}
	return ""
}

func firstParam(path string) string {
	start := strings.IndexByte(path, '{')
	end := strings.IndexByte(path, '}')
	if start < 0 || end < start {
		return ""
	}
	return path[start+1 : end]
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
