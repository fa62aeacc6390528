package definition

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-inlineform/pkg/visibility"
)

// extensionKeys lists the keys read from an x-inlineform object and the JSON
// type each value must have.
var extensionKeys = map[string]string{
	"kind":     "string",
	"format":   "string",
	"prefix":   "string",
	"accept":   "string",
	"label":    "string",
	"length":   "number",
	"limit":    "number",
	"multiple": "boolean",

	"visibleWhen": "string",
}

// ExtensionKeys returns the supported x-inlineform keys, sorted.
func ExtensionKeys() []string {
	keys := make([]string, 0, len(extensionKeys))
	for key := range extensionKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// LintOpenAPI reports x-inlineform extensions that FromOpenAPI would ignore
// or reject across every operation request body in data. Issue paths read
// like "updateUser > requestBody > properties.avatar".
func LintOpenAPI(ctx context.Context, data []byte) ([]Issue, error) {
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("definition: load openapi: %w", err)
	}

	var issues []Issue
	if doc.Paths == nil {
		return nil, nil
	}
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			id := op.OperationID
			if id == "" {
				id = method + " " + path
			}
			if schema := requestSchema(op.RequestBody); schema != nil {
				issues = append(issues, lintSchema([]string{id, "requestBody"}, schema, map[*openapi3.Schema]bool{})...)
			}
		}
	}
	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Path == issues[j].Path {
			return issues[i].Message < issues[j].Message
		}
		return issues[i].Path < issues[j].Path
	})
	return issues, nil
}

func lintSchema(path []string, schema *openapi3.Schema, seen map[*openapi3.Schema]bool) []Issue {
	if seen[schema] {
		return nil
	}
	seen[schema] = true

	var issues []Issue
	if raw, ok := schema.Extensions[ExtensionKey]; ok {
		issues = append(issues, lintExtension(path, raw)...)
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if ref := schema.Properties[name]; ref != nil && ref.Value != nil {
			issues = append(issues, lintSchema(appendPath(path, "properties."+name), ref.Value, seen)...)
		}
	}
	if schema.Items != nil && schema.Items.Value != nil {
		issues = append(issues, lintSchema(appendPath(path, "items"), schema.Items.Value, seen)...)
	}
	return issues
}

func lintExtension(path []string, raw any) []Issue {
	location := strings.Join(path, " > ")
	nested, ok := raw.(map[string]any)
	if !ok {
		return []Issue{{Path: location, Message: fmt.Sprintf("%s must be an object, found %T", ExtensionKey, raw)}}
	}

	keys := make([]string, 0, len(nested))
	for key := range nested {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var issues []Issue
	for _, key := range keys {
		want, ok := extensionKeys[key]
		if !ok {
			issues = append(issues, Issue{
				Path:    location,
				Message: fmt.Sprintf("unsupported key %q (supported: %s)", key, strings.Join(ExtensionKeys(), ", ")),
			})
			continue
		}
		if got := jsonType(nested[key]); got != want {
			issues = append(issues, Issue{
				Path:    location,
				Message: fmt.Sprintf("value for %q must be a %s (got %s)", key, want, got),
			})
			continue
		}
		switch key {
		case "kind":
			kind := Kind(strings.ToLower(nested[key].(string)))
			if _, known := knownKinds[kind]; !known {
				issues = append(issues, Issue{Path: location, Message: fmt.Sprintf("unknown kind %q", kind)})
			}
		case "visibleWhen":
			if _, err := visibility.Compile(nested[key].(string)); err != nil {
				issues = append(issues, Issue{Path: location, Message: err.Error()})
			}
		}
	}
	return issues
}

func jsonType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

func appendPath(path []string, segment string) []string {
	next := append([]string(nil), path...)
	return append(next, segment)
}
