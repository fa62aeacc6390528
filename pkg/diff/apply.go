package diff

import (
	"encoding/json"
	"fmt"

	difflib "github.com/pmezard/go-difflib/difflib"

	"github.com/goliatone/go-inlineform/pkg/values"
)

// Apply merges patch onto base and returns the result. Mapping patches merge
// recursively into mapping bases; every other patch replaces the base value.
// Neither argument is modified.
func Apply(base, patch any) any {
	patchMap, ok := patch.(map[string]any)
	if !ok {
		return values.Clone(patch)
	}
	baseMap, ok := values.Clone(base).(map[string]any)
	if !ok || baseMap == nil {
		return values.Clone(patchMap)
	}
	for key, child := range patchMap {
		baseMap[key] = Apply(baseMap[key], child)
	}
	return baseMap
}

// Unified renders a unified text diff of two trees encoded as indented JSON.
// Identical trees produce an empty string.
func Unified(oldValue, newValue any, oldName, newName string) (string, error) {
	a, err := json.MarshalIndent(oldValue, "", "  ")
	if err != nil {
		return "", fmt.Errorf("diff: encode %s: %w", oldName, err)
	}
	b, err := json.MarshalIndent(newValue, "", "  ")
	if err != nil {
		return "", fmt.Errorf("diff: encode %s: %w", newName, err)
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: oldName,
		ToFile:   newName,
		Context:  3,
	}
	out, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("diff: unified: %w", err)
	}
	return out, nil
}
