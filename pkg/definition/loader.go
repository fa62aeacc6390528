package definition

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store holds definitions keyed by id.
type Store struct {
	definitions map[string]Definition
}

func NewStore(defs ...Definition) (*Store, error) {
	store := &Store{definitions: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if err := store.Add(def); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// Add normalizes def and stores it.
func (s *Store) Add(def Definition) error {
	if err := def.Normalize(); err != nil {
		return err
	}
	if existing, ok := s.definitions[def.ID]; ok {
		return fmt.Errorf("definition: duplicate id %q (files %s and %s)", def.ID, existing.sourceName(), def.sourceName())
	}
	s.definitions[def.ID] = def
	return nil
}

// Get returns the definition with id.
func (s *Store) Get(id string) (Definition, bool) {
	if s == nil {
		return Definition{}, false
	}
	def, ok := s.definitions[id]
	return def, ok
}

// IDs returns the stored ids, sorted.
func (s *Store) IDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.definitions))
	for id := range s.definitions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadFS parses every JSON or YAML file under fsys. A file holds either one
// definition or a list of them.
func LoadFS(fsys fs.FS) (*Store, error) {
	store, _ := NewStore()
	if fsys == nil {
		return store, nil
	}
	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDefinitionFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("definition: read %s: %w", path, err)
		}
		defs, err := ParseAll(data, path)
		if err != nil {
			return err
		}
		for _, def := range defs {
			if err := store.Add(def); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Parse decodes a single definition from JSON or YAML.
func Parse(data []byte, source string) (Definition, error) {
	defs, err := ParseAll(data, source)
	if err != nil {
		return Definition{}, err
	}
	if len(defs) != 1 {
		return Definition{}, fmt.Errorf("definition: %s holds %d definitions, want 1", source, len(defs))
	}
	return defs[0], nil
}

// ParseAll decodes one definition or a list of definitions from JSON or
// YAML. Definitions are normalized.
func ParseAll(data []byte, source string) ([]Definition, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("definition: file %s is empty", source)
	}

	var defs []Definition
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &defs); err != nil {
			if yerr := yaml.Unmarshal(data, &defs); yerr != nil {
				return nil, fmt.Errorf("definition: parse %s: invalid JSON or YAML", source)
			}
		}
	} else {
		var single Definition
		switch {
		case json.Unmarshal(data, &single) == nil:
			defs = []Definition{single}
		case yaml.Unmarshal(data, &single) == nil && single.ID != "":
			defs = []Definition{single}
		case yaml.Unmarshal(data, &defs) == nil:
		default:
			return nil, fmt.Errorf("definition: parse %s: invalid JSON or YAML", source)
		}
	}

	for i := range defs {
		defs[i].Source = source
		if err := defs[i].Normalize(); err != nil {
			return nil, err
		}
	}
	return defs, nil
}

func isDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
