package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-inlineform/internal/store"
	"github.com/goliatone/go-inlineform/pkg/definition"
	"github.com/goliatone/go-inlineform/pkg/diff"
	"github.com/goliatone/go-inlineform/pkg/field"
	"github.com/goliatone/go-inlineform/pkg/values"
)

var errBadBody = StatusError{Code: http.StatusBadRequest, Err: errors.New("body must be a JSON object")}

// RecordKey is the store and live key of a record.
func RecordKey(collection, id string) string {
	return collection + "/" + id
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	tree, err := s.store.Record(RecordKey(r.PathValue("collection"), r.PathValue("id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) putRecord(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("collection"), r.PathValue("id")
	tree, err := decodeObject(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if def, ok := s.opts.Collections[collection]; ok {
		sanitize(def, tree)
		if err := checkPaths(def, tree, def.Paths()); err != nil {
			writeError(w, r, err)
			return
		}
	}
	key := RecordKey(collection, id)
	if err := s.store.PutRecord(key, tree); err != nil {
		writeError(w, r, err)
		return
	}
	s.publish(key, tree)
	writeJSON(w, http.StatusOK, tree)
}

// patchRecord merges a partial update. Validation only reports issues on the
// paths the patch touches.
func (s *Server) patchRecord(w http.ResponseWriter, r *http.Request) {
	collection, id := r.PathValue("collection"), r.PathValue("id")
	patch, err := decodeObject(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	key := RecordKey(collection, id)

	if def, ok := s.opts.Collections[collection]; ok {
		sanitize(def, patch)
		current, err := s.store.Record(key)
		if err != nil && !isNotFound(err) {
			writeError(w, r, err)
			return
		}
		merged, _ := diff.Apply(map[string]any(current), map[string]any(patch)).(map[string]any)
		if err := checkPaths(def, merged, values.Paths(patch)); err != nil {
			writeError(w, r, err)
			return
		}
	}

	tree, err := s.store.PatchRecord(key, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	glog.V(1).Infof("server: patched %s: %s", key, strings.Join(values.Paths(patch), ", "))
	s.publish(key, tree)
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) publish(key string, tree values.Tree) {
	if err := s.hub.Publish(key, tree); err != nil {
		glog.Warningf("server: publish %s: %s", key, err)
	}
}

func decodeObject(r *http.Request) (values.Tree, error) {
	var tree values.Tree
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&tree); err != nil {
		return nil, StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("decode body: %w", err)}
	}
	if tree == nil {
		return nil, errBadBody
	}
	return tree, nil
}

// checkPaths runs the definition checks and keeps the issues of fields at or
// under one of paths.
func checkPaths(def definition.Definition, tree values.Tree, paths []string) error {
	result := definition.Check(def, tree)
	if result.Valid {
		return nil
	}
	fields := map[string][]string{}
	for _, issue := range result.Issues {
		if touches(issue.Path, paths) {
			fields[issue.Path] = append(fields[issue.Path], issue.Message)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return validationError{fields: fields}
}

func touches(fieldPath string, paths []string) bool {
	for _, p := range paths {
		if p == fieldPath || strings.HasPrefix(p, fieldPath+".") || strings.HasPrefix(fieldPath, p+".") {
			return true
		}
	}
	return false
}

// sanitize strips unsafe markup from string values of sanitized fields.
func sanitize(def definition.Definition, tree values.Tree) {
	var policy *bluemonday.Policy
	for _, f := range def.Fields {
		if !f.Sanitize {
			continue
		}
		raw, ok := values.Get(tree, f.Path)
		text, isString := raw.(string)
		if !ok || !isString {
			continue
		}
		if policy == nil {
			policy = bluemonday.UGCPolicy()
		}
		_ = values.Set(tree, f.Path, policy.Sanitize(text))
	}
}

type searchResponse struct {
	Data []searchOption `json:"data"`
}

type searchOption struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

// searchOptions filters the options of a choice field by the q parameter.
// Labels starting with the query rank before labels containing it.
func (s *Server) searchOptions(w http.ResponseWriter, r *http.Request) {
	def, ok := s.opts.Collections[r.PathValue("collection")]
	if !ok {
		writeError(w, r, StatusError{Code: http.StatusNotFound, Err: fmt.Errorf("unknown collection %q", r.PathValue("collection"))})
		return
	}
	spec, ok := def.Field(r.PathValue("path"))
	if !ok || len(spec.Options) == 0 {
		writeError(w, r, StatusError{Code: http.StatusNotFound, Err: fmt.Errorf("no options for %q", r.PathValue("path"))})
		return
	}

	limit := clampLimit(parseInt(r.URL.Query().Get("limit")), s.opts)
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	type match struct {
		option   searchOption
		isPrefix bool
		order    int
	}
	var matches []match
	for i, o := range field.OptionsFrom(spec.Options) {
		opt := searchOption{Value: o.Value, Label: o.Label}
		label := strings.ToLower(opt.Label)
		if query != "" && !strings.Contains(label, query) {
			continue
		}
		matches = append(matches, match{option: opt, isPrefix: strings.HasPrefix(label, query), order: i})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].isPrefix != matches[j].isPrefix {
			return matches[i].isPrefix
		}
		return matches[i].order < matches[j].order
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := searchResponse{Data: make([]searchOption, 0, len(matches))}
	for _, m := range matches {
		out.Data = append(out.Data, m.option)
	}
	writeJSON(w, http.StatusOK, out)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func parseInt(raw string) int {
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}
