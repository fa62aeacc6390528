package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// File is a file selected for upload.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// BytesFile wraps an in-memory payload. An empty contentType is derived from
// the file extension.
func BytesFile(name, contentType string, data []byte) File {
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(name))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	payload := append([]byte(nil), data...)
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(payload)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		},
	}
}

// LocalFile describes the file at path on disk. It is opened on upload.
func LocalFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("upload: %w", err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("upload: %s is a directory", path)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// ReadAll reads the whole file.
func (f File) ReadAll() ([]byte, error) {
	if f.Open == nil {
		return nil, fmt.Errorf("upload: %s has no content", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// FileValue is one entry of a file field's value.
type FileValue struct {
	URL  string
	Name string
	Size int64
}

// Map returns the tree representation stored in the form.
func (v FileValue) Map() map[string]any {
	return map[string]any{
		"url":  v.URL,
		"name": v.Name,
		"size": float64(v.Size),
	}
}

// FileValuesFrom reads a file field value from the form tree. Entries that
// are not mappings are skipped.
func FileValuesFrom(value any) []FileValue {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]FileValue, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		fv := FileValue{}
		fv.URL, _ = m["url"].(string)
		fv.Name, _ = m["name"].(string)
		switch size := m["size"].(type) {
		case float64:
			fv.Size = int64(size)
		case int:
			fv.Size = int64(size)
		case int64:
			fv.Size = size
		}
		out = append(out, fv)
	}
	return out
}

func fileValuesTree(list []FileValue) []any {
	out := make([]any, len(list))
	for i, fv := range list {
		out[i] = fv.Map()
	}
	return out
}

// FormatFileSize renders a byte count in kilobytes with two decimals.
func FormatFileSize(size int64) string {
	kb := float64(size) / 1024
	return strconv.FormatFloat(kb, 'f', 2, 64) + " KB"
}

// Accept is a parsed accept list such as ".pdf,.docx" or "image/*".
type Accept struct {
	extensions []string
	types      []string
}

// ParseAccept parses a comma or whitespace separated accept list. Entries
// starting with a dot are extensions; others are MIME types, optionally
// ending in "/*".
func ParseAccept(spec string) Accept {
	var a Accept
	fields := strings.FieldsFunc(spec, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	for _, field := range fields {
		field = strings.ToLower(strings.TrimSpace(field))
		switch {
		case field == "":
		case strings.HasPrefix(field, "."):
			a.extensions = append(a.extensions, field)
		default:
			a.types = append(a.types, field)
		}
	}
	return a
}

// Empty reports whether the list accepts everything.
func (a Accept) Empty() bool { return len(a.extensions) == 0 && len(a.types) == 0 }

// Allows reports whether f matches the list.
func (a Accept) Allows(f File) bool {
	if a.Empty() {
		return true
	}
	ext := strings.ToLower(filepath.Ext(f.Name))
	if ext != "" {
		for _, allowed := range a.extensions {
			if ext == allowed {
				return true
			}
		}
	}
	contentType := strings.ToLower(f.ContentType)
	if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if contentType == "" {
		return false
	}
	for _, allowed := range a.types {
		if prefix, ok := strings.CutSuffix(allowed, "/*"); ok {
			if strings.HasPrefix(contentType, prefix+"/") {
				return true
			}
			continue
		}
		if contentType == allowed {
			return true
		}
	}
	return false
}

func (a Accept) String() string {
	return strings.Join(append(append([]string(nil), a.extensions...), a.types...), ",")
}
