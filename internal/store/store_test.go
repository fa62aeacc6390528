package store_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-inlineform/internal/store"
	"github.com/goliatone/go-inlineform/pkg/values"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "inlineform.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStore_PatchRecordMerges(t *testing.T) {
	st := openStore(t)
	if err := st.PutRecord("users/1", values.Tree{
		"name":    "Ada",
		"address": map[string]any{"city": "London", "zip": "N1"},
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := st.PatchRecord("users/1", map[string]any{
		"address": map[string]any{"city": "Paris"},
		"nick":    nil,
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	want := values.Tree{
		"name":    "Ada",
		"address": map[string]any{"city": "Paris", "zip": "N1"},
		"nick":    nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("patched mismatch (-want +got):\n%s", diff)
	}

	stored, err := st.Record("users/1")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if diff := cmp.Diff(want, stored); diff != "" {
		t.Fatalf("stored mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_MissingRecord(t *testing.T) {
	st := openStore(t)
	if _, err := st.Record("nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	got, err := st.PatchRecord("new", map[string]any{"a": 1.0})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if diff := cmp.Diff(values.Tree{"a": 1.0}, got); diff != "" {
		t.Fatalf("created mismatch (-want +got):\n%s", diff)
	}

	ids, err := st.RecordIDs()
	if err != nil {
		t.Fatalf("ids: %v", err)
	}
	if diff := cmp.Diff([]string{"new"}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}

	if err := st.DeleteRecord("new"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Record("new"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestStore_Blobs(t *testing.T) {
	st := openStore(t)
	key := store.NewBlobKey("avatars")
	if !strings.HasPrefix(key, "avatars/") {
		t.Fatalf("key = %q", key)
	}
	if err := st.PutBlob(key, "image/png", []byte("png")); err != nil {
		t.Fatalf("put blob: %v", err)
	}
	blob, err := st.Blob(key)
	if err != nil {
		t.Fatalf("blob: %v", err)
	}
	want := store.Blob{Key: key, ContentType: "image/png", Data: []byte("png")}
	if diff := cmp.Diff(want, blob); diff != "" {
		t.Fatalf("blob mismatch (-want +got):\n%s", diff)
	}
	if _, err := st.Blob("avatars/missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
