package upload_test

import (
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-inlineform/pkg/field"
	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/inline"
	"github.com/goliatone/go-inlineform/pkg/loop"
	"github.com/goliatone/go-inlineform/pkg/testsupport"
	"github.com/goliatone/go-inlineform/pkg/upload"
	"github.com/goliatone/go-inlineform/pkg/values"
)

type harness struct {
	lp        *loop.Loop
	form      *form.Form
	persister *testsupport.RecordingPersister
	transport *testsupport.FakeTransport
	manager   *upload.Manager
}

func newHarness(t *testing.T, initial values.Tree) *harness {
	t.Helper()
	h := &harness{
		lp:        loop.New(),
		persister: testsupport.NewRecordingPersister(),
		transport: &testsupport.FakeTransport{},
	}
	h.form, _ = inline.NewForm(h.lp, h.persister.Persist, inline.WithFormOptions(
		form.WithInitialValues(initial),
		form.WithErrorHandler(func(error) {}),
	))
	h.manager = upload.NewManager(h.lp, h.transport)
	t.Cleanup(func() {
		testsupport.Do(h.lp, func() {
			h.manager.Close()
			h.form.Close()
		})
		h.manager.Wait()
	})
	return h
}

func (h *harness) do(fn func()) { testsupport.Do(h.lp, fn) }

func fileEntry(url, name string, size int) map[string]any {
	return map[string]any{"url": url, "name": name, "size": float64(size)}
}

func TestFileField_RejectsUnacceptableType(t *testing.T) {
	h := newHarness(t, values.Tree{"docs": []any{}})
	docs := upload.NewFileField(h.form, "docs", h.manager, upload.AcceptTypes(".pdf,.docx"))

	var err error
	h.do(func() { err = docs.Select(upload.BytesFile("setup.exe", "", []byte("MZ"))) })

	assert.Equal(t, errors.Is(err, upload.ErrUnacceptableInput), true)
	assert.Equal(t, errors.Is(docs.Notice(), upload.ErrUnacceptableInput), true)
	assert.Equal(t, len(h.transport.Calls()), 0)
	assert.Equal(t, len(docs.Tasks()), 0)
	assert.Equal(t, h.form.IsSubmitting(), false)
	assert.Equal(t, h.form.SubmitCount(), 0)
	assert.Equal(t, h.persister.Calls(), 0)
}

func TestFileField_CompletedUploadSubmitsOnce(t *testing.T) {
	h := newHarness(t, values.Tree{"title": "Q3", "docs": []any{}})
	docs := upload.NewFileField(h.form, "docs", h.manager, upload.AcceptTypes(".pdf"))

	var events []string
	docs.OnTask(func(task *upload.Task) {
		events = append(events, task.Status.String())
	})
	var progress []float64
	docs.OnTask(func(task *upload.Task) {
		if task.Status == upload.StatusUploading {
			progress = append(progress, task.Progress)
		}
	})

	payload := []byte("%PDF-1.4")
	h.do(func() {
		if err := docs.Select(upload.BytesFile("report.pdf", "application/pdf", payload)); err != nil {
			t.Fatalf("select: %v", err)
		}
	})
	call := h.transport.WaitCalls(t, 1)[0]
	call.Progress(0.5)
	call.Progress(0.25)
	call.Progress(3)
	call.Complete("https://cdn.example.com/report.pdf")
	testsupport.Settle(t, h.lp, func() bool {
		return h.form.SubmitCount() == 1 && !h.form.IsSubmitting()
	})

	want := []map[string]any{{
		"docs": []any{fileEntry("https://cdn.example.com/report.pdf", "report.pdf", len(payload))},
	}}
	if diff := cmp.Diff(want, h.persister.Patches()); diff != "" {
		t.Fatalf("patches mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, progress, []float64{0.5, 1})
	assert.Equal(t, events, []string{"uploading", "uploading", "completed"})
	assert.Equal(t, h.persister.Calls(), 1)
}

func TestFileField_MultipleMergesNewFilesFirst(t *testing.T) {
	h := newHarness(t, values.Tree{"docs": []any{
		fileEntry("https://cdn/a.pdf", "a.pdf", 10),
		fileEntry("https://cdn/old.pdf", "old.pdf", 5),
	}})
	docs := upload.NewFileField(h.form, "docs", h.manager, upload.Multiple())

	h.do(func() {
		_ = docs.Select(
			upload.BytesFile("b.pdf", "application/pdf", []byte("bb")),
			upload.BytesFile("a.pdf", "application/pdf", []byte("aaa")),
		)
	})
	calls := h.transport.WaitCalls(t, 2)

	wantPending := []upload.FileValue{
		{Name: "b.pdf", Size: 2},
		{Name: "a.pdf", Size: 3},
		{URL: "https://cdn/old.pdf", Name: "old.pdf", Size: 5},
	}
	if diff := cmp.Diff(wantPending, docs.Entries()); diff != "" {
		t.Fatalf("pending entries mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, len(docs.Files()), 2)

	byName := map[string]*testsupport.TransportCall{}
	for _, call := range calls {
		byName[call.File.Name] = call
	}
	byName["a.pdf"].Complete("https://cdn/a2.pdf")
	testsupport.Settle(t, h.lp, func() bool {
		task, ok := docs.Task("a.pdf")
		return ok && task.Status == upload.StatusCompleted
	})
	assert.Equal(t, h.form.SubmitCount(), 0)
	assert.Equal(t, h.form.IsSubmitting(), false)

	byName["b.pdf"].Complete("https://cdn/b.pdf")
	testsupport.Settle(t, h.lp, func() bool {
		return h.form.SubmitCount() == 1 && !h.form.IsSubmitting()
	})

	want := []map[string]any{{
		"docs": []any{
			fileEntry("https://cdn/b.pdf", "b.pdf", 2),
			fileEntry("https://cdn/a2.pdf", "a.pdf", 3),
			fileEntry("https://cdn/old.pdf", "old.pdf", 5),
		},
	}}
	if diff := cmp.Diff(want, h.persister.Patches()); diff != "" {
		t.Fatalf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestFileField_InFlightUploadStaysOutOfOtherSaves(t *testing.T) {
	h := newHarness(t, values.Tree{"title": "Q3", "docs": []any{}})
	docs := upload.NewFileField(h.form, "docs", h.manager, upload.Multiple())
	title := field.NewTextField(h.form, "title")

	h.do(func() {
		_ = docs.Select(
			upload.BytesFile("a.pdf", "", []byte("a")),
			upload.BytesFile("b.pdf", "", []byte("bb")),
		)
	})
	byName := map[string]*testsupport.TransportCall{}
	for _, call := range h.transport.WaitCalls(t, 2) {
		byName[call.File.Name] = call
	}

	h.do(func() {
		_ = title.Change("Q4")
		_ = title.Commit()
	})
	testsupport.Settle(t, h.lp, func() bool {
		return h.form.SubmitCount() == 1 && !h.form.IsSubmitting()
	})
	assert.Equal(t, len(docs.Files()), 0)

	byName["b.pdf"].Fail(errors.New("connection reset"))
	byName["a.pdf"].Complete("https://cdn/a.pdf")
	testsupport.Settle(t, h.lp, func() bool {
		return h.form.SubmitCount() == 2 && !h.form.IsSubmitting()
	})

	want := []map[string]any{
		{"title": "Q4"},
		{"docs": []any{fileEntry("https://cdn/a.pdf", "a.pdf", 1)}},
	}
	if diff := cmp.Diff(want, h.persister.Patches()); diff != "" {
		t.Fatalf("patches mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, errors.Is(docs.Notice(), upload.ErrUploadFailed), true)
}

func TestFileField_SameNameReplacementCancelsInFlightUpload(t *testing.T) {
	h := newHarness(t, values.Tree{"docs": []any{}})
	docs := upload.NewFileField(h.form, "docs", h.manager, upload.Multiple())

	h.do(func() { _ = docs.Select(upload.BytesFile("a.pdf", "", []byte("v1"))) })
	first := h.transport.WaitCalls(t, 1)[0]

	h.do(func() { _ = docs.Select(upload.BytesFile("a.pdf", "", []byte("v2-longer"))) })
	second := h.transport.WaitCalls(t, 2)[1]

	assert.Equal(t, first.Cancelled(), true)
	assert.Equal(t, len(docs.Tasks()), 1)

	second.Complete("https://cdn/a-v2.pdf")
	testsupport.Settle(t, h.lp, func() bool {
		return h.form.SubmitCount() == 1 && !h.form.IsSubmitting()
	})

	want := []map[string]any{{"docs": []any{fileEntry("https://cdn/a-v2.pdf", "a.pdf", 9)}}}
	if diff := cmp.Diff(want, h.persister.Patches()); diff != "" {
		t.Fatalf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestFileField_FailedUploadKeepsValueAndDoesNotSubmit(t *testing.T) {
	original := []any{fileEntry("https://cdn/a.pdf", "a.pdf", 10)}
	h := newHarness(t, values.Tree{"docs": original})
	docs := upload.NewFileField(h.form, "docs", h.manager)

	h.do(func() { _ = docs.Select(upload.BytesFile("b.pdf", "", []byte("b"))) })
	call := h.transport.WaitCalls(t, 1)[0]
	call.Fail(errors.New("connection reset"))
	testsupport.Settle(t, h.lp, func() bool { return docs.Notice() != nil })

	assert.Equal(t, errors.Is(docs.Notice(), upload.ErrUploadFailed), true)
	if diff := cmp.Diff(original, docs.Value()); diff != "" {
		t.Fatalf("value changed after failed upload (-want +got):\n%s", diff)
	}
	assert.Equal(t, h.form.SubmitCount(), 0)
	assert.Equal(t, h.form.IsSubmitting(), false)
	assert.Equal(t, h.form.Error(), nil)
}

func TestFileField_RemoveCancelsUploadAndSubmits(t *testing.T) {
	h := newHarness(t, values.Tree{"docs": []any{fileEntry("https://cdn/a.pdf", "a.pdf", 10)}})
	docs := upload.NewFileField(h.form, "docs", h.manager, upload.Multiple())

	h.do(func() { _ = docs.Select(upload.BytesFile("b.pdf", "", []byte("b"))) })
	call := h.transport.WaitCalls(t, 1)[0]

	h.do(func() {
		if err := docs.Remove("b.pdf"); err != nil {
			t.Fatalf("remove: %v", err)
		}
	})
	testsupport.Settle(t, h.lp, func() bool {
		return h.form.SubmitCount() == 1 && !h.form.IsSubmitting()
	})

	assert.Equal(t, call.Cancelled(), true)
	assert.Equal(t, h.persister.Calls(), 0)
	assert.Equal(t, len(docs.Tasks()), 0)

	h.do(func() { _ = docs.Remove("a.pdf") })
	testsupport.Settle(t, h.lp, func() bool {
		return h.form.SubmitCount() == 2 && !h.form.IsSubmitting()
	})
	want := []map[string]any{{"docs": []any{}}}
	if diff := cmp.Diff(want, h.persister.Patches()); diff != "" {
		t.Fatalf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestFileField_CloseCancelsTransports(t *testing.T) {
	h := newHarness(t, values.Tree{"docs": []any{}})
	docs := upload.NewFileField(h.form, "docs", h.manager, upload.Multiple())

	h.do(func() {
		_ = docs.Select(
			upload.BytesFile("a.pdf", "", []byte("a")),
			upload.BytesFile("b.pdf", "", []byte("b")),
		)
	})
	calls := h.transport.WaitCalls(t, 2)

	h.do(docs.Close)

	for _, call := range calls {
		assert.Equal(t, call.Cancelled(), true)
	}
	assert.Equal(t, len(h.manager.Active()), 0)
	assert.Equal(t, h.form.SubmitCount(), 0)
}
