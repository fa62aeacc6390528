package upload_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-inlineform/pkg/api"
	"github.com/goliatone/go-inlineform/pkg/testsupport"
	"github.com/goliatone/go-inlineform/pkg/upload"
	"github.com/goliatone/go-inlineform/pkg/values"
)

func pngFile(t *testing.T, name string, w, h int) upload.File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return upload.BytesFile(name, "image/png", buf.Bytes())
}

func TestImageField_CompletedUploadStoresURLAndSubmits(t *testing.T) {
	h := newHarness(t, values.Tree{"avatar": ""})
	avatar := upload.NewImageField(h.form, "avatar", h.manager, upload.WithAvailabilityDelay(0))

	h.do(func() {
		if err := avatar.Upload(pngFile(t, "me.png", 4, 4)); err != nil {
			t.Fatalf("upload: %v", err)
		}
	})
	h.transport.WaitCalls(t, 1)[0].Complete("https://cdn/me.png")
	testsupport.Settle(t, h.lp, func() bool {
		return h.form.SubmitCount() == 1 && !h.form.IsSubmitting()
	})

	assert.Equal(t, avatar.URL(), "https://cdn/me.png")
	assert.Equal(t, avatar.Touched(), true)

	h.do(func() { _ = avatar.Clear() })
	testsupport.Settle(t, h.lp, func() bool {
		return h.form.SubmitCount() == 2 && !h.form.IsSubmitting()
	})

	want := []map[string]any{{"avatar": "https://cdn/me.png"}, {"avatar": ""}}
	if diff := cmp.Diff(want, h.persister.Patches()); diff != "" {
		t.Fatalf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestImageField_ClearBeforeDelayedPublishWins(t *testing.T) {
	h := newHarness(t, values.Tree{"avatar": ""})
	avatar := upload.NewImageField(h.form, "avatar", h.manager, upload.WithAvailabilityDelay(20*time.Millisecond))

	h.do(func() { _ = avatar.Upload(pngFile(t, "me.png", 4, 4)) })
	h.transport.WaitCalls(t, 1)[0].Complete("https://cdn/me.png")
	testsupport.Settle(t, h.lp, func() bool { return avatar.Task() == nil && avatar.Pending() })

	// the clear is queued first, the delayed publish lands behind it
	h.lp.Post(func() { _ = avatar.Clear() })
	time.Sleep(80 * time.Millisecond)
	testsupport.Settle(t, h.lp, func() bool {
		return h.form.SubmitCount() >= 1 && !h.form.IsSubmitting() && !h.lp.Pending()
	})

	assert.Equal(t, avatar.URL(), "")
	assert.Equal(t, avatar.Pending(), false)
	assert.Equal(t, h.persister.Calls(), 0)
}

func TestImageField_ReuploadDuringDelayDropsEarlierImage(t *testing.T) {
	h := newHarness(t, values.Tree{"avatar": ""})
	avatar := upload.NewImageField(h.form, "avatar", h.manager, upload.WithAvailabilityDelay(30*time.Millisecond))

	h.do(func() { _ = avatar.Upload(pngFile(t, "a.png", 4, 4)) })
	h.transport.WaitCalls(t, 1)[0].Complete("https://cdn/a.png")
	testsupport.Settle(t, h.lp, func() bool { return avatar.Task() == nil && avatar.Pending() })

	h.do(func() { _ = avatar.Upload(pngFile(t, "b.png", 4, 4)) })
	time.Sleep(80 * time.Millisecond)
	h.transport.WaitCalls(t, 2)[1].Complete("https://cdn/b.png")
	testsupport.Settle(t, h.lp, func() bool {
		return h.form.SubmitCount() >= 1 && !h.form.IsSubmitting() && !avatar.Pending()
	})
	h.lp.RunPending()

	want := []map[string]any{{"avatar": "https://cdn/b.png"}}
	if diff := cmp.Diff(want, h.persister.Patches()); diff != "" {
		t.Fatalf("patches mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, avatar.URL(), "https://cdn/b.png")
	assert.Equal(t, h.form.SubmitCount(), 1)
}

func TestImageField_FailureLeavesValue(t *testing.T) {
	h := newHarness(t, values.Tree{"avatar": "https://cdn/old.png"})
	avatar := upload.NewImageField(h.form, "avatar", h.manager)

	h.do(func() { _ = avatar.Upload(pngFile(t, "me.png", 2, 2)) })
	h.transport.WaitCalls(t, 1)[0].Fail(errors.New("503"))
	testsupport.Settle(t, h.lp, func() bool { return avatar.Notice() != nil })

	assert.Equal(t, errors.Is(avatar.Notice(), upload.ErrUploadFailed), true)
	assert.Equal(t, avatar.URL(), "https://cdn/old.png")
	assert.Equal(t, h.form.SubmitCount(), 0)
}

func TestImageField_ResizesBeforeUpload(t *testing.T) {
	h := newHarness(t, values.Tree{"avatar": ""})
	avatar := upload.NewImageField(h.form, "avatar", h.manager, upload.WithResize(upload.ResizeOptions{
		Width:          64,
		Height:         64,
		Fit:            upload.FitCover,
		Type:           "image/png",
		WarnSmallImage: true,
	}))

	h.do(func() { _ = avatar.Upload(pngFile(t, "me.png", 40, 20)) })
	call := h.transport.WaitCalls(t, 1)[0]

	data, err := call.File.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assert.Equal(t, format, "png")
	assert.Equal(t, cfg.Width, 64)
	assert.Equal(t, cfg.Height, 64)
	assert.Equal(t, avatar.Warning(), upload.WarningSmallImage)
}

func TestPlanResize(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		opts       upload.ResizeOptions
		want       upload.ResizePlan
	}{
		{
			name: "fill forces size",
			srcW: 400, srcH: 200,
			opts: upload.ResizeOptions{Width: 100, Height: 100},
			want: upload.ResizePlan{CanvasWidth: 100, CanvasHeight: 100, DrawWidth: 100, DrawHeight: 100},
		},
		{
			name: "contain keeps aspect",
			srcW: 400, srcH: 200,
			opts: upload.ResizeOptions{Width: 100, Height: 100, Fit: upload.FitContain},
			want: upload.ResizePlan{CanvasWidth: 100, CanvasHeight: 50, DrawWidth: 100, DrawHeight: 50},
		},
		{
			name: "contain never enlarges",
			srcW: 40, srcH: 20,
			opts: upload.ResizeOptions{Width: 100, Height: 100, Fit: upload.FitContain},
			want: upload.ResizePlan{CanvasWidth: 40, CanvasHeight: 20, DrawWidth: 40, DrawHeight: 20},
		},
		{
			name: "cover overflows canvas",
			srcW: 400, srcH: 200,
			opts: upload.ResizeOptions{Width: 100, Height: 100, Fit: upload.FitCover},
			want: upload.ResizePlan{CanvasWidth: 100, CanvasHeight: 100, DrawWidth: 200, DrawHeight: 100},
		},
		{
			name: "max bounds",
			srcW: 3000, srcH: 1000,
			opts: upload.ResizeOptions{MaxWidth: 1200, MaxHeight: 1200},
			want: upload.ResizePlan{CanvasWidth: 1200, CanvasHeight: 1000, DrawWidth: 1200, DrawHeight: 1000},
		},
		{
			name: "aspect warning",
			srcW: 300, srcH: 100,
			opts: upload.ResizeOptions{Width: 100, Height: 100, WarnAspectRatio: true},
			want: upload.ResizePlan{
				CanvasWidth: 100, CanvasHeight: 100, DrawWidth: 100, DrawHeight: 100,
				Warning: upload.WarningAspectRatio,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := upload.PlanResize(tt.srcW, tt.srcH, tt.opts)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("plan mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResizeImage_DefaultsToJPEG(t *testing.T) {
	out, _, err := upload.ResizeImage(pngFile(t, "photo.png", 30, 30), upload.ResizeOptions{Width: 10, Height: 10, Type: "image/jpeg"})
	if err != nil {
		t.Fatalf("resize: %v", err)
	}
	assert.Equal(t, out.Name, "photo.jpg")
	assert.Equal(t, out.ContentType, "image/jpeg")
}

func TestPresignTransport_PresignsThenPuts(t *testing.T) {
	var (
		mu          sync.Mutex
		presignBody map[string]any
		putBody     []byte
		putType     string
	)
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/files/presign/avatars", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		data, _ := io.ReadAll(r.Body)
		presignBody = map[string]any{}
		_ = json.Unmarshal(data, &presignBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"destinationUrl":"https://cdn/avatars/1.png","signedUrl":"`+srv.URL+`/put/1","expiration":60}`)
	})
	mux.HandleFunc("/put/1", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		putBody, _ = io.ReadAll(r.Body)
		putType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := api.NewClient(api.WithBaseURL(srv.URL+"/"), api.WithHTTPClient(srv.Client()))
	transport := upload.PresignTransport{Client: client, Path: "avatars"}

	var last float64
	file := upload.BytesFile("a.png", "image/png", []byte("not really a png"))
	res, err := transport.Upload(context.Background(), file, func(f float64) { last = f })
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, res.URL, "https://cdn/avatars/1.png")
	assert.Equal(t, presignBody["mimeType"], "image/png")
	assert.Equal(t, string(putBody), "not really a png")
	assert.Equal(t, putType, "image/png")
	assert.Equal(t, last, 1.0)
}

func TestAcceptAndFileSize(t *testing.T) {
	accept := upload.ParseAccept(".pdf, .DOCX image/*")
	tests := []struct {
		file upload.File
		want bool
	}{
		{upload.File{Name: "a.pdf"}, true},
		{upload.File{Name: "b.docx"}, true},
		{upload.File{Name: "c.png", ContentType: "image/png"}, true},
		{upload.File{Name: "d.exe", ContentType: "application/octet-stream"}, false},
		{upload.File{Name: "noext"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, accept.Allows(tt.file), tt.want)
	}
	assert.Equal(t, upload.ParseAccept("").Allows(upload.File{Name: "x.bin"}), true)
	assert.Equal(t, upload.FormatFileSize(1536), "1.50 KB")
}
