package upload

import (
	"time"

	"github.com/golang/glog"

	"github.com/goliatone/go-inlineform/pkg/field"
	"github.com/goliatone/go-inlineform/pkg/form"
)

// DefaultAvailabilityDelay is how long an uploaded image URL is held back
// before it is stored, since object stores take a moment to serve new keys.
const DefaultAvailabilityDelay = 300 * time.Millisecond

// ImageField holds the URL of a single uploaded image.
type ImageField struct {
	*field.Controller
	manager *Manager
	delay   time.Duration
	resize  *ResizeOptions

	task  *Task
	timer *time.Timer
	// gen is bumped by Upload, Clear and Close; a publish from an older
	// generation is dropped.
	gen     uint64
	notice  error
	warning string
	closed  bool
}

type ImageOption func(*ImageField)

// WithAvailabilityDelay overrides DefaultAvailabilityDelay. Negative values
// are treated as zero.
func WithAvailabilityDelay(d time.Duration) ImageOption {
	return func(im *ImageField) {
		if d < 0 {
			d = 0
		}
		im.delay = d
	}
}

// WithResize resizes images before upload.
func WithResize(opts ResizeOptions) ImageOption {
	return func(im *ImageField) { im.resize = &opts }
}

func NewImageField(f *form.Form, path string, manager *Manager, opts ...ImageOption) *ImageField {
	im := &ImageField{
		Controller: field.NewController(f, path),
		manager:    manager,
		delay:      DefaultAvailabilityDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(im)
		}
	}
	return im
}

// URL returns the stored image URL.
func (im *ImageField) URL() string {
	s, _ := im.Value().(string)
	return s
}

// Task returns the running upload, if any.
func (im *ImageField) Task() *Task { return im.task }

// Pending reports whether an upload or the publish of its URL is pending.
func (im *ImageField) Pending() bool { return im.task != nil || im.timer != nil }

// Notice returns the last upload failure, an *Error, or nil.
func (im *ImageField) Notice() error { return im.notice }

// Warning returns the resize warning of the last selected image.
func (im *ImageField) Warning() string { return im.warning }

// Upload resizes file when configured and starts uploading it, replacing any
// upload in progress.
func (im *ImageField) Upload(file File) error {
	if im.closed {
		return form.ErrClosed
	}
	if !im.Form().Ready() {
		return form.ErrNotReady
	}
	im.notice = nil
	im.warning = ""
	if im.resize != nil {
		resized, warning, err := ResizeImage(file, *im.resize)
		if err != nil {
			im.notice = &Error{Kind: KindUploadFailed, File: file.Name, Err: err}
			return im.notice
		}
		file, im.warning = resized, warning
	}
	im.gen++
	im.stopTimer()
	if im.task != nil {
		im.manager.Cancel(im.task)
	}
	im.task = im.manager.Start(im.Form().Context(), file, im.handle)
	return nil
}

// Clear stores an empty URL and submits.
func (im *ImageField) Clear() error {
	if im.closed {
		return form.ErrClosed
	}
	im.gen++
	im.stopTimer()
	if im.task != nil {
		im.manager.Cancel(im.task)
	}
	if err := im.Change(""); err != nil {
		return err
	}
	return im.Commit()
}

// Close cancels the upload and any pending publish, then detaches the field.
func (im *ImageField) Close() {
	if im.closed {
		return
	}
	im.closed = true
	im.gen++
	im.stopTimer()
	if im.task != nil {
		im.manager.Cancel(im.task)
	}
	im.Controller.Close()
}

func (im *ImageField) handle(task *Task) {
	if task != im.task {
		return
	}
	switch task.Status {
	case StatusCompleted:
		im.task = nil
		if im.closed {
			return
		}
		im.Field().SetTouched(true)
		url, gen := task.URL, im.gen
		lp := im.Form().Loop()
		im.stopTimer()
		im.timer = time.AfterFunc(im.delay, func() {
			lp.Post(func() { im.publish(url, gen) })
		})
	case StatusError:
		im.task = nil
		im.notice = task.Err
	case StatusCancelled:
		im.task = nil
	}
}

func (im *ImageField) publish(url string, gen uint64) {
	if gen != im.gen || im.closed {
		glog.V(2).Infof("upload: %s: dropped stale image url %q", im.Path(), url)
		return
	}
	im.timer = nil
	if err := im.Change(url); err != nil {
		glog.Warningf("upload: %s: %v", im.Path(), err)
		return
	}
	if err := im.Commit(); err != nil {
		glog.Warningf("upload: %s: commit: %v", im.Path(), err)
	}
}

func (im *ImageField) stopTimer() {
	if im.timer != nil {
		im.timer.Stop()
		im.timer = nil
	}
}
