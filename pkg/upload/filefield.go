package upload

import (
	"github.com/golang/glog"

	"github.com/goliatone/go-inlineform/pkg/diff"
	"github.com/goliatone/go-inlineform/pkg/field"
	"github.com/goliatone/go-inlineform/pkg/form"
)

// FileField attaches files to a field whose value is a list of
// {url, name, size} entries. Selecting files starts their uploads. Only
// completed uploads enter the value; once every upload of the selection has
// ended one form submit is requested.
type FileField struct {
	*field.Controller
	manager  *Manager
	accept   Accept
	multiple bool

	tasks     []*Task
	submitted bool
	notice    error
	onTask    []func(*Task)
	closed    bool
}

type FileOption func(*FileField)

// Multiple allows more than one file. New files are listed first, followed
// by previous files with other names.
func Multiple() FileOption {
	return func(ff *FileField) { ff.multiple = true }
}

// AcceptTypes restricts selectable files, see ParseAccept.
func AcceptTypes(spec string) FileOption {
	return func(ff *FileField) { ff.accept = ParseAccept(spec) }
}

func NewFileField(f *form.Form, path string, manager *Manager, opts ...FileOption) *FileField {
	ff := &FileField{
		Controller: field.NewController(f, path),
		manager:    manager,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ff)
		}
	}
	return ff
}

// OnTask registers fn to run on every upload event of this field.
func (ff *FileField) OnTask(fn func(*Task)) {
	if fn != nil {
		ff.onTask = append(ff.onTask, fn)
	}
}

// Files returns the current value.
func (ff *FileField) Files() []FileValue { return FileValuesFrom(ff.Value()) }

// Entries lists what the field shows: files still uploading, without a URL,
// followed by the stored files they do not replace.
func (ff *FileField) Entries() []FileValue {
	var out []FileValue
	uploading := map[string]struct{}{}
	for _, task := range ff.tasks {
		if task.Status.Terminal() {
			continue
		}
		out = append(out, FileValue{Name: task.File.Name, Size: task.File.Size})
		uploading[task.File.Name] = struct{}{}
	}
	for _, fv := range ff.Files() {
		if _, ok := uploading[fv.Name]; ok {
			continue
		}
		if !ff.multiple && len(uploading) > 0 {
			continue
		}
		out = append(out, fv)
	}
	return out
}

// Tasks returns the uploads of the current selection.
func (ff *FileField) Tasks() []*Task { return append([]*Task(nil), ff.tasks...) }

// Task returns the upload of the file called name.
func (ff *FileField) Task(name string) (*Task, bool) {
	for _, task := range ff.tasks {
		if task.File.Name == name {
			return task, true
		}
	}
	return nil, false
}

// Pending reports whether any upload of the field is still running.
func (ff *FileField) Pending() bool {
	for _, task := range ff.tasks {
		if !task.Status.Terminal() {
			return true
		}
	}
	return false
}

// Notice returns the last field-local notice, an *Error, or nil.
func (ff *FileField) Notice() error { return ff.notice }

func (ff *FileField) DismissNotice() { ff.notice = nil }

// Select starts uploading files. Files not matching the accept list are
// never uploaded; the last one is reported as an *Error of
// KindUnacceptableInput, also kept as the field notice. The value is left
// alone until an upload completes.
func (ff *FileField) Select(files ...File) error {
	if ff.closed {
		return form.ErrClosed
	}
	if !ff.Form().Ready() {
		return form.ErrNotReady
	}
	if len(files) == 0 {
		return nil
	}
	ff.Field().SetTouched(true)

	var rejected error
	accepted := make([]File, 0, len(files))
	for _, file := range files {
		if !ff.accept.Allows(file) {
			rejected = &Error{Kind: KindUnacceptableInput, File: file.Name}
			ff.notice = rejected
			glog.V(1).Infof("upload: %s rejected %q (accept %s)", ff.Path(), file.Name, ff.accept)
			continue
		}
		accepted = append(accepted, file)
	}
	if len(accepted) == 0 {
		return rejected
	}
	if !ff.multiple {
		accepted = accepted[:1]
	}

	ff.pruneCompleted()
	for _, file := range accepted {
		if ff.multiple {
			ff.cancelNamed(file.Name)
		} else {
			ff.cancelAll()
		}
		ff.tasks = append(ff.tasks, ff.manager.Start(ff.Form().Context(), file, ff.handle))
	}
	ff.submitted = false
	return rejected
}

// Remove drops the file called name, cancelling its upload, and submits.
func (ff *FileField) Remove(name string) error {
	if ff.closed {
		return form.ErrClosed
	}
	ff.cancelNamed(name)
	next := make([]FileValue, 0)
	for _, fv := range ff.Files() {
		if fv.Name != name {
			next = append(next, fv)
		}
	}
	if err := ff.Change(fileValuesTree(next)); err != nil {
		return err
	}
	return ff.Commit()
}

// Close cancels every upload and detaches the field.
func (ff *FileField) Close() {
	if ff.closed {
		return
	}
	ff.cancelAll()
	ff.closed = true
	ff.Controller.Close()
}

func (ff *FileField) handle(task *Task) {
	for _, fn := range ff.onTask {
		fn(task)
	}
	if ff.closed {
		return
	}
	switch task.Status {
	case StatusCancelled:
		ff.drop(task)
		return
	case StatusError:
		ff.drop(task)
		ff.notice = task.Err
	case StatusCompleted:
		if err := ff.store(); err != nil {
			glog.Warningf("upload: %s: %v", ff.Path(), err)
			return
		}
	default:
		return
	}
	ff.submitIfDone()
}

// submitIfDone commits once no upload of the selection is running and at
// least one of them completed.
func (ff *FileField) submitIfDone() {
	if ff.submitted || len(ff.tasks) == 0 {
		return
	}
	for _, task := range ff.tasks {
		if task.Status != StatusCompleted {
			return
		}
	}
	ff.submitted = true
	if err := ff.Commit(); err != nil {
		glog.Warningf("upload: %s: commit: %v", ff.Path(), err)
	}
}

// store writes the completed uploads of the selection into the value, in
// selection order. Multi-file fields keep the stored files they do not
// replace.
func (ff *FileField) store() error {
	next := make([]FileValue, 0, len(ff.tasks))
	names := make(map[string]struct{}, len(ff.tasks))
	for _, task := range ff.tasks {
		if task.Status != StatusCompleted {
			continue
		}
		next = append(next, FileValue{URL: task.URL, Name: task.File.Name, Size: task.File.Size})
		names[task.File.Name] = struct{}{}
	}
	if ff.multiple {
		for _, fv := range ff.Files() {
			if _, ok := names[fv.Name]; !ok {
				next = append(next, fv)
			}
		}
	}
	return ff.set(next)
}

func (ff *FileField) set(list []FileValue) error {
	value := fileValuesTree(list)
	if diff.Equal(value, ff.Value()) {
		return nil
	}
	return ff.Change(value)
}

func (ff *FileField) cancelNamed(name string) {
	for _, task := range ff.Tasks() {
		if task.File.Name != name {
			continue
		}
		if task.Status.Terminal() {
			ff.drop(task)
			continue
		}
		ff.manager.Cancel(task)
	}
}

func (ff *FileField) cancelAll() {
	for _, task := range ff.Tasks() {
		if task.Status.Terminal() {
			ff.drop(task)
			continue
		}
		ff.manager.Cancel(task)
	}
}

func (ff *FileField) pruneCompleted() {
	kept := ff.tasks[:0]
	for _, task := range ff.tasks {
		if task.Status != StatusCompleted {
			kept = append(kept, task)
		}
	}
	ff.tasks = kept
}

func (ff *FileField) drop(task *Task) {
	for i, t := range ff.tasks {
		if t == task {
			ff.tasks = append(ff.tasks[:i], ff.tasks[i+1:]...)
			return
		}
	}
}
