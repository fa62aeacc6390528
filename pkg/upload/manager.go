// Package upload implements the asynchronous file and image fields of an
// inline form.
//
// A Manager runs one transport per selected file on its own goroutine and
// reports progress and completion back on the form's loop. Progress is
// clamped to [0,1] and never decreases, and every task ends with exactly one
// terminal event: completed, error or cancelled. FileField and ImageField
// build on it: they commit the uploaded reference as the field value and
// request one form submit once their uploads are done.
package upload

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"

	"github.com/goliatone/go-inlineform/pkg/loop"
)

// Status of an upload task.
type Status int

const (
	StatusPending Status = iota
	StatusUploading
	StatusCompleted
	StatusError
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusUploading:
		return "uploading"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a task.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// ProgressFunc receives the fraction of the file sent so far.
type ProgressFunc func(fraction float64)

// Result is the outcome of a successful transport.
type Result struct {
	URL string
}

// Transport sends one file. Cancelling ctx aborts it.
type Transport interface {
	Upload(ctx context.Context, file File, progress ProgressFunc) (Result, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, file File, progress ProgressFunc) (Result, error)

func (fn TransportFunc) Upload(ctx context.Context, file File, progress ProgressFunc) (Result, error) {
	return fn(ctx, file, progress)
}

// Task is one upload. Its fields are owned by the loop goroutine.
type Task struct {
	ID       ulid.ULID
	File     File
	Progress float64
	Status   Status
	URL      string
	Err      error

	cancel  context.CancelFunc
	onEvent func(*Task)
}

// Manager starts and tracks upload tasks.
type Manager struct {
	loop      *loop.Loop
	transport Transport

	tasks map[ulid.ULID]*Task
	wg    sync.WaitGroup
}

func NewManager(lp *loop.Loop, transport Transport) *Manager {
	return &Manager{
		loop:      lp,
		transport: transport,
		tasks:     make(map[ulid.ULID]*Task),
	}
}

// Start begins uploading file. onEvent runs on the loop after every progress
// change and once for the terminal event. Start must be called on the loop.
func (m *Manager) Start(ctx context.Context, file File, onEvent func(*Task)) *Task {
	if ctx == nil {
		ctx = context.Background()
	}
	taskCtx, cancel := context.WithCancel(ctx)
	task := &Task{
		ID:      ulid.Make(),
		File:    file,
		Status:  StatusUploading,
		cancel:  cancel,
		onEvent: onEvent,
	}
	m.tasks[task.ID] = task
	glog.V(1).Infof("upload: task %s started for %q", task.ID, file.Name)

	progress := func(fraction float64) {
		m.loop.Post(func() { m.progress(task, fraction) })
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		result, err := m.transport.Upload(taskCtx, file, progress)
		m.loop.Post(func() { m.complete(task, result, err) })
	}()
	return task
}

func (m *Manager) progress(task *Task, fraction float64) {
	if task.Status.Terminal() {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction <= task.Progress {
		return
	}
	task.Progress = fraction
	m.emit(task)
}

func (m *Manager) complete(task *Task, result Result, err error) {
	if task.Status.Terminal() {
		return
	}
	delete(m.tasks, task.ID)
	if err != nil {
		task.Status = StatusError
		task.Progress = 0
		task.Err = &Error{Kind: KindUploadFailed, File: task.File.Name, Err: err}
		glog.Warningf("upload: task %s for %q failed: %v", task.ID, task.File.Name, err)
	} else {
		task.Status = StatusCompleted
		task.Progress = 1
		task.URL = result.URL
		glog.V(1).Infof("upload: task %s completed", task.ID)
	}
	m.emit(task)
}

// Cancel aborts task. The cancelled event is delivered synchronously; any
// later transport result is ignored. Must be called on the loop.
func (m *Manager) Cancel(task *Task) {
	if task == nil || task.Status.Terminal() {
		return
	}
	task.cancel()
	delete(m.tasks, task.ID)
	task.Status = StatusCancelled
	glog.V(1).Infof("upload: task %s cancelled", task.ID)
	m.emit(task)
}

// Active returns the tasks that have not finished.
func (m *Manager) Active() []*Task {
	out := make([]*Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		out = append(out, task)
	}
	return out
}

// Close cancels every active task.
func (m *Manager) Close() {
	for _, task := range m.Active() {
		m.Cancel(task)
	}
}

// Wait blocks until every transport goroutine has returned. It must not be
// called from the loop goroutine while transports wait on it.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) emit(task *Task) {
	if task.onEvent != nil {
		task.onEvent(task)
	}
}
