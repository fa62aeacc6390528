// Package terminal edits a bound form definition interactively.
//
// A Session shows the fields of a record, lets the user pick one, prompts
// for a new value with a PromptDriver and drives the matching field editor.
// The form's loop runs on another goroutine; the session posts every editor
// call to it and waits for submits and uploads to settle before prompting
// again.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/goliatone/go-inlineform/pkg/definition"
	"github.com/goliatone/go-inlineform/pkg/field"
	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/loop"
	"github.com/goliatone/go-inlineform/pkg/upload"
)

const (
	doneLabel = "Done"
	emptyText = "(empty)"
)

// Binding is a field definition with its editor.
type Binding = definition.Binding

// FileOpener resolves a path typed by the user to an upload.
type FileOpener func(path string) (upload.File, error)

type Options struct {
	// SettleTimeout bounds the wait for a submit or upload.
	SettleTimeout time.Duration
	PollInterval  time.Duration
	OpenFile      FileOpener
	PageSize      int
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		SettleTimeout: 2 * time.Minute,
		PollInterval:  10 * time.Millisecond,
		OpenFile:      upload.LocalFile,
		PageSize:      12,
	}
}

func WithSettleTimeout(d time.Duration) OptionFn {
	return func(o *Options) {
		if d > 0 {
			o.SettleTimeout = d
		}
	}
}

func WithFileOpener(fn FileOpener) OptionFn {
	return func(o *Options) {
		if fn != nil {
			o.OpenFile = fn
		}
	}
}

// Session is an interactive editor for one record.
type Session struct {
	driver PromptDriver
	form   *form.Form
	bound  *definition.Bound
	loop   *loop.Loop
	opts   Options
}

func NewSession(driver PromptDriver, f *form.Form, bound *definition.Bound, fns ...OptionFn) *Session {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn != nil {
			fn(&opts)
		}
	}
	return &Session{driver: driver, form: f, bound: bound, loop: f.Loop(), opts: opts}
}

// Run shows the field menu until the user picks Done. Aborting the menu
// returns ErrAborted; aborting a field prompt cancels that edit.
func (s *Session) Run(ctx context.Context) error {
	title := s.bound.Definition.Title
	if title == "" {
		title = s.bound.Definition.ID
	}
	for {
		var (
			menu  []string
			shown []Binding
		)
		if err := s.do(ctx, func() { menu, shown = s.menu() }); err != nil {
			return err
		}
		idx, err := s.driver.Select(ctx, SelectConfig{
			Message:  title,
			Options:  menu,
			PageSize: s.opts.PageSize,
		})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(shown) {
			return nil
		}
		if err := s.Edit(ctx, shown[idx]); err != nil {
			return err
		}
	}
}

// menu lists the fields visible for the current values. Must run on the
// loop.
func (s *Session) menu() ([]string, []Binding) {
	tree := s.form.Values()
	labels := make([]string, 0, len(s.bound.Bindings)+1)
	shown := make([]Binding, 0, len(s.bound.Bindings))
	for _, b := range s.bound.Bindings {
		if !b.Spec.Visible(tree) {
			continue
		}
		labels = append(labels, fmt.Sprintf("%s: %s", b.Spec.Label, Display(b)))
		shown = append(shown, b)
	}
	return append(labels, doneLabel), shown
}

// Edit prompts for one field and waits for the resulting submit.
func (s *Session) Edit(ctx context.Context, b Binding) error {
	before := 0
	if err := s.do(ctx, func() { before = s.form.SubmitCount() }); err != nil {
		return err
	}

	err := s.edit(ctx, b)
	if errors.Is(err, ErrAborted) {
		glog.V(1).Infof("terminal: %s edit aborted", b.Spec.Path)
		return s.do(ctx, func() {
			if b.Editor.State() == field.StateEditing {
				_ = cancelEdit(b.Editor)
			}
		})
	}
	if err != nil {
		if errors.Is(err, ErrUnsupportedEditor) || ctx.Err() != nil {
			return err
		}
		return s.driver.Info(ctx, fmt.Sprintf("%s: %v", b.Spec.Label, err))
	}

	if err := s.settle(ctx, b); err != nil {
		return err
	}
	return s.report(ctx, b, before)
}

// snapshot is the state of an editor read on the loop.
type snapshot struct {
	text    string
	value   any
	options []field.Option
}

func (s *Session) snapshot(ctx context.Context, b Binding) (snapshot, error) {
	var cur snapshot
	err := s.do(ctx, func() {
		cur.value = b.Editor.Value()
		switch ed := b.Editor.(type) {
		case *field.TextField:
			cur.text = ed.Text()
		case *field.NumberField:
			cur.text = ed.Display()
		case *field.SelectField:
			cur.options = ed.Options()
		case *field.RadioGroup:
			cur.options = ed.Options()
		}
	})
	return cur, err
}

func (s *Session) edit(ctx context.Context, b Binding) error {
	label := b.Spec.Label
	cur, err := s.snapshot(ctx, b)
	if err != nil {
		return err
	}
	switch ed := b.Editor.(type) {
	case *field.TextField:
		var answer string
		if b.Spec.Kind == definition.KindTextarea {
			answer, err = s.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: cur.text})
		} else {
			answer, err = s.driver.Input(ctx, InputConfig{Message: label, Default: cur.text})
		}
		if err != nil {
			return err
		}
		return s.call(ctx, func() error {
			if err := ed.Input(answer); err != nil {
				return err
			}
			return ed.Commit()
		})

	case *field.NumberField:
		answer, err := s.driver.Input(ctx, InputConfig{Message: label, Default: cur.text})
		if err != nil {
			return err
		}
		return s.call(ctx, func() error {
			if err := ed.Input(answer); err != nil {
				return err
			}
			return ed.Commit()
		})

	case *field.SelectField:
		opt, err := s.choose(ctx, label, cur.options, cur.value)
		if err != nil {
			return err
		}
		return s.call(ctx, func() error { return ed.Choose(opt.Value) })

	case *field.RadioGroup:
		opt, err := s.choose(ctx, label, cur.options, cur.value)
		if err != nil {
			return err
		}
		return s.call(ctx, func() error { return ed.Choose(opt.Key()) })

	case *field.Autocomplete:
		query, err := s.driver.Input(ctx, InputConfig{Message: label + " (search)"})
		if err != nil {
			return err
		}
		var suggestions []field.Option
		if err := s.do(ctx, func() { suggestions = ed.Suggest(query) }); err != nil {
			return err
		}
		if len(suggestions) == 0 {
			return s.driver.Info(ctx, fmt.Sprintf("no match for %q", query))
		}
		opt, err := s.choose(ctx, label, suggestions, nil)
		if err != nil {
			return err
		}
		return s.call(ctx, func() error {
			if err := ed.Pick(opt); err != nil {
				return err
			}
			return ed.Blur()
		})

	case *field.DateTimeField:
		return s.editDate(ctx, label, ed)

	case *upload.FileField:
		return s.editFiles(ctx, label, ed)

	case *upload.ImageField:
		answer, err := s.driver.Input(ctx, InputConfig{
			Message: label,
			Help:    "path of an image to upload, - to clear, empty to keep",
		})
		if err != nil {
			return err
		}
		switch strings.TrimSpace(answer) {
		case "":
			return nil
		case "-":
			return s.call(ctx, ed.Clear)
		}
		file, err := s.opts.OpenFile(strings.TrimSpace(answer))
		if err != nil {
			return err
		}
		return s.call(ctx, func() error { return ed.Upload(file) })
	}
	return fmt.Errorf("%w: %T", ErrUnsupportedEditor, b.Editor)
}

func (s *Session) editDate(ctx context.Context, label string, ed *field.DateTimeField) error {
	current := ""
	if err := s.do(ctx, func() {
		if t, ok := ed.Time(); ok {
			current = t.Format(time.RFC3339)
		}
	}); err != nil {
		return err
	}
	answer, err := s.driver.Input(ctx, InputConfig{
		Message: label,
		Default: current,
		Help:    "YYYY-MM-DD or RFC 3339, empty to clear",
		Validator: func(v string) error {
			if strings.TrimSpace(v) == "" {
				return nil
			}
			if _, ok := field.ParseTime(strings.TrimSpace(v)); !ok {
				return errors.New("not a date")
			}
			return nil
		},
	})
	if err != nil {
		return err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return s.call(ctx, ed.Clear)
	}
	t, _ := field.ParseTime(answer)
	return s.call(ctx, func() error {
		if err := ed.Open(); err != nil {
			return err
		}
		if err := ed.Pick(t); err != nil {
			_ = ed.Dismiss()
			return err
		}
		return ed.Dismiss()
	})
}

func (s *Session) editFiles(ctx context.Context, label string, ed *upload.FileField) error {
	var files []upload.FileValue
	if err := s.do(ctx, func() { files = ed.Files() }); err != nil {
		return err
	}
	actions := []string{"Add files"}
	if len(files) > 0 {
		actions = append(actions, "Remove a file")
	}
	actions = append(actions, "Back")
	idx, err := s.driver.Select(ctx, SelectConfig{Message: label, Options: actions})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(actions) {
		return nil
	}

	switch actions[idx] {
	case "Add files":
		answer, err := s.driver.Input(ctx, InputConfig{Message: label, Help: "comma separated paths"})
		if err != nil {
			return err
		}
		var selected []upload.File
		for _, path := range strings.Split(answer, ",") {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			file, err := s.opts.OpenFile(path)
			if err != nil {
				return err
			}
			selected = append(selected, file)
		}
		if len(selected) == 0 {
			return nil
		}
		return s.call(ctx, func() error { return ed.Select(selected...) })
	case "Remove a file":
		names := make([]string, len(files))
		for i, fv := range files {
			names[i] = fv.Name
		}
		pick, err := s.driver.Select(ctx, SelectConfig{Message: "Remove", Options: names})
		if err != nil {
			return err
		}
		if pick < 0 {
			return nil
		}
		return s.call(ctx, func() error { return ed.Remove(names[pick]) })
	}
	return nil
}

func (s *Session) choose(ctx context.Context, label string, options []field.Option, current any) (field.Option, error) {
	labels := make([]string, len(options))
	defaultIdx := -1
	for i, opt := range options {
		labels[i] = opt.Label
		if current != nil && opt.Key() == fmt.Sprint(current) {
			defaultIdx = i
		}
	}
	idx, err := s.driver.Select(ctx, SelectConfig{
		Message:      label,
		Options:      labels,
		DefaultIndex: defaultIdx,
		PageSize:     s.opts.PageSize,
	})
	if err != nil {
		return field.Option{}, err
	}
	if idx < 0 || idx >= len(options) {
		return field.Option{}, ErrAborted
	}
	return options[idx], nil
}

// settle waits until no submit is running or requested and the field has no
// pending upload.
func (s *Session) settle(ctx context.Context, b Binding) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SettleTimeout)
	defer cancel()
	for {
		settled := false
		if err := s.do(ctx, func() {
			settled = !s.form.Busy() && !uploadPending(b.Editor)
		}); err != nil {
			return err
		}
		if settled {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("terminal: %s did not settle: %w", b.Spec.Path, ctx.Err())
		case <-time.After(s.opts.PollInterval):
		}
	}
}

func (s *Session) report(ctx context.Context, b Binding, before int) error {
	var msgs []string
	if err := s.do(ctx, func() {
		if notice := uploadNotice(b.Editor); notice != nil {
			msgs = append(msgs, notice.Error())
		}
		if msg := b.Editor.Error(); msg != "" {
			msgs = append(msgs, b.Spec.Label+": "+msg)
		}
		if s.form.SubmitCount() > before && s.form.Error() != nil {
			msgs = append(msgs, "save failed: "+s.form.Error().Error())
		}
	}); err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := s.driver.Info(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// do runs fn on the loop and waits until the batch it ran in has finished,
// including the submit dispatch it may have scheduled.
func (s *Session) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	s.loop.Post(func() {
		fn()
		s.loop.Defer(func() { close(done) })
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) call(ctx context.Context, fn func() error) error {
	var err error
	if doErr := s.do(ctx, func() { err = fn() }); doErr != nil {
		return doErr
	}
	return err
}

func cancelEdit(ed definition.Editor) error {
	if c, ok := ed.(interface{ Cancel() error }); ok {
		return c.Cancel()
	}
	return nil
}

func uploadPending(ed definition.Editor) bool {
	if p, ok := ed.(interface{ Pending() bool }); ok {
		return p.Pending()
	}
	return false
}

func uploadNotice(ed definition.Editor) error {
	if n, ok := ed.(interface{ Notice() error }); ok {
		return n.Notice()
	}
	return nil
}

// Display renders the current value of a binding for menus.
func Display(b Binding) string {
	switch ed := b.Editor.(type) {
	case *field.NumberField:
		if s := ed.Display(); s != "" {
			return s
		}
	case *field.SelectField:
		if opt, ok := ed.Selected(); ok {
			return opt.Label
		}
	case *field.DateTimeField:
		if t, ok := ed.Time(); ok {
			return t.Format("2006-01-02 15:04")
		}
	case *upload.FileField:
		files := ed.Entries()
		names := make([]string, 0, len(files))
		for _, fv := range files {
			names = append(names, fmt.Sprintf("%s (%s)", fv.Name, upload.FormatFileSize(fv.Size)))
		}
		if len(names) > 0 {
			return strings.Join(names, ", ")
		}
	case *upload.ImageField:
		if url := ed.URL(); url != "" {
			return url
		}
	default:
		if v := b.Editor.Value(); v != nil && fmt.Sprint(v) != "" {
			return fmt.Sprint(v)
		}
	}
	return emptyText
}
