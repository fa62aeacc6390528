package field

import (
	"errors"
	"regexp"
	"time"

	"github.com/goliatone/go-inlineform/pkg/form"
)

// ISOLayout is the layout picked values are stored with.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrFutureDate is returned when a birthdate field receives a future date.
var ErrFutureDate = errors.New("field: date cannot be in the future")

var dateOnly = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NormalizeDate turns date-only strings into local midnight timestamps so
// they are not shifted by the UTC offset. Other values are returned as is.
func NormalizeDate(value any) any {
	if s, ok := value.(string); ok && dateOnly.MatchString(s) {
		return s + "T00:00:00"
	}
	return value
}

// ParseTime parses a stored date value. Empty or invalid values report false.
func ParseTime(value any) (time.Time, bool) {
	switch v := NormalizeDate(value).(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		if v == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, true
		}
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", v, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateTimeField edits a timestamp through a picker. Picking stores the value;
// dismissing the picker commits when the value is set and differs from the
// previous one.
type DateTimeField struct {
	*Controller
	birthdate bool
	now       func() time.Time
	open      bool
}

type DateTimeOption func(*DateTimeField)

// Birthdate rejects dates in the future.
func Birthdate() DateTimeOption {
	return func(d *DateTimeField) { d.birthdate = true }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) DateTimeOption {
	return func(d *DateTimeField) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDateTimeField(f *form.Form, path string, opts ...DateTimeOption) *DateTimeField {
	d := &DateTimeField{Controller: NewController(f, path), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Time returns the current value as a time.
func (d *DateTimeField) Time() (time.Time, bool) { return ParseTime(d.Value()) }

func (d *DateTimeField) IsOpen() bool { return d.open }

// Open shows the picker.
func (d *DateTimeField) Open() error {
	if err := d.Focus(); err != nil {
		return err
	}
	d.open = true
	return nil
}

// Pick stores t without committing.
func (d *DateTimeField) Pick(t time.Time) error {
	if d.birthdate && t.After(d.now()) {
		d.Field().SetError(ErrFutureDate.Error())
		return ErrFutureDate
	}
	if d.Error() == ErrFutureDate.Error() {
		d.Field().SetError("")
	}
	return d.Change(t.UTC().Format(ISOLayout))
}

// Clear stores nil and commits when a value was set before.
func (d *DateTimeField) Clear() error {
	if err := d.Change(nil); err != nil {
		return err
	}
	if d.previous == nil {
		return nil
	}
	return d.Commit()
}

// Dismiss closes the picker.
func (d *DateTimeField) Dismiss() error {
	d.open = false
	current, ok := d.Time()
	if ok && d.differsFromPrevious(current) {
		if err := d.Change(current.UTC().Format(ISOLayout)); err != nil {
			return err
		}
		return d.Commit()
	}
	if d.State() == StateEditing {
		d.focused = false
		return d.transition(StateIdle)
	}
	return nil
}

func (d *DateTimeField) differsFromPrevious(current time.Time) bool {
	previous, ok := ParseTime(d.previous)
	if !ok {
		return true
	}
	return !previous.Equal(current)
}
