package field

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-inlineform/pkg/diff"
	"github.com/goliatone/go-inlineform/pkg/form"
)

// NumberFormat describes how a number is displayed. A Pattern holds '#'
// slots filled with digits; without a pattern the number is printed with
// Prefix and optional thousands separators.
type NumberFormat struct {
	Pattern           string
	Prefix            string
	ThousandSeparator bool
}

var (
	CreditCardFormat = NumberFormat{Pattern: "#### #### #### ####"}
	PhoneFormat      = NumberFormat{Pattern: "+1 (###) ###-####"}
	CurrencyFormat   = NumberFormat{Prefix: "$", ThousandSeparator: true}
)

// LengthFormat accepts exactly length digits, optionally behind prefix.
func LengthFormat(length int, prefix string) NumberFormat {
	if length <= 0 {
		return NumberFormat{Prefix: prefix}
	}
	return NumberFormat{Pattern: prefix + strings.Repeat("#", length)}
}

// Parse extracts the unformatted numeric string from raw input and its float
// value. ok is false when the input holds no number.
func (nf NumberFormat) Parse(raw string) (numeric string, value float64, ok bool) {
	raw = strings.TrimSpace(raw)
	if nf.Pattern != "" {
		lead := nf.Pattern
		if idx := strings.IndexByte(lead, '#'); idx >= 0 {
			lead = lead[:idx]
		}
		raw = strings.TrimPrefix(raw, lead)
		slots := strings.Count(nf.Pattern, "#")
		var b strings.Builder
		for _, r := range raw {
			if isDigit(r) && b.Len() < slots {
				b.WriteRune(r)
			}
		}
		numeric = b.String()
	} else {
		raw = strings.TrimPrefix(raw, nf.Prefix)
		var b strings.Builder
		seenDot := false
		for i, r := range raw {
			switch {
			case isDigit(r):
				b.WriteRune(r)
			case r == '.' && !seenDot:
				seenDot = true
				b.WriteRune(r)
			case r == '-' && i == 0:
				b.WriteRune(r)
			}
		}
		numeric = b.String()
	}
	if numeric == "" || numeric == "-" || numeric == "." {
		return "", 0, false
	}
	f, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return numeric, 0, false
	}
	return numeric, f, true
}

// Format renders value for display. Patterns are filled up to the last
// available digit.
func (nf NumberFormat) Format(value any) string {
	text := numberText(value)
	if text == "" {
		return ""
	}
	if nf.Pattern != "" {
		digits := make([]rune, 0, len(text))
		for _, r := range text {
			if isDigit(r) {
				digits = append(digits, r)
			}
		}
		if len(digits) == 0 {
			return ""
		}
		var b strings.Builder
		next := 0
		for _, r := range nf.Pattern {
			if r != '#' {
				b.WriteRune(r)
				continue
			}
			if next >= len(digits) {
				break
			}
			b.WriteRune(digits[next])
			next++
		}
		return strings.TrimRightFunc(b.String(), func(r rune) bool { return !isDigit(r) })
	}

	if nf.ThousandSeparator {
		text = groupThousands(text)
	}
	if strings.HasPrefix(text, "-") {
		return "-" + nf.Prefix + text[1:]
	}
	return nf.Prefix + text
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func numberText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

func groupThousands(text string) string {
	sign := ""
	if strings.HasPrefix(text, "-") {
		sign, text = "-", text[1:]
	}
	intPart, frac := text, ""
	if idx := strings.IndexByte(text, '.'); idx >= 0 {
		intPart, frac = text[:idx], text[idx:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + frac
}

// NumberField is a text field holding a number. Fields whose value is a
// number (or nil) keep float64 values; fields holding strings keep the
// unformatted numeric string. NumericString forces strings.
type NumberField struct {
	*TextField
	format        NumberFormat
	numericString bool
	min, max      *float64
	boundsError   string
}

type NumberOption func(*NumberField)

func WithFormat(nf NumberFormat) NumberOption {
	return func(n *NumberField) { n.format = nf }
}

func NumericString() NumberOption {
	return func(n *NumberField) { n.numericString = true }
}

func Min(v float64) NumberOption {
	return func(n *NumberField) { n.min = &v }
}

func Max(v float64) NumberOption {
	return func(n *NumberField) { n.max = &v }
}

func NewNumberField(f *form.Form, path string, opts ...NumberOption) *NumberField {
	n := &NumberField{TextField: NewTextField(f, path)}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n
}

// Display returns the formatted current value.
func (n *NumberField) Display() string { return n.format.Format(n.Value()) }

// Input parses raw text, coerces it to the field's value type and stores it.
func (n *NumberField) Input(raw string) error {
	numeric, f, ok := n.format.Parse(raw)
	value := n.coerce(numeric, f, ok)
	if err := n.Change(value); err != nil {
		return err
	}
	n.checkBounds(f, ok)
	return nil
}

func (n *NumberField) coerce(numeric string, f float64, ok bool) any {
	var value any
	current := n.Value()
	if current == nil || diff.KindOf(current) == diff.KindNumber {
		if ok {
			value = f
		}
	} else if numeric != "" {
		value = numeric
	}
	if n.numericString {
		switch v := value.(type) {
		case float64:
			value = strconv.FormatFloat(v, 'f', -1, 64)
		case string:
		default:
			value = ""
		}
	}
	return value
}

func (n *NumberField) checkBounds(f float64, ok bool) {
	msg := ""
	switch {
	case !ok:
	case n.min != nil && f < *n.min:
		msg = fmt.Sprintf("must be at least %s", strconv.FormatFloat(*n.min, 'f', -1, 64))
	case n.max != nil && f > *n.max:
		msg = fmt.Sprintf("must be at most %s", strconv.FormatFloat(*n.max, 'f', -1, 64))
	}
	if msg != "" {
		n.boundsError = msg
		n.Field().SetError(msg)
		return
	}
	if n.boundsError != "" && n.Error() == n.boundsError {
		n.Field().SetError("")
	}
	n.boundsError = ""
}
