package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNoBaseURL is returned when the environment has no base URL.
	ErrNoBaseURL = errors.New("api: environment is missing a base url")
	// ErrRequestFailed matches every *FetchError.
	ErrRequestFailed = errors.New("api: request failed")
)

// FetchError is a non-2xx response. The body shape follows the common
// {statusCode, error, message} envelope; message may be a string or a list,
// and field-level messages may be sent under "errors".
type FetchError struct {
	StatusCode int                 `json:"statusCode"`
	Reason     string              `json:"error"`
	Message    string              `json:"-"`
	Messages   []string            `json:"-"`
	Fields     map[string][]string `json:"errors,omitempty"`
}

func (e *FetchError) Error() string {
	if e == nil {
		return ErrRequestFailed.Error()
	}
	msg := e.Message
	if msg == "" && len(e.Messages) > 0 {
		msg = strings.Join(e.Messages, "; ")
	}
	if msg == "" {
		msg = e.Reason
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("api: %d: %s", e.StatusCode, msg)
}

func (e *FetchError) Is(target error) bool { return target == ErrRequestFailed }

// Code returns the status code, defaulting to 500.
func (e *FetchError) Code() int {
	if e == nil || e.StatusCode <= 0 {
		return http.StatusInternalServerError
	}
	return e.StatusCode
}

// IsValidation reports whether the error carries a validation payload.
func (e *FetchError) IsValidation() bool {
	if e == nil {
		return false
	}
	switch e.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return len(e.Fields) > 0 || len(e.Messages) > 0
	}
	return false
}

// Payload returns the validation messages keyed by path. Messages without a
// path are keyed by "form".
func (e *FetchError) Payload() map[string][]string {
	if e == nil {
		return nil
	}
	out := make(map[string][]string, len(e.Fields)+1)
	for k, v := range e.Fields {
		out[k] = append([]string(nil), v...)
	}
	if len(e.Messages) > 0 {
		out["form"] = append(out["form"], e.Messages...)
	} else if e.Message != "" && len(e.Fields) == 0 {
		out["form"] = append(out["form"], e.Message)
	}
	return out
}

func (e *FetchError) UnmarshalJSON(data []byte) error {
	type alias FetchError
	var raw struct {
		alias
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = FetchError(raw.alias)
	if len(raw.Message) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw.Message, &single); err == nil {
		e.Message = single
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw.Message, &list); err == nil {
		e.Messages = list
		return nil
	}
	return nil
}

func (e FetchError) MarshalJSON() ([]byte, error) {
	type alias FetchError
	out := struct {
		alias
		Message any `json:"message,omitempty"`
	}{alias: alias(e)}
	if len(e.Messages) > 0 {
		out.Message = e.Messages
	} else if e.Message != "" {
		out.Message = e.Message
	}
	return json.Marshal(out)
}
