package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/golang/glog"

	"github.com/goliatone/go-inlineform/internal/store"
	"github.com/goliatone/go-inlineform/pkg/api"
)

var (
	ErrUnauthorized = StatusError{Code: http.StatusUnauthorized, Err: errors.New("missing or invalid token")}
	ErrBadSignature = StatusError{Code: http.StatusForbidden, Err: errors.New("invalid upload signature")}
)

type HTTPError interface {
	error
	StatusCode() int
}

type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

// validationError carries field messages keyed by path.
type validationError struct {
	fields map[string][]string
}

func (e validationError) Error() string   { return "validation failed" }
func (e validationError) StatusCode() int { return http.StatusUnprocessableEntity }

// writeError answers with the {statusCode, error, message, errors} envelope
// the api client decodes into *api.FetchError.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	var httpErr HTTPError
	switch {
	case errors.As(err, &httpErr):
		code = httpErr.StatusCode()
	case errors.Is(err, store.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidRecord):
		code = http.StatusBadRequest
	}

	body := api.FetchError{
		StatusCode: code,
		Reason:     http.StatusText(code),
		Message:    err.Error(),
	}
	var invalid validationError
	if errors.As(err, &invalid) {
		body.Fields = invalid.fields
	}
	if code >= http.StatusInternalServerError {
		glog.Errorf("server: %s %s: %s", r.Method, r.URL.Path, err)
		body.Message = http.StatusText(code)
	} else {
		glog.V(1).Infof("server: %s %s: %d %s", r.Method, r.URL.Path, code, err)
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		glog.Warningf("server: encode response: %s", err)
	}
}
