package server

import (
	"net/http"
	"time"

	"github.com/goliatone/go-inlineform/pkg/definition"
	"github.com/goliatone/go-inlineform/pkg/live"
)

const (
	defaultBasePath       = "/api"
	defaultMaxUploadBytes = 10 << 20
	defaultSignedURLTTL   = 15 * time.Minute
	defaultSearchLimit    = 20
	defaultMaxSearchLimit = 100
)

// GuardFunc vets API requests. A non-nil error rejects the request; errors
// implementing HTTPError choose the status code.
type GuardFunc func(r *http.Request) error

type Options struct {
	BasePath string
	// PublicURL prefixes the URLs handed out by the presign endpoint. Empty
	// derives it from the request.
	PublicURL string
	// Secret verifies bearer tokens and signs upload URLs. Empty disables
	// token checks and signs uploads with a per-process key.
	Secret         []byte
	Guard          GuardFunc
	MaxUploadBytes int64
	SignedURLTTL   time.Duration
	SearchLimit    int
	MaxSearchLimit int
	Live           *live.Settings

	// Collections maps a record collection to the definition its patches
	// are validated against.
	Collections map[string]definition.Definition
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		BasePath:       defaultBasePath,
		MaxUploadBytes: defaultMaxUploadBytes,
		SignedURLTTL:   defaultSignedURLTTL,
		SearchLimit:    defaultSearchLimit,
		MaxSearchLimit: defaultMaxSearchLimit,
	}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.BasePath == "" {
		opts.BasePath = defaultBasePath
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = defaultSignedURLTTL
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaultSearchLimit
	}
	if opts.MaxSearchLimit <= 0 {
		opts.MaxSearchLimit = defaultMaxSearchLimit
	}
	collections := make(map[string]definition.Definition, len(opts.Collections))
	for name, def := range opts.Collections {
		collections[name] = def
	}
	opts.Collections = collections
	return opts
}

func WithBasePath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.BasePath = path
	}
}

func WithPublicURL(url string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.PublicURL = url
	}
}

func WithSecret(secret []byte) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Secret = append([]byte(nil), secret...)
	}
}

func WithGuard(guard GuardFunc) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Guard = guard
	}
}

func WithMaxUploadBytes(n int64) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.MaxUploadBytes = n
	}
}

func WithLiveSettings(settings *live.Settings) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Live = settings
	}
}

// WithCollection validates patches to records under name against def and
// serves option searches for its choice fields.
func WithCollection(name string, def definition.Definition) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		if o.Collections == nil {
			o.Collections = map[string]definition.Definition{}
		}
		o.Collections[name] = def
	}
}

func clampLimit(limit int, opts Options) int {
	if limit <= 0 {
		limit = opts.SearchLimit
	}
	if limit > opts.MaxSearchLimit {
		return opts.MaxSearchLimit
	}
	return limit
}
