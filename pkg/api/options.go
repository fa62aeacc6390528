package api

import (
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout        = 60 * time.Second
	defaultConnectTimeout = 5 * time.Second
	defaultTLSTimeout     = 5 * time.Second
)

// Environment describes the API a client talks to.
type Environment struct {
	// BaseURL is the root every request path is resolved against.
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`
	// AccessTokenKey names the header that carries the access token.
	AccessTokenKey string `json:"accessTokenKey" yaml:"accessTokenKey"`
	// BearerPrefix precedes the token in the header value.
	BearerPrefix string `json:"bearerPrefix" yaml:"bearerPrefix"`
}

// Options configures a Client.
type Options struct {
	Environment Environment
	HTTPClient  *http.Client
	Tokens      TokenSource
	// ParseDates converts ISO-8601 timestamps in decoded responses into
	// time.Time values.
	ParseDates bool
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		Environment: Environment{
			AccessTokenKey: "Authorization",
			BearerPrefix:   "Bearer ",
		},
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
	if strings.TrimSpace(opts.Environment.AccessTokenKey) == "" {
		opts.Environment.AccessTokenKey = "Authorization"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = defaultHTTPClient()
	}
	return opts
}

func defaultHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: defaultConnectTimeout}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: defaultTLSTimeout,
		},
		Timeout: defaultTimeout,
	}
}

// WithEnvironment replaces the environment. Empty header settings keep their
// defaults.
func WithEnvironment(env Environment) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		if env.AccessTokenKey == "" {
			env.AccessTokenKey = o.Environment.AccessTokenKey
		}
		if env.BearerPrefix == "" {
			env.BearerPrefix = o.Environment.BearerPrefix
		}
		o.Environment = env
	}
}

func WithBaseURL(baseURL string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Environment.BaseURL = baseURL
	}
}

func WithHTTPClient(client *http.Client) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.HTTPClient = client
	}
}

func WithTokenSource(src TokenSource) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Tokens = src
	}
}

func WithParseDates(enabled bool) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.ParseDates = enabled
	}
}
