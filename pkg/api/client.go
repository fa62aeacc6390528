// Package api is a small JSON HTTP client for record endpoints.
//
// Requests are resolved against the environment's base URL and carry the
// access token in a configurable header. GET and DELETE send their
// parameters as query values (objects JSON encoded); POST, PUT and PATCH send
// them as a JSON body. Non-2xx responses decode into *FetchError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/golang/glog"
)

type Client struct {
	opts Options
}

func NewClient(fns ...OptionFn) *Client {
	return &Client{opts: NewOptions(fns...)}
}

// Options returns a copy of the client configuration.
func (c *Client) Options() Options {
	if c == nil {
		return NewOptions()
	}
	return c.opts
}

// AccessToken returns the current token or "".
func (c *Client) AccessToken() string {
	if c == nil || c.opts.Tokens == nil {
		return ""
	}
	token, err := c.opts.Tokens.AccessToken()
	if err != nil {
		glog.Warningf("api: token source: %v", err)
		return ""
	}
	return token
}

// SecureURL appends the client's access token to rawURL.
func (c *Client) SecureURL(rawURL string) string {
	return SecureURL(rawURL, c.AccessToken())
}

// Resolve builds the absolute URL of path.
func (c *Client) Resolve(path string) (*url.URL, error) {
	if c.opts.Environment.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	base, err := url.Parse(c.opts.Environment.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("api: parse path: %w", err)
	}
	return base.ResolveReference(ref), nil
}

func (c *Client) Get(ctx context.Context, path string, params map[string]any, out any) error {
	return c.Do(ctx, http.MethodGet, path, params, out)
}

func (c *Client) Delete(ctx context.Context, path string, params map[string]any, out any) error {
	return c.Do(ctx, http.MethodDelete, path, params, out)
}

func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body any, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body any, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

// Do sends one request and decodes the response into out. out may be nil.
// When date parsing is enabled and out is *any or *map[string]any, ISO
// timestamps are converted to time.Time.
func (c *Client) Do(ctx context.Context, method, path string, params any, out any) error {
	reqURL, err := c.Resolve(path)
	if err != nil {
		return err
	}

	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodHead:
		if err := encodeQuery(reqURL, params); err != nil {
			return err
		}
	default:
		if params != nil {
			data, err := json.Marshal(params)
			if err != nil {
				return fmt.Errorf("api: encode body: %w", err)
			}
			body = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return fmt.Errorf("api: request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.AccessToken(); token != "" {
		env := c.opts.Environment
		req.Header.Set(env.AccessTokenKey, env.BearerPrefix+token)
	}

	glog.V(2).Infof("api: %s %s", method, reqURL.Redacted())
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fetchErr := &FetchError{}
		if len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, fetchErr); err != nil {
				fetchErr = &FetchError{Message: string(bytes.TrimSpace(data))}
			}
		}
		if fetchErr.StatusCode == 0 {
			fetchErr.StatusCode = resp.StatusCode
		}
		if fetchErr.Reason == "" {
			fetchErr.Reason = http.StatusText(resp.StatusCode)
		}
		return fetchErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	if c.opts.ParseDates {
		switch target := out.(type) {
		case *any:
			*target = ParseDateFields(*target)
		case *map[string]any:
			*target, _ = ParseDateFields(*target).(map[string]any)
		}
	}
	return nil
}

func encodeQuery(u *url.URL, params any) error {
	if params == nil {
		return nil
	}
	values, ok := params.(map[string]any)
	if !ok {
		return errors.New("api: query parameters must be a map")
	}
	q := u.Query()
	for key, value := range values {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			q.Set(key, v)
		case map[string]any, []any:
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("api: encode query %s: %w", key, err)
			}
			q.Set(key, string(data))
		default:
			q.Set(key, fmt.Sprint(v))
		}
	}
	u.RawQuery = q.Encode()
	return nil
}
