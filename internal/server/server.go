// Package server is a reference backend for inline forms: it stores records
// and uploads in bbolt, validates patches against form definitions, signs
// upload URLs and pushes record changes to websocket subscribers.
package server

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang/glog"

	"github.com/goliatone/go-inlineform/internal/store"
	"github.com/goliatone/go-inlineform/pkg/api"
	"github.com/goliatone/go-inlineform/pkg/live"
)

// Mux is the minimal interface required to register the routes. It is
// satisfied by *http.ServeMux.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

type Server struct {
	opts    Options
	store   *store.Store
	hub     *live.Hub
	signKey []byte
}

// New builds a server over st with default options plus any overrides.
func New(st *store.Store, fns ...OptionFn) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("server: missing store")
	}
	s := &Server{opts: NewOptions(fns...), store: st}
	s.signKey = s.opts.Secret
	if len(s.signKey) == 0 {
		s.signKey = make([]byte, 32)
		if _, err := rand.Read(s.signKey); err != nil {
			return nil, fmt.Errorf("server: signing key: %w", err)
		}
	}
	s.hub = live.NewHub(s.opts.Live, s.authorize)
	return s, nil
}

// Options returns a copy of the server configuration.
func (s *Server) Options() Options {
	return NewOptions(func(o *Options) { *o = s.opts })
}

// Hub returns the websocket hub record changes are published on.
func (s *Server) Hub() *live.Hub { return s.hub }

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if _, err := s.RegisterRoutes(mux); err != nil {
		// only fails on a nil mux
		panic(err)
	}
	return mux
}

// RegisterRoutes registers the API under the configured base path and
// returns the patterns in registration order.
func (s *Server) RegisterRoutes(mux Mux) ([]string, error) {
	if mux == nil {
		return nil, fmt.Errorf("server: missing mux")
	}
	routes := []struct {
		method, path string
		handler      http.HandlerFunc
		guarded      bool
	}{
		{http.MethodGet, "/records/{collection}/{id}", s.getRecord, true},
		{http.MethodPut, "/records/{collection}/{id}", s.putRecord, true},
		{http.MethodPatch, "/records/{collection}/{id}", s.patchRecord, true},
		{http.MethodGet, "/options/{collection}/{path}", s.searchOptions, true},
		{http.MethodPost, "/files/presign/{prefix...}", s.presign, true},
		{http.MethodPut, "/files/{key...}", s.putFile, false},
		{http.MethodGet, "/files/{key...}", s.getFile, true},
	}

	var patterns []string
	for _, route := range routes {
		var h http.Handler = route.handler
		if route.guarded {
			h = s.guard(h)
		}
		pattern := route.method + " " + mountPath(s.opts.BasePath, route.path)
		mux.Handle(pattern, h)
		patterns = append(patterns, pattern)
	}
	livePattern := http.MethodGet + " " + mountPath(s.opts.BasePath, "/live")
	mux.Handle(livePattern, s.hub)
	return append(patterns, livePattern), nil
}

// Close disconnects live subscribers. The store is owned by the caller.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.authorize(r); err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(r *http.Request) error {
	if s.opts.Guard != nil {
		if err := s.opts.Guard(r); err != nil {
			return err
		}
	}
	if len(s.opts.Secret) == 0 {
		return nil
	}
	token := bearerToken(r)
	if token == "" {
		return ErrUnauthorized
	}
	claims, err := api.VerifyHS256(token, s.opts.Secret)
	if err != nil {
		glog.V(1).Infof("server: %s", err)
		return ErrUnauthorized
	}
	if sub, _ := claims.GetSubject(); strings.HasPrefix(sub, uploadSubjectPrefix) {
		// upload signatures are not access tokens
		return ErrUnauthorized
	}
	return nil
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter set by api.SecureURL.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func mountPath(basePath, routePath string) string {
	basePath = strings.TrimSpace(basePath)
	if !strings.HasPrefix(routePath, "/") {
		routePath = "/" + routePath
	}
	if basePath == "" || basePath == "/" {
		return routePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return strings.TrimRight(basePath, "/") + routePath
}
