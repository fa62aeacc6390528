package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/goliatone/go-inlineform/internal/store"
	"github.com/goliatone/go-inlineform/pkg/api"
	"github.com/goliatone/go-inlineform/pkg/upload"
)

const (
	uploadSubjectPrefix = "upload:"
	signatureParam      = "signature"
)

type presignRequest struct {
	MimeType string `json:"mimeType"`
}

// presign reserves a blob key and returns where it will be served from plus
// a short-lived URL the client PUTs the content to.
func (s *Server) presign(w http.ResponseWriter, r *http.Request) {
	var req presignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("decode body: %w", err)})
		return
	}
	key := store.NewBlobKey(strings.Trim(r.PathValue("prefix"), "/"))
	signature, err := api.SignHS256(uploadSubjectPrefix+key, s.opts.SignedURLTTL, s.signKey)
	if err != nil {
		writeError(w, r, err)
		return
	}

	destination := s.publicURL(r) + mountPath(s.opts.BasePath, "/files/"+key)
	query := url.Values{signatureParam: {signature}}
	if req.MimeType != "" {
		query.Set("type", req.MimeType)
	}
	writeJSON(w, http.StatusOK, upload.Presigned{
		DestinationURL: destination,
		SignedURL:      destination + "?" + query.Encode(),
	})
}

func (s *Server) putFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := s.verifySignature(key, r.URL.Query().Get(signatureParam)); err != nil {
		writeError(w, r, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, StatusError{Code: http.StatusRequestEntityTooLarge, Err: fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		writeError(w, r, StatusError{Code: http.StatusBadRequest, Err: err})
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = r.URL.Query().Get("type")
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if err := s.store.PutBlob(key, contentType, data); err != nil {
		writeError(w, r, err)
		return
	}
	glog.V(1).Infof("server: stored %s (%d bytes, %s)", key, len(data), contentType)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	blob, err := s.store.Blob(r.PathValue("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(blob.Data)
	}
}

func (s *Server) verifySignature(key, signature string) error {
	if signature == "" {
		return ErrBadSignature
	}
	claims, err := api.VerifyHS256(signature, s.signKey)
	if err != nil {
		return ErrBadSignature
	}
	if sub, _ := claims.GetSubject(); sub != uploadSubjectPrefix+key {
		return ErrBadSignature
	}
	return nil
}

func (s *Server) publicURL(r *http.Request) string {
	if s.opts.PublicURL != "" {
		return strings.TrimRight(s.opts.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
