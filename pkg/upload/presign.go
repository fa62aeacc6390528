package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-inlineform/pkg/api"
)

// DefaultPresignEndpoint is the API path presigned URLs are requested from.
const DefaultPresignEndpoint = "files/presign"

// Presigned is the response of the presign endpoint.
type Presigned struct {
	DestinationURL string `json:"destinationUrl"`
	SignedURL      string `json:"signedUrl"`
	Expiration     int64  `json:"expiration"`
}

// PresignTransport uploads in two steps: it asks the API for a signed URL
// under Path, then PUTs the file there. The stored reference is the
// destination URL returned by the API.
type PresignTransport struct {
	Client   *api.Client
	Endpoint string
	Path     string
	// HTTPClient sends the PUT; nil uses the API client's HTTP client.
	HTTPClient *http.Client
}

func (p PresignTransport) Upload(ctx context.Context, file File, progress ProgressFunc) (Result, error) {
	if p.Client == nil {
		return Result{}, errors.New("upload: presign transport has no api client")
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = DefaultPresignEndpoint
	}
	presignPath := strings.TrimSuffix(endpoint, "/") + "/" + strings.TrimPrefix(p.Path, "/")

	var presigned Presigned
	if err := p.Client.Post(ctx, presignPath, map[string]any{"mimeType": file.ContentType}, &presigned); err != nil {
		return Result{}, fmt.Errorf("upload: presign: %w", err)
	}
	if presigned.SignedURL == "" {
		return Result{}, errors.New("upload: presign response has no signed url")
	}

	if file.Open == nil {
		return Result{}, fmt.Errorf("upload: %s has no content", file.Name)
	}
	rc, err := file.Open()
	if err != nil {
		return Result{}, fmt.Errorf("upload: open %s: %w", file.Name, err)
	}
	defer rc.Close()

	body := &progressReader{r: rc, total: file.Size, progress: progress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, presigned.SignedURL, body)
	if err != nil {
		return Result{}, fmt.Errorf("upload: request: %w", err)
	}
	req.ContentLength = file.Size
	if file.ContentType != "" {
		req.Header.Set("Content-Type", file.ContentType)
	}

	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = p.Client.Options().HTTPClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("upload: put %s: %w", file.Name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("upload: put %s: unexpected status %s", file.Name, resp.Status)
	}
	if progress != nil {
		progress(1)
	}
	return Result{URL: presigned.DestinationURL}, nil
}

type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if n > 0 && p.total > 0 && p.progress != nil {
		p.progress(float64(p.read) / float64(p.total))
	}
	return n, err
}
