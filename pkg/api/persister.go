package api

import (
	"context"
	"errors"
	"strings"

	"github.com/golang/glog"

	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/inline"
	"github.com/goliatone/go-inlineform/pkg/values"
)

// PatchPersister saves inline patches with PATCH requests to path. Server
// validation payloads are mapped onto field errors of the submitted fields;
// the attempt still fails so the form reports the submission error.
func PatchPersister(client *Client, path string) inline.PersistFunc {
	return func(ctx context.Context, patch map[string]any, helpers form.Helpers) error {
		err := client.Patch(ctx, path, patch, nil)
		if err == nil {
			return nil
		}
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) && fetchErr.IsValidation() {
			unmatched := helpers.ApplyErrorPayload(values.Paths(patch), fetchErr.Payload())
			if len(unmatched) > 0 {
				glog.Warningf("api: PATCH %s: %s", path, strings.Join(unmatched, "; "))
			}
		}
		return err
	}
}
