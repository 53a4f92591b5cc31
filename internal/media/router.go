package media

import (
	"context"
	"strings"

	mperr "github.com/debemdeboas/micropub/internal/errors"
)

// Router sends each upload to the backend matching the endpoint scheme.
type Router struct { // implements Uploader
	HTTP Uploader
	// S3 is nil when no bucket is configured.
	S3 Uploader
}

func (r *Router) Upload(ctx context.Context, endpoint, token, path string) (string, error) {
	if strings.HasPrefix(endpoint, S3Scheme) {
		if r.S3 == nil {
			return "", mperr.Uploadf("media endpoint %s needs the media.s3 configuration section", endpoint).
				WithMeta("endpoint", endpoint)
		}
		return r.S3.Upload(ctx, endpoint, token, path)
	}
	return r.HTTP.Upload(ctx, endpoint, token, path)
}
