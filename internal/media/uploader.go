package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/micropub"
)

// FormField is the multipart field carrying the file, as required by the Micropub media endpoint.
const FormField = "file"

const maxResponseBody = 64 << 10

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

type HTTPUploader struct { // implements Uploader
	client    *http.Client
	userAgent string
}

func NewHTTPUploader(client *http.Client, userAgent string) *HTTPUploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPUploader{client: client, userAgent: userAgent}
}

// Upload sends one multipart request. Success needs a 2xx status and a
// Location header (or a "url" field in a JSON body); anything else is an upload error.
func (u *HTTPUploader) Upload(ctx context.Context, endpoint, token, path string) (string, error) {
	body, contentType, err := multipartBody(path)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", mperr.WrapWithCode(err, mperr.CodeUpload, "invalid media endpoint").WithMeta("endpoint", endpoint)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if u.userAgent != "" {
		req.Header.Set("User-Agent", u.userAgent)
	}

	mediaLogger.Debug().Str("endpoint", endpoint).Str("path", path).Msg("Uploading media")

	resp, err := u.client.Do(req)
	if err != nil {
		return "", mperr.WrapWithCode(err, mperr.CodeUpload, "upload of "+filepath.Base(path)+" failed").
			WithMeta("path", path).
			WithMeta("endpoint", endpoint)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", mperr.WrapWithCode(err, mperr.CodeUpload, "cannot read media endpoint response for "+filepath.Base(path)).
			WithMeta("path", path).
			WithMeta("status", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := micropub.ParseErrorResponse(resp.StatusCode, respBody)
		return "", mperr.WrapWithCode(perr, mperr.CodeUpload, "upload of "+filepath.Base(path)+" failed").
			WithMeta("path", path).
			WithMeta("status", resp.StatusCode).
			WithMeta("reauth", perr.NeedsReauth())
	}

	location := resp.Header.Get("Location")
	if location == "" {
		var payload struct {
			URL string `json:"url"`
		}
		if json.Unmarshal(respBody, &payload) == nil {
			location = payload.URL
		}
	}
	if location == "" {
		return "", mperr.Uploadf("media endpoint accepted %s but returned no location", filepath.Base(path)).
			WithMeta("path", path).
			WithMeta("status", resp.StatusCode)
	}

	// A relative Location is resolved against the endpoint.
	if ref, err := resp.Request.URL.Parse(location); err == nil {
		location = ref.String()
	}

	mediaLogger.Info().Str("path", path).Str("url", location).Msg("Media uploaded")
	return location, nil
}

func multipartBody(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", mperr.FileNotFound(path)
	}
	if err != nil {
		return nil, "", mperr.WrapWithCode(err, mperr.CodeUpload, "cannot read media file").WithMeta("path", path)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FormField, quoteEscaper.Replace(filepath.Base(path))))
	h.Set("Content-Type", DetectContentType(path))

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", mperr.WrapWithCode(err, mperr.CodeUpload, "cannot build upload request")
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", mperr.WrapWithCode(err, mperr.CodeUpload, "cannot read media file").WithMeta("path", path)
	}
	if err := mw.Close(); err != nil {
		return nil, "", mperr.WrapWithCode(err, mperr.CodeUpload, "cannot build upload request")
	}

	return &buf, mw.FormDataContentType(), nil
}
