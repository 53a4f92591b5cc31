package micropub

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	mperr "github.com/debemdeboas/micropub/internal/errors"
)

const maxResponseBody = 1 << 20

// Response is a successful reply to a Micropub request.
type Response struct {
	StatusCode int
	// URL is the Location of the created or updated post. It is always set for creates.
	URL string
}

// Client talks to one Micropub endpoint with one token. It never retries.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	userAgent  string
}

func NewClient(httpClient *http.Client, endpoint, token, userAgent string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		token:      token,
		userAgent:  userAgent,
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send posts the request as JSON.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, mperr.Wrap(err, "error encoding micropub request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, mperr.WrapWithCode(err, mperr.CodeInvalidArgument, "invalid micropub endpoint").WithMeta("endpoint", c.endpoint)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setHeaders(httpReq)

	clientLogger.Debug().Str("action", req.Action()).Str("endpoint", c.endpoint).RawJSON("request", payload).Msg("Sending micropub request")

	resp, body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	out := &Response{StatusCode: resp.StatusCode}
	if loc := resp.Header.Get("Location"); loc != "" {
		out.URL = loc
		if ref, err := resp.Request.URL.Parse(loc); err == nil {
			out.URL = ref.String()
		}
	}

	if out.URL == "" && req.Action() == ActionCreate {
		return nil, mperr.Newf(mperr.CodeProtocol, "server accepted the post (HTTP %d) but returned no Location", resp.StatusCode).
			WithMeta("status", resp.StatusCode).
			WithMeta("body", string(body))
	}

	clientLogger.Info().Str("action", req.Action()).Int("status", resp.StatusCode).Str("url", out.URL).Msg("Micropub request succeeded")
	return out, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// do executes the request and classifies failures: network errors are
// transport errors, non-2xx responses are protocol errors.
func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, mperr.WrapWithCode(err, mperr.CodeTransport, "micropub request failed").WithMeta("endpoint", req.URL.String())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, nil, mperr.WrapWithCode(err, mperr.CodeTransport, "error reading micropub response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := ParseErrorResponse(resp.StatusCode, body)
		clientLogger.Warn().Int("status", resp.StatusCode).Str("error", perr.Code).Msg("Micropub request rejected")
		return nil, nil, mperr.WrapWithCode(perr, mperr.CodeProtocol, "micropub request rejected").
			WithMeta("status", resp.StatusCode).
			WithMeta("error", perr.Code).
			WithMeta("reauth", perr.NeedsReauth())
	}

	return resp, body, nil
}

// get runs a Micropub query against endpoint and decodes the JSON reply into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return mperr.WrapWithCode(err, mperr.CodeInvalidArgument, "invalid endpoint").WithMeta("endpoint", endpoint)
	}
	query := u.Query()
	for k, v := range params {
		query[k] = v
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return mperr.WrapWithCode(err, mperr.CodeInvalidArgument, "invalid endpoint").WithMeta("endpoint", endpoint)
	}
	c.setHeaders(req)

	clientLogger.Debug().Str("url", u.String()).Msg("Querying micropub endpoint")

	_, body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return mperr.WrapWithCode(err, mperr.CodeProtocol, "invalid query response").WithMeta("endpoint", endpoint)
	}
	return nil
}

func pageParams(q string, limit, offset int) url.Values {
	params := url.Values{"q": {q}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	return params
}
