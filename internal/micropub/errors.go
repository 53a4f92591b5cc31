package micropub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrorKind groups Micropub error codes by what the user can do about them.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindInsufficientScope
	KindInvalidRequest
	KindUnauthorized
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindInsufficientScope:
		return "insufficient_scope"
	case KindInvalidRequest:
		return "invalid_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "other"
	}
}

// ProtocolError is a non-2xx response from a Micropub or media endpoint.
type ProtocolError struct {
	StatusCode  int
	Code        string
	Description string
	// Body holds the raw response when it was not a Micropub error document.
	Body string
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.StatusCode, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.StatusCode)
	case e.Body != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
}

func (e *ProtocolError) Kind() ErrorKind {
	switch e.Code {
	case "insufficient_scope":
		return KindInsufficientScope
	case "invalid_request":
		return KindInvalidRequest
	case "unauthorized":
		return KindUnauthorized
	case "forbidden":
		return KindForbidden
	case "":
		switch e.StatusCode {
		case http.StatusUnauthorized:
			return KindUnauthorized
		case http.StatusForbidden:
			return KindForbidden
		case http.StatusBadRequest:
			return KindInvalidRequest
		}
	}
	return KindOther
}

// NeedsReauth reports whether a new token would fix the failure.
func (e *ProtocolError) NeedsReauth() bool {
	k := e.Kind()
	return k == KindUnauthorized || k == KindInsufficientScope
}

const maxErrorBody = 512

// ParseErrorResponse reads a Micropub error document ({"error", "error_description"}).
// Bodies that are not such a document are kept raw, truncated.
func ParseErrorResponse(status int, body []byte) *ProtocolError {
	perr := &ProtocolError{StatusCode: status}

	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		perr.Code = payload.Error
		perr.Description = payload.ErrorDescription
		return perr
	}

	raw := strings.TrimSpace(string(body))
	if len(raw) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut] + "..."
	}
	perr.Body = raw
	return perr
}
