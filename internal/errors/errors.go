// Package errors classifies failures of draft, media and protocol operations
// so callers can render an actionable message for each of them.
package errors

import (
	"errors"
	"fmt"
	"maps"
)

// Code categorizes an error.
type Code string

const (
	CodeUnknown Code = "unknown"

	// CodeInvalidArgument is a caller mistake: bad id, missing endpoint, wrong lifecycle state.
	CodeInvalidArgument Code = "invalid_argument"

	// CodeNotFound is an unknown draft or profile.
	CodeNotFound Code = "not_found"

	// CodeFormat is a persisted draft that cannot be parsed.
	CodeFormat Code = "format"

	// CodeFileNotFound is a media reference that does not resolve to a file.
	CodeFileNotFound Code = "file_not_found"

	// CodeUpload is a failed media upload, including a success response without a location.
	CodeUpload Code = "upload"

	// CodeProtocol is a structured rejection from the Micropub endpoint.
	CodeProtocol Code = "protocol"

	// CodeTransport is a network failure talking to the Micropub endpoint.
	CodeTransport Code = "transport"

	// CodeUnauthenticated means no usable token is available for the profile.
	CodeUnauthenticated Code = "unauthenticated"

	CodeInternal Code = "internal"
)

// Error is an application error with a code and optional metadata.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Meta    map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithMeta attaches a key/value pair and returns the same error.
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap adds context to err. The code and metadata of an inner *Error are kept.
// err must not be nil.
func Wrap(err error, message string) *Error {
	var inner *Error
	if errors.As(err, &inner) {
		return &Error{
			Code:    inner.Code,
			Message: message,
			Cause:   err,
			Meta:    maps.Clone(inner.Meta),
		}
	}

	return &Error{Code: CodeUnknown, Message: message, Cause: err}
}

func Wrapf(err error, format string, args ...any) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps err and overrides its code.
func WrapWithCode(err error, code Code, message string) *Error {
	wrapped := Wrap(err, message)
	wrapped.Code = code
	return wrapped
}

func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

func InvalidArgumentf(format string, args ...any) *Error {
	return Newf(CodeInvalidArgument, format, args...)
}

func Formatf(format string, args ...any) *Error {
	return Newf(CodeFormat, format, args...)
}

func FileNotFound(path string) *Error {
	return Newf(CodeFileNotFound, "media file not found: %s", path).WithMeta("path", path)
}

func Uploadf(format string, args ...any) *Error {
	return Newf(CodeUpload, format, args...)
}

func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// Is reports whether the outermost *Error in err's chain carries code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

func IsNotFound(err error) bool        { return Is(err, CodeNotFound) }
func IsInvalidArgument(err error) bool { return Is(err, CodeInvalidArgument) }
func IsFormat(err error) bool          { return Is(err, CodeFormat) }
func IsFileNotFound(err error) bool    { return Is(err, CodeFileNotFound) }
func IsUpload(err error) bool          { return Is(err, CodeUpload) }
func IsProtocol(err error) bool        { return Is(err, CodeProtocol) }
func IsTransport(err error) bool       { return Is(err, CodeTransport) }

// GetCode returns the code of the outermost *Error, or CodeUnknown.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func GetMeta(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Meta
	}
	return nil
}

// Hint returns a short suggestion for the user, or "" when there is none.
func Hint(err error) string {
	switch GetCode(err) {
	case CodeFileNotFound:
		return "check the media path; relative paths resolve against the drafts directory"
	case CodeFormat:
		return "fix the draft front matter; it must sit between two --- lines"
	case CodeUnauthenticated:
		return "re-authenticate to obtain a new token for this profile"
	case CodeTransport:
		return "check your network connection and the endpoint URL"
	}
	if reauth, ok := GetMeta(err)["reauth"].(bool); ok && reauth {
		return "re-authenticate; the token was rejected or lacks the required scope"
	}
	return ""
}
