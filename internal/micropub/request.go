// Package micropub builds Micropub requests from drafts and sends them to a
// Micropub endpoint.
package micropub

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var clientLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	clientLogger = l
}

const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionUndelete = "undelete"

	EntryType = "h-entry"
)

// Properties are microformats2 properties. Every value is a list, scalars included.
type Properties map[string][]string

// Request is one of CreateRequest, UpdateRequest, DeleteRequest or UndeleteRequest.
type Request interface {
	json.Marshaler
	Action() string
	isRequest()
}

var errMissingURL = errors.New("micropub: request needs a url")

type CreateRequest struct {
	Type       string
	Properties Properties
}

func NewCreate(props Properties) *CreateRequest {
	return &CreateRequest{Type: EntryType, Properties: props}
}

func (*CreateRequest) Action() string { return ActionCreate }
func (*CreateRequest) isRequest()     {}

func (r *CreateRequest) MarshalJSON() ([]byte, error) {
	props := r.Properties
	if props == nil {
		props = Properties{}
	}
	return json.Marshal(struct {
		Type       []string   `json:"type"`
		Properties Properties `json:"properties"`
	}{
		Type:       []string{r.Type},
		Properties: props,
	})
}

type UpdateRequest struct {
	url     string
	Replace Properties
	Add     Properties
	Delete  []string
}

func NewUpdate(url string, replace, add Properties, del []string) (*UpdateRequest, error) {
	if url == "" {
		return nil, errMissingURL
	}
	return &UpdateRequest{url: url, Replace: replace, Add: add, Delete: del}, nil
}

func (r *UpdateRequest) URL() string  { return r.url }
func (*UpdateRequest) Action() string { return ActionUpdate }
func (*UpdateRequest) isRequest()     {}

func (r *UpdateRequest) MarshalJSON() ([]byte, error) {
	replace := r.Replace
	if replace == nil {
		replace = Properties{}
	}
	return json.Marshal(struct {
		Action  string     `json:"action"`
		URL     string     `json:"url"`
		Replace Properties `json:"replace"`
		Add     Properties `json:"add,omitempty"`
		Delete  []string   `json:"delete,omitempty"`
	}{
		Action:  ActionUpdate,
		URL:     r.url,
		Replace: replace,
		Add:     r.Add,
		Delete:  r.Delete,
	})
}

type DeleteRequest struct{ url string }

func NewDelete(url string) (*DeleteRequest, error) {
	if url == "" {
		return nil, errMissingURL
	}
	return &DeleteRequest{url: url}, nil
}

func (r *DeleteRequest) URL() string  { return r.url }
func (*DeleteRequest) Action() string { return ActionDelete }
func (*DeleteRequest) isRequest()     {}

func (r *DeleteRequest) MarshalJSON() ([]byte, error) {
	return marshalAction(ActionDelete, r.url)
}

type UndeleteRequest struct{ url string }

func NewUndelete(url string) (*UndeleteRequest, error) {
	if url == "" {
		return nil, errMissingURL
	}
	return &UndeleteRequest{url: url}, nil
}

func (r *UndeleteRequest) URL() string  { return r.url }
func (*UndeleteRequest) Action() string { return ActionUndelete }
func (*UndeleteRequest) isRequest()     {}

func (r *UndeleteRequest) MarshalJSON() ([]byte, error) {
	return marshalAction(ActionUndelete, r.url)
}

func marshalAction(action, url string) ([]byte, error) {
	return json.Marshal(struct {
		Action string `json:"action"`
		URL    string `json:"url"`
	}{action, url})
}

// FormatTime renders a timestamp the way every request carries it: RFC 3339 with offset.
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
