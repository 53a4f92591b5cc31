package model

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Status is the lifecycle state of a draft relative to the server.
type Status int

const (
	// StatusNone: never sent to the server.
	StatusNone Status = iota
	// StatusServerDraft: exists on the server with post-status draft.
	StatusServerDraft
	// StatusPublished: published and archived locally.
	StatusPublished
)

func (s Status) String() string {
	switch s {
	case StatusServerDraft:
		return "server-draft"
	case StatusPublished:
		return "published"
	default:
		return ""
	}
}

func ParseStatus(s string) (Status, error) {
	switch s {
	case "":
		return StatusNone, nil
	case "server-draft":
		return StatusServerDraft, nil
	case "published":
		return StatusPublished, nil
	}
	return StatusNone, fmt.Errorf("unknown draft status %q", s)
}

func (s Status) MarshalYAML() (any, error) {
	return s.String(), nil
}

func (s *Status) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Label is the human readable form used in listings.
func (s Status) Label() string {
	if s == StatusNone {
		return "local"
	}
	return s.String()
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.Label() + `"`), nil
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "local" {
		raw = ""
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
