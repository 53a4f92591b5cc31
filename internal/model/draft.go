// Package model defines drafts, profiles and the results of publishing operations.
package model

import (
	"regexp"
	"strings"
	"time"

	mperr "github.com/debemdeboas/micropub/internal/errors"
)

// DefaultPostType is the post kind of a freshly created draft.
const DefaultPostType = "note"

// DraftID names a draft. It doubles as the draft's file name, so it is
// restricted to characters that cannot escape the drafts directory.
type DraftID string

var draftIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func (id DraftID) Validate() error {
	if !draftIDPattern.MatchString(string(id)) {
		return mperr.InvalidArgumentf("invalid draft id %q: only letters, digits, '-' and '_' are allowed", string(id))
	}
	return nil
}

type DraftMetadata struct {
	PostType    string     `yaml:"type"`
	Name        string     `yaml:"name,omitempty"`
	Published   *time.Time `yaml:"published,omitempty"`
	Category    []string   `yaml:"category,omitempty"`
	SyndicateTo []string   `yaml:"syndicate-to,omitempty"`
	Profile     string     `yaml:"profile,omitempty"`
	Photo       []string   `yaml:"photo,omitempty"`
	Status      Status     `yaml:"status,omitempty"`
	URL         string     `yaml:"url,omitempty"`
	PublishedAt *time.Time `yaml:"published-at,omitempty"`
}

func DefaultMetadata() DraftMetadata {
	return DraftMetadata{PostType: DefaultPostType}
}

// Validate checks that the lifecycle status agrees with the recorded server URL.
func (m DraftMetadata) Validate() error {
	switch m.Status {
	case StatusNone:
		if m.URL != "" {
			return mperr.Formatf("draft has url %q but no status", m.URL)
		}
	case StatusServerDraft, StatusPublished:
		if m.URL == "" {
			return mperr.Formatf("draft has status %q but no url", m.Status)
		}
	}
	return nil
}

type Draft struct {
	ID       DraftID
	Metadata DraftMetadata
	Body     string
}

func NewDraft(id DraftID) *Draft {
	return &Draft{ID: id, Metadata: DefaultMetadata()}
}

// Clone returns a deep copy, so a caller can stage changes without touching d.
func (d *Draft) Clone() *Draft {
	c := *d
	c.Metadata.Category = cloneStrings(d.Metadata.Category)
	c.Metadata.SyndicateTo = cloneStrings(d.Metadata.SyndicateTo)
	c.Metadata.Photo = cloneStrings(d.Metadata.Photo)
	if d.Metadata.Published != nil {
		t := *d.Metadata.Published
		c.Metadata.Published = &t
	}
	if d.Metadata.PublishedAt != nil {
		t := *d.Metadata.PublishedAt
		c.Metadata.PublishedAt = &t
	}
	return &c
}

const untitledMaxLen = 50

// GetTitle returns the draft's name, or the first line of its body when it has none.
func (d *Draft) GetTitle() string {
	if d.Metadata.Name != "" {
		return d.Metadata.Name
	}
	for _, line := range strings.Split(d.Body, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "# "))
		if line == "" {
			continue
		}
		if r := []rune(line); len(r) > untitledMaxLen {
			return string(r[:untitledMaxLen]) + "..."
		}
		return line
	}
	return "Untitled"
}

func (d *Draft) Summary() DraftSummary {
	return DraftSummary{
		ID:         d.ID,
		Title:      d.GetTitle(),
		PostKind:   d.Metadata.PostType,
		Status:     d.Metadata.Status,
		Categories: d.Metadata.Category,
	}
}

// Matches reports whether query occurs in the title, body or categories, ignoring case.
func (d *Draft) Matches(query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(d.Metadata.Name), q) ||
		strings.Contains(strings.ToLower(d.Body), q) {
		return true
	}
	for _, c := range d.Metadata.Category {
		if strings.Contains(strings.ToLower(c), q) {
			return true
		}
	}
	return false
}

func (d *Draft) HasCategory(category string) bool {
	for _, c := range d.Metadata.Category {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
