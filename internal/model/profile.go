package model

import "time"

// Profile binds a site to its Micropub endpoints. It is read once per operation
// and never modified while the operation runs.
type Profile struct {
	Name                  string
	Domain                string
	MicropubEndpoint      string
	MediaEndpoint         string
	TokenEndpoint         string
	AuthorizationEndpoint string
}

// UploadResult maps a local media path to the URL the server assigned to it.
type UploadResult struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type PushResult struct {
	URL      string         `json:"url"`
	IsUpdate bool           `json:"is_update"`
	Uploads  []UploadResult `json:"uploads"`
}

type PublishResult struct {
	URL         string         `json:"url"`
	IsUpdate    bool           `json:"is_update"`
	Uploads     []UploadResult `json:"uploads"`
	PublishedAt time.Time      `json:"published_at"`
}

type DraftSummary struct {
	ID         DraftID  `json:"id"`
	Title      string   `json:"title"`
	PostKind   string   `json:"post_kind"`
	Status     Status   `json:"status"`
	Categories []string `json:"categories,omitempty"`
}

// RemotePost is an entry returned by a q=source query.
type RemotePost struct {
	URL       string    `json:"url"`
	Name      string    `json:"name,omitempty"`
	Content   string    `json:"content,omitempty"`
	Published time.Time `json:"published,omitempty"`
	Status    string    `json:"post_status,omitempty"`
}

// RemoteMedia is an entry returned by a q=source query against the media endpoint.
type RemoteMedia struct {
	URL       string    `json:"url"`
	Published time.Time `json:"published,omitempty"`
	MimeType  string    `json:"mime_type,omitempty"`
}

// PublicationRecord is a committed push or publish kept in the local history.
type PublicationRecord struct {
	ID          int64
	DraftID     DraftID
	Action      string
	Status      Status
	URL         string
	Title       string
	Content     []byte
	ContentHash string
	Uploads     []UploadResult
	CreatedAt   time.Time
}

// MediaReference is a local media path found in a draft and the file it resolves to.
type MediaReference struct {
	Original string
	Path     string
}
