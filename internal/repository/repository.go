// Package repository persists drafts on disk and keeps a local history of
// what was sent to the server.
package repository

import (
	"github.com/debemdeboas/micropub/internal/model"
	"github.com/rs/zerolog"
)

var repoLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

// DraftRepository stores drafts in an active area and an archive area.
type DraftRepository interface {
	Load(id model.DraftID) (*model.Draft, error)
	Save(draft *model.Draft) error

	// Archive writes the draft to the archive and then removes the active copy.
	// Once the archive write succeeds the archive copy is authoritative.
	Archive(draft *model.Draft) error

	ListActive() ([]model.DraftID, error)

	// Dir is the directory relative media paths are resolved against.
	Dir() string
}

// HistoryRepository records committed operations. It is informational only;
// draft metadata remains the source of truth for create-vs-update decisions.
type HistoryRepository interface {
	RecordPublication(rec *model.PublicationRecord) error
	RecordUpload(draftID model.DraftID, upload model.UploadResult, contentHash string) error
	ListPublications(limit int) ([]model.PublicationRecord, error)
	PublicationsForDraft(id model.DraftID) ([]model.PublicationRecord, error)
}
