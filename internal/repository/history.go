package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/debemdeboas/micropub/internal/db"
	"github.com/debemdeboas/micropub/internal/model"
	"github.com/debemdeboas/micropub/internal/util"
	"github.com/debemdeboas/micropub/internal/util/compression"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

type DBHistoryRepository struct { // implements HistoryRepository
	db         db.DB
	compressor compression.Compressor
	now        func() time.Time
}

func NewDBHistoryRepository(db db.DB, compressor compression.Compressor) *DBHistoryRepository {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &DBHistoryRepository{
		db:         db,
		compressor: compressor,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *DBHistoryRepository) RecordPublication(rec *model.PublicationRecord) error {
	compressed, err := r.compressor.Compress(rec.Content)
	if err != nil {
		return fmt.Errorf("error compressing content: %w", err)
	}
	rec.ContentHash = util.ContentHash(rec.Content)

	uploads, err := json.Marshal(rec.Uploads)
	if err != nil {
		return fmt.Errorf("error encoding uploads: %w", err)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}

	res, err := r.db.Exec(
		`INSERT INTO publications (draft_id, action, status, url, title, content, content_hash, uploads, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DraftID, rec.Action, rec.Status.String(), rec.URL, rec.Title, compressed, rec.ContentHash, string(uploads), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving publication: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	repoLogger.Debug().Str("draft_id", string(rec.DraftID)).Str("url", rec.URL).Msg("Publication recorded")
	return nil
}

func (r *DBHistoryRepository) RecordUpload(draftID model.DraftID, upload model.UploadResult, contentHash string) error {
	_, err := r.db.Exec(
		`INSERT INTO uploads (draft_id, filename, url, content_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		draftID, upload.Filename, upload.URL, contentHash, r.now(),
	)
	if err != nil {
		return fmt.Errorf("error saving upload: %w", err)
	}
	return nil
}

// ListPublications returns the most recent publications first. A limit <= 0 returns all of them.
func (r *DBHistoryRepository) ListPublications(limit int) ([]model.PublicationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.queryPublications(
		`SELECT id, draft_id, action, status, url, title, content, content_hash, uploads, created_at FROM publications ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
}

func (r *DBHistoryRepository) PublicationsForDraft(id model.DraftID) ([]model.PublicationRecord, error) {
	return r.queryPublications(
		`SELECT id, draft_id, action, status, url, title, content, content_hash, uploads, created_at FROM publications WHERE draft_id = ? ORDER BY created_at ASC, id ASC`,
		id,
	)
}

func (r *DBHistoryRepository) queryPublications(query string, args ...any) ([]model.PublicationRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying publications: %w", err)
	}
	defer rows.Close()

	records := make([]model.PublicationRecord, 0)
	for rows.Next() {
		var rec model.PublicationRecord
		var status, uploads string
		var compressed []byte

		err := rows.Scan(&rec.ID, &rec.DraftID, &rec.Action, &status, &rec.URL, &rec.Title, &compressed, &rec.ContentHash, &uploads, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning publication: %w", err)
		}

		if rec.Status, err = model.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("publication %d: %w", rec.ID, err)
		}
		if rec.Content, err = r.compressor.Decompress(compressed); err != nil {
			return nil, fmt.Errorf("error decompressing content: %w", err)
		}
		if uploads != "" {
			if err := json.Unmarshal([]byte(uploads), &rec.Uploads); err != nil {
				return nil, fmt.Errorf("error decoding uploads: %w", err)
			}
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}
