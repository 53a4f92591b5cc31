package repository

import (
	"bytes"
	"testing"
	"time"

	"github.com/debemdeboas/micropub/internal/db"
	"github.com/debemdeboas/micropub/internal/model"
	"github.com/debemdeboas/micropub/internal/util"
	"github.com/debemdeboas/micropub/internal/util/compression"
)

func setupHistory(t *testing.T) *DBHistoryRepository {
	t.Helper()

	sqlite := db.NewSQLite(db.InMemory)
	if err := sqlite.InitDB(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	repo := NewDBHistoryRepository(sqlite, compression.ZstdCompressor{})
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return repo
}

func TestRecordAndListPublications(t *testing.T) {
	repo := setupHistory(t)

	content := []byte("---\ntype: note\n---\n\nhello world")
	first := &model.PublicationRecord{
		DraftID: "d1",
		Action:  ActionCreate,
		Status:  model.StatusServerDraft,
		URL:     "https://blog.example/1",
		Title:   "Hello",
		Content: content,
		Uploads: []model.UploadResult{{Filename: "a.jpg", URL: "https://media.example/a.jpg"}},
	}
	if err := repo.RecordPublication(first); err != nil {
		t.Fatalf("RecordPublication: %v", err)
	}
	if first.ID == 0 {
		t.Error("Expected record id to be set")
	}
	if first.ContentHash != util.ContentHash(content) {
		t.Errorf("Unexpected content hash %s", first.ContentHash)
	}

	second := &model.PublicationRecord{
		DraftID: "d1",
		Action:  ActionUpdate,
		Status:  model.StatusPublished,
		URL:     "https://blog.example/1",
		Title:   "Hello",
		Content: content,
	}
	if err := repo.RecordPublication(second); err != nil {
		t.Fatalf("RecordPublication: %v", err)
	}
	if err := repo.RecordPublication(&model.PublicationRecord{DraftID: "d2", Action: ActionCreate, Status: model.StatusServerDraft, URL: "https://blog.example/2"}); err != nil {
		t.Fatalf("RecordPublication: %v", err)
	}

	all, err := repo.ListPublications(0)
	if err != nil {
		t.Fatalf("ListPublications: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(all))
	}
	if all[0].DraftID != "d2" {
		t.Errorf("Expected newest record first, got %s", all[0].DraftID)
	}

	limited, err := repo.ListPublications(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 record, got %d", len(limited))
	}

	forDraft, err := repo.PublicationsForDraft("d1")
	if err != nil {
		t.Fatalf("PublicationsForDraft: %v", err)
	}
	if len(forDraft) != 2 {
		t.Fatalf("Expected 2 records for d1, got %d", len(forDraft))
	}

	got := forDraft[0]
	if got.Action != ActionCreate || got.Status != model.StatusServerDraft {
		t.Errorf("Unexpected first record %+v", got)
	}
	if !bytes.Equal(got.Content, content) {
		t.Errorf("Content was not restored: %q", got.Content)
	}
	if len(got.Uploads) != 1 || got.Uploads[0].URL != "https://media.example/a.jpg" {
		t.Errorf("Unexpected uploads %+v", got.Uploads)
	}
	if forDraft[1].Status != model.StatusPublished {
		t.Errorf("Expected second record to be published, got %v", forDraft[1].Status)
	}
}

func TestRecordUpload(t *testing.T) {
	repo := setupHistory(t)

	err := repo.RecordUpload("d1", model.UploadResult{Filename: "~/x.jpg", URL: "https://media.example/x.jpg"}, "abc")
	if err != nil {
		t.Fatalf("RecordUpload: %v", err)
	}

	rows, err := repo.db.Query(`SELECT filename, url, content_hash FROM uploads WHERE draft_id = ?`, "d1")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	if !rows.Next() {
		t.Fatal("Expected an upload row")
	}
	var filename, url, hash string
	if err := rows.Scan(&filename, &url, &hash); err != nil {
		t.Fatal(err)
	}
	if filename != "~/x.jpg" || url != "https://media.example/x.jpg" || hash != "abc" {
		t.Errorf("Unexpected row (%s, %s, %s)", filename, url, hash)
	}
}
