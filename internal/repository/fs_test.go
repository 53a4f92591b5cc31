package repository

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/model"
)

func newTestRepo(t *testing.T) *FSDraftRepository {
	t.Helper()
	root := t.TempDir()
	repo := NewFSDraftRepository(filepath.Join(root, "drafts"), filepath.Join(root, "archive"))
	if err := repo.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return repo
}

func fullDraft() *model.Draft {
	published := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	return &model.Draft{
		ID: "full-draft",
		Metadata: model.DraftMetadata{
			PostType:    "article",
			Name:        "A title: with colon",
			Published:   &published,
			Category:    []string{"go", "micropub"},
			SyndicateTo: []string{"https://social.example/"},
			Profile:     "blog",
			Photo:       []string{"~/pics/a.jpg", "https://cdn.example/b.png"},
			Status:      model.StatusServerDraft,
			URL:         "https://blog.example/posts/1",
		},
		Body: "# Heading\n\nParagraph with ![img](./x.png)\n\n---\n\nafter a rule\n",
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	testCases := []struct {
		name  string
		draft *model.Draft
	}{
		{"full metadata", fullDraft()},
		{"default metadata empty body", model.NewDraft("empty")},
		{"body with leading newlines", &model.Draft{ID: "lead", Metadata: model.DefaultMetadata(), Body: "\n\nstarts blank"}},
		{"body without trailing newline", &model.Draft{ID: "notrail", Metadata: model.DefaultMetadata(), Body: "no newline"}},
		{"body with crlf line endings", &model.Draft{ID: "crlf", Metadata: model.DefaultMetadata(), Body: "line one\r\nline two\r\n"}},
		{"body starting with crlf", &model.Draft{ID: "crlflead", Metadata: model.DefaultMetadata(), Body: "\r\nafter blank\r\n"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := repo.Save(tc.draft); err != nil {
				t.Fatalf("Save: %v", err)
			}

			loaded, err := repo.Load(tc.draft.ID)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			assertDraftEqual(t, tc.draft, loaded)

			// Saving what was loaded must produce the same bytes.
			before, _ := os.ReadFile(repo.Path(tc.draft.ID))
			if err := repo.Save(loaded); err != nil {
				t.Fatalf("Save: %v", err)
			}
			after, _ := os.ReadFile(repo.Path(tc.draft.ID))
			if string(before) != string(after) {
				t.Errorf("Re-saving changed the file:\n%s\n---- vs ----\n%s", before, after)
			}
		})
	}
}

func assertDraftEqual(t *testing.T, want, got *model.Draft) {
	t.Helper()

	if got.ID != want.ID {
		t.Errorf("ID: got %q, want %q", got.ID, want.ID)
	}
	if got.Body != want.Body {
		t.Errorf("Body: got %q, want %q", got.Body, want.Body)
	}

	w, g := want.Metadata, got.Metadata
	if !timesEqual(w.Published, g.Published) || !timesEqual(w.PublishedAt, g.PublishedAt) {
		t.Errorf("timestamps differ: got %v/%v, want %v/%v", g.Published, g.PublishedAt, w.Published, w.PublishedAt)
	}
	w.Published, g.Published, w.PublishedAt, g.PublishedAt = nil, nil, nil, nil
	if !reflect.DeepEqual(w, g) {
		t.Errorf("Metadata: got %+v, want %+v", g, w)
	}
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func TestDecodeDraft(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		wantCode mperr.Code
		wantBody string
		wantType string
	}{
		{name: "minimal", input: "---\ntype: note\n---\n\nhello", wantBody: "hello", wantType: "note"},
		{name: "empty header uses defaults", input: "---\n---\nbody", wantBody: "body", wantType: "note"},
		{name: "crlf", input: "---\r\nname: x\r\n---\r\n\r\nbody", wantBody: "body", wantType: "note"},
		{name: "crlf body kept as written", input: "---\r\ntype: note\r\n---\r\n\r\na\r\nb\r\n", wantBody: "a\r\nb\r\n", wantType: "note"},
		{name: "leading whitespace", input: "\n\n---\ntype: reply\n---\n\nhi", wantBody: "hi", wantType: "reply"},
		{name: "body keeps later rules", input: "---\ntype: note\n---\n\na\n---\nb", wantBody: "a\n---\nb", wantType: "note"},
		{name: "no delimiters", input: "just text", wantCode: mperr.CodeFormat},
		{name: "one delimiter", input: "---\ntype: note\nbody", wantCode: mperr.CodeFormat},
		{name: "empty file", input: "", wantCode: mperr.CodeFormat},
		{name: "invalid yaml", input: "---\ncategory: [unclosed\n---\n", wantCode: mperr.CodeFormat},
		{name: "unknown status", input: "---\nstatus: scheduled\n---\n", wantCode: mperr.CodeFormat},
		{name: "status without url", input: "---\nstatus: server-draft\n---\n", wantCode: mperr.CodeFormat},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			draft, err := DecodeDraft("id", []byte(tc.input))

			if tc.wantCode != "" {
				if err == nil {
					t.Fatalf("Expected %s error, got draft %+v", tc.wantCode, draft)
				}
				if code := mperr.GetCode(err); code != tc.wantCode {
					t.Errorf("Expected code %s, got %s (%v)", tc.wantCode, code, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if draft.Body != tc.wantBody {
				t.Errorf("Body: got %q, want %q", draft.Body, tc.wantBody)
			}
			if draft.Metadata.PostType != tc.wantType {
				t.Errorf("Type: got %q, want %q", draft.Metadata.PostType, tc.wantType)
			}
		})
	}
}

func TestEncodeDraftLayout(t *testing.T) {
	d := model.NewDraft("x")
	d.Metadata.Category = []string{"a", "b"}
	d.Body = "text"

	out, err := EncodeDraft(d)
	if err != nil {
		t.Fatal(err)
	}

	want := "---\ntype: note\ncategory:\n  - a\n  - b\n---\n\ntext"
	if string(out) != want {
		t.Errorf("got:\n%s\nwant:\n%s", out, want)
	}
}

func TestLoadErrors(t *testing.T) {
	repo := newTestRepo(t)

	if _, err := repo.Load("missing"); !mperr.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
	if _, err := repo.Load("../escape"); !mperr.IsInvalidArgument(err) {
		t.Errorf("Expected invalid argument, got %v", err)
	}

	if err := os.WriteFile(repo.Path("broken"), []byte("no front matter"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Load("broken"); !mperr.IsFormat(err) {
		t.Errorf("Expected format error, got %v", err)
	}
}

func TestCreate(t *testing.T) {
	repo := newTestRepo(t)

	draft, err := repo.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := draft.ID.Validate(); err != nil {
		t.Errorf("Generated id is invalid: %v", err)
	}
	if draft.Metadata.PostType != model.DefaultPostType {
		t.Errorf("Expected default post type, got %q", draft.Metadata.PostType)
	}
	if _, err := os.Stat(repo.Path(draft.ID)); err != nil {
		t.Errorf("Expected draft file to exist: %v", err)
	}
}

func TestSaveRejectsPublished(t *testing.T) {
	repo := newTestRepo(t)
	d := fullDraft()
	d.Metadata.Status = model.StatusPublished

	if err := repo.Save(d); !mperr.IsInvalidArgument(err) {
		t.Errorf("Expected invalid argument, got %v", err)
	}
	if _, err := os.Stat(repo.Path(d.ID)); !os.IsNotExist(err) {
		t.Error("Expected nothing to be written")
	}
}

func TestArchive(t *testing.T) {
	repo := newTestRepo(t)

	for _, id := range []model.DraftID{"a", "b", "c"} {
		if err := repo.Save(model.NewDraft(id)); err != nil {
			t.Fatal(err)
		}
	}

	d, err := repo.Load("b")
	if err != nil {
		t.Fatal(err)
	}
	d.Metadata.Status = model.StatusPublished
	d.Metadata.URL = "https://blog.example/b"

	if err := repo.Archive(d); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	ids, err := repo.ListActive()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []model.DraftID{"a", "c"}) {
		t.Errorf("Unexpected active ids %v", ids)
	}

	archived, err := repo.ListArchived()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(archived, []model.DraftID{"b"}) {
		t.Errorf("Unexpected archived ids %v", archived)
	}

	got, err := repo.LoadArchived("b")
	if err != nil {
		t.Fatalf("LoadArchived: %v", err)
	}
	if got.Metadata.Status != model.StatusPublished || got.Metadata.URL != "https://blog.example/b" {
		t.Errorf("Unexpected archived metadata %+v", got.Metadata)
	}
}

func TestArchiveCopyIsAuthoritative(t *testing.T) {
	repo := newTestRepo(t)

	d := model.NewDraft("stale")
	if err := repo.Save(d); err != nil {
		t.Fatal(err)
	}
	published := d.Clone()
	published.Metadata.Status = model.StatusPublished
	published.Metadata.URL = "https://blog.example/stale"
	if err := repo.Archive(published); err != nil {
		t.Fatal(err)
	}

	// Simulate an archive whose active-copy removal failed.
	if err := repo.Save(d); err != nil {
		t.Fatal(err)
	}

	ids, err := repo.ListActive()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected archived draft to be hidden, got %v", ids)
	}

	_, err = repo.Load("stale")
	if !mperr.IsNotFound(err) {
		t.Fatalf("Expected not found for archived draft, got %v", err)
	}
	if archived, _ := mperr.GetMeta(err)["archived"].(bool); !archived {
		t.Error("Expected archived metadata on error")
	}
	if _, err := os.Stat(repo.Path("stale")); !os.IsNotExist(err) {
		t.Error("Expected stale active copy to be removed")
	}
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Save(model.NewDraft("gone")); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete("gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete("gone"); !mperr.IsNotFound(err) {
		t.Errorf("Expected not found on second delete, got %v", err)
	}
}

func TestListActiveSkipsForeignFiles(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Save(model.NewDraft("real")); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"notes.txt", ".real.md.tmp-123", "bad id.md"} {
		if err := os.WriteFile(filepath.Join(repo.Dir(), name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(repo.Dir(), "dir.md"), 0o700); err != nil {
		t.Fatal(err)
	}

	ids, err := repo.ListActive()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []model.DraftID{"real"}) {
		t.Errorf("Unexpected ids %v", ids)
	}
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.md")

	for i := 0; i < 3; i++ {
		if err := writeFileAtomic(path, []byte(strings.Repeat("x", i)), 0o600); err != nil {
			t.Fatalf("writeFileAtomic: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected a single file, found %d", len(entries))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}
}
