package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/model"
	"github.com/google/uuid"
)

const draftExt = ".md"

type FSDraftRepository struct { // implements DraftRepository
	draftsPath  string
	archivePath string
}

func NewFSDraftRepository(draftsPath, archivePath string) *FSDraftRepository {
	return &FSDraftRepository{
		draftsPath:  draftsPath,
		archivePath: archivePath,
	}
}

// Init creates the drafts and archive directories.
func (r *FSDraftRepository) Init() error {
	for _, dir := range []string{r.draftsPath, r.archivePath} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}
	return nil
}

func (r *FSDraftRepository) Dir() string {
	return r.draftsPath
}

func (r *FSDraftRepository) ArchiveDir() string {
	return r.archivePath
}

func (r *FSDraftRepository) Path(id model.DraftID) string {
	return filepath.Join(r.draftsPath, string(id)+draftExt)
}

func (r *FSDraftRepository) archivedPath(id model.DraftID) string {
	return filepath.Join(r.archivePath, string(id)+draftExt)
}

// Create persists a new, empty draft with a generated id.
func (r *FSDraftRepository) Create() (*model.Draft, error) {
	draft := model.NewDraft(model.DraftID(uuid.New().String()))
	if err := r.Save(draft); err != nil {
		return nil, err
	}
	repoLogger.Debug().Str("draft_id", string(draft.ID)).Msg("Draft created")
	return draft, nil
}

func (r *FSDraftRepository) Load(id model.DraftID) (*model.Draft, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(r.archivedPath(id)); err == nil {
		// The archive copy wins. A leftover active copy means an earlier
		// archive could not remove it; finish the job now.
		if rmErr := os.Remove(r.Path(id)); rmErr == nil {
			repoLogger.Warn().Str("draft_id", string(id)).Msg("Removed stale active copy of archived draft")
		}
		return nil, mperr.NotFoundf("draft %s has already been published", id).
			WithMeta("draft_id", id).
			WithMeta("archived", true)
	}

	return r.read(id, r.Path(id))
}

func (r *FSDraftRepository) LoadArchived(id model.DraftID) (*model.Draft, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return r.read(id, r.archivedPath(id))
}

func (r *FSDraftRepository) read(id model.DraftID, path string) (*model.Draft, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, mperr.NotFoundf("draft not found: %s", id).WithMeta("draft_id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading draft %s: %w", id, err)
	}
	return DecodeDraft(id, data)
}

func (r *FSDraftRepository) Save(draft *model.Draft) error {
	if err := draft.ID.Validate(); err != nil {
		return err
	}
	if draft.Metadata.Status == model.StatusPublished {
		return mperr.InvalidArgumentf("draft %s is published; it can only be archived", draft.ID)
	}
	return r.write(draft, r.Path(draft.ID))
}

func (r *FSDraftRepository) Archive(draft *model.Draft) error {
	if err := draft.ID.Validate(); err != nil {
		return err
	}
	if err := r.write(draft, r.archivedPath(draft.ID)); err != nil {
		return fmt.Errorf("error archiving draft %s: %w", draft.ID, err)
	}

	if err := os.Remove(r.Path(draft.ID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		repoLogger.Warn().Err(err).
			Str("draft_id", string(draft.ID)).
			Msg("Draft archived but the active copy could not be removed")
	}

	repoLogger.Debug().Str("draft_id", string(draft.ID)).Msg("Draft archived")
	return nil
}

// Delete removes an active draft.
func (r *FSDraftRepository) Delete(id model.DraftID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	err := os.Remove(r.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return mperr.NotFoundf("draft not found: %s", id).WithMeta("draft_id", id)
	}
	return err
}

// ListActive returns the ids of active drafts in lexical order. Drafts that
// already have an archive copy are left out.
func (r *FSDraftRepository) ListActive() ([]model.DraftID, error) {
	active, err := listIDs(r.draftsPath)
	if err != nil {
		return nil, err
	}
	archived, err := listIDs(r.archivePath)
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(active, func(id model.DraftID) bool {
		_, found := slices.BinarySearch(archived, id)
		return found
	}), nil
}

func (r *FSDraftRepository) ListArchived() ([]model.DraftID, error) {
	return listIDs(r.archivePath)
}

func (r *FSDraftRepository) write(draft *model.Draft, path string) error {
	if err := draft.Metadata.Validate(); err != nil {
		return err
	}
	data, err := EncodeDraft(draft)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data, 0o600)
}

func listIDs(dir string) ([]model.DraftID, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading directory %s: %w", dir, err)
	}

	var ids []model.DraftID
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, draftExt) {
			continue
		}
		id := model.DraftID(strings.TrimSuffix(name, draftExt))
		if id.Validate() != nil {
			repoLogger.Debug().Str("file", name).Msg("Skipping file with invalid draft id")
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// writeFileAtomic writes to a temporary file in the target directory and
// renames it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("error setting permissions on %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("error syncing %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error replacing %s: %w", path, err)
	}
	return nil
}
