// Command migrate imports a directory of markdown files as local drafts.
// Files may start with a %%%-delimited TOML block; its title, date and
// keywords become the draft's name, published date and categories.
package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/debemdeboas/micropub/internal/config"
	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/logger"
	"github.com/debemdeboas/micropub/internal/model"
	"github.com/debemdeboas/micropub/internal/repository"
	"github.com/debemdeboas/micropub/internal/util"
)

func main() {
	path := pflag.String("path", "", "directory containing .md files")
	configPath := pflag.String("config", "", "configuration file (default $MICROPUB_CONFIG or ~/.config/micropub/config.yaml)")
	postType := pflag.String("type", model.DefaultPostType, "post type of the imported drafts")
	dryRun := pflag.Bool("dry-run", false, "report what would be imported without writing drafts")
	pflag.Parse()

	log := logger.New("info")

	if *path == "" {
		log.Fatal().Msg("--path is required")
	}

	if *configPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			log.Fatal().Err(err).Msg("Cannot locate config")
		}
		*configPath = p
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}

	draftsDir, err := cfg.DraftsDir()
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	archiveDir, err := cfg.ArchiveDir()
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	repo := repository.NewFSDraftRepository(draftsDir, archiveDir)
	if err := repo.Init(); err != nil {
		log.Fatal().Err(err).Msg("Cannot create drafts directory")
	}

	imported, err := importDir(log, repo, *path, *postType, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Str("path", *path).Msg("Import failed")
	}
	log.Info().Int("drafts", imported).Bool("dry_run", *dryRun).Str("drafts_dir", draftsDir).Msg("Import finished")
}

// importDir turns every .md file in dir into a draft. Files that fail are
// logged and skipped.
func importDir(log zerolog.Logger, repo *repository.FSDraftRepository, dir, postType string, dryRun bool) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".md") {
			continue
		}
		draft, err := readDraft(repo, filepath.Join(dir, file.Name()), postType)
		if err != nil {
			log.Error().Err(err).Str("file", file.Name()).Msg("Error processing file")
			continue
		}
		if !dryRun {
			if err := repo.Save(draft); err != nil {
				log.Error().Err(err).Str("file", file.Name()).Msg("Error saving draft")
				continue
			}
		}
		log.Info().Str("file", file.Name()).Str("draft_id", string(draft.ID)).Msg("Imported")
		imported++
	}
	return imported, nil
}

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func readDraft(repo *repository.FSDraftRepository, path, postType string) (*model.Draft, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	draft := model.NewDraft(draftID(repo, filepath.Base(path)))
	draft.Metadata.PostType = postType

	frontMatter, body := util.SplitFrontMatter(content)
	draft.Body = string(body)
	if frontMatter != nil {
		draft.Metadata.Name = frontMatter.Title
		draft.Metadata.Category = frontMatter.Keyword
		if !frontMatter.Date.IsZero() {
			date := frontMatter.Date.UTC()
			draft.Metadata.Published = &date
		}
	}
	return draft, nil
}

// draftID derives the id from the file name, or falls back to a UUID when
// the name is unusable or already taken.
func draftID(repo *repository.FSDraftRepository, name string) model.DraftID {
	id := model.DraftID(strings.Trim(unsafeIDChars.ReplaceAllString(strings.TrimSuffix(name, ".md"), "-"), "-"))
	if id.Validate() != nil {
		return model.DraftID(uuid.New().String())
	}
	if _, err := os.Stat(repo.Path(id)); err == nil {
		return model.DraftID(uuid.New().String())
	}
	if _, err := repo.LoadArchived(id); !mperr.IsNotFound(err) {
		return model.DraftID(uuid.New().String())
	}
	return id
}
