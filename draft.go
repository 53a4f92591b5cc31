package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/debemdeboas/micropub/internal/cli"
	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/model"
	"github.com/debemdeboas/micropub/internal/render"
	"github.com/debemdeboas/micropub/internal/repository"
)

func (a *app) draftCommand() *cli.Command {
	return &cli.Command{
		Name:    "draft",
		Summary: "Manage local drafts",
		Subcommands: []*cli.Command{
			a.draftNewCommand(),
			a.draftEditCommand(),
			a.draftListCommand(),
			a.draftShowCommand(),
			a.draftSearchCommand(),
			a.draftPreviewCommand(),
			a.draftArchivedCommand(),
		},
	}
}

func (a *app) draftNewCommand() *cli.Command {
	var (
		title, content, postType        string
		categories, photos, syndicateTo []string
	)
	return &cli.Command{
		Name:    "new",
		Summary: "Create a draft and open it in the editor",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVarP(&title, "title", "t", "", "post name")
			fs.StringSliceVarP(&categories, "category", "c", nil, "category, repeatable")
			fs.StringVar(&content, "content", "", `body text, "-" reads standard input; skips the editor`)
			fs.StringVar(&postType, "type", model.DefaultPostType, "post type")
			fs.StringSliceVar(&photos, "photo", nil, "photo path or URL, repeatable")
			fs.StringSliceVar(&syndicateTo, "syndicate-to", nil, "syndication target uid, repeatable")
		},
		Run: func(_ *pflag.FlagSet, args []string) error {
			if err := cli.ExactArgs(args, 0); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}

			if content == "-" {
				data, err := io.ReadAll(a.stdin)
				if err != nil {
					return fmt.Errorf("reading content: %w", err)
				}
				content = string(data)
			}

			draft, err := a.drafts.Create()
			if err != nil {
				return err
			}
			draft.Metadata.PostType = postType
			draft.Metadata.Name = title
			draft.Metadata.Category = categories
			draft.Metadata.Photo = photos
			draft.Metadata.SyndicateTo = syndicateTo
			draft.Body = content
			if err := a.drafts.Save(draft); err != nil {
				return err
			}

			if content == "" && isTerminal(a.stdin) {
				if err := openEditor(a.cfg.Editor, a.drafts.Path(draft.ID), a.stdin, a.stdout, a.stderr); err != nil {
					return err
				}
				if draft, err = a.drafts.Load(draft.ID); err != nil {
					return err
				}
			}

			if a.jsonOutput {
				return writeJSON(a.stdout, draft.Summary())
			}
			fmt.Fprintf(a.stdout, "Created draft %s %s\n", outputStyle.Render(string(draft.ID)), mutedStyle.Render(a.drafts.Path(draft.ID)))
			return nil
		},
	}
}

func (a *app) draftEditCommand() *cli.Command {
	return &cli.Command{
		Name:    "edit",
		Summary: "Open a draft in the editor",
		Usage:   "<id>",
		Run: func(_ *pflag.FlagSet, args []string) error {
			id, err := a.draftArg(args)
			if err != nil {
				return err
			}
			if _, err := a.drafts.Load(id); err != nil && !mperr.IsFormat(err) {
				return err
			}
			if err := openEditor(a.cfg.Editor, a.drafts.Path(id), a.stdin, a.stdout, a.stderr); err != nil {
				return err
			}
			// Surface front matter mistakes now rather than at push time.
			_, err = a.drafts.Load(id)
			return err
		},
	}
}

func (a *app) draftListCommand() *cli.Command {
	var (
		category      string
		limit, offset int
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List active drafts",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVarP(&category, "category", "c", "", "only drafts in this category")
			fs.IntVar(&limit, "limit", 0, "drafts per page (default list.page_size)")
			fs.IntVar(&offset, "offset", 0, "number of drafts to skip")
		},
		Run: func(_ *pflag.FlagSet, args []string) error {
			if err := cli.ExactArgs(args, 0); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			summaries, err := a.engine.ListDrafts()
			if err != nil {
				return err
			}
			if category != "" {
				summaries = filterCategory(summaries, category)
			}
			return a.printDraftPages(summaries, offset, a.pageSize(limit))
		},
	}
}

func (a *app) draftSearchCommand() *cli.Command {
	return &cli.Command{
		Name:    "search",
		Summary: "Find drafts by title, body or category",
		Usage:   "<query>",
		Run: func(_ *pflag.FlagSet, args []string) error {
			if len(args) == 0 {
				return cli.ExactArgs(args, 1, "<query>")
			}
			if err := a.setup(); err != nil {
				return err
			}
			found, err := a.engine.SearchDrafts(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.printDraftPages(found, 0, a.cfg.List.PageSize)
		},
	}
}

// printDraftPages prints one page, then asks for the next one while both
// ends are terminals.
func (a *app) printDraftPages(summaries []model.DraftSummary, offset, limit int) error {
	if a.jsonOutput {
		page, _ := paginate(summaries, offset, limit)
		return writeJSON(a.stdout, nonNil(page))
	}
	if len(summaries) == 0 {
		fmt.Fprintln(a.stdout, mutedStyle.Render("No drafts."))
		return nil
	}

	interactive := isTerminal(a.stdin) && isTerminal(a.stdout)
	for {
		page, more := paginate(summaries, offset, limit)
		if err := writeTable(a.stdout, []string{"ID", "STATUS", "TYPE", "TITLE", "CATEGORIES"}, draftRows(page)); err != nil {
			return err
		}
		if !more {
			return nil
		}
		offset += len(page)
		if !interactive {
			fmt.Fprintln(a.stdout, mutedStyle.Render(fmt.Sprintf("%d more, use --offset %d", len(summaries)-offset, offset)))
			return nil
		}
		if !a.confirm(fmt.Sprintf("Show %d more?", len(summaries)-offset)) {
			return nil
		}
	}
}

func draftRows(summaries []model.DraftSummary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			string(s.ID),
			s.Status.Label(),
			s.PostKind,
			truncate(s.Title, 50),
			strings.Join(s.Categories, ", "),
		})
	}
	return rows
}

func filterCategory(summaries []model.DraftSummary, category string) []model.DraftSummary {
	var out []model.DraftSummary
	for _, s := range summaries {
		for _, c := range s.Categories {
			if strings.EqualFold(c, category) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

type draftView struct {
	ID          model.DraftID `json:"id"`
	Title       string        `json:"title"`
	Type        string        `json:"type"`
	Status      model.Status  `json:"status"`
	URL         string        `json:"url,omitempty"`
	Categories  []string      `json:"categories,omitempty"`
	Photos      []string      `json:"photos,omitempty"`
	SyndicateTo []string      `json:"syndicate_to,omitempty"`
	Profile     string        `json:"profile,omitempty"`
	Published   *time.Time    `json:"published,omitempty"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	Body        string        `json:"body"`
}

func newDraftView(d *model.Draft) draftView {
	m := d.Metadata
	return draftView{
		ID:          d.ID,
		Title:       d.GetTitle(),
		Type:        m.PostType,
		Status:      m.Status,
		URL:         m.URL,
		Categories:  m.Category,
		Photos:      m.Photo,
		SyndicateTo: m.SyndicateTo,
		Profile:     m.Profile,
		Published:   m.Published,
		PublishedAt: m.PublishedAt,
		Body:        d.Body,
	}
}

func (a *app) draftShowCommand() *cli.Command {
	var archived bool
	return &cli.Command{
		Name:    "show",
		Summary: "Print a draft",
		Usage:   "<id> [--archived]",
		Flags: func(fs *pflag.FlagSet) {
			fs.BoolVar(&archived, "archived", false, "read the draft from the archive")
		},
		Run: func(_ *pflag.FlagSet, args []string) error {
			draft, err := a.loadDraftArg(args, archived)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.stdout, newDraftView(draft))
			}

			data, err := repository.EncodeDraft(draft)
			if err != nil {
				return err
			}
			if isTerminal(a.stdout) {
				return render.HighlightTerminal(a.stdout, string(data), a.cfg.Markdown.SyntaxTheme)
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
}

func (a *app) draftPreviewCommand() *cli.Command {
	var (
		output   string
		archived bool
	)
	return &cli.Command{
		Name:    "preview",
		Summary: "Render a draft to HTML",
		Usage:   "<id> [--output <file>]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVarP(&output, "output", "o", "", "write the page to this file instead of standard output")
			fs.BoolVar(&archived, "archived", false, "read the draft from the archive")
		},
		Run: func(_ *pflag.FlagSet, args []string) error {
			draft, err := a.loadDraftArg(args, archived)
			if err != nil {
				return err
			}
			page, err := render.Preview(draft.GetTitle(), []byte(draft.Body), a.cfg.Markdown.Renderer, a.cfg.Markdown.SyntaxTheme)
			if err != nil {
				return err
			}

			if output == "" {
				_, err = a.stdout.Write(page)
				return err
			}
			if err := os.WriteFile(output, page, 0o644); err != nil {
				return fmt.Errorf("writing preview: %w", err)
			}
			fmt.Fprintf(a.stdout, "Preview written to %s\n", outputStyle.Render(output))
			return nil
		},
	}
}

func (a *app) draftArchivedCommand() *cli.Command {
	return &cli.Command{
		Name:    "archived",
		Summary: "List published drafts kept in the archive",
		Run: func(_ *pflag.FlagSet, args []string) error {
			if err := cli.ExactArgs(args, 0); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			ids, err := a.drafts.ListArchived()
			if err != nil {
				return err
			}

			views := make([]draftView, 0, len(ids))
			for _, id := range ids {
				d, err := a.drafts.LoadArchived(id)
				if err != nil {
					a.log.Warn().Err(err).Str("draft_id", string(id)).Msg("Skipping unreadable archived draft")
					continue
				}
				views = append(views, newDraftView(d))
			}

			if a.jsonOutput {
				return writeJSON(a.stdout, views)
			}
			if len(views) == 0 {
				fmt.Fprintln(a.stdout, mutedStyle.Render("No archived drafts."))
				return nil
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				published := "-"
				if v.PublishedAt != nil {
					published = formatTime(*v.PublishedAt)
				}
				rows = append(rows, []string{string(v.ID), published, truncate(v.Title, 50), v.URL})
			}
			return writeTable(a.stdout, []string{"ID", "PUBLISHED", "TITLE", "URL"}, rows)
		},
	}
}

func (a *app) draftArg(args []string) (model.DraftID, error) {
	if err := cli.ExactArgs(args, 1, "<id>"); err != nil {
		return "", err
	}
	id := model.DraftID(args[0])
	if err := id.Validate(); err != nil {
		return "", err
	}
	if err := a.setup(); err != nil {
		return "", err
	}
	return id, nil
}

func (a *app) loadDraftArg(args []string, archived bool) (*model.Draft, error) {
	id, err := a.draftArg(args)
	if err != nil {
		return nil, err
	}
	if archived {
		return a.drafts.LoadArchived(id)
	}
	return a.drafts.Load(id)
}
