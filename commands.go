package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/debemdeboas/micropub/internal/agent"
	"github.com/debemdeboas/micropub/internal/cli"
	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/model"
)

func (a *app) rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "micropub",
		Summary: "Write posts as local drafts and publish them to a Micropub server.",
		Persistent: func(fs *pflag.FlagSet) {
			fs.StringVar(&a.configPath, "config", a.configPath, "configuration file (default $MICROPUB_CONFIG or ~/.config/micropub/config.yaml)")
			fs.StringVarP(&a.profile, "profile", "p", a.profile, "profile to use instead of default_profile")
			fs.StringVar(&a.logLevel, "log-level", a.logLevel, "log level: debug, info, warn or error")
			fs.BoolVar(&a.jsonOutput, "json", a.jsonOutput, "print results as JSON")
		},
		Subcommands: []*cli.Command{
			a.draftCommand(),
			a.pushCommand(),
			a.publishCommand(),
			a.backdateCommand(),
			a.deleteCommand(),
			a.undeleteCommand(),
			a.postsCommand(),
			a.mediaCommand(),
			a.historyCommand(),
			a.whoamiCommand(),
			a.tokenCommand(),
			a.mcpCommand(),
			a.versionCommand(),
		},
	}
}

func (a *app) pushCommand() *cli.Command {
	var date string
	return &cli.Command{
		Name:    "push",
		Summary: "Send a draft to the server as a draft post",
		Usage:   "<id> [--date <date>]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&date, "date", "", "published date to send with this request")
		},
		Run: func(_ *pflag.FlagSet, args []string) error {
			id, backdate, err := a.publishArgs(args, date, false)
			if err != nil {
				return err
			}
			res, err := a.engine.Push(context.Background(), id, backdate)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.stdout, res)
			}
			verb := "Created"
			if res.IsUpdate {
				verb = "Updated"
			}
			fmt.Fprintf(a.stdout, "%s server draft %s\n", verb, outputStyle.Render(res.URL))
			a.printUploads(res.Uploads)
			return nil
		},
	}
}

func (a *app) publishCommand() *cli.Command {
	var date string
	return &cli.Command{
		Name:    "publish",
		Summary: "Publish a draft and move it to the archive",
		Usage:   "<id> [--date <date>]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&date, "date", "", "published date to send with this request")
		},
		Run: func(_ *pflag.FlagSet, args []string) error {
			id, backdate, err := a.publishArgs(args, date, false)
			if err != nil {
				return err
			}
			res, err := a.engine.Publish(context.Background(), id, backdate)
			if err != nil {
				return err
			}
			return a.printPublished(res)
		},
	}
}

func (a *app) backdateCommand() *cli.Command {
	var date string
	return &cli.Command{
		Name:    "backdate",
		Summary: "Publish a draft with an earlier published date",
		Usage:   "<id> --date <date>",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&date, "date", "", "published date (RFC 3339, 2006-01-02T15:04:05 or 2006-01-02)")
		},
		Run: func(_ *pflag.FlagSet, args []string) error {
			id, backdate, err := a.publishArgs(args, date, true)
			if err != nil {
				return err
			}
			res, err := a.engine.BackdatePublish(context.Background(), id, *backdate)
			if err != nil {
				return err
			}
			return a.printPublished(res)
		},
	}
}

// publishArgs validates the draft id and date shared by push, publish and backdate.
func (a *app) publishArgs(args []string, date string, dateRequired bool) (model.DraftID, *time.Time, error) {
	var backdate *time.Time
	switch {
	case date != "":
		t, err := parseDate(date)
		if err != nil {
			return "", nil, err
		}
		backdate = &t
	case dateRequired:
		return "", nil, mperr.InvalidArgumentf("--date is required")
	}

	id, err := a.draftArg(args)
	if err != nil {
		return "", nil, err
	}
	return id, backdate, nil
}

func (a *app) printPublished(res *model.PublishResult) error {
	if a.jsonOutput {
		return writeJSON(a.stdout, res)
	}
	fmt.Fprintf(a.stdout, "Published %s\n", outputStyle.Render(res.URL))
	fmt.Fprintln(a.stdout, mutedStyle.Render("published at "+res.PublishedAt.Format(time.RFC3339)))
	a.printUploads(res.Uploads)
	return nil
}

func (a *app) printUploads(uploads []model.UploadResult) {
	for _, u := range uploads {
		fmt.Fprintf(a.stdout, "  %s %s %s\n", u.Filename, mutedStyle.Render("->"), u.URL)
	}
}

func (a *app) deleteCommand() *cli.Command {
	return a.actionCommand("delete", "Delete a post on the server", a.deletePost)
}

func (a *app) undeleteCommand() *cli.Command {
	return a.actionCommand("undelete", "Restore a deleted post on the server", a.undeletePost)
}

func (a *app) deletePost(ctx context.Context, url string) error {
	return a.engine.Delete(ctx, url, a.profile)
}

func (a *app) undeletePost(ctx context.Context, url string) error {
	return a.engine.Undelete(ctx, url, a.profile)
}

func (a *app) actionCommand(name, summary string, action func(ctx context.Context, url string) error) *cli.Command {
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   "<url>",
		Run: func(_ *pflag.FlagSet, args []string) error {
			if err := cli.ExactArgs(args, 1, "<url>"); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			if err := action(context.Background(), args[0]); err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.stdout, map[string]string{"action": name, "url": args[0]})
			}
			fmt.Fprintf(a.stdout, "%s: %s\n", name, outputStyle.Render(args[0]))
			return nil
		},
	}
}

func (a *app) postsCommand() *cli.Command {
	var limit, offset int
	return &cli.Command{
		Name:    "posts",
		Summary: "List posts on the server",
		Flags: func(fs *pflag.FlagSet) {
			fs.IntVar(&limit, "limit", 0, "number of posts (default list.page_size)")
			fs.IntVar(&offset, "offset", 0, "number of posts to skip")
		},
		Run: func(_ *pflag.FlagSet, args []string) error {
			if err := cli.ExactArgs(args, 0); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			posts, err := a.engine.ListPosts(context.Background(), a.profile, a.pageSize(limit), offset)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.stdout, nonNil(posts))
			}
			if len(posts) == 0 {
				fmt.Fprintln(a.stdout, mutedStyle.Render("No posts."))
				return nil
			}
			rows := make([][]string, 0, len(posts))
			for _, p := range posts {
				title := p.Name
				if title == "" {
					title = p.Content
				}
				rows = append(rows, []string{formatTime(p.Published), p.Status, truncate(title, 50), p.URL})
			}
			return writeTable(a.stdout, []string{"PUBLISHED", "STATUS", "TITLE", "URL"}, rows)
		},
	}
}

func (a *app) mediaCommand() *cli.Command {
	var limit, offset int
	return &cli.Command{
		Name:    "media",
		Summary: "List files on the media endpoint",
		Flags: func(fs *pflag.FlagSet) {
			fs.IntVar(&limit, "limit", 0, "number of files (default list.page_size)")
			fs.IntVar(&offset, "offset", 0, "number of files to skip")
		},
		Run: func(_ *pflag.FlagSet, args []string) error {
			if err := cli.ExactArgs(args, 0); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			items, err := a.engine.ListMedia(context.Background(), a.profile, a.pageSize(limit), offset)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.stdout, nonNil(items))
			}
			if len(items) == 0 {
				fmt.Fprintln(a.stdout, mutedStyle.Render("No media."))
				return nil
			}
			rows := make([][]string, 0, len(items))
			for _, m := range items {
				rows = append(rows, []string{formatTime(m.Published), m.MimeType, m.URL})
			}
			return writeTable(a.stdout, []string{"PUBLISHED", "TYPE", "URL"}, rows)
		},
	}
}

type historyEntry struct {
	DraftID   model.DraftID        `json:"draft_id"`
	Action    string               `json:"action"`
	Status    model.Status         `json:"status"`
	URL       string               `json:"url"`
	Title     string               `json:"title"`
	Uploads   []model.UploadResult `json:"uploads,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

func (a *app) historyCommand() *cli.Command {
	var limit int
	var draft string
	return &cli.Command{
		Name:    "history",
		Summary: "Show pushes and publishes recorded on this machine",
		Flags: func(fs *pflag.FlagSet) {
			fs.IntVar(&limit, "limit", 0, "number of entries (default list.page_size)")
			fs.StringVar(&draft, "draft", "", "only show entries for this draft id")
		},
		Run: func(_ *pflag.FlagSet, args []string) error {
			if err := cli.ExactArgs(args, 0); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			if !a.cfg.History.Enabled {
				return mperr.InvalidArgumentf("history is disabled in the configuration")
			}

			var records []model.PublicationRecord
			var err error
			if draft != "" {
				records, err = a.engine.DraftHistory(model.DraftID(draft))
			} else {
				records, err = a.engine.History(a.pageSize(limit))
			}
			if err != nil {
				return err
			}

			entries := make([]historyEntry, 0, len(records))
			for _, r := range records {
				entries = append(entries, historyEntry{
					DraftID:   r.DraftID,
					Action:    r.Action,
					Status:    r.Status,
					URL:       r.URL,
					Title:     r.Title,
					Uploads:   r.Uploads,
					CreatedAt: r.CreatedAt,
				})
			}
			if a.jsonOutput {
				return writeJSON(a.stdout, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.stdout, mutedStyle.Render("No history."))
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{formatTime(e.CreatedAt), e.Action, string(e.DraftID), truncate(e.Title, 40), e.URL})
			}
			return writeTable(a.stdout, []string{"WHEN", "ACTION", "DRAFT", "TITLE", "URL"}, rows)
		},
	}
}

func (a *app) whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the active profile and check its token against the server",
		Run: func(_ *pflag.FlagSet, args []string) error {
			if err := cli.ExactArgs(args, 0); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			profile, server, err := a.engine.ServerConfig(context.Background(), a.profile)
			if err != nil {
				return err
			}

			mediaEndpoint := profile.MediaEndpoint
			if mediaEndpoint == "" {
				mediaEndpoint = server.MediaEndpoint
			}
			if a.jsonOutput {
				return writeJSON(a.stdout, map[string]any{
					"profile":           profile.Name,
					"domain":            profile.Domain,
					"micropub_endpoint": profile.MicropubEndpoint,
					"media_endpoint":    mediaEndpoint,
					"syndicate_to":      nonNil(server.SyndicateTo),
				})
			}

			fmt.Fprintf(a.stdout, "%s %s\n", promptStyle.Render("profile: "), profile.Name)
			fmt.Fprintf(a.stdout, "%s %s\n", promptStyle.Render("domain:  "), profile.Domain)
			fmt.Fprintf(a.stdout, "%s %s\n", promptStyle.Render("micropub:"), profile.MicropubEndpoint)
			if mediaEndpoint != "" {
				fmt.Fprintf(a.stdout, "%s %s\n", promptStyle.Render("media:   "), mediaEndpoint)
			}
			for _, target := range server.SyndicateTo {
				fmt.Fprintf(a.stdout, "%s %s %s\n", promptStyle.Render("syndicate:"), target.Name, mutedStyle.Render(target.UID))
			}
			return nil
		},
	}
}

func (a *app) tokenCommand() *cli.Command {
	return &cli.Command{
		Name:    "token",
		Summary: "Store the access token of a profile",
		Usage:   "[profile]",
		Run: func(_ *pflag.FlagSet, args []string) error {
			if len(args) > 1 {
				return cli.ExactArgs(args, 1, "[profile]")
			}
			if err := a.setup(); err != nil {
				return err
			}

			name := a.profile
			if len(args) == 1 {
				name = args[0]
			}
			profile, err := a.tokens.ResolveProfile(name)
			if err != nil {
				return err
			}

			token, err := a.readSecret(fmt.Sprintf("Access token for %s: ", profile.Name))
			if err != nil {
				return err
			}
			if err := a.tokens.SaveToken(profile.Name, token); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Token saved for %s %s\n", outputStyle.Render(profile.Name), mutedStyle.Render(a.tokens.TokenPath(profile.Name)))
			return nil
		},
	}
}

func (a *app) mcpCommand() *cli.Command {
	return &cli.Command{
		Name:    "mcp",
		Summary: "Serve drafting and publishing tools to an assistant over stdio (Model Context Protocol)",
		Run: func(_ *pflag.FlagSet, args []string) error {
			if err := cli.ExactArgs(args, 0); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			srv := agent.NewServer(a.engine, a.drafts, a.profile, version)
			return srv.Serve(context.Background(), a.stdin, a.stdout)
		},
	}
}

func (a *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print the version",
		Run: func(_ *pflag.FlagSet, _ []string) error {
			fmt.Fprintf(a.stdout, "micropub %s\n", version)
			return nil
		},
	}
}

// readSecret reads a line without echo on a terminal, or the first line of
// standard input otherwise.
func (a *app) readSecret(prompt string) (string, error) {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.stderr, promptStyle.Render(prompt))
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := a.readLine()
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (a *app) readLine() (string, error) {
	if a.lines == nil {
		a.lines = bufio.NewReader(a.stdin)
	}
	return a.lines.ReadString('\n')
}

// confirm asks a yes/no question; an empty answer means yes.
func (a *app) confirm(question string) bool {
	fmt.Fprint(a.stdout, promptStyle.Render(question+" [Y/n] "))
	answer, err := a.readLine()
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "", "y", "yes":
		return true
	}
	return false
}

func (a *app) pageSize(limit int) int {
	if limit > 0 {
		return limit
	}
	return a.cfg.List.PageSize
}

var localDateLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// parseDate accepts RFC 3339, or a date and optional time in the local zone.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, mperr.InvalidArgumentf("invalid date %q: use RFC 3339 (2006-01-02T15:04:05Z07:00) or 2006-01-02", s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// nonNil keeps empty JSON lists as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
