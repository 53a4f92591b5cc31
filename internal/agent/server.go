// Package agent exposes the publish engine as Model Context Protocol tools
// over stdio, for assistants that post on the user's behalf.
package agent

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	mperr "github.com/debemdeboas/micropub/internal/errors"
	"github.com/debemdeboas/micropub/internal/micropub"
	"github.com/debemdeboas/micropub/internal/model"
	"github.com/debemdeboas/micropub/internal/publish"
	"github.com/debemdeboas/micropub/internal/repository"
)

var agentLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	agentLogger = l
}

const (
	defaultPostLimit  = 10
	defaultMediaLimit = 20
	previewLength     = 100
)

// Engine is the part of the publish engine the tools call.
type Engine interface {
	Push(ctx context.Context, id model.DraftID, backdate *time.Time) (*model.PushResult, error)
	Publish(ctx context.Context, id model.DraftID, backdate *time.Time) (*model.PublishResult, error)
	BackdatePublish(ctx context.Context, id model.DraftID, date time.Time) (*model.PublishResult, error)
	ListDrafts() ([]model.DraftSummary, error)
	Delete(ctx context.Context, url, profileName string) error
	ListPosts(ctx context.Context, profileName string, limit, offset int) ([]model.RemotePost, error)
	ListMedia(ctx context.Context, profileName string, limit, offset int) ([]model.RemoteMedia, error)
	ServerConfig(ctx context.Context, profileName string) (model.Profile, *micropub.ServerConfig, error)
}

type Drafts interface {
	Create() (*model.Draft, error)
	Load(id model.DraftID) (*model.Draft, error)
	Save(draft *model.Draft) error
}

var (
	_ Engine = (*publish.Engine)(nil)
	_ Drafts = (*repository.FSDraftRepository)(nil)
)

type Server struct {
	engine  Engine
	drafts  Drafts
	profile string
	srv     *server.MCPServer
}

// NewServer registers every tool and prompt. Remote operations use profile,
// or the default profile when it is empty.
func NewServer(engine Engine, drafts Drafts, profile, version string) *Server {
	s := &Server{
		engine:  engine,
		drafts:  drafts,
		profile: profile,
		srv: server.NewMCPServer("micropub", version,
			server.WithToolCapabilities(false),
			server.WithPromptCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve answers JSON-RPC messages read from in until in is closed or ctx is done.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.srv)
	stdio.SetErrorLogger(log.New(agentLogger, "", 0))
	agentLogger.Info().Str("profile", s.profile).Msg("Agent tool server listening on stdio")
	return stdio.Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	draftID := mcp.WithString("draft_id",
		mcp.Required(),
		mcp.Description("Draft id: letters, digits, hyphens and underscores"),
	)
	limit := func(def int) mcp.ToolOption {
		return mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Number of items to return (default %d)", def)))
	}
	offset := mcp.WithNumber("offset", mcp.Description("Number of items to skip (default 0)"))

	s.srv.AddTool(mcp.NewTool("publish_post",
		mcp.WithDescription("Create a post and publish it immediately"),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body of the post")),
		mcp.WithString("title", mcp.Description("Optional post name")),
		mcp.WithString("categories", mcp.Description("Optional comma-separated categories")),
	), s.publishPost)

	s.srv.AddTool(mcp.NewTool("create_draft",
		mcp.WithDescription("Create a local draft for later editing and publishing"),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body of the draft")),
		mcp.WithString("title", mcp.Description("Optional post name")),
		mcp.WithString("categories", mcp.Description("Optional comma-separated categories")),
	), s.createDraft)

	s.srv.AddTool(mcp.NewTool("list_drafts",
		mcp.WithDescription("List the active local drafts"),
	), s.listDrafts)

	s.srv.AddTool(mcp.NewTool("view_draft",
		mcp.WithDescription("Show the metadata and body of a draft"),
		draftID,
	), s.viewDraft)

	s.srv.AddTool(mcp.NewTool("push_draft",
		mcp.WithDescription("Send a draft to the server as a draft post; it stays editable locally"),
		draftID,
	), s.pushDraft)

	s.srv.AddTool(mcp.NewTool("publish_draft",
		mcp.WithDescription("Publish a draft and archive it locally"),
		draftID,
	), s.publishDraft)

	s.srv.AddTool(mcp.NewTool("publish_backdate",
		mcp.WithDescription("Publish a draft with a past publication date"),
		draftID,
		mcp.WithString("date", mcp.Required(), mcp.Description("RFC 3339 timestamp such as 2024-01-15T10:30:00Z, or a date like 2024-01-15")),
	), s.publishBackdate)

	s.srv.AddTool(mcp.NewTool("delete_post",
		mcp.WithDescription("Delete a post on the server by URL"),
		mcp.WithString("url", mcp.Required(), mcp.Description("URL of the post")),
	), s.deletePost)

	s.srv.AddTool(mcp.NewTool("whoami",
		mcp.WithDescription("Show the active profile and check its token against the server"),
	), s.whoami)

	s.srv.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List posts on the server, newest first"),
		limit(defaultPostLimit),
		offset,
	), s.listPosts)

	s.srv.AddTool(mcp.NewTool("list_media",
		mcp.WithDescription("List files on the media endpoint"),
		limit(defaultMediaLimit),
		offset,
	), s.listMedia)
}

// toolError reports a failed operation to the caller as a tool result, with
// the recovery hint when there is one.
func toolError(err error) (*mcp.CallToolResult, error) {
	msg := err.Error()
	if hint := mperr.Hint(err); hint != "" {
		msg += "\nhint: " + hint
	}
	return mcp.NewToolResultError(msg), nil
}

func splitCategories(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) newDraft(req mcp.CallToolRequest) (*model.Draft, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return nil, mperr.InvalidArgumentf("content is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, mperr.InvalidArgumentf("content cannot be empty")
	}

	draft, err := s.drafts.Create()
	if err != nil {
		return nil, err
	}
	draft.Body = content
	draft.Metadata.Name = strings.TrimSpace(req.GetString("title", ""))
	draft.Metadata.Category = splitCategories(req.GetString("categories", ""))
	if err := s.drafts.Save(draft); err != nil {
		return nil, err
	}
	agentLogger.Debug().Str("draft_id", string(draft.ID)).Msg("Draft created")
	return draft, nil
}

func (s *Server) createDraft(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draft, err := s.newDraft(req)
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText("Draft created with ID: " + string(draft.ID)), nil
}

func (s *Server) publishPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	draft, err := s.newDraft(req)
	if err != nil {
		return toolError(err)
	}
	res, err := s.engine.Publish(ctx, draft.ID, nil)
	if err != nil {
		return toolError(mperr.Wrapf(err, "draft %s was kept locally", draft.ID))
	}
	return mcp.NewToolResultText(publishedText(res)), nil
}

func (s *Server) draftArg(req mcp.CallToolRequest) (model.DraftID, error) {
	raw, err := req.RequireString("draft_id")
	if err != nil {
		return "", mperr.InvalidArgumentf("draft_id is required")
	}
	id := model.DraftID(strings.TrimSpace(raw))
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Server) listDrafts(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	drafts, err := s.engine.ListDrafts()
	if err != nil {
		return toolError(err)
	}
	if len(drafts) == 0 {
		return mcp.NewToolResultText("No drafts found."), nil
	}

	var b strings.Builder
	b.WriteString("Drafts:\n")
	for _, d := range drafts {
		title := d.Title
		if title == "" {
			title = "[untitled]"
		}
		fmt.Fprintf(&b, "- %s (%s) %s, %s\n", title, d.ID, d.PostKind, d.Status.Label())
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) viewDraft(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.draftArg(req)
	if err != nil {
		return toolError(err)
	}
	draft, err := s.drafts.Load(id)
	if err != nil {
		return toolError(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Draft: %s\n", id)
	fmt.Fprintf(&b, "Status: %s\n", draft.Metadata.Status.Label())
	if draft.Metadata.Name != "" {
		fmt.Fprintf(&b, "Title: %s\n", draft.Metadata.Name)
	}
	if len(draft.Metadata.Category) > 0 {
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(draft.Metadata.Category, ", "))
	}
	if draft.Metadata.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", draft.Metadata.URL)
	}
	fmt.Fprintf(&b, "\nContent:\n%s", draft.Body)
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) pushDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.draftArg(req)
	if err != nil {
		return toolError(err)
	}
	res, err := s.engine.Push(ctx, id, nil)
	if err != nil {
		return toolError(err)
	}
	verb := "Created"
	if res.IsUpdate {
		verb = "Updated"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s server draft: %s%s", verb, res.URL, uploadsText(res.Uploads))), nil
}

func (s *Server) publishDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.draftArg(req)
	if err != nil {
		return toolError(err)
	}
	res, err := s.engine.Publish(ctx, id, nil)
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(publishedText(res)), nil
}

func (s *Server) publishBackdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.draftArg(req)
	if err != nil {
		return toolError(err)
	}
	raw, err := req.RequireString("date")
	if err != nil {
		return toolError(mperr.InvalidArgumentf("date is required"))
	}
	date, err := parseDate(raw)
	if err != nil {
		return toolError(err)
	}

	res, err := s.engine.BackdatePublish(ctx, id, date)
	if err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\nBackdated to %s", publishedText(res), date.Format(time.RFC3339))), nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, mperr.InvalidArgumentf("invalid date %q, use RFC 3339 like 2024-01-15T10:30:00Z", raw)
}

func (s *Server) deletePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil || strings.TrimSpace(url) == "" {
		return toolError(mperr.InvalidArgumentf("url is required"))
	}
	if err := s.engine.Delete(ctx, strings.TrimSpace(url), s.profile); err != nil {
		return toolError(err)
	}
	return mcp.NewToolResultText("Post deleted: " + url), nil
}

func (s *Server) whoami(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profile, cfg, err := s.engine.ServerConfig(ctx, s.profile)
	if err != nil {
		return toolError(err)
	}
	mediaEndpoint := profile.MediaEndpoint
	if mediaEndpoint == "" {
		mediaEndpoint = cfg.MediaEndpoint
	}
	if mediaEndpoint == "" {
		mediaEndpoint = "(not configured)"
	}

	var b strings.Builder
	b.WriteString("Authenticated as:\n")
	fmt.Fprintf(&b, "  Profile: %s\n", profile.Name)
	fmt.Fprintf(&b, "  Domain: %s\n", profile.Domain)
	fmt.Fprintf(&b, "  Micropub: %s\n", profile.MicropubEndpoint)
	fmt.Fprintf(&b, "  Media: %s\n", mediaEndpoint)
	for _, target := range cfg.SyndicateTo {
		fmt.Fprintf(&b, "  Syndicate to: %s (%s)\n", target.Name, target.UID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func page(req mcp.CallToolRequest, defLimit int) (int, int, error) {
	limit := req.GetInt("limit", defLimit)
	offset := req.GetInt("offset", 0)
	if limit <= 0 || offset < 0 {
		return 0, 0, mperr.InvalidArgumentf("limit must be positive and offset must not be negative")
	}
	return limit, offset, nil
}

func (s *Server) listPosts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit, offset, err := page(req, defaultPostLimit)
	if err != nil {
		return toolError(err)
	}
	posts, err := s.engine.ListPosts(ctx, s.profile, limit, offset)
	if err != nil {
		return toolError(err)
	}
	if len(posts) == 0 {
		return mcp.NewToolResultText("No posts found."), nil
	}

	var b strings.Builder
	b.WriteString("Posts:\n\n")
	for _, p := range posts {
		title := p.Name
		if title == "" {
			title = "[untitled]"
		}
		fmt.Fprintf(&b, "- %s (%s)\n", title, p.URL)
		if !p.Published.IsZero() {
			fmt.Fprintf(&b, "  Published: %s\n", p.Published.Format(time.RFC3339))
		}
		if p.Status != "" {
			fmt.Fprintf(&b, "  Status: %s\n", p.Status)
		}
		if p.Content != "" {
			fmt.Fprintf(&b, "  Preview: %s\n", preview(p.Content))
		}
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) listMedia(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit, offset, err := page(req, defaultMediaLimit)
	if err != nil {
		return toolError(err)
	}
	items, err := s.engine.ListMedia(ctx, s.profile, limit, offset)
	if err != nil {
		return toolError(err)
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("No media files found."), nil
	}

	var b strings.Builder
	b.WriteString("Media files:\n\n")
	for _, m := range items {
		fmt.Fprintf(&b, "- %s\n", m.URL)
		if m.MimeType != "" {
			fmt.Fprintf(&b, "  Type: %s\n", m.MimeType)
		}
		if !m.Published.IsZero() {
			fmt.Fprintf(&b, "  Uploaded: %s\n", m.Published.Format(time.RFC3339))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func publishedText(res *model.PublishResult) string {
	verb := "Published"
	if res.IsUpdate {
		verb = "Published server draft"
	}
	return fmt.Sprintf("%s: %s%s", verb, res.URL, uploadsText(res.Uploads))
}

func uploadsText(uploads []model.UploadResult) string {
	var b strings.Builder
	for _, u := range uploads {
		fmt.Fprintf(&b, "\nUploaded %s -> %s", u.Filename, u.URL)
	}
	return b.String()
}

// preview collapses whitespace and cuts s to previewLength runes.
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > previewLength {
		return string(r[:previewLength]) + "..."
	}
	return s
}
