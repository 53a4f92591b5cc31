package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	mperr "github.com/debemdeboas/micropub/internal/errors"
)

type promptSpec struct {
	name        string
	description string
	arg         string
	argHelp     string
	maxLen      int
	render      func(value string) (user, assistant string)
}

var prompts = []promptSpec{
	{
		name:        "quick-note",
		description: "Post a quick note or thought",
		arg:         "topic",
		argHelp:     "What the note is about",
		maxLen:      200,
		render: func(topic string) (string, string) {
			return "I want to post a quick note about: " + topic,
				fmt.Sprintf("I'll help you write a short note about %s. What would you like to say? When it reads right I'll publish it with publish_post.", topic)
		},
	},
	{
		name:        "photo-post",
		description: "Create a photo post with a caption",
		arg:         "subject",
		argHelp:     "What the photo shows",
		maxLen:      200,
		render: func(subject string) (string, string) {
			return "I want to share a photo of: " + subject,
				fmt.Sprintf("Let's make a photo post about %s. Give me the path of the image file and a caption. I'll create a draft with create_draft that embeds the image as ![caption](path), then publish it with publish_draft; the file is uploaded to your media endpoint first.", subject)
		},
	},
	{
		name:        "backdate-memory",
		description: "Record a past event with its original date",
		arg:         "memory",
		argHelp:     "The event or memory to record",
		maxLen:      300,
		render: func(memory string) (string, string) {
			return "I want to record this memory: " + memory,
				"When did it happen? I'll save it as a draft with create_draft and publish it with publish_backdate using that date."
		},
	},
}

func (s *Server) registerPrompts() {
	for _, p := range prompts {
		s.srv.AddPrompt(mcp.NewPrompt(p.name,
			mcp.WithPromptDescription(p.description),
			mcp.WithArgument(p.arg, mcp.ArgumentDescription(p.argHelp), mcp.RequiredArgument()),
		), p.handle)
	}
}

func (p promptSpec) handle(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	value := strings.TrimSpace(req.Params.Arguments[p.arg])
	if value == "" {
		return nil, mperr.InvalidArgumentf("%s cannot be empty", p.arg)
	}
	if len([]rune(value)) > p.maxLen {
		return nil, mperr.InvalidArgumentf("%s must be at most %d characters", p.arg, p.maxLen)
	}

	user, assistant := p.render(value)
	return mcp.NewGetPromptResult(p.description, []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(user)),
		mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(assistant)),
	}), nil
}
