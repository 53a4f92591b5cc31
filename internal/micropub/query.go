package micropub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/debemdeboas/micropub/internal/model"
)

type SyndicationTarget struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// ServerConfig is the reply to q=config.
type ServerConfig struct {
	MediaEndpoint string              `json:"media-endpoint"`
	SyndicateTo   []SyndicationTarget `json:"syndicate-to"`
}

func (c *Client) Config(ctx context.Context) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := c.get(ctx, c.endpoint, pageParams("config", 0, 0), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type sourceItem struct {
	Type       []string                     `json:"type"`
	Properties map[string][]json.RawMessage `json:"properties"`
}

// Source lists posts with q=source, newest first as the server returns them.
func (c *Client) Source(ctx context.Context, limit, offset int) ([]model.RemotePost, error) {
	var reply struct {
		Items []sourceItem `json:"items"`
	}
	if err := c.get(ctx, c.endpoint, pageParams("source", limit, offset), &reply); err != nil {
		return nil, err
	}

	posts := make([]model.RemotePost, 0, len(reply.Items))
	for _, item := range reply.Items {
		post := model.RemotePost{
			URL:     firstString(item.Properties["url"]),
			Name:    firstString(item.Properties["name"]),
			Content: firstString(item.Properties["content"]),
			Status:  firstString(item.Properties["post-status"]),
		}
		if ts := firstString(item.Properties["published"]); ts != "" {
			post.Published, _ = time.Parse(time.RFC3339, ts)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// MediaSource lists files on a media endpoint with q=source.
func (c *Client) MediaSource(ctx context.Context, mediaEndpoint string, limit, offset int) ([]model.RemoteMedia, error) {
	var reply struct {
		Items []struct {
			URL       string `json:"url"`
			Published string `json:"published"`
			MimeType  string `json:"mime_type"`
		} `json:"items"`
	}
	if err := c.get(ctx, mediaEndpoint, pageParams("source", limit, offset), &reply); err != nil {
		return nil, err
	}

	items := make([]model.RemoteMedia, 0, len(reply.Items))
	for _, it := range reply.Items {
		m := model.RemoteMedia{URL: it.URL, MimeType: it.MimeType}
		if it.Published != "" {
			m.Published, _ = time.Parse(time.RFC3339, it.Published)
		}
		items = append(items, m)
	}
	return items, nil
}

// firstString returns the first value of a property as text. Content may be
// an object with "value" or "html".
func firstString(values []json.RawMessage) string {
	if len(values) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(values[0], &s) == nil {
		return s
	}

	var obj struct {
		Value string `json:"value"`
		HTML  string `json:"html"`
	}
	if json.Unmarshal(values[0], &obj) == nil {
		if obj.Value != "" {
			return obj.Value
		}
		return obj.HTML
	}
	return ""
}
