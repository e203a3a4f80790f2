package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
)

const hnBaseURL = "https://hacker-news.firebaseio.com/v0"

// Story is one Hacker News front-page item.
type Story struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Score    int    `json:"score"`
	Comments int    `json:"descendants"`
}

// HackerNewsClient fetches top stories from the Hacker News Firebase API.
type HackerNewsClient struct {
	baseURL string
	http    *http.Client
}

// NewHackerNewsClient creates a client against the public API.
func NewHackerNewsClient() *HackerNewsClient {
	return &HackerNewsClient{baseURL: hnBaseURL, http: &http.Client{}}
}

// TopStories returns up to limit front-page stories in rank order.
func (c *HackerNewsClient) TopStories(ctx context.Context, limit int) ([]Story, error) {
	body, err := fetchJSON(ctx, c.http, c.baseURL+"/topstories.json")
	if err != nil {
		return nil, fmt.Errorf("hackernews: top story ids: %w", err)
	}
	var ids []int64
	if err := json.Unmarshal(body, &ids); err != nil {
		return nil, fmt.Errorf("hackernews: decode story ids: %w", err)
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	stories := make([]Story, 0, len(ids))
	for _, id := range ids {
		body, err := fetchJSON(ctx, c.http, fmt.Sprintf("%s/item/%d.json", c.baseURL, id))
		if err != nil {
			return nil, fmt.Errorf("hackernews: item %d: %w", id, err)
		}
		var story Story
		if err := json.Unmarshal(body, &story); err != nil {
			return nil, fmt.Errorf("hackernews: decode item %d: %w", id, err)
		}
		if story.Title == "" {
			continue
		}
		story.ID = id
		if story.URL == "" {
			story.URL = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", id)
		}
		stories = append(stories, story)
	}
	return stories, nil
}

// Digest renders the top stories as an HTML message.
func (c *HackerNewsClient) Digest(ctx context.Context, limit int) (string, error) {
	stories, err := c.TopStories(ctx, limit)
	if err != nil {
		return "", err
	}
	if len(stories) == 0 {
		return "📰 <b>Hacker News</b>\n\nNo stories available.", nil
	}

	lines := []string{"📰 <b>Hacker News - Top Stories</b>\n"}
	for i, s := range stories {
		lines = append(lines, fmt.Sprintf("%d. <a href='%s'>%s</a>\n   ⬆️ %d points • 💬 %d comments\n",
			i+1, html.EscapeString(s.URL), html.EscapeString(s.Title), s.Score, s.Comments))
	}
	return strings.Join(lines, "\n"), nil
}

// fetchJSON is the shared GET helper for the public digest APIs.
func fetchJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
