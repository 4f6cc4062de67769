// Package youtube talks to the video catalog used to find videos and to
// resolve their titles and durations before they are queued.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
)

// maxLookupIDs is the most ids the videos endpoint accepts per request.
const maxLookupIDs = 50

// Video is the catalog data needed to queue a video.
type Video struct {
	ID          string
	Title       string
	Description string
	Duration    string // ISO-8601, e.g. "PT4M13S"
}

// Client queries the catalog API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient returns a client for baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Search returns the raw search response for query.
func (c *Client) Search(ctx context.Context, query string) ([]byte, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("maxResults", "25")
	q.Set("q", query)
	return c.get(ctx, "search", q)
}

type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// Lookup resolves ids to catalog videos.  Unknown ids are left out of the
// result; duplicates are looked up once.
func (c *Client) Lookup(ctx context.Context, ids []string) ([]Video, error) {
	ids = lo.Uniq(lo.Compact(lo.Map(ids, func(id string, _ int) string { return strings.TrimSpace(id) })))
	out := make([]Video, 0, len(ids))
	for _, chunk := range lo.Chunk(ids, maxLookupIDs) {
		q := url.Values{}
		q.Set("part", "snippet,contentDetails")
		q.Set("id", strings.Join(chunk, ","))
		body, err := c.get(ctx, "videos", q)
		if err != nil {
			return nil, err
		}
		var resp videosResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode videos: %w", err)
		}
		for _, it := range resp.Items {
			out = append(out, Video{
				ID:          it.ID,
				Title:       it.Snippet.Title,
				Description: it.Snippet.Description,
				Duration:    it.ContentDetails.Duration,
			})
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	q.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("catalog %s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("catalog %s: unexpected status %d", path, resp.StatusCode)
	}
	return body, nil
}
