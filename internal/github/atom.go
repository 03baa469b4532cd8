package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"release_bot/internal/model"
)

const maxFeedSize = 5 * 1024 * 1024

// atomSource reads a repository's public releases.atom feed. GitHub serves
// it without authentication, which makes it a usable fallback when the
// REST API is unavailable. Atom entries carry no downloadable assets.
type atomSource struct {
	client  *http.Client
	baseURL string
}

func newAtomSource(client *http.Client) *atomSource {
	return &atomSource{
		client:  client,
		baseURL: "https://github.com",
	}
}

func (a *atomSource) fetchLatest(ctx context.Context, repo string) (*model.Release, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/releases.atom", a.baseURL, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "ReleaseNotifyBot/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	if len(feed.Items) == 0 {
		return nil, ErrNotFound
	}

	item := feed.Items[0]
	rel := &model.Release{
		RepoName: repo,
		Tag:      tagFromEntry(item),
		Name:     item.Title,
		Body:     item.Content,
	}
	if rel.Body == "" {
		rel.Body = item.Description
	}
	if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		rel.PublishedAt = &t
	}
	if rel.Tag == "" {
		return nil, fmt.Errorf("no tag in atom entry for %s", repo)
	}
	return rel, nil
}

// tagFromEntry extracts the release tag from an atom entry. The entry link
// has the form .../releases/tag/<tag>; the entry ID ends with /<tag> as a
// fallback.
func tagFromEntry(item *gofeed.Item) string {
	if item.Link != "" {
		if _, tag, ok := strings.Cut(item.Link, "/releases/tag/"); ok {
			return tag
		}
	}
	if item.GUID != "" {
		if i := strings.LastIndex(item.GUID, "/"); i >= 0 && i < len(item.GUID)-1 {
			return item.GUID[i+1:]
		}
	}
	return ""
}
