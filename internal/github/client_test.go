package github

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/h2non/gock"
	"github.com/mmcdole/gofeed"

	"release_bot/internal/model"
)

const (
	testAPIBase  = "https://api.example.com"
	testAtomBase = "https://atom.example.com"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	httpClient := &http.Client{}
	gock.InterceptClient(httpClient)
	t.Cleanup(gock.Off)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := NewClientWithHTTP(httpClient, testAPIBase, testAtomBase, log)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestFetchLatest(t *testing.T) {
	c := newTestClient(t)

	gock.New(testAPIBase).
		Get("/api/v3/repos/alice/miner/releases/latest").
		Reply(200).
		JSON(map[string]any{
			"tag_name":     "v3.0",
			"name":         "Miner v3.0",
			"body":         "CUDA support added",
			"published_at": "2025-06-01T12:30:00Z",
			"assets": []map[string]any{
				{
					"name":                 "miner-linux.tar.gz",
					"browser_download_url": "https://example.com/miner-linux.tar.gz",
				},
			},
		})

	rel, err := c.FetchLatest(context.Background(), "alice/miner")
	if err != nil {
		t.Fatalf("fetch latest: %v", err)
	}

	published := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	want := &model.Release{
		RepoName:    "alice/miner",
		Tag:         "v3.0",
		Name:        "Miner v3.0",
		Body:        "CUDA support added",
		PublishedAt: &published,
		Assets: []model.Asset{
			{Name: "miner-linux.tar.gz", DownloadURL: "https://example.com/miner-linux.tar.gz"},
		},
	}
	if diff := cmp.Diff(want, rel); diff != "" {
		t.Errorf("release mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchLatestNotFound(t *testing.T) {
	c := newTestClient(t)

	gock.New(testAPIBase).
		Get("/api/v3/repos/alice/gone/releases/latest").
		Reply(404).
		JSON(map[string]any{"message": "Not Found"})

	_, err := c.FetchLatest(context.Background(), "alice/gone")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFetchLatestFallsBackToAtom(t *testing.T) {
	c := newTestClient(t)

	// Initial attempt plus two retries, all failing.
	gock.New(testAPIBase).
		Get("/api/v3/repos/alice/miner/releases/latest").
		Times(3).
		Reply(500).
		JSON(map[string]any{"message": "boom"})

	gock.New(testAtomBase).
		Get("/alice/miner/releases.atom").
		Reply(200).
		BodyString(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <id>tag:github.com,2008:https://github.com/alice/miner/releases</id>
  <title>Release notes from miner</title>
  <entry>
    <id>tag:github.com,2008:Repository/1/v3.0</id>
    <updated>2025-06-01T12:30:00Z</updated>
    <link rel="alternate" type="text/html" href="https://github.com/alice/miner/releases/tag/v3.0"/>
    <title>Miner v3.0</title>
    <content type="html">CUDA support added</content>
  </entry>
</feed>`)

	rel, err := c.FetchLatest(context.Background(), "alice/miner")
	if err != nil {
		t.Fatalf("fetch latest: %v", err)
	}
	if rel.Tag != "v3.0" {
		t.Errorf("Tag = %q, want v3.0", rel.Tag)
	}
	if rel.Name != "Miner v3.0" {
		t.Errorf("Name = %q, want Miner v3.0", rel.Name)
	}
	if rel.Body != "CUDA support added" {
		t.Errorf("Body = %q", rel.Body)
	}
	if rel.PublishedAt == nil {
		t.Error("PublishedAt not set")
	}
	if len(rel.Assets) != 0 {
		t.Errorf("atom entries carry no assets, got %v", rel.Assets)
	}
}

func TestFetchLatestAtomNotFound(t *testing.T) {
	c := newTestClient(t)

	gock.New(testAPIBase).
		Get("/api/v3/repos/alice/empty/releases/latest").
		Times(3).
		Reply(500).
		JSON(map[string]any{"message": "boom"})

	gock.New(testAtomBase).
		Get("/alice/empty/releases.atom").
		Reply(404)

	_, err := c.FetchLatest(context.Background(), "alice/empty")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSplitRepo(t *testing.T) {
	tests := []struct {
		in        string
		owner     string
		name      string
		wantError bool
	}{
		{in: "alice/miner", owner: "alice", name: "miner"},
		{in: "miner", wantError: true},
		{in: "alice/", wantError: true},
		{in: "/miner", wantError: true},
		{in: "a/b/c", wantError: true},
	}

	for _, tt := range tests {
		owner, name, err := splitRepo(tt.in)
		if tt.wantError {
			if err == nil {
				t.Errorf("splitRepo(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitRepo(%q): %v", tt.in, err)
			continue
		}
		if owner != tt.owner || name != tt.name {
			t.Errorf("splitRepo(%q) = %q, %q; want %q, %q", tt.in, owner, name, tt.owner, tt.name)
		}
	}
}

func TestTagFromEntry(t *testing.T) {
	tests := []struct {
		name string
		item *gofeed.Item
		want string
	}{
		{
			name: "from link",
			item: &gofeed.Item{Link: "https://github.com/alice/miner/releases/tag/v3.0"},
			want: "v3.0",
		},
		{
			name: "from guid",
			item: &gofeed.Item{GUID: "tag:github.com,2008:Repository/1/v3.0"},
			want: "v3.0",
		},
		{
			name: "link wins over guid",
			item: &gofeed.Item{
				Link: "https://github.com/alice/miner/releases/tag/v3.0",
				GUID: "tag:github.com,2008:Repository/1/other",
			},
			want: "v3.0",
		},
		{
			name: "empty entry",
			item: &gofeed.Item{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tagFromEntry(tt.item); got != tt.want {
				t.Errorf("tagFromEntry() = %q, want %q", got, tt.want)
			}
		})
	}
}
