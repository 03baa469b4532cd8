// Package github fetches the latest release of a repository.
//
// The primary path is the GitHub REST API via go-github, behind an
// ETag-caching transport and a secondary-rate-limit middleware. When the
// REST call fails transiently the client falls back to the public
// releases.atom feed, which needs no authentication.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"github.com/sethvargo/go-retry"

	"release_bot/internal/model"
)

// ErrNotFound signals that the repository does not exist or has no releases.
var ErrNotFound = errors.New("repository or release not found")

const (
	requestTimeout = 20 * time.Second
	maxRetries     = 2
	retryDelay     = 1 * time.Second
	minRateWait    = time.Minute
)

// Client fetches release metadata from GitHub.
type Client struct {
	gh   *gh.Client
	atom *atomSource
	log  *slog.Logger
}

// NewClient creates a Client with the production transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (sleeps on secondary rate limits)
//  3. go-github with optional token auth for higher rate limits
func NewClient(token string, log *slog.Logger) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)

	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{
		gh:   client,
		atom: newAtomSource(http.DefaultClient),
		log:  log,
	}
}

// NewClientWithHTTP creates a Client over a custom http.Client and API base
// URL. Intended for testing.
func NewClientWithHTTP(httpClient *http.Client, baseURL, atomBaseURL string, log *slog.Logger) (*Client, error) {
	client, err := gh.NewClient(httpClient).WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return nil, fmt.Errorf("set base URL: %w", err)
	}

	atom := newAtomSource(httpClient)
	if atomBaseURL != "" {
		atom.baseURL = atomBaseURL
	}

	return &Client{gh: client, atom: atom, log: log}, nil
}

// FetchLatest returns the latest release of an owner/name repository.
//
// Transient errors are retried with a bounded backoff, then the atom feed
// is tried before giving up. A missing repository or a repository without
// releases yields ErrNotFound.
func (c *Client) FetchLatest(ctx context.Context, repo string) (*model.Release, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	var release *gh.RepositoryRelease
	backoff := retry.WithMaxRetries(maxRetries, retry.NewConstant(retryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		rel, _, err := c.gh.Repositories.GetLatestRelease(attemptCtx, owner, name)
		if err != nil {
			return c.classify(ctx, repo, err)
		}
		release = rel
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		c.log.Warn("api fetch failed, trying atom feed", "repo", repo, "error", err)
		return c.atom.fetchLatest(ctx, repo)
	}

	return mapRelease(repo, release), nil
}

// classify turns a go-github error into a retry decision. Primary rate
// limits sleep until the reset time (bounded by ctx) before retrying.
func (c *Client) classify(ctx context.Context, repo string, err error) error {
	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil &&
		errResp.Response.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		wait := time.Until(rateErr.Rate.Reset.Time)
		if wait < minRateWait {
			wait = minRateWait
		}
		c.log.Warn("rate limited, waiting for reset", "repo", repo, "wait", wait)
		select {
		case <-time.After(wait):
			return retry.RetryableError(err)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return retry.RetryableError(fmt.Errorf("fetch latest release: %w", err))
}

func mapRelease(repo string, rel *gh.RepositoryRelease) *model.Release {
	out := &model.Release{
		RepoName: repo,
		Tag:      rel.GetTagName(),
		Name:     rel.GetName(),
		Body:     rel.GetBody(),
	}
	if rel.PublishedAt != nil {
		t := rel.PublishedAt.Time.UTC()
		out.PublishedAt = &t
	}
	for _, a := range rel.Assets {
		out.Assets = append(out.Assets, model.Asset{
			Name:        a.GetName(),
			DownloadURL: a.GetBrowserDownloadURL(),
		})
	}
	return out
}

func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q, want owner/name", repo)
	}
	return parts[0], parts[1], nil
}
