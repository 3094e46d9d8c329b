// Package github looks up a user's public repositories on GitHub.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/patrickmn/go-cache"

	"github.com/devlink/apiserver/config"
)

// RepoLimit is the number of repositories returned per lookup.
const RepoLimit = 5

const maxResponseBytes = 1 << 20

// ErrNotFound is returned when GitHub has no such user or refuses the lookup.
var ErrNotFound = errors.New("github profile not found")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)

// Lookup results reported to the observer.
const (
	ResultHit      = "cache_hit"
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Repo is the subset of a GitHub repository returned to callers.
type Repo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	HTMLURL     string    `json:"html_url"`
	Description string    `json:"description"`
	Language    string    `json:"language"`
	Stars       int       `json:"stargazers_count"`
	Watchers    int       `json:"watchers_count"`
	Forks       int       `json:"forks_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Client fetches repositories with a bounded timeout and caches results
// per username.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	cache    *cache.Cache
	observer func(result string)
}

type Option func(*Client)

// WithHTTPClient replaces the SSRF-guarded default client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithObserver registers a callback that receives the result of every lookup.
func WithObserver(fn func(result string)) Option {
	return func(c *Client) {
		c.observer = fn
	}
}

func New(cfg config.GitHubConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	safeConfig := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	c := &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		http:     safeurl.Client(safeConfig).Client,
		cache:    cache.New(ttl, 2*ttl),
		observer: func(string) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Repos returns up to RepoLimit public repositories of username, oldest first.
func (c *Client) Repos(ctx context.Context, username string) ([]Repo, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		c.observer(ResultNotFound)
		return nil, ErrNotFound
	}

	key := strings.ToLower(username)
	if cached, ok := c.cache.Get(key); ok {
		c.observer(ResultHit)
		return cached.([]Repo), nil
	}

	repos, err := c.fetch(ctx, username)
	switch {
	case errors.Is(err, ErrNotFound):
		c.observer(ResultNotFound)
		return nil, err
	case err != nil:
		c.observer(ResultError)
		return nil, err
	}

	c.cache.SetDefault(key, repos)
	c.observer(ResultOK)
	return repos, nil
}

func (c *Client) fetch(ctx context.Context, username string) ([]Repo, error) {
	query := url.Values{}
	query.Set("per_page", fmt.Sprint(RepoLimit))
	query.Set("sort", "created")
	query.Set("direction", "asc")
	endpoint := fmt.Sprintf("%s/users/%s/repos?%s", c.baseURL, url.PathEscape(username), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "devlink-apiserver")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, ErrNotFound
	}

	var repos []Repo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&repos); err != nil {
		return nil, fmt.Errorf("decode github response: %w", err)
	}
	if len(repos) > RepoLimit {
		repos = repos[:RepoLimit]
	}
	if repos == nil {
		repos = []Repo{}
	}
	return repos, nil
}
