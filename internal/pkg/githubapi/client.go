package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/remixhub/remixhub-api/internal/pkg/upstream"
)

const userAgent = "RemixHub"

// Config holds GitHub API configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a thin client for the GitHub Git object API. Tokens are passed
// per call because a single remix may span two accounts (source and
// destination credentials).
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Repository is the subset of the repository resource the copier needs.
type Repository struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

// Tree is a recursive git tree listing.
type Tree struct {
	SHA       string     `json:"sha"`
	Tree      []TreeItem `json:"tree"`
	Truncated bool       `json:"truncated"`
}

// TreeItem is one entry of a tree listing.
type TreeItem struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size,omitempty"`
	URL  string `json:"url"`
}

// Blob is a git blob object.
type Blob struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// TreeEntry is one entry of a tree creation request.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// NewClient creates a GitHub API client. Network failures and 5xx responses
// are retried once with backoff; 4xx responses are never retried.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil

	return &Client{
		httpClient: rc.StandardClient(),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, token, owner, repo string) (*Repository, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, owner, repo)
	var out Repository
	if err := c.do(ctx, token, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTreeRecursive fetches the full tree of the given ref.
func (c *Client) GetTreeRecursive(ctx context.Context, token, owner, repo, ref string) (*Tree, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", c.baseURL, owner, repo, ref)
	var out Tree
	if err := c.do(ctx, token, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBlob fetches a blob by its full API URL, as returned in tree listings.
func (c *Client) GetBlob(ctx context.Context, token, blobURL string) (*Blob, error) {
	var out Blob
	if err := c.do(ctx, token, http.MethodGet, blobURL, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateBlob creates a blob and returns its sha.
func (c *Client) CreateBlob(ctx context.Context, token, owner, repo, content, encoding string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/git/blobs", c.baseURL, owner, repo)
	body := map[string]string{"content": content, "encoding": encoding}
	var out struct {
		SHA string `json:"sha"`
	}
	if err := c.do(ctx, token, http.MethodPost, url, body, &out); err != nil {
		return "", err
	}
	return out.SHA, nil
}

// CreateTree creates a tree object with no base tree and returns its sha.
func (c *Client) CreateTree(ctx context.Context, token, owner, repo string, entries []TreeEntry) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/git/trees", c.baseURL, owner, repo)
	body := map[string]interface{}{"tree": entries}
	var out struct {
		SHA string `json:"sha"`
	}
	if err := c.do(ctx, token, http.MethodPost, url, body, &out); err != nil {
		return "", err
	}
	return out.SHA, nil
}

// CreateCommit creates a parentless commit pointing at treeSHA and returns
// its sha.
func (c *Client) CreateCommit(ctx context.Context, token, owner, repo, message, treeSHA string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/git/commits", c.baseURL, owner, repo)
	body := map[string]string{"message": message, "tree": treeSHA}
	var out struct {
		SHA string `json:"sha"`
	}
	if err := c.do(ctx, token, http.MethodPost, url, body, &out); err != nil {
		return "", err
	}
	return out.SHA, nil
}

// UpdateRef moves refs/heads/{branch} to sha.
func (c *Client) UpdateRef(ctx context.Context, token, owner, repo, branch, sha string, force bool) error {
	url := fmt.Sprintf("%s/repos/%s/%s/git/refs/heads/%s", c.baseURL, owner, repo, branch)
	body := map[string]interface{}{"sha": sha, "force": force}
	return c.do(ctx, token, http.MethodPatch, url, body, nil)
}

// CreateUserRepository creates a repository under the authenticated user.
func (c *Client) CreateUserRepository(ctx context.Context, token, name string, private, autoInit bool) error {
	url := c.baseURL + "/user/repos"
	body := map[string]interface{}{"name": name, "private": private, "auto_init": autoInit}
	return c.do(ctx, token, http.MethodPost, url, body, nil)
}

func (c *Client) do(ctx context.Context, token, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode github request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("github api call failed: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github api call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("github api call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &upstream.Error{Service: "github", StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse github response: %w", err)
	}
	return nil
}
