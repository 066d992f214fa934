package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Error taxonomy for repository access. Handlers map these to status codes.
var (
	ErrInvalidRepoURL      = errors.New("invalid GitHub repository URL")
	ErrAuthExpired         = errors.New("GitHub token expired or invalid")
	ErrUpstreamUnavailable = errors.New("GitHub API unavailable")
)

// RepoRef identifies a repository by owner and name.
type RepoRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r RepoRef) String() string {
	return r.Owner + "/" + r.Name
}

var repoURLPattern = regexp.MustCompile(`github\.com/([^/\s]+)/([^/\s]+)`)

// ParseRepoURL extracts the owner/name pair from a GitHub repository URL.
func ParseRepoURL(url string) (RepoRef, error) {
	match := repoURLPattern.FindStringSubmatch(url)
	if match == nil {
		return RepoRef{}, ErrInvalidRepoURL
	}
	return RepoRef{Owner: match[1], Name: match[2]}, nil
}

// Client talks to the GitHub REST API. The token is optional: deep scans
// carry the caller's token, the shallow README path goes unauthenticated.
type Client struct {
	apiBase    string
	rawBase    string
	token      string
	httpClient *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		apiBase: "https://api.github.com",
		rawBase: "https://raw.githubusercontent.com",
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "RepoViral-Agent")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.httpClient.Do(req)
}

// DefaultBranch fetches the repository's default branch name.
func (c *Client) DefaultBranch(ctx context.Context, ref RepoRef) (string, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/repos/%s/%s", c.apiBase, ref.Owner, ref.Name))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: repository info returned status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var info struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if info.DefaultBranch == "" {
		return "main", nil
	}
	return info.DefaultBranch, nil
}

// Tree returns the paths of all blob entries in the recursive tree of the
// given branch, in API order.
func (c *Client) Tree(ctx context.Context, ref RepoRef, branch string) ([]string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", c.apiBase, ref.Owner, ref.Name, branch)
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrAuthExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: file tree returned status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var tree struct {
		Tree []struct {
			Path string `json:"path"`
			Type string `json:"type"`
		} `json:"tree"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	var files []string
	for _, entry := range tree.Tree {
		if entry.Type == "blob" {
			files = append(files, entry.Path)
		}
	}
	return files, nil
}

// FileContent fetches and decodes a single file. Scanning must survive
// missing or undecodable files, so every failure reports absence instead
// of an error.
func (c *Client) FileContent(ctx context.Context, ref RepoRef, path string) (string, bool) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.apiBase, ref.Owner, ref.Name, path)
	resp, err := c.get(ctx, url)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var data struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", false
	}
	if data.Encoding != "base64" {
		return "", false
	}
	return decodeBase64(data.Content)
}

// Readme fetches the repository README via the metadata API, falling back
// to the raw content mirror on the two conventional branch names. Returns
// an empty string when nothing could be fetched.
func (c *Client) Readme(ctx context.Context, ref RepoRef) string {
	resp, err := c.get(ctx, fmt.Sprintf("%s/repos/%s/%s/readme", c.apiBase, ref.Owner, ref.Name))
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			var data struct {
				Content     string `json:"content"`
				Encoding    string `json:"encoding"`
				DownloadURL string `json:"download_url"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&data); err == nil {
				if data.Encoding == "base64" {
					if content, ok := decodeBase64(data.Content); ok {
						return content
					}
				}
				if data.DownloadURL != "" {
					if content, ok := c.fetchRaw(ctx, data.DownloadURL); ok {
						return content
					}
				}
			}
		}
	}

	// API failed (404, rate limit, network) - try the raw mirror
	for _, branch := range []string{"main", "master"} {
		url := fmt.Sprintf("%s/%s/%s/%s/README.md", c.rawBase, ref.Owner, ref.Name, branch)
		if content, ok := c.fetchRaw(ctx, url); ok {
			return content
		}
	}
	return ""
}

func (c *Client) fetchRaw(ctx context.Context, url string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", "RepoViral-Agent")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false
	}
	return string(body), true
}

// decodeBase64 handles the newline-wrapped base64 payloads the contents
// API returns.
func decodeBase64(s string) (string, bool) {
	s = strings.ReplaceAll(s, "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}
