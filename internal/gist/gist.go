// Package gist reads and writes the snapshot file stored in a GitHub gist
// and validates the credentials and URLs used to reach it.
//
// The remote API surface is two calls:
//
//	GET   {base}/gists/{id}   -> files["tasks.json"].content
//	PATCH {base}/gists/{id}   Authorization: token <credential>
//	                          {"files": {"tasks.json": {"content": "..."}}}
//
// Credentials are checked against the accepted formats before any request
// is made; a malformed credential never reaches the network.
package gist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the GitHub REST API root.
const DefaultBaseURL = "https://api.github.com"

// FileName is the gist file holding the encoded snapshot.
const FileName = "tasks.json"

// APITimeout bounds a single remote call.
const APITimeout = 30 * time.Second

var (
	// ErrNetwork is returned for transport failures and non-2xx responses.
	ErrNetwork = errors.New("network failure")

	// ErrFileMissing is returned when the gist has no tasks.json file.
	ErrFileMissing = errors.New("gist file missing")

	// ErrInvalidToken is returned when a write is attempted with a
	// credential that does not match any accepted format.
	ErrInvalidToken = errors.New("invalid GitHub token format")
)

var (
	tokenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[a-zA-Z0-9]{40}$`),
		regexp.MustCompile(`^ghp_[A-Za-z0-9]{36}$`),
		regexp.MustCompile(`^github_pat_[a-zA-Z0-9_]{75}$`),
	}

	gistURLPattern = regexp.MustCompile(`gist\.github\.com/.*/([a-zA-Z0-9]{32})`)
	gistIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9]{32}$`)
)

// ValidToken reports whether token matches one of the accepted formats:
// a 40-character alphanumeric classic token, ghp_ plus 36 alphanumerics,
// or github_pat_ plus 75 alphanumerics or underscores.
func ValidToken(token string) bool {
	for _, p := range tokenPatterns {
		if p.MatchString(token) {
			return true
		}
	}
	return false
}

// IDFromURL extracts the gist id from a gist.github.com/<user>/<id> URL.
func IDFromURL(url string) (string, bool) {
	m := gistURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseID accepts either a bare gist id or a gist URL.
func ParseID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if gistIDPattern.MatchString(s) {
		return s, true
	}
	return IDFromURL(s)
}

// Config holds client configuration.
type Config struct {
	// BaseURL of the REST API (default DefaultBaseURL).
	BaseURL string

	// HTTPClient is the base transport (default http.DefaultClient).
	HTTPClient *http.Client

	// Logger for client messages (nil = default logger)
	Logger *log.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{BaseURL: DefaultBaseURL}
}

// Client talks to the gist API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// New creates a Client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[gist] ", log.LstdFlags)
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http:    config.HTTPClient,
		logger:  config.Logger,
	}
}

// authorized returns an HTTP client that sends "Authorization: token <t>".
func (c *Client) authorized(ctx context.Context, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "token",
	}))
}

type gistFile struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
	RawURL    string `json:"raw_url,omitempty"`
}

type gistDoc struct {
	Files map[string]*gistFile `json:"files"`
}

// ReadFile returns the content of tasks.json in gist id. A valid token,
// when given, authenticates the read so private gists work.
func (c *Client) ReadFile(ctx context.Context, id, token string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	client := c.http
	if ValidToken(token) {
		client = c.authorized(ctx, token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gistURL(id), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	body, err := c.do(client, req)
	if err != nil {
		return "", fmt.Errorf("failed to read gist %s: %w", id, err)
	}

	var doc gistDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("%w: invalid gist response: %w", ErrNetwork, err)
	}
	file, ok := doc.Files[FileName]
	if !ok || file == nil {
		return "", fmt.Errorf("gist %s: %w: %s", id, ErrFileMissing, FileName)
	}

	// The API inlines at most 1MB of content; larger files are fetched raw.
	if file.Truncated && file.RawURL != "" {
		raw, err := c.fetch(ctx, client, file.RawURL)
		if err != nil {
			return "", fmt.Errorf("failed to read truncated gist %s: %w", id, err)
		}
		return string(raw), nil
	}
	return file.Content, nil
}

// WriteFile replaces tasks.json in gist id with content.
func (c *Client) WriteFile(ctx context.Context, id, token, content string) error {
	if !ValidToken(token) {
		return ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	payload, err := json.Marshal(gistDoc{Files: map[string]*gistFile{
		FileName: {Content: content},
	}})
	if err != nil {
		return fmt.Errorf("failed to encode gist update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.gistURL(id), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(c.authorized(ctx, token), req); err != nil {
		return fmt.Errorf("failed to update gist %s: %w", id, err)
	}
	c.logger.Printf("Updated gist %s (%d bytes)", id, len(content))
	return nil
}

// FetchURL downloads an arbitrary URL, used for imports from a link.
func (c *Client) FetchURL(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	body, err := c.fetch(ctx, c.http, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return body, nil
}

func (c *Client) fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(client, req)
}

func (c *Client) gistURL(id string) string {
	return c.baseURL + "/gists/" + id
}

// do sends req and returns the body of a 2xx response. Anything else is
// reported as ErrNetwork.
func (c *Client) do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s %s: %s", ErrNetwork, req.Method, req.URL.Redacted(), resp.Status)
	}
	return body, nil
}
