// Package signaloid is a client for the Signaloid Cloud Developer
// Platform build API. It connects a repository, creates a build for one
// of the C0-microSD core variants, polls until the build finishes, and
// downloads the resulting binary.
package signaloid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/afero"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.signaloid.io"

// DefaultCore is the core variant used when none is specified.
const DefaultCore = "C0-microSD-N"

// AvailableCores maps core variant names to their platform core IDs.
var AvailableCores = map[string]string{
	"C0-microSD-XS":  "cor_808bbbb9932c5d29a58370a1ec9a859f",
	"C0-microSD-XS+": "cor_3d8dfc5d4f305e16b867716fe6aba1e9",
	"C0-microSD-N":   "cor_271d544c73a8544d9026252652342972",
	"C0-microSD-N+":  "cor_c1cde893b0d75bb6a8941e9caf90f2a6",
}

// Build statuses reported by the platform.
const (
	StatusCompleted = "Completed"
	StatusStopped   = "Stopped"
	StatusCancelled = "Cancelled"
	StatusFailed    = "Failed"
)

// Client talks to the Signaloid API. The API key is sent verbatim in the
// Authorization header on every request.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	fs           afero.Fs
	log          logr.Logger
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, typically for testing.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the HTTP client used for all requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithFs overrides the filesystem downloaded binaries are written to.
func WithFs(fs afero.Fs) Option {
	return func(c *Client) { c.fs = fs }
}

// WithLogger routes progress output through the given logger.
func WithLogger(log logr.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithPollInterval overrides the delay between build status checks.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewClient returns a Client authenticated with the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		httpClient:   http.DefaultClient,
		fs:           afero.NewOsFs(),
		log:          logr.Discard(),
		pollInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doJSON issues one API request and decodes the JSON response into out.
// A non-2xx status is returned as an *APIError tagged with action.
func (c *Client) doJSON(ctx context.Context, method, url, action string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", action, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", action, err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return &APIError{Action: action, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	return nil
}

// CreateBuild starts a build of repoID on the given core and returns the
// build ID. branch may be empty to use the repository default.
func (c *Client) CreateBuild(ctx context.Context, repoID, coreID, branch string) (string, error) {
	request := map[string]interface{}{
		"CoreID":         coreID,
		"TraceVariables": []string{},
		"DataSources":    []string{},
		"Arguments":      "",
	}
	if branch != "" {
		request["Branch"] = branch
	}

	var response struct {
		BuildID string `json:"BuildID"`
	}
	url := fmt.Sprintf("%s/repositories/%s/builds", c.baseURL, repoID)
	if err := c.doJSON(ctx, http.MethodPost, url, "build creation", request, &response); err != nil {
		return "", err
	}
	return response.BuildID, nil
}

// BuildStatus returns the current status of a build.
func (c *Client) BuildStatus(ctx context.Context, buildID string) (string, error) {
	var response struct {
		Status string `json:"Status"`
	}
	url := fmt.Sprintf("%s/builds/%s", c.baseURL, buildID)
	if err := c.doJSON(ctx, http.MethodGet, url, "build status check", nil, &response); err != nil {
		return "", err
	}
	if response.Status == "" {
		return "Unknown", nil
	}
	return response.Status, nil
}

// BinaryURL returns the pre-signed download URL for a build's binary.
func (c *Client) BinaryURL(ctx context.Context, buildID string) (string, error) {
	var response struct {
		URL string `json:"url"`
	}
	url := fmt.Sprintf("%s/builds/%s/binary", c.baseURL, buildID)
	if err := c.doJSON(ctx, http.MethodGet, url, "binary download", nil, &response); err != nil {
		return "", err
	}
	return response.URL, nil
}

// BuildOutputs returns the pre-signed URL for a build's output log.
func (c *Client) BuildOutputs(ctx context.Context, buildID string) (string, error) {
	var response struct {
		Build string `json:"Build"`
	}
	url := fmt.Sprintf("%s/builds/%s/outputs", c.baseURL, buildID)
	if err := c.doJSON(ctx, http.MethodGet, url, "build outputs retrieval", nil, &response); err != nil {
		return "", err
	}
	if response.Build == "" {
		return "", fmt.Errorf("no build output URL found in response")
	}
	return response.Build, nil
}

// ConnectRepository registers a GitHub repository with the platform and
// returns its Signaloid repository ID.
func (c *Client) ConnectRepository(ctx context.Context, repoURL, branch string) (string, error) {
	if branch == "" {
		branch = "main"
	}
	request := map[string]string{
		"RemoteURL":      repoURL,
		"Commit":         "HEAD",
		"BuildDirectory": "src",
		"Arguments":      "",
		"Branch":         branch,
	}

	var response struct {
		RepositoryID string `json:"RepositoryID"`
	}
	url := fmt.Sprintf("%s/repositories", c.baseURL)
	if err := c.doJSON(ctx, http.MethodPost, url, "repository connection", request, &response); err != nil {
		return "", err
	}
	if response.RepositoryID == "" {
		return "", fmt.Errorf("repository connected but no repository ID returned")
	}
	return response.RepositoryID, nil
}

// UpdateRepository switches the repository's build branch.
func (c *Client) UpdateRepository(ctx context.Context, repoID, branch string) error {
	if branch == "" {
		return nil
	}
	request := map[string]string{"Branch": branch}
	url := fmt.Sprintf("%s/repositories/%s", c.baseURL, repoID)
	return c.doJSON(ctx, http.MethodPatch, url, "repository update", request, nil)
}

// WaitForBuild polls the build status until it completes or fails. A
// terminal failure status is returned as a *BuildFailedError carrying the
// build output log when one is available.
func (c *Client) WaitForBuild(ctx context.Context, buildID string) error {
	lastStatus := ""
	for {
		status, err := c.BuildStatus(ctx, buildID)
		if err != nil {
			return err
		}
		if status != lastStatus {
			c.log.Info("build status", "buildID", buildID, "status", status)
			lastStatus = status
		}

		switch status {
		case StatusCompleted:
			return nil
		case StatusStopped, StatusCancelled, StatusFailed:
			failure := &BuildFailedError{BuildID: buildID, Status: status}
			if outputURL, outErr := c.BuildOutputs(ctx, buildID); outErr == nil {
				failure.Output, _ = c.fetch(ctx, outputURL)
			}
			return failure
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// DownloadBinary fetches a pre-signed URL and writes the payload to path.
func (c *Client) DownloadBinary(ctx context.Context, url, path string) error {
	data, err := c.fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(c.fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write binary: %w", err)
	}
	return nil
}

// fetch issues an unauthenticated GET, as used for pre-signed URLs.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return nil, &APIError{Action: "download", StatusCode: resp.StatusCode, Body: string(data)}
	}
	return io.ReadAll(resp.Body)
}
