package signaloid

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

var githubURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)

// VerifyRepository checks through the platform's GitHub proxy that the
// repository exists and has a src directory at its root, which the build
// service requires.
func (c *Client) VerifyRepository(ctx context.Context, repoURL string) error {
	match := githubURLPattern.FindStringSubmatch(repoURL)
	if match == nil {
		return fmt.Errorf("invalid GitHub URL format %q, expected: https://github.com/username/reponame", repoURL)
	}
	username := match[1]
	repoName := strings.TrimSuffix(match[2], ".git")

	proxyURL := fmt.Sprintf("%s/proxy/github/repos/%s/%s", c.baseURL, username, repoName)
	if err := c.doJSON(ctx, http.MethodGet, proxyURL, "repository verification", nil, nil); err != nil {
		return err
	}

	var contents []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	contentsURL := proxyURL + "/contents"
	if err := c.doJSON(ctx, http.MethodGet, contentsURL, "repository contents verification", nil, &contents); err != nil {
		return err
	}
	for _, item := range contents {
		if item.Name == "src" && item.Type == "dir" {
			return nil
		}
	}
	return fmt.Errorf("repository %s/%s does not have a 'src' directory in the root", username, repoName)
}
