package signaloid

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DefaultOutputPath is where DownloadCore saves the binary when the
// request does not name a path.
const DefaultOutputPath = "buildArtifacts.tar.gz"

// DownloadRequest describes one end-to-end core download. Exactly one of
// RepositoryID and RepositoryURL must be set.
type DownloadRequest struct {
	// RepositoryID is an existing Signaloid repository ID.
	RepositoryID string
	// RepositoryURL is a GitHub URL to connect as a new repository.
	RepositoryURL string
	// Core is the variant name, one of the AvailableCores keys.
	// Empty selects DefaultCore.
	Core string
	// Branch optionally overrides the repository's build branch.
	Branch string
	// OutputPath is where the binary is written. Empty selects
	// DefaultOutputPath.
	OutputPath string
}

// CoreNames returns the known core variant names, sorted.
func CoreNames() []string {
	names := make([]string, 0, len(AvailableCores))
	for name := range AvailableCores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DownloadCore builds a repository on the requested core variant, waits
// for the build, and downloads the binary. It returns the path the binary
// was written to.
func (c *Client) DownloadCore(ctx context.Context, request DownloadRequest) (string, error) {
	if request.RepositoryID == "" && request.RepositoryURL == "" {
		return "", fmt.Errorf("either a repository ID or a repository URL must be provided")
	}

	core := request.Core
	if core == "" {
		core = DefaultCore
	}
	coreID, ok := AvailableCores[core]
	if !ok {
		return "", fmt.Errorf("invalid core version %q, must be one of: %s",
			core, strings.Join(CoreNames(), ", "))
	}

	repoID := request.RepositoryID
	if repoID == "" {
		c.log.Info("verifying repository", "url", request.RepositoryURL)
		if err := c.VerifyRepository(ctx, request.RepositoryURL); err != nil {
			return "", err
		}
		c.log.Info("connecting repository", "url", request.RepositoryURL)
		var err error
		repoID, err = c.ConnectRepository(ctx, request.RepositoryURL, request.Branch)
		if err != nil {
			return "", err
		}
		c.log.Info("repository connected", "repoID", repoID)
	} else if request.Branch != "" {
		if err := c.UpdateRepository(ctx, repoID, request.Branch); err != nil {
			return "", err
		}
	}

	c.log.Info("creating build", "repoID", repoID, "core", core)
	branch := ""
	if request.RepositoryURL != "" {
		branch = request.Branch
	}
	buildID, err := c.CreateBuild(ctx, repoID, coreID, branch)
	if err != nil {
		return "", err
	}
	c.log.Info("build created", "buildID", buildID)

	if err := c.WaitForBuild(ctx, buildID); err != nil {
		return "", err
	}

	binaryURL, err := c.BinaryURL(ctx, buildID)
	if err != nil {
		return "", err
	}

	outputPath := request.OutputPath
	if outputPath == "" {
		outputPath = DefaultOutputPath
	}
	if err := c.DownloadBinary(ctx, binaryURL, outputPath); err != nil {
		return "", err
	}
	c.log.Info("binary downloaded", "path", outputPath)
	return outputPath, nil
}
