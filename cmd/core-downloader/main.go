// core-downloader: Build and download a Signaloid microSD core binary.
//
// The tool connects a repository to the Signaloid Cloud Developer
// Platform (or uses an existing repository ID), builds it on the chosen
// C0-microSD core variant, waits for the build, and downloads the binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/pflag"

	"github.com/signaloid/c0-microsd-toolkit/pkg/signaloid"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		repoID  = pflag.String("repo-id", "", "Your repository ID")
		repoURL = pflag.String("repo-url", "", "GitHub repository URL (e.g., https://github.com/username/repo)")
		apiKey  = pflag.String("api-key", "", "Your Signaloid API key (required)")
		core    = pflag.String("core", signaloid.DefaultCore,
			"MicroSD core version, one of: "+strings.Join(signaloid.CoreNames(), ", "))
		output  = pflag.String("output", "", "Output path for the binary")
		branch  = pflag.String("branch", "", "Branch name to build from (default: repository default)")
		baseURL = pflag.String("base-url", signaloid.DefaultBaseURL, "Base URL for the Signaloid API")
		quiet   = pflag.Bool("quiet", false, "Suppress progress messages")
	)
	pflag.Parse()

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: --api-key is required.")
		return 1
	}
	if (*repoID == "") == (*repoURL == "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of --repo-id and --repo-url is required.")
		return 1
	}

	logger := stdr.New(log.New(os.Stderr, "", 0))
	if *quiet {
		logger = logr.Discard()
	}

	client := signaloid.NewClient(*apiKey,
		signaloid.WithBaseURL(*baseURL),
		signaloid.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	path, err := client.DownloadCore(ctx, signaloid.DownloadRequest{
		RepositoryID:  *repoID,
		RepositoryURL: *repoURL,
		Core:          *core,
		Branch:        *branch,
		OutputPath:    *output,
	})
	if err != nil {
		var failure *signaloid.BuildFailedError
		if errors.As(err, &failure) && len(failure.Output) > 0 {
			fmt.Fprintln(os.Stderr, "\nBuild output:")
			fmt.Fprintln(os.Stderr, string(failure.Output))
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	fmt.Printf("Binary downloaded to: %s\n", path)
	return 0
}
