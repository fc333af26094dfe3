// Command reelpost publishes a rendered video as an Instagram reel.
//
// Usage:
//
//	reelpost [publish]
//	reelpost diagnose [containerID]
//
// Configuration is read from the environment (and a .env file when present).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/joho/godotenv"

	"github.com/reelpost/go-reelpost/reel"
	"github.com/reelpost/go-reelpost/reel/graph"
	"github.com/reelpost/go-reelpost/reel/network"
	"github.com/reelpost/go-reelpost/reel/output"
	"github.com/reelpost/go-reelpost/stepconf"
)

const pipelineRetryWait = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.NewLogger()
	if err := run(ctx, logger, os.Args[1:]); err != nil {
		logger.Errorf("%s", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger log.Logger, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	envRepo := env.NewRepository()
	cfg, err := reel.LoadConfig(envRepo)
	if err != nil {
		return err
	}
	logger.EnableDebugLog(cfg.Verbose)
	if cfg.Verbose {
		stepconf.Print(cfg)
	}

	command := "publish"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "publish":
		return publish(ctx, logger, envRepo, cfg)
	case "diagnose":
		containerID := ""
		if len(args) > 0 {
			containerID = args[0]
		}
		return diagnose(ctx, logger, cfg, containerID)
	default:
		return fmt.Errorf("unknown command %q, expected publish or diagnose", command)
	}
}

func publish(ctx context.Context, logger log.Logger, envRepo env.Repository, cfg reel.Config) error {
	if cfg.VideoPath == "" {
		return errors.New("REEL_VIDEO_PATH is required for publish")
	}

	publisher, err := reel.NewDefaultPublisher(ctx, cfg, logger, envRepo)
	if err != nil {
		return err
	}

	input := reel.PublishInput{
		VideoPath:     cfg.VideoPath,
		ThumbnailPath: cfg.ThumbnailPath,
		Caption:       cfg.Caption,
	}

	var post graph.PublishedPost
	err = retry.Times(uint(cfg.PipelineRetries)).Wait(pipelineRetryWait).TryWithAbort(func(attempt uint) (error, bool) {
		if attempt > 0 {
			logger.Warnf("Retrying publish (%d/%d)", attempt, cfg.PipelineRetries)
		}

		var err error
		post, err = publisher.Publish(ctx, input)
		if err == nil {
			return nil, false
		}
		return err, !retryablePipelineError(ctx, err)
	})
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	if err := output.NewExporter(envRepo, cfg.OutputFile).ExportPost(post); err != nil {
		logger.Warnf("Failed to export outputs: %s", err)
	}

	out, err := json.Marshal(post)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// retryablePipelineError is false for failures another run cannot fix.
func retryablePipelineError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch graph.KindOf(err) {
	case graph.KindAuth, graph.KindAppOwnershipMismatch:
		return false
	}
	return true
}

func diagnose(ctx context.Context, logger log.Logger, cfg reel.Config, containerID string) error {
	diagnostics := network.NewDiagnostics(reel.NewAPIClient(cfg, logger))

	report, err := diagnostics.ValidateAppOwnership(ctx, containerID)
	if err != nil {
		if remediation := graph.Remediation(err, cfg.AppID); remediation != "" {
			logger.Errorf("%s", remediation)
		}
		return err
	}

	printReport(logger, report)

	if !report.Consistent() {
		return errors.New("app ownership check failed")
	}
	logger.Donef("Token and app configuration are consistent")
	return nil
}

func printReport(logger log.Logger, report network.OwnershipReport) {
	logger.Infof("Token diagnostics")
	logger.Printf("- user: %s (%s)", report.Token.User.Name, report.Token.User.ID)
	if report.Token.App != nil {
		logger.Printf("- app: %s (%s)", report.Token.App.Name, report.Token.App.ID)
	} else {
		logger.Warnf("- app: unavailable: %s", report.Token.AppErr)
	}

	configured := report.ConfiguredAppID
	if configured == "" {
		configured = "<not configured>"
	}
	logger.Printf("- configured app id: %s", configured)
	if !report.AppIDMatches {
		logger.Errorf("The token was issued for app %s, not for the configured app %s", report.Token.App.ID, report.ConfiguredAppID)
	}

	if report.ContainerAccessible == nil {
		return
	}
	if *report.ContainerAccessible {
		logger.Printf("- container %s: accessible", report.ContainerID)
		return
	}
	logger.Errorf("- container %s: not accessible: %s", report.ContainerID, report.ContainerErr)
	if report.OwnershipMismatch() {
		logger.Errorf("%s", graph.Remediation(report.ContainerErr, report.ConfiguredAppID))
	}
}
