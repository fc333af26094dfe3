package reel

import (
	"context"
	"fmt"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/reelpost/go-reelpost/reel/archive"
	"github.com/reelpost/go-reelpost/reel/graph"
	"github.com/reelpost/go-reelpost/reel/network"
	"github.com/reelpost/go-reelpost/reel/network/resumable"
	"github.com/reelpost/go-reelpost/reel/source"
	"github.com/reelpost/go-reelpost/reel/storage"
)

// NewReelClient builds the Graph protocol stack for cfg: URL uploader, resumable session,
// orchestrator, poller and publisher sharing one transport and observer.
func NewReelClient(cfg Config, logger log.Logger, observer graph.Observer) (network.ReelClient, error) {
	chunkSize, err := cfg.ChunkSizeBytes()
	if err != nil {
		return network.ReelClient{}, err
	}

	api := NewAPIClient(cfg, logger)

	session := resumable.New(api, cfg.Credentials(), api.Transport(), resumable.Config{
		ChunkSize: chunkSize,
		Observer:  observer,
	})
	orchestrator := network.NewOrchestrator(network.NewURLUploader(api, observer), session, observer)

	poller := network.NewPoller(api, observer)
	poller.MaxAttempts = cfg.PollMaxAttempts
	poller.Delay = cfg.PollDelay

	return network.NewReelClient(orchestrator, poller, network.NewPublisher(api, observer), observer), nil
}

// NewAPIClient ...
func NewAPIClient(cfg Config, logger log.Logger) network.APIClient {
	return network.NewAPIClient(cfg.Credentials(), graph.NewTransport(logger, cfg.TransportConfig()))
}

// NewDefaultPublisher wires a Publisher from cfg. Object storage is set up only when a bucket is
// configured; a storage setup failure disables the URL strategy instead of failing.
// Events go to the logger first, then to the extra observers.
func NewDefaultPublisher(ctx context.Context, cfg Config, logger log.Logger, envRepo env.Repository, observers ...graph.Observer) (Publisher, error) {
	observer := graph.MultiObserver(append([]graph.Observer{graph.NewLogObserver(logger, cfg.AppID)}, observers...))

	client, err := NewReelClient(cfg, logger, observer)
	if err != nil {
		return Publisher{}, err
	}

	var host ObjectHost
	if cfg.StorageEnabled() {
		s3Host, err := newObjectHost(ctx, cfg, logger)
		if err != nil {
			logger.Warnf("Object storage unavailable, only the binary upload will be used: %s", err)
		} else {
			host = s3Host
		}
	}

	var archiver PostArchiver
	if cfg.ArchiveDir != "" {
		archiver = archive.NewArchiver(logger, envRepo, archive.NewBinaryChecker(logger, envRepo))
	}

	return NewPublisher(logger, source.NewResolver(logger), host, client, archiver, cfg.ArchiveDir), nil
}

func newObjectHost(ctx context.Context, cfg Config, logger log.Logger) (*storage.S3Host, error) {
	host, err := storage.NewS3Host(ctx, cfg.S3Params(), logger)
	if err != nil {
		return nil, err
	}
	if err := host.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", host.Bucket(), err)
	}
	return host, nil
}
