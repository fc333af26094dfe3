package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/reelpost/go-reelpost/reel/graph"
)

// ContainerRequest is the input of one container creation.
type ContainerRequest struct {
	Target graph.UploadTarget
	// PublicURL is where the platform can fetch the video. Empty skips the URL strategy.
	PublicURL string
	Caption   string
	// CoverURL is only used by the URL strategy.
	CoverURL string
}

// ContainerResult ...
type ContainerResult struct {
	ContainerID string
	Strategy    graph.Strategy
}

// Orchestrator prefers a URL container and falls back to a binary upload of the local file.
type Orchestrator struct {
	urlUploader    URLUploader
	binaryUploader BinaryUploader
	observer       graph.Observer
}

// NewOrchestrator ...
func NewOrchestrator(urlUploader URLUploader, binaryUploader BinaryUploader, observer graph.Observer) Orchestrator {
	return Orchestrator{
		urlUploader:    urlUploader,
		binaryUploader: binaryUploader,
		observer:       observer,
	}
}

// CreateContainer returns the id of a container holding the target video and the strategy that produced it.
// When both strategies fail the error is a *graph.CompositeError carrying both causes.
func (o Orchestrator) CreateContainer(ctx context.Context, req ContainerRequest) (ContainerResult, error) {
	const op = "create container"

	var errs []error

	if req.PublicURL != "" {
		containerID, err := o.urlUploader.CreateContainer(ctx, URLContainerParams{
			VideoURL: req.PublicURL,
			Caption:  req.Caption,
			CoverURL: req.CoverURL,
			Kind:     req.Target.Kind,
		})
		if err == nil && containerID != "" {
			return ContainerResult{ContainerID: containerID, Strategy: graph.StrategyURL}, nil
		}
		if err == nil {
			err = graph.ErrNoContainerID
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ContainerResult{}, fmt.Errorf("%s: %w", op, err)
		}

		errs = append(errs, fmt.Errorf("url strategy: %w", err))
		graph.Emit(o.observer, graph.Event{
			Type:    graph.EventFallback,
			Op:      op,
			Message: "URL upload failed, falling back to binary upload",
			Err:     err,
		})
	} else {
		errs = append(errs, fmt.Errorf("url strategy: %w", errors.New("no public url available")))
		graph.Emit(o.observer, graph.Event{
			Type:    graph.EventFallback,
			Op:      op,
			Message: "No public URL available, using binary upload",
		})
	}

	// the binary fallback never carries a cover
	containerID, err := o.binaryUploader.UploadBinary(ctx, req.Target, req.Caption)
	if err == nil && containerID != "" {
		return ContainerResult{ContainerID: containerID, Strategy: graph.StrategyResumable}, nil
	}
	if err == nil {
		err = graph.ErrNoContainerID
	}
	errs = append(errs, fmt.Errorf("resumable strategy: %w", err))

	return ContainerResult{}, &graph.CompositeError{Op: op, Errs: errs}
}
