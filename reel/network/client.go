package network

import (
	"context"
	"fmt"

	"github.com/reelpost/go-reelpost/reel/graph"
)

// ReelClient runs the whole protocol for one video: container creation, processing wait and publish.
type ReelClient struct {
	orchestrator Orchestrator
	poller       Poller
	publisher    Publisher
	observer     graph.Observer
}

// NewReelClient ...
func NewReelClient(orchestrator Orchestrator, poller Poller, publisher Publisher, observer graph.Observer) ReelClient {
	return ReelClient{
		orchestrator: orchestrator,
		poller:       poller,
		publisher:    publisher,
		observer:     observer,
	}
}

// CreateContainer ...
func (c ReelClient) CreateContainer(ctx context.Context, req ContainerRequest) (ContainerResult, error) {
	return c.orchestrator.CreateContainer(ctx, req)
}

// WaitAndPublish publishes the container exactly once, and only after processing finished.
func (c ReelClient) WaitAndPublish(ctx context.Context, containerID string) (graph.PublishedPost, error) {
	if err := c.poller.WaitUntilFinished(ctx, containerID); err != nil {
		return graph.PublishedPost{}, err
	}

	return c.publisher.Publish(ctx, containerID)
}

// Upload creates a container for req and publishes it.
func (c ReelClient) Upload(ctx context.Context, req ContainerRequest) (graph.PublishedPost, error) {
	result, err := c.CreateContainer(ctx, req)
	if err != nil {
		c.outcome(graph.Event{Op: "upload", Err: err})
		return graph.PublishedPost{}, err
	}

	post, err := c.WaitAndPublish(ctx, result.ContainerID)
	if err != nil {
		c.outcome(graph.Event{Op: "publish", ContainerID: result.ContainerID, Err: err})
		return graph.PublishedPost{}, err
	}
	post.Strategy = result.Strategy

	message := fmt.Sprintf("Published media %s (container %s, %s strategy)", post.MediaID, post.ContainerID, post.Strategy)
	if post.Permalink != nil {
		message += ": " + *post.Permalink
	}
	c.outcome(graph.Event{Op: "publish", ContainerID: result.ContainerID, Message: message})

	return post, nil
}

func (c ReelClient) outcome(e graph.Event) {
	e.Type = graph.EventOutcome
	graph.Emit(c.observer, e)
}
