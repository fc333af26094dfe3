package network

import (
	"context"
	"fmt"

	"github.com/reelpost/go-reelpost/reel/graph"
)

// Publisher publishes finished containers.
type Publisher struct {
	api      MediaPublisher
	observer graph.Observer
}

// NewPublisher ...
func NewPublisher(api MediaPublisher, observer graph.Observer) Publisher {
	return Publisher{
		api:      api,
		observer: observer,
	}
}

// Publish publishes the container and resolves its permalink. A failed permalink lookup
// leaves Permalink nil without failing the publish.
func (p Publisher) Publish(ctx context.Context, containerID string) (graph.PublishedPost, error) {
	mediaID, err := p.api.PublishContainer(ctx, containerID)
	if err != nil {
		return graph.PublishedPost{}, fmt.Errorf("container %s: %w: %w", containerID, graph.ErrPublishFailed, err)
	}

	post := graph.PublishedPost{
		MediaID:     mediaID,
		ContainerID: containerID,
	}

	permalink, err := p.api.MediaPermalink(ctx, mediaID)
	if err != nil {
		graph.Emit(p.observer, graph.Event{
			Type:        graph.EventWarning,
			Op:          "permalink",
			ContainerID: containerID,
			Message:     fmt.Sprintf("Media %s was published but its permalink could not be fetched", mediaID),
			Err:         err,
		})
		return post, nil
	}

	post.Permalink = &permalink
	return post, nil
}
