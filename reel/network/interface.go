package network

import (
	"context"

	"github.com/reelpost/go-reelpost/reel/graph"
)

// BinaryUploader streams a local file into a new container and returns the container id.
type BinaryUploader interface {
	UploadBinary(ctx context.Context, target graph.UploadTarget, caption string) (string, error)
}

// ContainerCreator ...
type ContainerCreator interface {
	CreateContainer(ctx context.Context, payload ContainerPayload) (graph.MediaContainer, error)
}

// StatusFetcher ...
type StatusFetcher interface {
	ContainerStatus(ctx context.Context, containerID string) (ContainerState, error)
}

// MediaPublisher ...
type MediaPublisher interface {
	PublishContainer(ctx context.Context, containerID string) (string, error)
	MediaPermalink(ctx context.Context, mediaID string) (string, error)
}

// Uploader creates a processed, published post from a container request.
type Uploader interface {
	Upload(ctx context.Context, req ContainerRequest) (graph.PublishedPost, error)
}
