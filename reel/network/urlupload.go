package network

import (
	"context"
	"fmt"

	"github.com/reelpost/go-reelpost/reel/graph"
)

// URLContainerParams ...
type URLContainerParams struct {
	VideoURL string
	Caption  string
	CoverURL string
	Kind     graph.MediaKind
}

// URLUploader creates containers from media the platform fetches itself.
type URLUploader struct {
	api      ContainerCreator
	observer graph.Observer
}

// NewURLUploader ...
func NewURLUploader(api ContainerCreator, observer graph.Observer) URLUploader {
	return URLUploader{
		api:      api,
		observer: observer,
	}
}

// CreateContainer creates a video container from a public URL. Internal URLs are rejected without a request.
func (u URLUploader) CreateContainer(ctx context.Context, params URLContainerParams) (string, error) {
	if graph.IsInternalURL(params.VideoURL) {
		return "", fmt.Errorf("video url %s: %w", params.VideoURL, graph.ErrInternalURL)
	}

	kind := params.Kind
	if kind == "" {
		kind = graph.MediaKindReels
	}

	payload := ContainerPayload{
		MediaType:   kind,
		VideoURL:    params.VideoURL,
		Caption:     params.Caption,
		ShareToFeed: "true",
	}
	if params.CoverURL != "" {
		if graph.IsInternalURL(params.CoverURL) {
			graph.Emit(u.observer, graph.Event{
				Type:    graph.EventWarning,
				Op:      "url upload",
				Message: fmt.Sprintf("Cover URL %s is not publicly reachable, skipping cover", params.CoverURL),
			})
		} else {
			payload.CoverURL = params.CoverURL
		}
	}

	container, err := u.api.CreateContainer(ctx, payload)
	if err != nil {
		return "", err
	}

	graph.Emit(u.observer, graph.Event{
		Type:        graph.EventInfo,
		Op:          "url upload",
		ContainerID: container.ID,
		Message:     fmt.Sprintf("Container %s created from URL", container.ID),
	})

	return container.ID, nil
}

// CreateImageContainer creates a single image container from a public URL.
func (u URLUploader) CreateImageContainer(ctx context.Context, imageURL, caption string) (string, error) {
	if graph.IsInternalURL(imageURL) {
		return "", fmt.Errorf("image url %s: %w", imageURL, graph.ErrInternalURL)
	}

	container, err := u.api.CreateContainer(ctx, ContainerPayload{
		ImageURL: imageURL,
		Caption:  caption,
	})
	if err != nil {
		return "", err
	}

	return container.ID, nil
}
