package network

import (
	"context"
	"time"

	"github.com/reelpost/go-reelpost/reel/graph"
	"github.com/stretchr/testify/mock"
)

type mockContainerCreator struct {
	mock.Mock
}

func (m *mockContainerCreator) CreateContainer(ctx context.Context, payload ContainerPayload) (graph.MediaContainer, error) {
	args := m.Called(ctx, payload)
	return args.Get(0).(graph.MediaContainer), args.Error(1)
}

type mockBinaryUploader struct {
	mock.Mock
}

func (m *mockBinaryUploader) UploadBinary(ctx context.Context, target graph.UploadTarget, caption string) (string, error) {
	args := m.Called(ctx, target, caption)
	return args.String(0), args.Error(1)
}

type mockStatusFetcher struct {
	mock.Mock
}

func (m *mockStatusFetcher) ContainerStatus(ctx context.Context, containerID string) (ContainerState, error) {
	args := m.Called(ctx, containerID)
	return args.Get(0).(ContainerState), args.Error(1)
}

type mockMediaPublisher struct {
	mock.Mock
}

func (m *mockMediaPublisher) PublishContainer(ctx context.Context, containerID string) (string, error) {
	args := m.Called(ctx, containerID)
	return args.String(0), args.Error(1)
}

func (m *mockMediaPublisher) MediaPermalink(ctx context.Context, mediaID string) (string, error) {
	args := m.Called(ctx, mediaID)
	return args.String(0), args.Error(1)
}

type recordingSleeper struct {
	sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

type recordingObserver struct {
	events []graph.Event
}

func (o *recordingObserver) Observe(e graph.Event) {
	o.events = append(o.events, e)
}

func (o *recordingObserver) ofType(t graph.EventType) []graph.Event {
	var events []graph.Event
	for _, e := range o.events {
		if e.Type == t {
			events = append(events, e)
		}
	}
	return events
}
