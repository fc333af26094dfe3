package network

import (
	"context"
	"fmt"
	"time"

	"github.com/reelpost/go-reelpost/reel/graph"
)

// Polling defaults.
const (
	DefaultPollMaxAttempts = 30
	DefaultPollDelay       = 10 * time.Second
)

// Poller waits for a container to finish server-side processing.
type Poller struct {
	fetcher     StatusFetcher
	MaxAttempts int
	Delay       time.Duration
	Sleeper     graph.Sleeper
	Observer    graph.Observer
}

// NewPoller returns a Poller with the default budget of 30 attempts 10 seconds apart.
func NewPoller(fetcher StatusFetcher, observer graph.Observer) Poller {
	return Poller{
		fetcher:     fetcher,
		MaxAttempts: DefaultPollMaxAttempts,
		Delay:       DefaultPollDelay,
		Sleeper:     graph.RealSleeper{},
		Observer:    observer,
	}
}

// WaitUntilFinished polls until the container is FINISHED (nil), ERROR (graph.ErrRemoteProcessing)
// or the attempts run out (graph.ErrProcessingTimeout). A failed status request only costs its attempt.
func (p Poller) WaitUntilFinished(ctx context.Context, containerID string) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}
	sleeper := p.Sleeper
	if sleeper == nil {
		sleeper = graph.RealSleeper{}
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		state, err := p.fetcher.ContainerStatus(ctx, containerID)
		graph.Emit(p.Observer, graph.Event{
			Type:        graph.EventStatus,
			Op:          "container status",
			ContainerID: containerID,
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
			Status:      state.Status,
			Err:         err,
		})

		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("container %s: %w", containerID, ctx.Err())
			}
		} else {
			switch state.Status {
			case graph.StatusFinished:
				return nil
			case graph.StatusError:
				if state.Detail != "" {
					return fmt.Errorf("container %s: %s: %w", containerID, state.Detail, graph.ErrRemoteProcessing)
				}
				return fmt.Errorf("container %s: %w", containerID, graph.ErrRemoteProcessing)
			}
		}

		if attempt == maxAttempts {
			break
		}
		if err := sleeper.Sleep(ctx, p.Delay); err != nil {
			return fmt.Errorf("container %s: %w", containerID, err)
		}
	}

	return fmt.Errorf("container %s after %d attempts: %w", containerID, maxAttempts, graph.ErrProcessingTimeout)
}
