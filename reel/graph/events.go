package graph

import (
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
)

// EventType ...
type EventType string

// Event types emitted by the upload and publish clients.
const (
	EventInfo     EventType = "info"
	EventWarning  EventType = "warning"
	EventProgress EventType = "progress"
	EventRetry    EventType = "retry"
	EventResync   EventType = "resync"
	EventStatus   EventType = "status"
	EventFallback EventType = "fallback"
	EventOutcome  EventType = "outcome"
)

// Event is a single observable step of an upload. Only the fields relevant to Type are set.
type Event struct {
	Type        EventType
	Op          string
	ContainerID string
	Message     string

	Offset       int64
	ServerOffset int64
	FileSize     int64
	Percent      float64

	Attempt     int
	MaxAttempts int

	Status ProcessingStatus
	Err    error
}

// Observer receives the event stream of an upload.
type Observer interface {
	Observe(Event)
}

// ObserverFunc ...
type ObserverFunc func(Event)

// Observe ...
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

// NopObserver discards every event.
type NopObserver struct{}

// Observe ...
func (NopObserver) Observe(Event) {}

// Emit delivers e to o, tolerating a nil observer.
func Emit(o Observer, e Event) {
	if o == nil {
		return
	}
	o.Observe(e)
}

// MultiObserver fans an event out to several observers in order.
type MultiObserver []Observer

// Observe ...
func (m MultiObserver) Observe(e Event) {
	for _, o := range m {
		Emit(o, e)
	}
}

type logObserver struct {
	logger log.Logger
	appID  string
}

// NewLogObserver renders the event stream with the given logger.
// appID is only used for the remediation message of app ownership errors.
func NewLogObserver(logger log.Logger, appID string) Observer {
	return logObserver{logger: logger, appID: appID}
}

func (o logObserver) Observe(e Event) {
	switch e.Type {
	case EventProgress:
		o.logger.Infof("Upload progress: %.1f%% (%s/%s)", e.Percent,
			units.HumanSizeWithPrecision(float64(e.Offset), 3),
			units.HumanSizeWithPrecision(float64(e.FileSize), 3))
	case EventRetry:
		o.logger.Warnf("%s failed (attempt %d/%d): %s", e.Op, e.Attempt, e.MaxAttempts, e.Err)
	case EventResync:
		o.logger.Warnf("Offset mismatch, local: %d, server: %d. Continuing from the server offset.", e.Offset, e.ServerOffset)
	case EventStatus:
		if e.Err != nil {
			o.logger.Warnf("Container %s status check failed (%d/%d): %s", e.ContainerID, e.Attempt, e.MaxAttempts, e.Err)
			return
		}
		o.logger.Printf("Container %s status (%d/%d): %s", e.ContainerID, e.Attempt, e.MaxAttempts, e.Status)
	case EventFallback:
		o.logger.Warnf("%s", e.Message)
		if e.Err != nil {
			o.logger.Debugf("Fallback reason: %s", e.Err)
		}
	case EventWarning:
		if e.Err != nil {
			o.logger.Warnf("%s: %s", e.Message, e.Err)
			return
		}
		o.logger.Warnf("%s", e.Message)
	case EventOutcome:
		if e.Err != nil {
			o.logger.Errorf("%s failed: %s", e.Op, e.Err)
			if remediation := Remediation(e.Err, o.appID); remediation != "" {
				o.logger.Errorf("%s", remediation)
			}
			return
		}
		o.logger.Donef("%s", e.Message)
	default:
		o.logger.Infof("%s", e.Message)
	}
}
