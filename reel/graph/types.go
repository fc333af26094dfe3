// Package graph holds the vocabulary shared by the upload and publish clients:
// media containers, processing states, the error taxonomy and the event stream.
package graph

import (
	"fmt"
	"os"
	"strings"
)

// MediaKind ...
type MediaKind string

// Media kinds accepted by the media endpoint.
const (
	MediaKindReels MediaKind = "REELS"
	MediaKindVideo MediaKind = "VIDEO"
	MediaKindImage MediaKind = "IMAGE"
)

// UploadTarget describes the local asset of one upload attempt. It is never mutated after creation.
type UploadTarget struct {
	Path     string
	Size     int64
	Kind     MediaKind
	CoverURL string
}

// NewUploadTarget stats the file at path and fails fast if it is missing, a directory or empty.
func NewUploadTarget(path string, kind MediaKind, coverURL string) (UploadTarget, error) {
	if path == "" {
		return UploadTarget{}, fmt.Errorf("upload target path must not be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		return UploadTarget{}, fmt.Errorf("stat upload target: %w", err)
	}
	if info.IsDir() {
		return UploadTarget{}, fmt.Errorf("upload target is a directory: %s", path)
	}
	if info.Size() == 0 {
		return UploadTarget{}, fmt.Errorf("upload target is empty: %s", path)
	}

	if kind == "" {
		kind = MediaKindReels
	}

	return UploadTarget{
		Path:     path,
		Size:     info.Size(),
		Kind:     kind,
		CoverURL: coverURL,
	}, nil
}

// ProcessingStatus is the server-side state of a container after upload.
type ProcessingStatus int

// Processing states. StatusUnknown means the remote side has not reported a status yet.
const (
	StatusUnknown ProcessingStatus = iota
	StatusInProgress
	StatusFinished
	StatusError
)

// ParseProcessingStatus maps the nullable status_code field onto a ProcessingStatus.
func ParseProcessingStatus(code *string) ProcessingStatus {
	if code == nil {
		return StatusUnknown
	}

	switch strings.ToUpper(strings.TrimSpace(*code)) {
	case "":
		return StatusUnknown
	case "FINISHED", "PUBLISHED":
		return StatusFinished
	case "ERROR", "EXPIRED":
		return StatusError
	default:
		return StatusInProgress
	}
}

func (s ProcessingStatus) String() string {
	switch s {
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusFinished:
		return "FINISHED"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether polling should stop at this status.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusFinished || s == StatusError
}

// MediaContainer is the remote staging object created by either upload strategy.
type MediaContainer struct {
	ID        string
	UploadURI string
	Status    ProcessingStatus
}

// Strategy names the way a container was created.
type Strategy string

// Upload strategies.
const (
	StrategyURL       Strategy = "url"
	StrategyResumable Strategy = "resumable"
)

// PublishedPost is the result of a successful publish. Permalink is nil when the lookup failed.
type PublishedPost struct {
	MediaID     string   `json:"media_id"`
	Permalink   *string  `json:"permalink,omitempty"`
	ContainerID string   `json:"container_id"`
	Strategy    Strategy `json:"strategy,omitempty"`
}

// PermalinkOrEmpty ...
func (p PublishedPost) PermalinkOrEmpty() string {
	if p.Permalink == nil {
		return ""
	}
	return *p.Permalink
}
