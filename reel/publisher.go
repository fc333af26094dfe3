// Package reel wires the reel publishing pipeline: resolve the rendered video, host it for the
// URL strategy, create and publish the container, and archive what was published.
package reel

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/google/uuid"

	"github.com/reelpost/go-reelpost/reel/graph"
	"github.com/reelpost/go-reelpost/reel/network"
	"github.com/reelpost/go-reelpost/reel/source"
)

// VideoSource resolves the video and thumbnail inputs to local files.
type VideoSource interface {
	Resolve(ctx context.Context, videoPath, thumbnailPath string) (source.Media, error)
}

// ObjectHost makes local files reachable by the platform.
type ObjectHost interface {
	Upload(ctx context.Context, localPath, objectName string) error
	PublicURL(ctx context.Context, objectName string) (string, error)
}

// PostArchiver keeps a copy of a published post.
type PostArchiver interface {
	ArchivePost(dir string, post graph.PublishedPost, caption string, files ...string) (string, error)
}

// PublishInput ...
type PublishInput struct {
	VideoPath     string
	ThumbnailPath string
	Caption       string
}

// Publisher runs one publish of a rendered reel.
type Publisher struct {
	logger     log.Logger
	source     VideoSource
	host       ObjectHost
	uploader   network.Uploader
	archiver   PostArchiver
	archiveDir string
}

// NewPublisher creates a Publisher. host and archiver are optional: without a host only the
// binary upload is attempted, without an archiver (or archive dir) nothing is archived.
func NewPublisher(logger log.Logger, source VideoSource, host ObjectHost, uploader network.Uploader, archiver PostArchiver, archiveDir string) Publisher {
	return Publisher{
		logger:     logger,
		source:     source,
		host:       host,
		uploader:   uploader,
		archiver:   archiver,
		archiveDir: archiveDir,
	}
}

// Publish publishes the video in input as a reel and returns the published post.
// Hosting and archive failures are reported and do not fail the publish.
func (p Publisher) Publish(ctx context.Context, input PublishInput) (graph.PublishedPost, error) {
	media, err := p.source.Resolve(ctx, input.VideoPath, input.ThumbnailPath)
	if err != nil {
		return graph.PublishedPost{}, fmt.Errorf("resolve video: %w", err)
	}
	defer func() {
		if err := media.Cleanup(); err != nil {
			p.logger.Warnf("Failed to remove downloaded media: %s", err)
		}
	}()

	target, err := graph.NewUploadTarget(media.VideoPath, graph.MediaKindReels, "")
	if err != nil {
		return graph.PublishedPost{}, err
	}

	publicURL, coverURL := p.hostMedia(ctx, media)
	target.CoverURL = coverURL

	post, err := p.uploader.Upload(ctx, network.ContainerRequest{
		Target:    target,
		PublicURL: publicURL,
		Caption:   input.Caption,
		CoverURL:  coverURL,
	})
	if err != nil {
		return graph.PublishedPost{}, err
	}

	p.archive(post, input.Caption, media)

	return post, nil
}

// hostMedia uploads the video and the thumbnail under a run specific prefix. Empty URLs are returned
// for whatever could not be hosted.
func (p Publisher) hostMedia(ctx context.Context, media source.Media) (videoURL, coverURL string) {
	if p.host == nil {
		p.logger.Printf("No object storage configured, the URL upload is skipped")
		return "", ""
	}

	prefix := uuid.NewString()

	videoURL, err := p.hostFile(ctx, media.VideoPath, prefix)
	if err != nil {
		p.logger.Warnf("Failed to host video, the URL upload is skipped: %s", err)
		return "", ""
	}
	p.logger.Printf("Video hosted at %s", videoURL)

	if media.ThumbnailPath == "" {
		return videoURL, ""
	}
	coverURL, err = p.hostFile(ctx, media.ThumbnailPath, prefix)
	if err != nil {
		p.logger.Warnf("Failed to host thumbnail, publishing without cover: %s", err)
		return videoURL, ""
	}

	return videoURL, coverURL
}

func (p Publisher) hostFile(ctx context.Context, localPath, prefix string) (string, error) {
	objectName := prefix + "/" + filepath.Base(localPath)
	if err := p.host.Upload(ctx, localPath, objectName); err != nil {
		return "", err
	}
	return p.host.PublicURL(ctx, objectName)
}

func (p Publisher) archive(post graph.PublishedPost, caption string, media source.Media) {
	if p.archiver == nil || p.archiveDir == "" {
		return
	}

	archivePath, err := p.archiver.ArchivePost(p.archiveDir, post, caption, media.VideoPath, media.ThumbnailPath)
	if err != nil {
		p.logger.Warnf("Failed to archive published post: %s", err)
		return
	}
	p.logger.Donef("Published post archived to %s", archivePath)
}
