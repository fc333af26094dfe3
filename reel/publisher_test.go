package reel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/reelpost/go-reelpost/internal/testing/filecheck"
	"github.com/reelpost/go-reelpost/reel/graph"
	"github.com/reelpost/go-reelpost/reel/network"
	"github.com/reelpost/go-reelpost/reel/source"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Resolve(ctx context.Context, videoPath, thumbnailPath string) (source.Media, error) {
	args := m.Called(ctx, videoPath, thumbnailPath)
	return args.Get(0).(source.Media), args.Error(1)
}

type mockHost struct {
	mock.Mock
}

func (m *mockHost) Upload(ctx context.Context, localPath, objectName string) error {
	return m.Called(ctx, localPath, objectName).Error(0)
}

func (m *mockHost) PublicURL(ctx context.Context, objectName string) (string, error) {
	args := m.Called(ctx, objectName)
	return args.String(0), args.Error(1)
}

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, req network.ContainerRequest) (graph.PublishedPost, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(graph.PublishedPost), args.Error(1)
}

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) ArchivePost(dir string, post graph.PublishedPost, caption string, files ...string) (string, error) {
	args := m.Called(dir, post, caption, files)
	return args.String(0), args.Error(1)
}

func writeVideo(t *testing.T) source.Media {
	t.Helper()
	dir := t.TempDir()
	video := filepath.Join(dir, "reel.mp4")
	thumb := filepath.Join(dir, "reel.mp4.jpg")
	require.NoError(t, os.WriteFile(video, []byte("video bytes"), 0644))
	require.NoError(t, os.WriteFile(thumb, []byte("jpeg bytes"), 0644))
	return source.Media{VideoPath: video, ThumbnailPath: thumb}
}

func objectUnder(name string) interface{} {
	return mock.MatchedBy(func(objectName string) bool {
		return strings.HasSuffix(objectName, "/"+name) && len(objectName) > len(name)+1
	})
}

func TestPublisher_Publish_HostedMedia(t *testing.T) {
	media := writeVideo(t)
	post := graph.PublishedPost{MediaID: "m-1", ContainerID: "c-1", Strategy: graph.StrategyURL}

	src := new(mockSource)
	src.On("Resolve", mock.Anything, "reel.mp4", "").Return(media, nil)

	host := new(mockHost)
	host.On("Upload", mock.Anything, media.VideoPath, objectUnder("reel.mp4")).Return(nil)
	host.On("PublicURL", mock.Anything, objectUnder("reel.mp4")).Return("https://cdn.example.com/reel.mp4", nil)
	host.On("Upload", mock.Anything, media.ThumbnailPath, objectUnder("reel.mp4.jpg")).Return(nil)
	host.On("PublicURL", mock.Anything, objectUnder("reel.mp4.jpg")).Return("https://cdn.example.com/reel.mp4.jpg", nil)

	uploader := new(mockUploader)
	uploader.On("Upload", mock.Anything, mock.MatchedBy(func(req network.ContainerRequest) bool {
		return req.PublicURL == "https://cdn.example.com/reel.mp4" &&
			req.CoverURL == "https://cdn.example.com/reel.mp4.jpg" &&
			req.Target.CoverURL == req.CoverURL &&
			req.Caption == "caption" &&
			req.Target.Path == media.VideoPath &&
			req.Target.Size == int64(len("video bytes")) &&
			req.Target.Kind == graph.MediaKindReels
	})).Return(post, nil)

	archiver := new(mockArchiver)
	archiver.On("ArchivePost", "/archive", post, "caption", []string{media.VideoPath, media.ThumbnailPath}).Return("/archive/m-1.tar.zst", nil)

	publisher := NewPublisher(log.NewLogger(), src, host, uploader, archiver, "/archive")
	got, err := publisher.Publish(context.Background(), PublishInput{VideoPath: "reel.mp4", Caption: "caption"})
	require.NoError(t, err)
	assert.Equal(t, post, got)

	src.AssertExpectations(t)
	host.AssertExpectations(t)
	uploader.AssertExpectations(t)
	archiver.AssertExpectations(t)
}

func TestPublisher_Publish_HostingFailureOnlyDisablesURLStrategy(t *testing.T) {
	media := writeVideo(t)
	post := graph.PublishedPost{MediaID: "m-1", ContainerID: "c-1", Strategy: graph.StrategyResumable}

	src := new(mockSource)
	src.On("Resolve", mock.Anything, "reel.mp4", "").Return(media, nil)

	host := new(mockHost)
	host.On("Upload", mock.Anything, media.VideoPath, mock.Anything).Return(errors.New("connection refused"))

	uploader := new(mockUploader)
	uploader.On("Upload", mock.Anything, mock.MatchedBy(func(req network.ContainerRequest) bool {
		return req.PublicURL == "" && req.CoverURL == ""
	})).Return(post, nil)

	publisher := NewPublisher(log.NewLogger(), src, host, uploader, nil, "")
	got, err := publisher.Publish(context.Background(), PublishInput{VideoPath: "reel.mp4"})
	require.NoError(t, err)
	assert.Equal(t, graph.StrategyResumable, got.Strategy)

	host.AssertNotCalled(t, "PublicURL", mock.Anything, mock.Anything)
	uploader.AssertExpectations(t)
}

func TestPublisher_Publish_ThumbnailFailureKeepsVideoURL(t *testing.T) {
	media := writeVideo(t)
	post := graph.PublishedPost{MediaID: "m-1", ContainerID: "c-1", Strategy: graph.StrategyURL}

	src := new(mockSource)
	src.On("Resolve", mock.Anything, "reel.mp4", "cover.jpg").Return(media, nil)

	host := new(mockHost)
	host.On("Upload", mock.Anything, media.VideoPath, mock.Anything).Return(nil)
	host.On("PublicURL", mock.Anything, objectUnder("reel.mp4")).Return("https://cdn.example.com/reel.mp4", nil)
	host.On("Upload", mock.Anything, media.ThumbnailPath, mock.Anything).Return(errors.New("quota exceeded"))

	uploader := new(mockUploader)
	uploader.On("Upload", mock.Anything, mock.MatchedBy(func(req network.ContainerRequest) bool {
		return req.PublicURL == "https://cdn.example.com/reel.mp4" && req.CoverURL == ""
	})).Return(post, nil)

	publisher := NewPublisher(log.NewLogger(), src, host, uploader, nil, "")
	_, err := publisher.Publish(context.Background(), PublishInput{VideoPath: "reel.mp4", ThumbnailPath: "cover.jpg"})
	require.NoError(t, err)
	uploader.AssertExpectations(t)
}

func TestPublisher_Publish_Errors(t *testing.T) {
	media := writeVideo(t)

	t.Run("resolve failure", func(t *testing.T) {
		src := new(mockSource)
		src.On("Resolve", mock.Anything, "*.mp4", "").Return(source.Media{}, source.ErrNoMatch)
		uploader := new(mockUploader)

		_, err := NewPublisher(log.NewLogger(), src, nil, uploader, nil, "").Publish(context.Background(), PublishInput{VideoPath: "*.mp4"})
		require.ErrorIs(t, err, source.ErrNoMatch)
		uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	})

	t.Run("empty video", func(t *testing.T) {
		empty := filepath.Join(t.TempDir(), "empty.mp4")
		require.NoError(t, os.WriteFile(empty, nil, 0644))

		src := new(mockSource)
		src.On("Resolve", mock.Anything, empty, "").Return(source.Media{VideoPath: empty}, nil)
		uploader := new(mockUploader)

		_, err := NewPublisher(log.NewLogger(), src, nil, uploader, nil, "").Publish(context.Background(), PublishInput{VideoPath: empty})
		require.Error(t, err)
		uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	})

	t.Run("upload failure skips the archive", func(t *testing.T) {
		src := new(mockSource)
		src.On("Resolve", mock.Anything, "reel.mp4", "").Return(media, nil)
		uploader := new(mockUploader)
		uploader.On("Upload", mock.Anything, mock.Anything).Return(graph.PublishedPost{}, graph.ErrProcessingTimeout)
		archiver := new(mockArchiver)

		_, err := NewPublisher(log.NewLogger(), src, nil, uploader, archiver, "/archive").Publish(context.Background(), PublishInput{VideoPath: "reel.mp4"})
		require.ErrorIs(t, err, graph.ErrProcessingTimeout)
		archiver.AssertNotCalled(t, "ArchivePost", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("downloaded media is removed after a failure", func(t *testing.T) {
		downloads := t.TempDir()
		tmpDir := filepath.Join(downloads, "reel-source")
		require.NoError(t, os.Mkdir(tmpDir, 0700))
		video := filepath.Join(tmpDir, "reel.mp4")
		require.NoError(t, os.WriteFile(video, []byte("video bytes"), 0644))

		src := new(mockSource)
		src.On("Resolve", mock.Anything, "https://example.com/reel.mp4", "").Return(source.Media{VideoPath: video, TempDirs: []string{tmpDir}}, nil)
		uploader := new(mockUploader)
		uploader.On("Upload", mock.Anything, mock.Anything).Return(graph.PublishedPost{}, graph.ErrProcessingTimeout)

		_, err := NewPublisher(log.NewLogger(), src, nil, uploader, nil, "").Publish(context.Background(), PublishInput{VideoPath: "https://example.com/reel.mp4"})
		require.Error(t, err)
		assert.NoError(t, filecheck.New(tmpDir).Missing().Check())
	})

	t.Run("archive failure is not fatal", func(t *testing.T) {
		post := graph.PublishedPost{MediaID: "m-1", ContainerID: "c-1"}
		src := new(mockSource)
		src.On("Resolve", mock.Anything, "reel.mp4", "").Return(media, nil)
		uploader := new(mockUploader)
		uploader.On("Upload", mock.Anything, mock.Anything).Return(post, nil)
		archiver := new(mockArchiver)
		archiver.On("ArchivePost", "/archive", post, "", mock.Anything).Return("", errors.New("disk full"))

		got, err := NewPublisher(log.NewLogger(), src, nil, uploader, archiver, "/archive").Publish(context.Background(), PublishInput{VideoPath: "reel.mp4"})
		require.NoError(t, err)
		assert.Equal(t, post, got)
		archiver.AssertExpectations(t)
	})
}
