package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestParseProcessingStatus(t *testing.T) {
	tests := []struct {
		name string
		code *string
		want ProcessingStatus
	}{
		{name: "missing", code: nil, want: StatusUnknown},
		{name: "empty", code: strPtr(""), want: StatusUnknown},
		{name: "in progress", code: strPtr("IN_PROGRESS"), want: StatusInProgress},
		{name: "finished", code: strPtr("FINISHED"), want: StatusFinished},
		{name: "published", code: strPtr("PUBLISHED"), want: StatusFinished},
		{name: "lower case finished", code: strPtr("finished"), want: StatusFinished},
		{name: "error", code: strPtr("ERROR"), want: StatusError},
		{name: "expired", code: strPtr("EXPIRED"), want: StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseProcessingStatus(tt.code)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == StatusFinished || tt.want == StatusError, got.Terminal())
		})
	}
}

func TestNewUploadTarget(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(video, []byte("0123456789"), 0600))
	empty := filepath.Join(dir, "empty.mp4")
	require.NoError(t, os.WriteFile(empty, nil, 0600))

	target, err := NewUploadTarget(video, "", "https://cdn.example.com/cover.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(10), target.Size)
	assert.Equal(t, MediaKindReels, target.Kind)
	assert.Equal(t, "https://cdn.example.com/cover.jpg", target.CoverURL)

	_, err = NewUploadTarget(empty, MediaKindReels, "")
	assert.ErrorContains(t, err, "empty")

	_, err = NewUploadTarget(dir, MediaKindReels, "")
	assert.ErrorContains(t, err, "directory")

	_, err = NewUploadTarget(filepath.Join(dir, "missing.mp4"), MediaKindReels, "")
	assert.Error(t, err)

	_, err = NewUploadTarget("", MediaKindReels, "")
	assert.Error(t, err)
}

func TestPublishedPost_PermalinkOrEmpty(t *testing.T) {
	assert.Equal(t, "", PublishedPost{MediaID: "1"}.PermalinkOrEmpty())
	assert.Equal(t, "https://www.instagram.com/reel/abc/", PublishedPost{MediaID: "1", Permalink: strPtr("https://www.instagram.com/reel/abc/")}.PermalinkOrEmpty())
}

func TestExponentialBackoff(t *testing.T) {
	assert.Equal(t, "1s", ExponentialBackoff(0).String())
	assert.Equal(t, "2s", ExponentialBackoff(1).String())
	assert.Equal(t, "4s", ExponentialBackoff(2).String())
	assert.Equal(t, "1s", ExponentialBackoff(-3).String())
}

func TestCredentials(t *testing.T) {
	creds := Credentials{AccessToken: "tok en", UserID: "17841", AppID: "99"}

	assert.Equal(t, "https://graph.facebook.com/v25.0/17841/media?access_token=tok+en", creds.GraphURL(nil, creds.UserID, "media"))
	assert.Equal(t, "https://rupload.facebook.com/ig-api-upload/c1", creds.UploadURI("c1"))
	assert.Equal(t, "OAuth tok en", creds.UploadAuthorization())

	creds.GraphBaseURL = "http://127.0.0.1:8080/"
	creds.APIVersion = "v21.0"
	creds.UploadBaseURL = "http://127.0.0.1:8081/upload/"
	assert.Equal(t, "http://127.0.0.1:8080/v21.0/c1?access_token=tok+en&fields=status_code", creds.GraphURL(map[string][]string{"fields": {"status_code"}}, "c1"))
	assert.Equal(t, "http://127.0.0.1:8081/upload/c1", creds.UploadURI("c1"))
}
