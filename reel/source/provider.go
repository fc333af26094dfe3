// Package source resolves the rendered video and its thumbnail to local files.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/pathutil"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/melbahja/got"
)

const (
	fileScheme         = "file://"
	thumbnailExtension = ".jpg"
)

// ErrNoMatch is returned when a glob pattern matches no file.
var ErrNoMatch = errors.New("no file matches the pattern")

// Media is a resolved video with its optional thumbnail.
type Media struct {
	VideoPath     string
	ThumbnailPath string
	// TempDirs hold downloaded inputs, removed by Cleanup.
	TempDirs []string
}

// Cleanup removes the temporary directories of downloaded inputs.
func (m Media) Cleanup() error {
	var errs []error
	for _, dir := range m.TempDirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Resolver turns a path, a file:// URL, an http(s) URL or a glob pattern into a local file path.
// Remote files are downloaded to a temporary directory. A glob resolves to its most recently modified match.
type Resolver struct {
	httpClient   *http.Client
	pathProvider pathutil.PathProvider
	pathModifier pathutil.PathModifier
	pathChecker  pathutil.PathChecker
	logger       log.Logger
}

// NewResolver ...
func NewResolver(logger log.Logger) Resolver {
	return Resolver{
		httpClient:   retryhttp.NewClient(logger).StandardClient(),
		pathProvider: pathutil.NewPathProvider(),
		pathModifier: pathutil.NewPathModifier(),
		pathChecker:  pathutil.NewPathChecker(),
		logger:       logger,
	}
}

// Resolve returns the local video and thumbnail. Without an explicit thumbnail the
// video path with a .jpg extension is used when that file exists.
// The caller owns the returned Media and calls Cleanup once the files are no longer needed.
func (r Resolver) Resolve(ctx context.Context, videoPath, thumbnailPath string) (Media, error) {
	video, tmpDir, err := r.localPath(ctx, videoPath)
	if err != nil {
		return Media{}, fmt.Errorf("resolve video: %w", err)
	}

	media := Media{VideoPath: video}
	media.addTempDir(tmpDir)

	if thumbnailPath != "" {
		thumbnail, tmpDir, err := r.localPath(ctx, thumbnailPath)
		if err != nil {
			if cleanupErr := media.Cleanup(); cleanupErr != nil {
				r.logger.Warnf("Failed to remove downloaded video: %s", cleanupErr)
			}
			return Media{}, fmt.Errorf("resolve thumbnail: %w", err)
		}
		media.ThumbnailPath = thumbnail
		media.addTempDir(tmpDir)
		return media, nil
	}

	candidate := strings.TrimSuffix(video, filepath.Ext(video)) + thumbnailExtension
	if exists, err := r.pathChecker.IsPathExists(candidate); err == nil && exists {
		r.logger.Debugf("Using thumbnail next to the video: %s", candidate)
		media.ThumbnailPath = candidate
	}

	return media, nil
}

func (m *Media) addTempDir(dir string) {
	if dir != "" {
		m.TempDirs = append(m.TempDirs, dir)
	}
}

// localPath resolves a single input to an existing local file. tmpDir is set when the file was downloaded.
func (r Resolver) localPath(ctx context.Context, path string) (localPath, tmpDir string, err error) {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return "", "", fmt.Errorf("path must not be empty")
	case strings.HasPrefix(path, fileScheme):
		localPath, err = r.existingPath(strings.TrimPrefix(path, fileScheme))
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		return r.download(ctx, path)
	case strings.Contains(path, "*"):
		localPath, err = r.newestMatch(path)
	default:
		localPath, err = r.existingPath(path)
	}
	return localPath, "", err
}

func (r Resolver) existingPath(path string) (string, error) {
	absPath, err := r.pathModifier.AbsPath(path) // resolves ~/ and expands any envs
	if err != nil {
		return "", err
	}

	exists, err := r.pathChecker.IsPathExists(absPath)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("file does not exist: %s", absPath)
	}

	return absPath, nil
}

func (r Resolver) newestMatch(path string) (string, error) {
	base, pattern := doublestar.SplitPattern(path)
	absBase, err := r.pathModifier.AbsPath(base)
	if err != nil {
		return "", err
	}

	matches, err := doublestar.Glob(os.DirFS(absBase), pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern '%s': %w", path, err)
	}

	var newest string
	var newestInfo os.FileInfo
	for _, match := range matches {
		candidate := filepath.Join(absBase, match)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if newestInfo == nil || info.ModTime().After(newestInfo.ModTime()) {
			newest, newestInfo = candidate, info
		}
	}
	if newest == "" {
		return "", fmt.Errorf("%s: %w", path, ErrNoMatch)
	}

	r.logger.Debugf("Pattern %s matched %d file(s), using %s", path, len(matches), newest)
	return newest, nil
}

func (r Resolver) download(ctx context.Context, rawURL string) (string, string, error) {
	fileName, err := fileNameFromURL(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract filename from URL %s: %w", rawURL, err)
	}

	tmpDir, err := r.pathProvider.CreateTempDir("reel-source")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	localPath := filepath.Join(tmpDir, fileName)

	downloader := got.New()
	downloader.Client = r.httpClient
	if err := downloader.Do(got.NewDownload(ctx, rawURL, localPath)); err != nil {
		if removeErr := os.RemoveAll(tmpDir); removeErr != nil {
			r.logger.Warnf("Failed to remove %s: %s", tmpDir, removeErr)
		}
		return "", "", fmt.Errorf("failed to download file from %s: %w", rawURL, err)
	}

	return localPath, tmpDir, nil
}

func fileNameFromURL(rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	name := filepath.Base(parsedURL.Path)
	if name == "." || name == "/" {
		return "", fmt.Errorf("url has no file name")
	}
	return name, nil
}
