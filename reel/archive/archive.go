// Package archive bundles a published reel (video, thumbnail and post metadata) into a tar.zst file.
package archive

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/klauspost/compress/zstd"

	"github.com/reelpost/go-reelpost/reel/graph"
)

// MetadataFileName is the name of the post metadata entry inside every post archive.
const MetadataFileName = "post.json"

// DependencyChecker reports whether the tar and zstd binaries can be used.
type DependencyChecker interface {
	CheckDependencies() bool
}

// BinaryChecker looks the binaries up on PATH.
type BinaryChecker struct {
	logger  log.Logger
	envRepo env.Repository
}

// NewBinaryChecker ...
func NewBinaryChecker(logger log.Logger, envRepo env.Repository) *BinaryChecker {
	return &BinaryChecker{
		logger:  logger,
		envRepo: envRepo,
	}
}

// CheckDependencies ...
func (c *BinaryChecker) CheckDependencies() bool {
	return c.checkDependency("tar") && c.checkDependency("zstd")
}

func (c *BinaryChecker) checkDependency(binaryName string) bool {
	cmd := command.NewFactory(c.envRepo).Create("which", []string{binaryName}, nil)
	c.logger.Debugf("$ %s", cmd.PrintableCommandArgs())

	_, err := cmd.RunAndReturnTrimmedCombinedOutput()
	return err == nil
}

// Entry is a file to put into an archive under Name.
type Entry struct {
	Path string
	Name string
}

// PostMetadata is written to post.json.
type PostMetadata struct {
	graph.PublishedPost
	Caption    string    `json:"caption"`
	Files      []string  `json:"files"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Archiver ...
type Archiver struct {
	logger  log.Logger
	envRepo env.Repository
	checker DependencyChecker
}

// NewArchiver ...
func NewArchiver(logger log.Logger, envRepo env.Repository, checker DependencyChecker) *Archiver {
	return &Archiver{
		logger:  logger,
		envRepo: envRepo,
		checker: checker,
	}
}

// ArchivePost writes <dir>/<mediaID>.tar.zst holding files and a post.json describing the post.
// Empty file paths are skipped. It returns the archive path.
func (a *Archiver) ArchivePost(dir string, post graph.PublishedPost, caption string, files ...string) (string, error) {
	if post.MediaID == "" {
		return "", errors.New("archive post: missing media id")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	stagingDir, err := os.MkdirTemp("", "reel-archive")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			a.logger.Warnf("Failed to remove staging dir: %s", err)
		}
	}()

	var entries []Entry
	meta := PostMetadata{
		PublishedPost: post,
		Caption:       caption,
		ArchivedAt:    time.Now().UTC(),
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		name := filepath.Base(f)
		entries = append(entries, Entry{Path: f, Name: name})
		meta.Files = append(meta.Files, name)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode post metadata: %w", err)
	}
	metaPath := filepath.Join(stagingDir, MetadataFileName)
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return "", fmt.Errorf("write post metadata: %w", err)
	}
	entries = append(entries, Entry{Path: metaPath, Name: MetadataFileName})

	archivePath := filepath.Join(dir, post.MediaID+".tar.zst")
	if err := a.Compress(archivePath, entries); err != nil {
		return "", err
	}

	return archivePath, nil
}

// Compress creates a tar.zst archive of the regular files in entries.
func (a *Archiver) Compress(archivePath string, entries []Entry) error {
	if len(entries) == 0 {
		return errors.New("compress files: nothing to archive")
	}
	seen := map[string]bool{}
	for _, e := range entries {
		if err := validateName(e.Name); err != nil {
			return fmt.Errorf("compress files: %w", err)
		}
		if seen[e.Name] {
			return fmt.Errorf("compress files: duplicate entry %s", e.Name)
		}
		seen[e.Name] = true

		info, err := os.Stat(e.Path)
		if err != nil {
			return fmt.Errorf("compress files: %w", err)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("compress files: %s is not a regular file", e.Path)
		}
	}

	if !a.checker.CheckDependencies() {
		a.logger.Debugf("Falling back to native implementation of zstd.")
		if err := compressWithGoLib(archivePath, entries); err != nil {
			return fmt.Errorf("compress files: %w", err)
		}
		return nil
	}

	a.logger.Debugf("Using installed zstd binary")
	if err := a.compressWithBinary(archivePath, entries); err != nil {
		return fmt.Errorf("compress files: %w", err)
	}
	return nil
}

// Extract unpacks an archive into destinationDirectory.
func (a *Archiver) Extract(archivePath string, destinationDirectory string) error {
	if err := os.MkdirAll(destinationDirectory, 0755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	if !a.checker.CheckDependencies() {
		if err := extractWithGoLib(archivePath, destinationDirectory); err != nil {
			return fmt.Errorf("extract files: %w", err)
		}
		return nil
	}

	if err := a.extractWithBinary(archivePath, destinationDirectory); err != nil {
		return fmt.Errorf("extract files: %w", err)
	}
	return nil
}

func compressWithGoLib(archivePath string, entries []Entry) (err error) {
	out, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close archive file: %w", cerr)
		}
	}()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	for _, e := range entries {
		if err := addFile(tw, e); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zstd writer: %w", err)
	}
	return nil
}

func addFile(tw *tar.Writer, e Entry) error {
	f, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("create file info header: %w", err)
	}
	header.Name = e.Name

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write tar file header: %w", err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("copy %s to archive: %w", e.Path, err)
	}
	return nil
}

func (a *Archiver) compressWithBinary(archivePath string, entries []Entry) error {
	stagingDir, err := os.MkdirTemp("", "reel-archive-files")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(stagingDir)
	}()

	// entries are linked under their archive names so tar can pick them up from one directory
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		abs, err := filepath.Abs(e.Path)
		if err != nil {
			return err
		}
		if err := os.Symlink(abs, filepath.Join(stagingDir, e.Name)); err != nil {
			return fmt.Errorf("stage %s: %w", e.Path, err)
		}
		names = append(names, e.Name)
	}

	/*
		tar arguments:
		--use-compress-program: Pipe the output to zstd instead of using the built-in gzip compression
		-h: Archive the files the staging symlinks point to
		-c: Create archive
		-f: Output file
		-C: Resolve names relative to the staging dir
	*/
	tarArgs := []string{
		"--use-compress-program", "zstd --threads=0",
		"-h",
		"-c",
		"-f", archivePath,
		"-C", stagingDir,
	}
	tarArgs = append(tarArgs, names...)

	return a.runTar(tarArgs)
}

func (a *Archiver) extractWithBinary(archivePath string, destinationDirectory string) error {
	tarArgs := []string{
		"--use-compress-program", "zstd -d",
		"-x",
		"-f", archivePath,
		"-C", destinationDirectory,
	}
	return a.runTar(tarArgs)
}

func (a *Archiver) runTar(args []string) error {
	cmd := command.NewFactory(a.envRepo).Create("tar", args, nil)
	a.logger.Debugf("$ %s", cmd.PrintableCommandArgs())

	out, err := cmd.RunAndReturnTrimmedCombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("command failed with exit status %d (%s):\n%w", exitErr.ExitCode(), cmd.PrintableCommandArgs(), errors.New(out))
		}
		return fmt.Errorf("executing command failed (%s): %w", cmd.PrintableCommandArgs(), err)
	}
	return nil
}

func extractWithGoLib(archivePath string, destinationDirectory string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer func() {
		_ = f.Close()
	}()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar file: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if err := validateName(header.Name); err != nil {
			return err
		}

		target := filepath.Join(destinationDirectory, filepath.FromSlash(header.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("create target directories: %w", err)
		}
		fileToWrite, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode).Perm())
		if err != nil {
			return fmt.Errorf("create file: %w", err)
		}
		if _, err := io.Copy(fileToWrite, tr); err != nil {
			_ = fileToWrite.Close()
			return fmt.Errorf("copy content to file: %w", err)
		}
		// closed per file, a deferred close would hold every file open until the end
		if err := fileToWrite.Close(); err != nil {
			return fmt.Errorf("write file: %w", err)
		}
	}
	return nil
}

func validateName(name string) error {
	clean := filepath.ToSlash(filepath.Clean(name))
	if name == "" || filepath.IsAbs(name) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid archive entry name: %q", name)
	}
	return nil
}
