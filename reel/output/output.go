// Package output exposes the result of a publish to whatever runs after it: the process
// environment and, when configured, a KEY=value output file (the format CI runners read).
package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/google/uuid"

	"github.com/reelpost/go-reelpost/reel/graph"
)

// Output keys.
const (
	MediaIDKey     = "REEL_MEDIA_ID"
	PermalinkKey   = "REEL_PERMALINK"
	ContainerIDKey = "REEL_CONTAINER_ID"
	StrategyKey    = "REEL_STRATEGY"
)

// Exporter ...
type Exporter struct {
	envRepo    env.Repository
	outputFile string
}

// NewExporter creates an Exporter. An empty outputFile only sets the environment.
func NewExporter(envRepo env.Repository, outputFile string) Exporter {
	return Exporter{
		envRepo:    envRepo,
		outputFile: outputFile,
	}
}

// ExportPost exports the identifiers of a published post. A missing permalink is exported as empty.
func (e Exporter) ExportPost(post graph.PublishedPost) error {
	outputs := [][2]string{
		{MediaIDKey, post.MediaID},
		{PermalinkKey, post.PermalinkOrEmpty()},
		{ContainerIDKey, post.ContainerID},
		{StrategyKey, string(post.Strategy)},
	}

	for _, o := range outputs {
		if err := e.ExportOutput(o[0], o[1]); err != nil {
			return err
		}
	}
	return nil
}

// ExportOutput sets key in the environment and appends it to the output file.
func (e Exporter) ExportOutput(key, value string) error {
	if err := e.envRepo.Set(key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if e.outputFile == "" {
		return nil
	}

	f, err := os.OpenFile(e.outputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	if _, err := f.WriteString(formatOutput(key, value)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output %s: %w", key, err)
	}
	return f.Close()
}

// formatOutput writes multi line values with a heredoc style delimiter.
func formatOutput(key, value string) string {
	if !strings.ContainsAny(value, "\r\n") {
		return fmt.Sprintf("%s=%s\n", key, value)
	}
	delimiter := "EOF_" + uuid.NewString()
	return fmt.Sprintf("%s<<%s\n%s\n%s\n", key, delimiter, value, delimiter)
}
