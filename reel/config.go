package reel

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/docker/go-units"

	"github.com/reelpost/go-reelpost/reel/graph"
	"github.com/reelpost/go-reelpost/reel/network"
	"github.com/reelpost/go-reelpost/reel/network/resumable"
	"github.com/reelpost/go-reelpost/reel/storage"
	"github.com/reelpost/go-reelpost/stepconf"
)

// Config is the environment driven configuration of a publish run.
type Config struct {
	AccessToken   stepconf.Secret `env:"IG_ACCESS_TOKEN,required"`
	UserID        string          `env:"IG_USER_ID,required"`
	AppID         string          `env:"IG_APP_ID"`
	APIVersion    string          `env:"IG_API_VERSION"`
	GraphBaseURL  string          `env:"IG_GRAPH_URL"`
	UploadBaseURL string          `env:"IG_UPLOAD_URL"`
	HTTPRetries   int             `env:"IG_HTTP_RETRIES"`

	S3Endpoint    string          `env:"S3_ENDPOINT_URL"`
	S3PublicURL   string          `env:"S3_PUBLIC_URL"`
	S3AccessKey   stepconf.Secret `env:"S3_ACCESS_KEY"`
	S3SecretKey   stepconf.Secret `env:"S3_SECRET_KEY"`
	S3Bucket      string          `env:"S3_BUCKET_NAME"`
	S3Region      string          `env:"S3_REGION"`
	PresignExpiry time.Duration   `env:"S3_PRESIGN_EXPIRY"`

	VideoPath       string        `env:"REEL_VIDEO_PATH"`
	ThumbnailPath   string        `env:"REEL_THUMBNAIL_PATH"`
	Caption         string        `env:"REEL_CAPTION"`
	CaptionFile     string        `env:"REEL_CAPTION_FILE,file"`
	ChunkSize       string        `env:"REEL_CHUNK_SIZE"`
	PollMaxAttempts int           `env:"REEL_POLL_MAX_ATTEMPTS"`
	PollDelay       time.Duration `env:"REEL_POLL_DELAY"`
	PipelineRetries int           `env:"REEL_PIPELINE_RETRIES"`
	ArchiveDir      string        `env:"REEL_ARCHIVE_DIR"`
	OutputFile      string        `env:"REEL_OUTPUT_FILE"`
	Verbose         bool          `env:"REEL_VERBOSE"`
}

// DefaultConfig ...
func DefaultConfig() Config {
	transport := graph.DefaultTransportConfig()
	return Config{
		APIVersion:      graph.DefaultAPIVersion,
		GraphBaseURL:    graph.DefaultGraphBaseURL,
		UploadBaseURL:   graph.DefaultUploadBaseURL,
		HTTPRetries:     transport.ReadRetries,
		S3Region:        "us-east-1",
		PresignExpiry:   time.Hour,
		ChunkSize:       "4MiB",
		PollMaxAttempts: network.DefaultPollMaxAttempts,
		PollDelay:       network.DefaultPollDelay,
	}
}

// LoadConfig reads the configuration from envRepo on top of the defaults.
// The caption file is only read when no inline caption is given.
func LoadConfig(envRepo env.Repository) (Config, error) {
	cfg := DefaultConfig()
	if err := stepconf.NewInputParser(envRepo).Parse(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Caption == "" && cfg.CaptionFile != "" {
		b, err := os.ReadFile(cfg.CaptionFile)
		if err != nil {
			return Config{}, fmt.Errorf("read caption file: %w", err)
		}
		cfg.Caption = strings.TrimRight(string(b), "\r\n")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.HTTPRetries < 0 {
		errs = append(errs, errors.New("IG_HTTP_RETRIES must not be negative"))
	}
	if c.PipelineRetries < 0 {
		errs = append(errs, errors.New("REEL_PIPELINE_RETRIES must not be negative"))
	}
	if c.PollMaxAttempts <= 0 {
		errs = append(errs, errors.New("REEL_POLL_MAX_ATTEMPTS must be positive"))
	}
	if c.PollDelay < 0 {
		errs = append(errs, errors.New("REEL_POLL_DELAY must not be negative"))
	}
	if _, err := c.ChunkSizeBytes(); err != nil {
		errs = append(errs, err)
	}
	if c.S3Bucket != "" && (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		errs = append(errs, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY must be set together"))
	}
	return errors.Join(errs...)
}

// Credentials ...
func (c Config) Credentials() graph.Credentials {
	return graph.Credentials{
		AccessToken:   string(c.AccessToken),
		UserID:        c.UserID,
		AppID:         c.AppID,
		APIVersion:    c.APIVersion,
		GraphBaseURL:  c.GraphBaseURL,
		UploadBaseURL: c.UploadBaseURL,
	}
}

// TransportConfig ...
func (c Config) TransportConfig() graph.TransportConfig {
	cfg := graph.DefaultTransportConfig()
	cfg.ReadRetries = c.HTTPRetries
	cfg.DumpRequests = c.Verbose
	return cfg
}

// ChunkSizeBytes parses ChunkSize, e.g. "4MiB" or "8MB" (binary units).
func (c Config) ChunkSizeBytes() (int64, error) {
	if c.ChunkSize == "" {
		return resumable.DefaultChunkSize, nil
	}
	size, err := units.RAMInBytes(c.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("REEL_CHUNK_SIZE: %w", err)
	}
	if size <= 0 {
		return 0, fmt.Errorf("REEL_CHUNK_SIZE must be positive: %s", c.ChunkSize)
	}
	return size, nil
}

// StorageEnabled reports whether an object store is configured for the URL strategy.
func (c Config) StorageEnabled() bool {
	return c.S3Bucket != ""
}

// S3Params ...
func (c Config) S3Params() storage.S3Params {
	return storage.S3Params{
		Endpoint:        c.S3Endpoint,
		PublicURL:       c.S3PublicURL,
		Bucket:          c.S3Bucket,
		Region:          c.S3Region,
		AccessKeyID:     string(c.S3AccessKey),
		SecretAccessKey: string(c.S3SecretKey),
		PresignExpiry:   c.PresignExpiry,
	}
}
