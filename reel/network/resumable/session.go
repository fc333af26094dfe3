package resumable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/reelpost/go-reelpost/reel/graph"
	"github.com/reelpost/go-reelpost/reel/network"
)

// Session performs resumable binary uploads. Sessions are sequential: one upload at a time.
type Session struct {
	api       network.ContainerCreator
	creds     graph.Credentials
	transport graph.Transport
	config    Config
	stats     *Stats
}

// New creates a Session.
func New(api network.ContainerCreator, creds graph.Credentials, transport graph.Transport, config Config) *Session {
	return &Session{
		api:       api,
		creds:     creds,
		transport: transport,
		config:    config.withDefaults(),
		stats:     NewStats(),
	}
}

// Stats returns the transfer statistics of the latest upload.
func (s *Session) Stats() *Stats {
	return s.stats
}

// UploadBinary uploads the target without a cover image.
func (s *Session) UploadBinary(ctx context.Context, target graph.UploadTarget, caption string) (string, error) {
	return s.Upload(ctx, Params{Target: target, Caption: caption})
}

// Upload creates a resumable container and streams the file into it chunk by chunk.
// It returns the container id once the server accepted every byte.
func (s *Session) Upload(ctx context.Context, params Params) (string, error) {
	s.stats = NewStats()

	target := params.Target
	if target.Size <= 0 {
		return "", fmt.Errorf("upload target %s has no content", target.Path)
	}

	reader, err := NewFileChunkReader(target.Path)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			graph.Emit(s.config.Observer, graph.Event{Type: graph.EventWarning, Op: "close file", Message: "Failed to close upload file", Err: err})
		}
	}()

	container, err := s.initialize(ctx, params)
	if err != nil {
		return "", err
	}

	if err := s.transfer(ctx, container, reader, target.Size); err != nil {
		return "", err
	}

	graph.Emit(s.config.Observer, graph.Event{
		Type:        graph.EventInfo,
		Op:          "binary upload",
		ContainerID: container.ID,
		Message:     fmt.Sprintf("Binary upload of container %s completed in %s (%d chunks, avg %s, %d retries, %d resyncs)",
			container.ID, s.stats.TotalDuration().Round(time.Millisecond), s.stats.FinishedCount(),
			s.stats.Average().Round(time.Millisecond), s.stats.Retries(), s.stats.Resyncs()),
	})

	return container.ID, nil
}

func (s *Session) initialize(ctx context.Context, params Params) (graph.MediaContainer, error) {
	payload := network.ContainerPayload{
		MediaType:   params.Target.Kind,
		UploadType:  "resumable",
		Caption:     params.Caption,
		ShareToFeed: "true",
	}
	if params.CoverURL != "" {
		if graph.IsInternalURL(params.CoverURL) {
			graph.Emit(s.config.Observer, graph.Event{
				Type:    graph.EventWarning,
				Op:      "binary upload",
				Message: fmt.Sprintf("Cover URL %s is not publicly reachable, uploading without cover", params.CoverURL),
			})
		} else {
			payload.CoverURL = params.CoverURL
		}
	}

	container, err := s.api.CreateContainer(ctx, payload)
	if err != nil {
		return graph.MediaContainer{}, fmt.Errorf("initialize binary upload: %w", err)
	}

	if container.UploadURI == "" {
		container.UploadURI = s.creds.UploadURI(container.ID)
	}

	graph.Emit(s.config.Observer, graph.Event{
		Type:        graph.EventInfo,
		Op:          "binary upload",
		ContainerID: container.ID,
		Message:     fmt.Sprintf("Upload session initialized, container: %s, upload uri: %s", container.ID, container.UploadURI),
	})

	return container, nil
}

func (s *Session) transfer(ctx context.Context, container graph.MediaContainer, reader ChunkReader, fileSize int64) error {
	cursor := NewTransferCursor(fileSize, s.config.ChunkSize)

	for !cursor.Done() {
		if cursor.Offset > 0 {
			s.syncOffset(ctx, container, &cursor)
			if cursor.Done() {
				break
			}
		}

		if err := s.sendChunk(ctx, container, reader, &cursor); err != nil {
			return err
		}
	}

	return nil
}

// syncOffset aligns the cursor with the server. A failed check is reported and ignored.
func (s *Session) syncOffset(ctx context.Context, container graph.MediaContainer, cursor *TransferCursor) {
	serverOffset, ok, err := s.queryOffset(ctx, container.UploadURI)
	if err != nil {
		graph.Emit(s.config.Observer, graph.Event{
			Type:        graph.EventWarning,
			Op:          "offset check",
			ContainerID: container.ID,
			Message:     "Failed to check server offset",
			Err:         err,
		})
		return
	}
	if !ok {
		return
	}

	s.reconcile(container, cursor, serverOffset)
}

func (s *Session) reconcile(container graph.MediaContainer, cursor *TransferCursor, serverOffset int64) {
	localOffset := cursor.Offset
	if !cursor.Reconcile(serverOffset) {
		return
	}

	s.stats.Resync()
	graph.Emit(s.config.Observer, graph.Event{
		Type:         graph.EventResync,
		Op:           "offset check",
		ContainerID:  container.ID,
		Offset:       localOffset,
		ServerOffset: cursor.Offset,
		FileSize:     cursor.FileSize,
	})
}

func (s *Session) sendChunk(ctx context.Context, container graph.MediaContainer, reader ChunkReader, cursor *TransferCursor) error {
	retry := RetryState{Max: s.config.MaxRetryPerChunk}

	for {
		offset := cursor.Offset
		chunk, err := reader.ReadChunk(offset, cursor.NextLength())
		if err != nil {
			return err
		}

		start := time.Now()
		err = s.postChunk(ctx, container.UploadURI, chunk, offset, cursor.FileSize)
		if err == nil {
			s.stats.Update(time.Since(start), int64(len(chunk)))
			cursor.Advance(int64(len(chunk)))
			graph.Emit(s.config.Observer, graph.Event{
				Type:        graph.EventProgress,
				Op:          "upload chunk",
				ContainerID: container.ID,
				Offset:      cursor.Offset,
				FileSize:    cursor.FileSize,
				Percent:     cursor.Percent(),
			})
			return nil
		}

		retry.Fail()
		s.stats.Retry()

		kind := graph.KindOf(err)
		if kind != graph.KindTransient && kind != graph.KindOffsetInvalid {
			return &ChunkError{ContainerID: container.ID, Offset: offset, Attempts: retry.Attempt, Err: err}
		}
		if retry.Exhausted() {
			return &ChunkError{ContainerID: container.ID, Offset: offset, Attempts: retry.Attempt, Err: err}
		}

		graph.Emit(s.config.Observer, graph.Event{
			Type:        graph.EventRetry,
			Op:          "upload chunk",
			ContainerID: container.ID,
			Offset:      offset,
			FileSize:    cursor.FileSize,
			Attempt:     retry.Attempt,
			MaxAttempts: retry.Max,
			Err:         err,
		})

		if kind == graph.KindOffsetInvalid {
			// the next attempt resends from wherever the server says it stands
			s.syncOffset(ctx, container, cursor)
			if cursor.Done() {
				return nil
			}
			if cursor.Offset != offset {
				// a different chunk starts with a fresh budget
				retry = RetryState{Max: s.config.MaxRetryPerChunk}
			}
			continue
		}

		if err := s.config.Sleeper.Sleep(ctx, retry.Backoff()); err != nil {
			return &ChunkError{ContainerID: container.ID, Offset: offset, Attempts: retry.Attempt, Err: graph.NewTransportError("upload chunk", err)}
		}
	}
}

func (s *Session) postChunk(ctx context.Context, uploadURI string, chunk []byte, offset, fileSize int64) error {
	req, err := graph.NewRequest(ctx, http.MethodPost, uploadURI, chunk)
	if err != nil {
		return err
	}
	s.setUploadHeaders(req.Header)
	req.Header.Set("offset", strconv.FormatInt(offset, 10))
	req.Header.Set("file_size", strconv.FormatInt(fileSize, 10))
	req.Header.Set("Content-Type", "application/octet-stream")

	_, err = s.transport.Do(s.transport.Long, req, "upload chunk")
	return err
}

// queryOffset asks the upload host how many bytes it holds. ok is false when the response carries no offset.
func (s *Session) queryOffset(ctx context.Context, uploadURI string) (offset int64, ok bool, err error) {
	req, err := graph.NewRequest(ctx, http.MethodGet, uploadURI, nil)
	if err != nil {
		return 0, false, err
	}
	s.setUploadHeaders(req.Header)

	body, err := s.transport.Do(s.transport.Short, req, "offset check")
	if err != nil {
		return 0, false, err
	}

	return parseOffset(body)
}

func (s *Session) setUploadHeaders(header http.Header) {
	header.Set("Authorization", s.creds.UploadAuthorization())
	if s.creds.AppID != "" {
		header.Set("X-FB-App-ID", s.creds.AppID)
	}
}

type offsetResponse struct {
	Offset json.RawMessage `json:"offset"`
}

// parseOffset accepts the offset as a JSON number or a numeric string.
func parseOffset(body []byte) (int64, bool, error) {
	var response offsetResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, false, fmt.Errorf("decode offset response: %w", err)
	}

	raw := bytes.TrimSpace(response.Offset)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}

	raw = bytes.Trim(raw, `"`)
	offset, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid offset %s: %w", string(response.Offset), err)
	}

	return offset, true, nil
}
