// Package network implements the Graph API side of reel publishing: container creation
// by public URL, the strategy orchestrator, processing status polling and publishing.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/reelpost/go-reelpost/reel/graph"
)

// ContainerPayload is the JSON body of a media container creation request.
type ContainerPayload struct {
	MediaType   graph.MediaKind `json:"media_type,omitempty"`
	VideoURL    string          `json:"video_url,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	UploadType  string          `json:"upload_type,omitempty"`
	Caption     string          `json:"caption"`
	CoverURL    string          `json:"cover_url,omitempty"`
	ShareToFeed string          `json:"share_to_feed,omitempty"`
}

type containerResponse struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

type containerStatusResponse struct {
	ID         string  `json:"id"`
	StatusCode *string `json:"status_code"`
	Status     string  `json:"status"`
}

type publishRequest struct {
	CreationID string `json:"creation_id"`
}

type idResponse struct {
	ID string `json:"id"`
}

type permalinkResponse struct {
	Permalink string `json:"permalink"`
}

// ContainerState is the processing state reported for a container.
type ContainerState struct {
	Status graph.ProcessingStatus
	// Detail is the free text status, e.g. "Error: Media upload has failed with error code 2207026".
	Detail string
}

// Identity is the id and name of a Graph node (user or app).
type Identity struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
}

// APIClient performs single Graph API calls. Every method is one request; policy lives in the callers.
type APIClient struct {
	creds     graph.Credentials
	transport graph.Transport
}

// NewAPIClient ...
func NewAPIClient(creds graph.Credentials, transport graph.Transport) APIClient {
	return APIClient{
		creds:     creds,
		transport: transport,
	}
}

// Credentials ...
func (c APIClient) Credentials() graph.Credentials {
	return c.creds
}

// Transport ...
func (c APIClient) Transport() graph.Transport {
	return c.transport
}

// CreateContainer creates a media container and returns its id and, for resumable uploads, its upload uri.
func (c APIClient) CreateContainer(ctx context.Context, payload ContainerPayload) (graph.MediaContainer, error) {
	const op = "create container"

	body, err := json.Marshal(payload)
	if err != nil {
		return graph.MediaContainer{}, err
	}

	req, err := graph.NewRequest(ctx, http.MethodPost, c.creds.GraphURL(nil, c.creds.UserID, "media"), body)
	if err != nil {
		return graph.MediaContainer{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.transport.Do(c.transport.Short, req, op)
	if err != nil {
		return graph.MediaContainer{}, err
	}

	var response containerResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return graph.MediaContainer{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if response.ID == "" {
		return graph.MediaContainer{}, fmt.Errorf("%s: %w", op, graph.ErrNoContainerID)
	}

	return graph.MediaContainer{
		ID:        response.ID,
		UploadURI: response.URI,
		Status:    graph.StatusUnknown,
	}, nil
}

// ContainerStatus fetches the processing state of a container. It is not retried by the client:
// the poller owns the attempts and the delay between them.
func (c APIClient) ContainerStatus(ctx context.Context, containerID string) (ContainerState, error) {
	query := url.Values{}
	query.Set("fields", "id,status_code,status")

	var response containerStatusResponse
	if err := c.get(ctx, "container status", c.creds.GraphURL(query, containerID), &response); err != nil {
		return ContainerState{}, err
	}

	return ContainerState{
		Status: graph.ParseProcessingStatus(response.StatusCode),
		Detail: response.Status,
	}, nil
}

// PublishContainer publishes a finished container and returns the media id.
func (c APIClient) PublishContainer(ctx context.Context, containerID string) (string, error) {
	const op = "publish"

	body, err := json.Marshal(publishRequest{CreationID: containerID})
	if err != nil {
		return "", err
	}

	req, err := graph.NewRequest(ctx, http.MethodPost, c.creds.GraphURL(nil, c.creds.UserID, "media_publish"), body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.transport.Do(c.transport.Short, req, op)
	if err != nil {
		return "", err
	}

	var response idResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", op, err)
	}
	if response.ID == "" {
		return "", fmt.Errorf("%s: response did not contain a media id", op)
	}

	return response.ID, nil
}

// MediaPermalink ...
func (c APIClient) MediaPermalink(ctx context.Context, mediaID string) (string, error) {
	query := url.Values{}
	query.Set("fields", "permalink")

	var response permalinkResponse
	if err := c.get(graph.WithIdempotent(ctx), "permalink", c.creds.GraphURL(query, mediaID), &response); err != nil {
		return "", err
	}
	if response.Permalink == "" {
		return "", fmt.Errorf("permalink: response did not contain a permalink")
	}

	return response.Permalink, nil
}

// Me returns the user the access token belongs to.
func (c APIClient) Me(ctx context.Context) (Identity, error) {
	query := url.Values{}
	query.Set("fields", "id,name")

	var identity Identity
	err := c.get(graph.WithIdempotent(ctx), "token user", c.creds.GraphURL(query, "me"), &identity)
	return identity, err
}

// App returns the app the access token was issued for.
func (c APIClient) App(ctx context.Context) (Identity, error) {
	query := url.Values{}
	query.Set("fields", "id,name,namespace")

	var identity Identity
	err := c.get(graph.WithIdempotent(ctx), "token app", c.creds.GraphURL(query, "app"), &identity)
	return identity, err
}

// Container reads the id of a container, failing when the token has no access to it.
func (c APIClient) Container(ctx context.Context, containerID string) (Identity, error) {
	query := url.Values{}
	query.Set("fields", "id")

	var identity Identity
	err := c.get(graph.WithIdempotent(ctx), "container lookup", c.creds.GraphURL(query, containerID), &identity)
	return identity, err
}

func (c APIClient) get(ctx context.Context, op, apiURL string, v interface{}) error {
	req, err := graph.NewRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return err
	}

	body, err := c.transport.Do(c.transport.Short, req, op)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
