package graph

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		body         string
		transportErr error
		want         ErrorKind
	}{
		{
			name:         "connection error",
			transportErr: &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			want:         KindTransient,
		},
		{
			name:         "cancelled",
			transportErr: fmt.Errorf("request: %w", context.Canceled),
			want:         KindFatal,
		},
		{
			name:         "deadline exceeded",
			transportErr: context.DeadlineExceeded,
			want:         KindTransient,
		},
		{
			name:       "precondition failed",
			statusCode: http.StatusPreconditionFailed,
			want:       KindOffsetInvalid,
		},
		{
			name:       "offset token in a 400 body",
			statusCode: http.StatusBadRequest,
			body:       `{"debug_info":{"type":"OffsetInvalidError","message":"offset mismatch"}}`,
			want:       KindOffsetInvalid,
		},
		{
			name:       "app id mismatch",
			statusCode: http.StatusBadRequest,
			body:       `{"error":{"message":"App ID mismatch for container","code":100}}`,
			want:       KindAppOwnershipMismatch,
		},
		{
			name:       "plain bad request",
			statusCode: http.StatusBadRequest,
			body:       `{"error":{"message":"Invalid parameter","code":100}}`,
			want:       KindFatal,
		},
		{
			name:       "unauthorized",
			statusCode: http.StatusUnauthorized,
			want:       KindAuth,
		},
		{
			name:       "forbidden",
			statusCode: http.StatusForbidden,
			want:       KindAuth,
		},
		{
			name:       "rate limited",
			statusCode: http.StatusTooManyRequests,
			want:       KindTransient,
		},
		{
			name:       "server error",
			statusCode: http.StatusBadGateway,
			body:       "<html>bad gateway</html>",
			want:       KindTransient,
		},
		{
			name:       "not found",
			statusCode: http.StatusNotFound,
			want:       KindFatal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.statusCode, []byte(tt.body), tt.transportErr)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestNewResponseError(t *testing.T) {
	body := []byte(`{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190,"error_subcode":463,"fbtrace_id":"AbC123"}}`)

	err := NewResponseError("create container", http.StatusUnauthorized, body)

	assert.Equal(t, KindAuth, err.Kind)
	assert.Equal(t, 190, err.Code)
	assert.Equal(t, 463, err.Subcode)
	assert.Equal(t, "OAuthException", err.Type)
	assert.Equal(t, "AbC123", err.TraceID)
	assert.Equal(t, "create container: auth error: HTTP 401: Invalid OAuth access token.", err.Error())
	assert.False(t, err.Retryable())
}

func TestNewResponseError_TruncatesBody(t *testing.T) {
	body := make([]byte, 2*maxErrorBodyLength)
	for i := range body {
		body[i] = 'x'
	}

	err := NewResponseError("publish", http.StatusInternalServerError, body)

	assert.Len(t, err.Body, maxErrorBodyLength)
	assert.True(t, err.Retryable())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("upload chunk: %w", NewResponseError("upload chunk", http.StatusPreconditionFailed, nil))

	assert.Equal(t, KindOffsetInvalid, KindOf(wrapped))
	assert.Equal(t, KindFatal, KindOf(errors.New("plain")))
	assert.True(t, IsRetryable(NewTransportError("status", errors.New("EOF"))))
	assert.False(t, IsRetryable(NewTransportError("status", context.Canceled)))
}

func TestRemediation(t *testing.T) {
	mismatch := NewResponseError("upload", http.StatusBadRequest, []byte(`{"error":{"message":"App ID mismatch"}}`))

	assert.Contains(t, Remediation(mismatch, "1234"), "App ID 1234")
	assert.Contains(t, Remediation(mismatch, ""), "IG_APP_ID not configured")
	assert.Contains(t, Remediation(NewResponseError("upload", http.StatusForbidden, nil), ""), "access token")
	assert.Empty(t, Remediation(errors.New("other"), "1234"))
}

func TestCompositeError(t *testing.T) {
	urlErr := NewResponseError("create container", http.StatusBadRequest, []byte(`{"error":{"message":"Media download failed"}}`))
	binaryErr := NewResponseError("upload chunk", http.StatusForbidden, nil)

	err := error(&CompositeError{Op: "create container", Errs: []error{urlErr, binaryErr}})

	require.ErrorContains(t, err, "Media download failed")
	require.ErrorContains(t, err, "HTTP 403")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, urlErr, apiErr)
	assert.Equal(t, KindFatal, KindOf(err))
}
