package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	offsetInvalidToken = "OffsetInvalidError"
	appIDMismatchToken = "App ID mismatch"
	maxErrorBodyLength = 512
)

// Terminal failures of the upload and publish flow.
var (
	ErrNoContainerID     = errors.New("response did not contain a container id")
	ErrInternalURL       = errors.New("url is not reachable from the public internet")
	ErrRemoteProcessing  = errors.New("container processing failed on the remote side")
	ErrProcessingTimeout = errors.New("container was not ready before the polling budget ran out")
	ErrPublishFailed     = errors.New("publishing the container failed")
)

// ErrorKind is the closed taxonomy every failed request is mapped onto.
type ErrorKind int

// Error kinds.
const (
	KindFatal ErrorKind = iota
	KindTransient
	KindOffsetInvalid
	KindAppOwnershipMismatch
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindOffsetInvalid:
		return "offset_invalid"
	case KindAppOwnershipMismatch:
		return "app_ownership_mismatch"
	case KindAuth:
		return "auth"
	default:
		return "fatal"
	}
}

type errorEnvelope struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		Subcode   int    `json:"error_subcode"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// APIError is a classified failure of a single request.
type APIError struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	Code       int
	Subcode    int
	Type       string
	Message    string
	TraceID    string
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, e.Err)
	}

	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("%s: %s error: HTTP %d: %s", e.Op, e.Kind, e.StatusCode, msg)
}

// Unwrap ...
func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable ...
func (e *APIError) Retryable() bool {
	return e.Kind == KindTransient
}

// Classify maps a status code, an optional response body and an optional transport error
// onto an ErrorKind. It is only meaningful for requests that did not succeed.
func Classify(statusCode int, body []byte, transportErr error) ErrorKind {
	if transportErr != nil {
		if errors.Is(transportErr, context.Canceled) {
			return KindFatal
		}
		return KindTransient
	}

	if statusCode == http.StatusPreconditionFailed || strings.Contains(string(body), offsetInvalidToken) {
		return KindOffsetInvalid
	}

	if statusCode == http.StatusBadRequest {
		if strings.Contains(parseEnvelope(body).Error.Message, appIDMismatchToken) {
			return KindAppOwnershipMismatch
		}
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode == http.StatusTooManyRequests:
		return KindTransient
	case statusCode >= 500:
		return KindTransient
	}

	return KindFatal
}

// NewResponseError builds a classified error from a non-success response.
func NewResponseError(op string, statusCode int, body []byte) *APIError {
	envelope := parseEnvelope(body)

	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > maxErrorBodyLength {
		trimmed = trimmed[:maxErrorBodyLength]
	}

	return &APIError{
		Op:         op,
		Kind:       Classify(statusCode, body, nil),
		StatusCode: statusCode,
		Code:       envelope.Error.Code,
		Subcode:    envelope.Error.Subcode,
		Type:       envelope.Error.Type,
		Message:    envelope.Error.Message,
		TraceID:    envelope.Error.FBTraceID,
		Body:       trimmed,
	}
}

// NewTransportError builds a classified error from a failed round trip (connection error, timeout).
func NewTransportError(op string, err error) *APIError {
	return &APIError{
		Op:   op,
		Kind: Classify(0, nil, err),
		Err:  err,
	}
}

// KindOf returns the ErrorKind of err. Errors that are not an *APIError are fatal.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindFatal
}

// IsRetryable ...
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// Remediation returns operator guidance for errors that need a configuration fix, or an empty string.
func Remediation(err error, appID string) string {
	switch KindOf(err) {
	case KindAppOwnershipMismatch:
		if appID == "" {
			appID = "<IG_APP_ID not configured>"
		}
		return fmt.Sprintf("App ID mismatch detected: verify that the access token was generated for App ID %s "+
			"and that the container was created by the same app.", appID)
	case KindAuth:
		return "The access token was rejected: check that it is valid, not expired and has the instagram_content_publish permission."
	default:
		return ""
	}
}

// CompositeError collects the failures of every attempted upload strategy.
type CompositeError struct {
	Op   string
	Errs []error
}

func (e *CompositeError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return fmt.Sprintf("%s: %s", e.Op, strings.Join(msgs, "; "))
}

// Unwrap ...
func (e *CompositeError) Unwrap() []error {
	return e.Errs
}

func parseEnvelope(body []byte) errorEnvelope {
	var envelope errorEnvelope
	if len(body) == 0 {
		return envelope
	}
	_ = json.Unmarshal(body, &envelope) // non-JSON bodies leave the envelope empty
	return envelope
}
