package graph

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// TransportConfig ...
type TransportConfig struct {
	// ShortTimeout bounds control requests: container creation, status checks, publish, offset checks.
	ShortTimeout time.Duration
	// LongTimeout bounds binary chunk transfers.
	LongTimeout time.Duration
	// ReadRetries is the number of in-client retries of idempotent requests on transient failures.
	ReadRetries  int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// DumpRequests logs request and response dumps at debug level.
	DumpRequests bool
}

// DefaultTransportConfig ...
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ShortTimeout: 10 * time.Second,
		LongTimeout:  60 * time.Second,
		ReadRetries:  2,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 5 * time.Second,
	}
}

// Transport holds the HTTP clients used against the Graph and upload hosts.
type Transport struct {
	Short *retryablehttp.Client
	Long  *retryablehttp.Client

	logger log.Logger
	dump   bool
}

// NewTransport builds a short and a long timeout client. Only requests marked with WithIdempotent
// are retried inside the client; everything else gets exactly one round trip and the caller decides.
func NewTransport(logger log.Logger, cfg TransportConfig) Transport {
	return Transport{
		Short:  newClient(logger, cfg, cfg.ShortTimeout, cfg.ReadRetries),
		Long:   newClient(logger, cfg, cfg.LongTimeout, 0),
		logger: logger,
		dump:   cfg.DumpRequests,
	}
}

func newClient(logger log.Logger, cfg TransportConfig, timeout time.Duration, retries int) *retryablehttp.Client {
	client := retryhttp.NewClient(logger)
	client.HTTPClient.Timeout = timeout
	client.RetryMax = retries
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	client.CheckRetry = CheckRetry
	// keep the last response intact so the body can be classified
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return client
}

type idempotentKey struct{}

// WithIdempotent marks the requests made with ctx as safe to repeat.
func WithIdempotent(ctx context.Context) context.Context {
	return context.WithValue(ctx, idempotentKey{}, true)
}

func isIdempotent(ctx context.Context) bool {
	v, _ := ctx.Value(idempotentKey{}).(bool)
	return v
}

// CheckRetry retries idempotent requests on transient failures only.
func CheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if !isIdempotent(ctx) {
		return false, nil
	}

	if err != nil {
		return Classify(0, nil, err) == KindTransient, nil
	}
	if resp == nil || resp.StatusCode < 300 {
		return false, nil
	}
	// body is not consumed here, 412 and mismatch tokens are never transient by status code alone
	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return true, nil
	}
	return false, nil
}

// NewRequest ...
func NewRequest(ctx context.Context, method, url string, body []byte) (*retryablehttp.Request, error) {
	var rawBody interface{}
	if body != nil {
		rawBody = body
	}
	req, err := retryablehttp.NewRequest(method, url, rawBody)
	if err != nil {
		return nil, err
	}
	return req.WithContext(ctx), nil
}

// Do sends req with client, reads the whole body and turns transport failures and
// non-2xx responses into classified *APIError values named after op.
func (t Transport) Do(client *retryablehttp.Client, req *retryablehttp.Request, op string) ([]byte, error) {
	if t.dump && t.logger != nil {
		if dump, err := httputil.DumpRequestOut(req.Request, false); err == nil {
			t.logger.Debugf("%s request: %s", op, string(dump))
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if ctxErr := req.Context().Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = ctxErr
		}
		return nil, NewTransportError(op, err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil && t.logger != nil {
			t.logger.Printf("%s", err)
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransportError(op, err)
	}

	if t.dump && t.logger != nil {
		t.logger.Debugf("%s response: HTTP %d %s", op, resp.StatusCode, string(body))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, NewResponseError(op, resp.StatusCode, body)
	}

	return body, nil
}
