// Package upstream dispatches requests to backend deployments.
//
// DESIGN: The gateway forwards the (hook-mutated) payload to the deployment
// chosen by the router, rewriting only the model field to the deployment's
// upstream model id. Auth is either a bearer API key or AWS SigV4 signing.
// Non-2xx responses become UpstreamError and pass through to the client
// verbatim; this package never retries.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/remodlai/nova-gateway/internal/payload"
	"github.com/remodlai/nova-gateway/internal/router"
)

const (
	// DefaultTimeout bounds one backend call when the deployment sets none.
	DefaultTimeout = 60 * time.Second

	// maxResponseSize prevents OOM on unexpectedly large backend responses (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxErrorBodyLen limits upstream error bodies in error strings.
	maxErrorBodyLen = 500
)

// UpstreamError is a non-2xx backend response. The gateway relays status and
// body to the client unchanged.
type UpstreamError struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	body := string(e.Body)
	if len(body) > maxErrorBodyLen {
		body = body[:maxErrorBodyLen] + "... (truncated)"
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, body)
}

// Request is one backend dispatch.
type Request struct {
	// Deployment is the routing target.
	Deployment *router.Deployment

	// Path is the inbound API path, appended to the deployment base URL.
	Path string

	// Body is the JSON payload as left by the pre-call hooks.
	Body []byte

	// Header carries safe client headers to forward (content negotiation
	// and tracing; never authorization).
	Header http.Header
}

// Response is a complete backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Latency    time.Duration
}

// Client dispatches to backend deployments.
type Client struct {
	httpClient *http.Client
	signers    *signerCache
}

// NewClient creates an upstream client. The shared http.Client pools
// connections across deployments; per-call timeouts come from contexts.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
		signers:    newSignerCache(),
	}
}

// Do dispatches a request and reads the whole response.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	httpResp, err := c.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}
	latency := time.Since(start)

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &UpstreamError{
			StatusCode:  httpResp.StatusCode,
			Body:        body,
			ContentType: httpResp.Header.Get("Content-Type"),
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Latency:    latency,
	}, nil
}

// DoStream dispatches a request and returns an iterator over the SSE events
// of the response. The iterator must be closed; closing it releases the
// connection. Nothing is buffered beyond one event.
func (c *Client) DoStream(ctx context.Context, req *Request) (*StreamResponse, error) {
	httpResp, err := c.send(ctx, req, true)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
		httpResp.Body.Close()
		return nil, &UpstreamError{
			StatusCode:  httpResp.StatusCode,
			Body:        body,
			ContentType: httpResp.Header.Get("Content-Type"),
		}
	}

	return &StreamResponse{
		Header:   httpResp.Header,
		Iterator: newSSEIterator(httpResp.Body),
	}, nil
}

// send builds, signs and executes the HTTP request.
func (c *Client) send(ctx context.Context, req *Request, stream bool) (*http.Response, error) {
	d := req.Deployment

	body, err := payload.SetModel(req.Body, d.UpstreamModel())
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite model: %w", err)
	}

	timeout := d.Backend.Timeout.Std()
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	var cancel context.CancelFunc
	if !stream {
		// Streams outlive the dial; their lifetime is the request context.
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	url := strings.TrimSuffix(d.Backend.BaseURL, "/") + req.Path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for _, h := range []string{"Accept", "Accept-Encoding", "X-Request-Id"} {
		if v := req.Header.Get(h); v != "" {
			httpReq.Header.Set(h, v)
		}
	}

	switch d.Backend.Auth {
	case router.AuthSigV4:
		signer, err := c.signers.get(d.Backend.Region)
		if err != nil {
			if cancel != nil {
				cancel()
			}
			return nil, err
		}
		if err := signer.SignRequest(ctx, httpReq, body); err != nil {
			if cancel != nil {
				cancel()
			}
			return nil, err
		}
	default:
		if d.Backend.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+d.Backend.APIKey)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	if cancel != nil {
		// Release the timeout once the body is drained.
		httpResp.Body = &cancelOnClose{ReadCloser: httpResp.Body, cancel: cancel}
	}
	return httpResp, nil
}

// cancelOnClose ties a context cancel to the response body lifetime.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
