// Request handler - classify, hook, route, dispatch, relay.
//
// DESIGN: One handler serves all six call-type routes. The flow per request:
//
//	classify call type → parse payload → pre-call hooks → route →
//	dispatch (raced with moderation for chat) → post-call / stream relay
//
// The routing selection holds an in-flight reservation; every exit path
// either releases it with the observed outcome or abandons it when the
// backend never got to answer (hook rejection, client disconnect).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/remodlai/nova-gateway/internal/hooks"
	"github.com/remodlai/nova-gateway/internal/hooks/usage"
	"github.com/remodlai/nova-gateway/internal/monitoring"
	"github.com/remodlai/nova-gateway/internal/payload"
	"github.com/remodlai/nova-gateway/internal/pipeline"
	"github.com/remodlai/nova-gateway/internal/router"
	"github.com/remodlai/nova-gateway/internal/upstream"
)

// handleCall returns the handler for one call-type route.
func (g *Gateway) handleCall(callType hooks.CallType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		maxBody := g.cfg.Server.MaxBodyBytes
		if maxBody == 0 {
			maxBody = DefaultMaxBodyBytes
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				g.writeAPIError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
					"invalid_request_error", "body_too_large")
				return
			}
			g.writeAPIError(w, http.StatusBadRequest, "failed to read request body",
				"invalid_request_error", "")
			return
		}

		g.serveCall(w, r, callType, body)
	}
}

// serveCall runs one parsed request through the pipeline and router.
func (g *Gateway) serveCall(w http.ResponseWriter, r *http.Request, callType hooks.CallType, body []byte) {
	ctx := r.Context()
	start := time.Now()
	requestID := monitoring.RequestIDFromContext(ctx)

	rc := &hooks.RequestContext{
		RequestID:  requestID,
		CallType:   callType,
		Model:      payload.ExtractModel(body),
		Payload:    body,
		Tags:       payload.ExtractTags(body),
		Caller:     callerIdentity(r, body),
		ReceivedAt: start,
	}
	stream := payload.IsStream(body)

	event := &monitoring.RoutingEvent{
		RequestID: requestID,
		Timestamp: start,
		Method:    r.Method,
		Path:      r.URL.Path,
		ClientIP:  g.getClientIP(r),
		CallType:  string(callType),
		Model:     rc.Model,
		Stream:    stream,
	}
	defer g.recordEvent(event, rc, start)

	if rc.Model == "" {
		g.alerts.FlagInvalidRequest(requestID, "missing model")
		event.StatusCode = http.StatusBadRequest
		g.writeAPIError(w, http.StatusBadRequest, "model is required", "invalid_request_error", "")
		return
	}

	// Pre-call chain: hooks mutate rc in place, may short-circuit.
	terminal, err := g.pipeline.PreCall(ctx, rc)
	if err != nil {
		g.finishError(w, rc, event, stream, err)
		return
	}
	if terminal != nil {
		event.StatusCode = shortCircuitStatus(callType)
		event.Success = callType.IsCompletionLike()
		g.writeShortCircuit(w, rc, terminal.Text, stream)
		return
	}

	// Routing: the selection reserves the deployment until released.
	sel, err := g.router.Route(ctx, rc.Model, rc.Tags)
	if err != nil {
		g.finishError(w, rc, event, stream, err)
		return
	}
	rc.Deployment = sel.Deployment.ID
	event.DeploymentID = sel.Deployment.ID
	event.Strategy = sel.Strategy
	event.Tags = rc.Tags
	g.metrics.RecordRoutingDecision(rc.Model, sel.Strategy)
	g.metrics.SetDeploymentInFlight(sel.Deployment.ID, sel.Deployment.InFlight())

	w.Header().Set(HeaderModelID, sel.Deployment.UpstreamModel())

	upReq := &upstream.Request{
		Deployment: sel.Deployment,
		Path:       r.URL.Path,
		Body:       rc.Payload,
		Header:     forwardHeaders(r),
	}

	if stream {
		g.serveStream(w, ctx, rc, event, sel, upReq, start)
		return
	}
	g.serveUnary(w, ctx, rc, event, sel, upReq, start)
}

// serveUnary dispatches, runs the post-call chain and writes the response.
func (g *Gateway) serveUnary(w http.ResponseWriter, ctx context.Context, rc *hooks.RequestContext, event *monitoring.RoutingEvent, sel *router.Selection, upReq *upstream.Request, start time.Time) {
	resp, err := pipeline.Dispatch(g.pipeline, ctx, rc, func(ctx context.Context) (*hooks.Response, error) {
		ur, derr := g.upstream.Do(ctx, upReq)
		if derr != nil {
			return nil, derr
		}
		return &hooks.Response{
			StatusCode: ur.StatusCode,
			Header:     ur.Header,
			Body:       ur.Body,
			Latency:    ur.Latency,
		}, nil
	})
	if err != nil {
		g.settle(sel, start, err)
		g.flagDispatchFailure(rc, sel.Deployment.ID, err)
		g.finishError(w, rc, event, false, err)
		return
	}

	if err := g.pipeline.PostCallSuccess(ctx, rc, resp); err != nil {
		sel.Release(resp.Latency, nil)
		g.finishError(w, rc, event, false, err)
		return
	}
	sel.Release(resp.Latency, nil)
	g.metrics.SetDeploymentLatency(sel.Deployment.ID, sel.Deployment.LatencyEWMA())

	event.StatusCode = resp.StatusCode
	event.Success = true

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	if _, werr := w.Write(resp.Body); werr != nil {
		log.Debug().Err(werr).Str("request_id", rc.RequestID).Msg("response_write_failed")
	}
}

// serveStream dispatches a streaming call and relays SSE events to the
// client as they arrive.
func (g *Gateway) serveStream(w http.ResponseWriter, ctx context.Context, rc *hooks.RequestContext, event *monitoring.RoutingEvent, sel *router.Selection, upReq *upstream.Request, start time.Time) {
	sr, err := pipeline.Dispatch(g.pipeline, ctx, rc, func(ctx context.Context) (*upstream.StreamResponse, error) {
		return g.upstream.DoStream(ctx, upReq)
	})
	if err != nil {
		g.settle(sel, start, err)
		g.flagDispatchFailure(rc, sel.Deployment.ID, err)
		g.finishError(w, rc, event, true, err)
		return
	}

	it := g.pipeline.WrapStream(rc, sr.Iterator)
	defer it.Close()

	setStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	chunks := 0
	var relayErr error
	for {
		chunk, nerr := it.Next(ctx)
		if nerr == io.EOF {
			break
		}
		if nerr != nil {
			relayErr = nerr
			break
		}
		if _, werr := fmt.Fprintf(w, "data: %s\n\n", chunk); werr != nil {
			// Client went away; stop pulling from upstream.
			relayErr = context.Canceled
			break
		}
		if flusher != nil {
			flusher.Flush()
		}
		chunks++
	}
	g.metrics.RecordStreamChunks(chunks)

	if relayErr != nil {
		g.settle(sel, start, relayErr)
		event.StatusCode = http.StatusOK
		event.Error = relayErr.Error()
		log.Warn().Err(relayErr).Str("request_id", rc.RequestID).Int("chunks", chunks).Msg("stream_interrupted")
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
	sel.Release(time.Since(start), nil)
	g.metrics.SetDeploymentLatency(sel.Deployment.ID, sel.Deployment.LatencyEWMA())
	event.StatusCode = http.StatusOK
	event.Success = true
}

// settle resolves the routing reservation for a failed call. Backend faults
// (non-2xx, transport errors, timeouts) count against the deployment; hook
// outcomes and client disconnects do not.
func (g *Gateway) settle(sel *router.Selection, start time.Time, err error) {
	if _, ok := hooks.AsRejection(err); ok {
		sel.Abandon()
		return
	}
	if _, ok := pipeline.AsHookError(err); ok {
		sel.Abandon()
		return
	}
	if errors.Is(err, context.Canceled) {
		sel.Abandon()
		return
	}
	sel.Release(time.Since(start), err)
}

// flagDispatchFailure raises alerts and failure notifications for backend
// faults. Hook rejections already notified inside the pipeline.
func (g *Gateway) flagDispatchFailure(rc *hooks.RequestContext, deploymentID string, err error) {
	var upErr *upstream.UpstreamError
	switch {
	case errors.As(err, &upErr):
		g.alerts.FlagUpstreamError(rc.RequestID, deploymentID, upErr.StatusCode, upErr.Error())
		g.pipeline.NotifyFailure(rc, err)
	case errors.Is(err, context.DeadlineExceeded):
		g.alerts.FlagUpstreamTimeout(rc.RequestID, deploymentID, time.Since(rc.ReceivedAt))
		g.pipeline.NotifyFailure(rc, err)
	case errors.Is(err, context.Canceled):
		// Client disconnect, not a fault.
	default:
		if _, ok := hooks.AsRejection(err); ok {
			return
		}
		if _, ok := pipeline.AsHookError(err); ok {
			return
		}
		g.pipeline.NotifyFailure(rc, err)
	}
}

// finishError shapes an error response and finalizes the telemetry event.
func (g *Gateway) finishError(w http.ResponseWriter, rc *hooks.RequestContext, event *monitoring.RoutingEvent, stream bool, err error) {
	event.Error = err.Error()
	if rej, ok := hooks.AsRejection(err); ok {
		event.RejectedBy = rej.Hook
		if rc.CallType.IsCompletionLike() {
			event.StatusCode = http.StatusOK
		} else {
			event.StatusCode = rej.Status()
		}
	} else {
		event.StatusCode = errorStatus(err)
	}
	g.writeCallError(w, rc, stream, err)
}

// errorStatus mirrors writeCallError's status mapping for telemetry.
func errorStatus(err error) int {
	var noDep *router.NoDeploymentError
	var upErr *upstream.UpstreamError
	switch {
	case errors.As(err, &noDep):
		return http.StatusBadRequest
	case errors.As(err, &upErr):
		return upErr.StatusCode
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 0
	default:
		if _, ok := pipeline.AsHookError(err); ok {
			return http.StatusInternalServerError
		}
		return http.StatusBadGateway
	}
}

// shortCircuitStatus is the wire status of a terminal short-circuit.
func shortCircuitStatus(ct hooks.CallType) int {
	if ct.IsCompletionLike() {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

// recordEvent finalizes and emits the routing telemetry record.
func (g *Gateway) recordEvent(event *monitoring.RoutingEvent, rc *hooks.RequestContext, start time.Time) {
	event.TotalLatencyMs = time.Since(start).Milliseconds()
	if v, ok := rc.Meta(usage.MetaKey); ok {
		if u, ok := v.(payload.Usage); ok {
			event.PromptTokens = u.PromptTokens
			event.CompletionTokens = u.CompletionTokens
			event.TotalTokens = u.TotalTokens
		}
	}
	g.telemetry.RecordRouting(event)
}

// callerIdentity derives the caller from the auth header and payload. The
// gateway never validates credentials; the alias is safe to log.
func callerIdentity(r *http.Request, body []byte) hooks.Identity {
	return hooks.Identity{
		KeyAlias: maskBearer(r.Header.Get("Authorization")),
		User:     payload.ExtractUser(body),
	}
}

// maskBearer reduces a bearer token to a loggable alias: first and last four
// characters with the middle elided.
func maskBearer(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return ""
	}
	token := header[len(prefix):]
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// forwardHeaders picks the safe client headers to pass upstream.
func forwardHeaders(r *http.Request) http.Header {
	fwd := make(http.Header)
	for _, name := range []string{"Accept", "Accept-Encoding", HeaderRequestID} {
		if v := r.Header.Get(name); v != "" {
			fwd.Set(name, v)
		}
	}
	return fwd
}
