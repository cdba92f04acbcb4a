// Response shaping for hook short-circuits and errors.
//
// DESIGN: A terminal or rejection on a completion-like call renders as a
// normal successful completion whose sole message carries the hook's text,
// so agent loops and SDK clients consume it without special casing. On every
// other call type the same outcome renders as a 400 error envelope. All
// error responses use the OpenAI envelope {"error":{message,type,code}}.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/remodlai/nova-gateway/internal/hooks"
	"github.com/remodlai/nova-gateway/internal/pipeline"
	"github.com/remodlai/nova-gateway/internal/router"
	"github.com/remodlai/nova-gateway/internal/upstream"
)

// Synthetic response ID prefixes. The "-hook" marker makes short-circuited
// responses identifiable in client logs.
const (
	chatSyntheticPrefix = "chcmpl-hook"
	textSyntheticPrefix = "cmpl-hook"
)

// writeJSON serializes v with the given status.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response_write_failed")
	}
}

// writeError writes an OpenAI-style error envelope.
func (g *Gateway) writeError(w http.ResponseWriter, message string, status int) {
	g.writeAPIError(w, status, message, "api_error", "")
}

func (g *Gateway) writeAPIError(w http.ResponseWriter, status int, message, errType, code string) {
	g.writeJSON(w, status, apiError{Error: apiErrorBody{
		Message: message,
		Type:    errType,
		Code:    code,
	}})
}

// writeShortCircuit renders a hook short-circuit (terminal or rejection
// text). Completion-like calls get a synthetic success, streamed when the
// client asked for a stream; everything else gets a 400 carrying the text.
func (g *Gateway) writeShortCircuit(w http.ResponseWriter, rc *hooks.RequestContext, text string, stream bool) {
	if !rc.CallType.IsCompletionLike() {
		g.writeAPIError(w, http.StatusBadRequest, text, "invalid_request_error", "request_blocked")
		return
	}
	if stream {
		g.writeSyntheticStream(w, rc, text)
		return
	}
	g.writeJSON(w, http.StatusOK, syntheticCompletion(rc.CallType, rc.Model, text))
}

// syntheticCompletion builds the unary short-circuit body.
func syntheticCompletion(ct hooks.CallType, model, text string) any {
	now := time.Now().Unix()
	if ct == hooks.CallTypeTextCompletion {
		return textCompletion{
			ID:      fmt.Sprintf("%s-%s", textSyntheticPrefix, uuid.New().String()),
			Object:  "text_completion",
			Created: now,
			Model:   model,
			Choices: []textChoice{{Text: text, FinishReason: "stop"}},
		}
	}
	return chatCompletion{
		ID:      fmt.Sprintf("%s-%s", chatSyntheticPrefix, uuid.New().String()),
		Object:  "chat.completion",
		Created: now,
		Model:   model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
	}
}

// writeSyntheticStream emits the short-circuit text as a two-event SSE
// stream: one content delta, one stop, then the DONE sentinel.
func (g *Gateway) writeSyntheticStream(w http.ResponseWriter, rc *hooks.RequestContext, text string) {
	setStreamHeaders(w)
	w.WriteHeader(http.StatusOK)

	id := fmt.Sprintf("%s-%s", chatSyntheticPrefix, uuid.New().String())
	now := time.Now().Unix()
	stop := "stop"
	events := []chatChunk{
		{ID: id, Object: "chat.completion.chunk", Created: now, Model: rc.Model,
			Choices: []chatChunkChoice{{Delta: chatDelta{Role: "assistant", Content: text}}}},
		{ID: id, Object: "chat.completion.chunk", Created: now, Model: rc.Model,
			Choices: []chatChunkChoice{{Delta: chatDelta{}, FinishReason: &stop}}},
	}

	flusher, _ := w.(http.Flusher)
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeCallError maps a pipeline or dispatch error onto the wire.
func (g *Gateway) writeCallError(w http.ResponseWriter, rc *hooks.RequestContext, stream bool, err error) {
	// Hook policy rejection: shaped like a terminal short-circuit.
	if rej, ok := hooks.AsRejection(err); ok {
		g.writeShortCircuit(w, rc, rej.Message, stream)
		return
	}

	// Routing found nothing for the model/tag combination.
	var noDep *router.NoDeploymentError
	if errors.As(err, &noDep) {
		g.writeAPIError(w, http.StatusBadRequest, noDep.Error(), "invalid_request_error", "model_not_found")
		return
	}

	// Backend said no: status, body and content type pass through verbatim.
	var upErr *upstream.UpstreamError
	if errors.As(err, &upErr) {
		ct := upErr.ContentType
		if ct == "" {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(upErr.StatusCode)
		if _, werr := w.Write(upErr.Body); werr != nil {
			log.Debug().Err(werr).Msg("response_write_failed")
		}
		return
	}

	// Unexpected hook failure: generic 500, details stay in the logs.
	if _, ok := pipeline.AsHookError(err); ok {
		g.writeError(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Client went away; nothing left to write.
	if errors.Is(err, context.Canceled) {
		return
	}

	// Transport-level dispatch failure.
	if errors.Is(err, context.DeadlineExceeded) {
		g.writeAPIError(w, http.StatusGatewayTimeout, "upstream timed out", "api_error", "upstream_timeout")
		return
	}
	g.writeAPIError(w, http.StatusBadGateway, "upstream request failed", "api_error", "upstream_unreachable")
}
