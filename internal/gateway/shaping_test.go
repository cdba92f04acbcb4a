package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/remodlai/nova-gateway/internal/hooks"
	"github.com/remodlai/nova-gateway/internal/pipeline"
	"github.com/remodlai/nova-gateway/internal/router"
	"github.com/remodlai/nova-gateway/internal/upstream"
)

// =============================================================================
// SHORT-CIRCUIT SHAPING
// =============================================================================

func TestShortCircuit_TextCompletionShape(t *testing.T) {
	g := &Gateway{}
	rec := httptest.NewRecorder()
	rc := &hooks.RequestContext{CallType: hooks.CallTypeTextCompletion, Model: "nova-chat"}

	g.writeShortCircuit(rec, rc, "blocked content", false)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "text_completion", gjson.Get(body, "object").String())
	assert.True(t, strings.HasPrefix(gjson.Get(body, "id").String(), textSyntheticPrefix))
	assert.Equal(t, "nova-chat", gjson.Get(body, "model").String())
	assert.Equal(t, "blocked content", gjson.Get(body, "choices.0.text").String())
	assert.Equal(t, "stop", gjson.Get(body, "choices.0.finish_reason").String())
}

func TestShortCircuit_NonCompletionIs400(t *testing.T) {
	g := &Gateway{}
	rec := httptest.NewRecorder()
	rc := &hooks.RequestContext{CallType: hooks.CallTypeEmbeddings, Model: "nova-embed"}

	g.writeShortCircuit(rec, rc, "not allowed", false)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "not allowed", gjson.Get(body, "error.message").String())
	assert.Equal(t, "request_blocked", gjson.Get(body, "error.code").String())
}

func TestShortCircuit_StreamedSyntheticChunks(t *testing.T) {
	g := &Gateway{}
	rec := httptest.NewRecorder()
	rc := &hooks.RequestContext{CallType: hooks.CallTypeCompletion, Model: "nova-chat"}

	g.writeShortCircuit(rec, rc, "blocked", true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := []string{}
	for _, line := range strings.Split(rec.Body.String(), "\n") {
		if strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	require.Len(t, events, 3)
	assert.Equal(t, "chat.completion.chunk", gjson.Get(events[0], "object").String())
	assert.Equal(t, "blocked", gjson.Get(events[0], "choices.0.delta.content").String())
	assert.Equal(t, "stop", gjson.Get(events[1], "choices.0.finish_reason").String())
	assert.Equal(t, "[DONE]", events[2])
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestCallError_Mapping(t *testing.T) {
	g := &Gateway{}
	rc := &hooks.RequestContext{CallType: hooks.CallTypeEmbeddings, Model: "nova-embed"}

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "no deployment",
			err:        &router.NoDeploymentError{Model: "ghost"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "model_not_found",
		},
		{
			name:       "hook error",
			err:        &pipeline.HookError{Hook: "audit", Stage: "pre_call", Err: errors.New("db locked")},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "upstream timeout",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "upstream_timeout",
		},
		{
			name:       "transport failure",
			err:        errors.New("connection refused"),
			wantStatus: http.StatusBadGateway,
			wantCode:   "upstream_unreachable",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			g.writeCallError(rec, rc, false, tc.err)
			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantCode != "" {
				assert.Equal(t, tc.wantCode, gjson.Get(rec.Body.String(), "error.code").String())
			}
		})
	}
}

func TestCallError_UpstreamPassthrough(t *testing.T) {
	g := &Gateway{}
	rec := httptest.NewRecorder()
	rc := &hooks.RequestContext{CallType: hooks.CallTypeCompletion, Model: "nova-chat"}

	g.writeCallError(rec, rc, false, &upstream.UpstreamError{
		StatusCode:  http.StatusTooManyRequests,
		Body:        []byte(`{"error":{"message":"slow down"}}`),
		ContentType: "application/json",
	})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":{"message":"slow down"}}`, rec.Body.String())
}

func TestCallError_ClientGoneWritesNothing(t *testing.T) {
	g := &Gateway{}
	rec := httptest.NewRecorder()
	rc := &hooks.RequestContext{CallType: hooks.CallTypeCompletion, Model: "nova-chat"}

	g.writeCallError(rec, rc, false, context.Canceled)

	assert.Equal(t, http.StatusOK, rec.Code) // recorder default, nothing written
	assert.Empty(t, rec.Body.String())
}
