package taskrouting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/remodlai/nova-gateway/internal/hooks"
	"github.com/remodlai/nova-gateway/internal/hooks/taskrouting"
)

func embeddingContext(model string, body string) *hooks.RequestContext {
	return &hooks.RequestContext{
		RequestID: "req-1",
		CallType:  hooks.CallTypeEmbeddings,
		Model:     model,
		Payload:   []byte(body),
	}
}

func TestPreCall_FoldsTaskIntoTags(t *testing.T) {
	h, err := taskrouting.New(nil)
	require.NoError(t, err)

	rc := embeddingContext("nova-embeddings-v1",
		`{"model":"nova-embeddings-v1","input":"find me things","task":"retrieval.query"}`)

	term, err := h.PreCall(context.Background(), rc)
	require.NoError(t, err)
	assert.Nil(t, term)

	assert.Equal(t, []string{"retrieval.query"}, rc.Tags)
	// Mirrored into the payload for downstream observers.
	tags := gjson.GetBytes(rc.Payload, "metadata.tags")
	require.True(t, tags.IsArray())
	assert.Equal(t, "retrieval.query", tags.Array()[0].String())
	// The task field stays; backends understand it.
	assert.Equal(t, "retrieval.query", gjson.GetBytes(rc.Payload, "task").String())
}

func TestPreCall_UnionsWithExistingTags(t *testing.T) {
	h, err := taskrouting.New(nil)
	require.NoError(t, err)

	rc := embeddingContext("nova-embeddings-v1",
		`{"model":"nova-embeddings-v1","input":"x","task":"text-matching","metadata":{"tags":["team-search"]}}`)
	rc.Tags = []string{"team-search"}

	_, err = h.PreCall(context.Background(), rc)
	require.NoError(t, err)

	// Existing tags are preserved, never replaced.
	assert.Equal(t, []string{"team-search", "text-matching"}, rc.Tags)
}

func TestPreCall_NoOpCases(t *testing.T) {
	h, err := taskrouting.New(nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		rc   *hooks.RequestContext
	}{
		{
			name: "wrong call type",
			rc: &hooks.RequestContext{
				CallType: hooks.CallTypeCompletion,
				Model:    "nova-embeddings-v1",
				Payload:  []byte(`{"task":"retrieval"}`),
			},
		},
		{
			name: "model without marker",
			rc:   embeddingContext("text-embedding-3-small", `{"task":"retrieval"}`),
		},
		{
			name: "missing task field",
			rc:   embeddingContext("nova-embeddings-v1", `{"input":"x"}`),
		},
		{
			name: "empty task field",
			rc:   embeddingContext("nova-embeddings-v1", `{"task":""}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := string(tt.rc.Payload)
			term, err := h.PreCall(context.Background(), tt.rc)
			require.NoError(t, err)
			assert.Nil(t, term)
			assert.Empty(t, tt.rc.Tags)
			assert.Equal(t, before, string(tt.rc.Payload), "payload must be untouched")
		})
	}
}

func TestPreCall_DuplicateTaskIsIdempotent(t *testing.T) {
	h, err := taskrouting.New(nil)
	require.NoError(t, err)

	rc := embeddingContext("nova-embeddings-v1", `{"task":"retrieval"}`)
	rc.Tags = []string{"retrieval"}

	_, err = h.PreCall(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, []string{"retrieval"}, rc.Tags)
}

func TestNew_ParamValidation(t *testing.T) {
	h, err := taskrouting.New(map[string]any{
		"marker":     "custom-embed",
		"call_types": []any{"embeddings", "completion"},
	})
	require.NoError(t, err)
	assert.Equal(t, "task_router", h.Name())

	rc := &hooks.RequestContext{
		CallType: hooks.CallTypeCompletion,
		Model:    "custom-embed-large",
		Payload:  []byte(`{"task":"classification"}`),
	}
	_, err = h.PreCall(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, []string{"classification"}, rc.Tags)

	_, err = taskrouting.New(map[string]any{"marker": 7})
	require.Error(t, err)

	_, err = taskrouting.New(map[string]any{"call_types": []any{"chat"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown call type")
}
