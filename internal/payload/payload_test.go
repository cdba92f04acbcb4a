package payload_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/remodlai/nova-gateway/internal/payload"
)

func TestExtractModel(t *testing.T) {
	assert.Equal(t, "nova-embeddings-v1",
		payload.ExtractModel([]byte(`{"model":"nova-embeddings-v1","input":"hi"}`)))
	assert.Empty(t, payload.ExtractModel([]byte(`{"input":"hi"}`)))
	assert.Empty(t, payload.ExtractModel(nil))
}

func TestExtractTask(t *testing.T) {
	body := []byte(`{"model":"nova-embeddings-v1","task":"retrieval.query","input":"find docs"}`)
	assert.Equal(t, "retrieval.query", payload.ExtractTask(body))
	assert.Empty(t, payload.ExtractTask([]byte(`{"model":"m"}`)))
}

func TestExtractTags(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "present",
			body: `{"metadata":{"tags":["retrieval","code.query"]}}`,
			want: []string{"retrieval", "code.query"},
		},
		{name: "absent", body: `{"metadata":{}}`, want: nil},
		{name: "not an array", body: `{"metadata":{"tags":"oops"}}`, want: nil},
		{name: "skips empties", body: `{"metadata":{"tags":["a","",null,"b"]}}`, want: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, payload.ExtractTags([]byte(tt.body)))
		})
	}
}

func TestSetTags(t *testing.T) {
	t.Run("creates metadata object", func(t *testing.T) {
		out, err := payload.SetTags([]byte(`{"model":"m"}`), []string{"retrieval"})
		require.NoError(t, err)
		assert.Equal(t, []string{"retrieval"}, payload.ExtractTags(out))
		// Untouched fields survive.
		assert.Equal(t, "m", payload.ExtractModel(out))
	})

	t.Run("replaces existing tags", func(t *testing.T) {
		out, err := payload.SetTags([]byte(`{"metadata":{"tags":["old"],"team":"search"}}`), []string{"new", "tags"})
		require.NoError(t, err)
		assert.Equal(t, []string{"new", "tags"}, payload.ExtractTags(out))
		assert.Equal(t, "search", gjson.GetBytes(out, "metadata.team").String())
	})
}

func TestSetModel(t *testing.T) {
	out, err := payload.SetModel([]byte(`{"model":"nova-embeddings-v1","input":"x"}`), "nova-embeddings-v1-retrieval")
	require.NoError(t, err)
	assert.Equal(t, "nova-embeddings-v1-retrieval", payload.ExtractModel(out))
	assert.Equal(t, "x", gjson.GetBytes(out, "input").String())
}

func TestIsStream(t *testing.T) {
	assert.True(t, payload.IsStream([]byte(`{"stream":true}`)))
	assert.False(t, payload.IsStream([]byte(`{"stream":false}`)))
	assert.False(t, payload.IsStream([]byte(`{}`)))
}

func TestExtractUsage(t *testing.T) {
	body := []byte(`{"usage":{"prompt_tokens":12,"completion_tokens":34,"total_tokens":46}}`)
	u := payload.ExtractUsage(body)
	assert.Equal(t, 12, u.PromptTokens)
	assert.Equal(t, 34, u.CompletionTokens)
	assert.Equal(t, 46, u.TotalTokens)

	assert.Equal(t, payload.Usage{}, payload.ExtractUsage([]byte(`{}`)))
}

func TestExtractPromptText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "chat messages",
			body: `{"messages":[{"role":"system","content":"be brief"},{"role":"user","content":"hello world"}]}`,
			want: "be brief\nhello world",
		},
		{
			name: "multimodal parts",
			body: `{"messages":[{"role":"user","content":[{"type":"text","text":"describe"},{"type":"image_url","image_url":{"url":"http://x"}}]}]}`,
			want: "describe",
		},
		{
			name: "legacy prompt",
			body: `{"prompt":"complete me"}`,
			want: "complete me",
		},
		{
			name: "embedding input list",
			body: `{"input":["first doc","second doc"]}`,
			want: "first doc\nsecond doc",
		},
		{
			name: "empty",
			body: `{}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, payload.ExtractPromptText([]byte(tt.body)))
		})
	}
}

func TestExtractResponseText(t *testing.T) {
	chat := []byte(`{"choices":[{"message":{"role":"assistant","content":"hi there"}}]}`)
	assert.Equal(t, "hi there", payload.ExtractResponseText(chat))

	legacy := []byte(`{"choices":[{"text":"completed "},{"text":"text"}]}`)
	assert.Equal(t, "completed text", payload.ExtractResponseText(legacy))

	assert.Empty(t, payload.ExtractResponseText([]byte(`{"object":"list"}`)))
}

func TestExtractChunkText(t *testing.T) {
	delta := []byte(`{"choices":[{"delta":{"content":"tok"}}]}`)
	assert.Equal(t, "tok", payload.ExtractChunkText(delta))

	legacy := []byte(`{"choices":[{"text":"tok2"}]}`)
	assert.Equal(t, "tok2", payload.ExtractChunkText(legacy))

	assert.Empty(t, payload.ExtractChunkText([]byte(`{"choices":[{"delta":{}}]}`)))
}

func TestExtractUser(t *testing.T) {
	assert.Equal(t, "user-42", payload.ExtractUser([]byte(`{"user":"user-42"}`)))
	assert.Empty(t, payload.ExtractUser([]byte(`{}`)))
}
