package gateway_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/remodlai/nova-gateway/internal/config"
	"github.com/remodlai/nova-gateway/internal/gateway"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// testConfig builds a minimal valid gateway configuration pointed at the
// given deployments.
func testConfig(models []config.ModelConfig, hookCfgs []config.HookConfig) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  config.Duration(30 * time.Second),
			WriteTimeout: config.Duration(30 * time.Second),
		},
		Router: config.RouterConfig{},
		Models: models,
		Hooks:  hookCfgs,
		Monitoring: config.MonitoringConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}

func singleBackend(modelName, baseURL, upstreamModel string, tags ...string) []config.ModelConfig {
	return []config.ModelConfig{{
		ModelName: modelName,
		Backend: config.BackendConfig{
			BaseURL: baseURL,
			APIKey:  "test-key",
			Model:   upstreamModel,
		},
		Tags: tags,
	}}
}

// newTestServer builds a gateway and mounts it on an httptest server.
func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	g, err := gateway.New(cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(g.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

// =============================================================================
// PROXY PATH
// =============================================================================

func TestGateway_ChatCompletionProxied(t *testing.T) {
	var gotModel atomic.Value
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotModel.Store(gjson.GetBytes(body, "model").String())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","model":"nova-pro-v2","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
	}))
	defer backend.Close()

	srv := newTestServer(t, testConfig(singleBackend("nova-chat", backend.URL, "nova-pro-v2"), nil))

	resp := postJSON(t, srv.URL+"/v1/chat/completions",
		`{"model":"nova-chat","messages":[{"role":"user","content":"hello"}]}`)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hi", gjson.Get(body, "choices.0.message.content").String())
	// The logical model name was rewritten for the backend.
	assert.Equal(t, "nova-pro-v2", gotModel.Load())
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Equal(t, "nova-pro-v2", resp.Header.Get("X-Remodl-Model-Id"))
}

func TestGateway_UpstreamErrorPassthrough(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota exhausted","type":"rate_limit_error"}}`)
	}))
	defer backend.Close()

	srv := newTestServer(t, testConfig(singleBackend("nova-chat", backend.URL, ""), nil))

	resp := postJSON(t, srv.URL+"/v1/chat/completions",
		`{"model":"nova-chat","messages":[{"role":"user","content":"hello"}]}`)
	body := readBody(t, resp)

	// Backend status and body arrive verbatim.
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "quota exhausted", gjson.Get(body, "error.message").String())
}

func TestGateway_UnknownModelIs400(t *testing.T) {
	srv := newTestServer(t, testConfig(singleBackend("nova-chat", "http://127.0.0.1:1", ""), nil))

	resp := postJSON(t, srv.URL+"/v1/chat/completions",
		`{"model":"nope","messages":[{"role":"user","content":"hello"}]}`)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "model_not_found", gjson.Get(body, "error.code").String())
}

func TestGateway_MissingModelIs400(t *testing.T) {
	srv := newTestServer(t, testConfig(singleBackend("nova-chat", "http://127.0.0.1:1", ""), nil))

	resp := postJSON(t, srv.URL+"/v1/chat/completions", `{"messages":[]}`)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, gjson.Get(body, "error.message").String(), "model is required")
}

func TestGateway_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, testConfig(singleBackend("nova-chat", "http://127.0.0.1:1", ""), nil))

	resp, err := http.Get(srv.URL + "/v1/chat/completions")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGateway_BodyTooLarge(t *testing.T) {
	cfg := testConfig(singleBackend("nova-chat", "http://127.0.0.1:1", ""), nil)
	cfg.Server.MaxBodyBytes = 64

	srv := newTestServer(t, cfg)

	resp := postJSON(t, srv.URL+"/v1/chat/completions",
		`{"model":"nova-chat","messages":[{"role":"user","content":"`+strings.Repeat("x", 200)+`"}]}`)
	readBody(t, resp)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

// =============================================================================
// TAG ROUTING THROUGH THE FULL STACK
// =============================================================================

func TestGateway_TagsSelectDeployment(t *testing.T) {
	var hits atomic.Int64
	tagged := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	defer tagged.Close()

	models := []config.ModelConfig{
		{
			ModelName: "nova-embeddings-v1",
			Backend:   config.BackendConfig{BaseURL: "http://127.0.0.1:1"},
			Tags:      []string{"default"},
		},
		{
			ModelName: "nova-embeddings-v1",
			Backend:   config.BackendConfig{BaseURL: tagged.URL},
			Tags:      []string{"classify"},
		},
	}
	srv := newTestServer(t, testConfig(models, nil))

	resp := postJSON(t, srv.URL+"/v1/embeddings",
		`{"model":"nova-embeddings-v1","input":"text","metadata":{"tags":["classify"]}}`)
	readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), hits.Load())
}

func TestGateway_TaskRouterSteersEmbeddings(t *testing.T) {
	var hits atomic.Int64
	retrieval := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	defer retrieval.Close()

	models := []config.ModelConfig{
		{
			ModelName: "nova-embeddings-v1",
			Backend:   config.BackendConfig{BaseURL: "http://127.0.0.1:1"},
			Tags:      []string{"default"},
		},
		{
			ModelName: "nova-embeddings-v1",
			Backend:   config.BackendConfig{BaseURL: retrieval.URL},
			Tags:      []string{"retrieval"},
		},
	}
	hookCfgs := []config.HookConfig{{Name: "task_router"}}
	srv := newTestServer(t, testConfig(models, hookCfgs))

	// The task field, not explicit tags, picks the retrieval deployment.
	resp := postJSON(t, srv.URL+"/v1/embeddings",
		`{"model":"nova-embeddings-v1","input":"text","task":"retrieval"}`)
	readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), hits.Load())
}

// =============================================================================
// GUARDRAIL SHORT-CIRCUIT SHAPING
// =============================================================================

func guardrailHook() []config.HookConfig {
	return []config.HookConfig{{
		Name:   "guardrail",
		Params: map[string]any{"banned_terms": []any{"hello world"}},
	}}
}

func TestGateway_ModerationRejectionShapedAsCompletion(t *testing.T) {
	backendAnswered := make(chan struct{}, 1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Slow backend: moderation must win the race.
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
			return
		}
		backendAnswered <- struct{}{}
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer backend.Close()

	srv := newTestServer(t, testConfig(singleBackend("nova-chat", backend.URL, ""), guardrailHook()))

	resp := postJSON(t, srv.URL+"/v1/chat/completions",
		`{"model":"nova-chat","messages":[{"role":"user","content":"hello world"}]}`)
	body := readBody(t, resp)

	// Completion-like call: rejection renders as a synthetic success.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "chat.completion", gjson.Get(body, "object").String())
	assert.True(t, strings.HasPrefix(gjson.Get(body, "id").String(), "chcmpl-hook"))
	assert.Contains(t, gjson.Get(body, "choices.0.message.content").String(), "hello world")
	assert.Equal(t, "stop", gjson.Get(body, "choices.0.finish_reason").String())

	select {
	case <-backendAnswered:
		t.Fatal("backend result should have been discarded")
	default:
	}
}

func TestGateway_ModerationSkippedForEmbeddings(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	defer backend.Close()

	srv := newTestServer(t, testConfig(singleBackend("nova-embed", backend.URL, ""), guardrailHook()))

	// Banned term in an embeddings input: moderation only races chat calls.
	resp := postJSON(t, srv.URL+"/v1/embeddings",
		`{"model":"nova-embed","input":"hello world"}`)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "list", gjson.Get(body, "object").String())
}

// =============================================================================
// STREAMING
// =============================================================================

func TestGateway_StreamRelay(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, word := range []string{"alpha", "beta"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", word)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer backend.Close()

	srv := newTestServer(t, testConfig(singleBackend("nova-chat", backend.URL, ""), nil))

	resp := postJSON(t, srv.URL+"/v1/chat/completions",
		`{"model":"nova-chat","stream":true,"messages":[{"role":"user","content":"go"}]}`)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	assert.Contains(t, body, `"alpha"`)
	assert.Contains(t, body, `"beta"`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]"))
}

func TestGateway_StreamRejectionIsSyntheticStream(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer backend.Close()

	srv := newTestServer(t, testConfig(singleBackend("nova-chat", backend.URL, ""), guardrailHook()))

	resp := postJSON(t, srv.URL+"/v1/chat/completions",
		`{"model":"nova-chat","stream":true,"messages":[{"role":"user","content":"hello world"}]}`)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	assert.Contains(t, body, "chat.completion.chunk")
	assert.Contains(t, body, "data: [DONE]")
}

// =============================================================================
// OPERATIONAL ENDPOINTS AND MIDDLEWARE
// =============================================================================

func TestGateway_Health(t *testing.T) {
	srv := newTestServer(t, testConfig(singleBackend("nova-chat", "http://127.0.0.1:1", ""), nil))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, "ok", status["status"])
	assert.Equal(t, []any{"nova-chat"}, status["models"])
	assert.Equal(t, float64(1), status["deployments"])
	assert.Equal(t, "simple-shuffle", status["strategy"])
}

func TestGateway_MetricsExposed(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer backend.Close()

	srv := newTestServer(t, testConfig(singleBackend("nova-chat", backend.URL, ""), nil))

	readBody(t, postJSON(t, srv.URL+"/v1/chat/completions",
		`{"model":"nova-chat","messages":[{"role":"user","content":"x"}]}`))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "nova_gateway_requests_total")
	assert.Contains(t, body, "nova_gateway_routing_decisions_total")
}

func TestGateway_RateLimit(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer backend.Close()

	cfg := testConfig(singleBackend("nova-chat", backend.URL, ""), nil)
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}

	srv := newTestServer(t, cfg)
	req := `{"model":"nova-chat","messages":[{"role":"user","content":"x"}]}`

	first := postJSON(t, srv.URL+"/v1/chat/completions", req)
	readBody(t, first)
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := postJSON(t, srv.URL+"/v1/chat/completions", req)
	body := readBody(t, second)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, "rate_limit_exceeded", gjson.Get(body, "error.code").String())
}

func TestGateway_SecurityHeaders(t *testing.T) {
	srv := newTestServer(t, testConfig(singleBackend("nova-chat", "http://127.0.0.1:1", ""), nil))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}
