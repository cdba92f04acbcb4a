// Package taskrouting folds the embedding "task" field into routing tags.
//
// DESIGN: Nova embedding models expose task-specialized deployments
// (retrieval.query, retrieval.passage, text-matching, ...). Clients send the
// task inside the payload; this pre-call hook unions it into the request tag
// set so the tag router can steer the request to a matching deployment. The
// task field itself stays in the payload - backends understand it - and the
// tag mirror in metadata.tags keeps one source of truth for downstream
// observers.
//
// Known task values: retrieval, retrieval.query, retrieval.passage,
// text-matching, code.query, separation, classification. The vocabulary is
// not validated here; backends own that.
package taskrouting

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/remodlai/nova-gateway/internal/hooks"
	"github.com/remodlai/nova-gateway/internal/payload"
)

const (
	// HookName is the factory identifier.
	HookName = "task_router"

	// DefaultMarker identifies task-routed model families by substring.
	DefaultMarker = "nova-embeddings"
)

// Hook is the task-to-tag adapter.
type Hook struct {
	marker    string
	callTypes map[hooks.CallType]bool
}

// New builds the hook. Params:
//
//	marker     string   - model-name substring that enables the hook (default "nova-embeddings")
//	call_types []string - applicable call types (default ["embeddings"])
func New(params map[string]any) (*Hook, error) {
	h := &Hook{
		marker:    DefaultMarker,
		callTypes: map[hooks.CallType]bool{hooks.CallTypeEmbeddings: true},
	}
	if v, ok := params["marker"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("task_router: marker must be a non-empty string")
		}
		h.marker = s
	}
	if v, ok := params["call_types"]; ok {
		list, ok := v.([]any)
		if !ok || len(list) == 0 {
			return nil, fmt.Errorf("task_router: call_types must be a non-empty list")
		}
		h.callTypes = make(map[hooks.CallType]bool, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("task_router: call_types entries must be strings")
			}
			ct, err := hooks.ParseCallType(s)
			if err != nil {
				return nil, fmt.Errorf("task_router: %w", err)
			}
			h.callTypes[ct] = true
		}
	}
	return h, nil
}

// Name implements hooks.Hook.
func (h *Hook) Name() string { return HookName }

// PreCall unions the payload task into the request tags. No-op when the call
// type or model does not apply; a warning when an applicable request carries
// no task.
func (h *Hook) PreCall(_ context.Context, rc *hooks.RequestContext) (*hooks.Terminal, error) {
	if !h.callTypes[rc.CallType] {
		return nil, nil
	}
	if !strings.Contains(rc.Model, h.marker) {
		return nil, nil
	}

	task := payload.ExtractTask(rc.Payload)
	if task == "" {
		log.Warn().
			Str("request_id", rc.RequestID).
			Str("model", rc.Model).
			Msg("task_router: applicable request without task field")
		return nil, nil
	}

	if rc.HasTag(task) {
		return nil, nil
	}
	rc.AddTags(task)

	body, err := payload.SetTags(rc.Payload, rc.Tags)
	if err != nil {
		return nil, fmt.Errorf("task_router: failed to mirror tags: %w", err)
	}
	rc.Payload = body

	log.Debug().
		Str("request_id", rc.RequestID).
		Str("task", task).
		Strs("tags", rc.Tags).
		Msg("task_router: task folded into tags")
	return nil, nil
}

var _ hooks.PreCallHook = (*Hook)(nil)
