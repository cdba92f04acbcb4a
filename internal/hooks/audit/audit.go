// Package audit appends one row per finished request to a local SQLite
// database.
//
// DESIGN: One *sql.DB handle in WAL mode; successes are written on the
// post-call path, failures on the notifier goroutine, so writes never
// contend with the client-facing flow. The schema is created on open. For
// multi-instance deployments point the audit trail of each instance at its
// own file.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/remodlai/nova-gateway/internal/hooks"
	"github.com/remodlai/nova-gateway/internal/payload"
)

const (
	// HookName is the factory identifier.
	HookName = "audit_log"

	// DefaultPath is where the audit database lives when unconfigured.
	DefaultPath = "nova-gateway-audit.db"
)

const schema = `
CREATE TABLE IF NOT EXISTS request_audit (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id        TEXT NOT NULL,
	ts                TEXT NOT NULL,
	key_alias         TEXT,
	user              TEXT,
	model             TEXT,
	deployment        TEXT,
	call_type         TEXT,
	tags              TEXT,
	status            TEXT NOT NULL,
	latency_ms        INTEGER,
	prompt_tokens     INTEGER,
	completion_tokens INTEGER,
	error             TEXT
);
CREATE INDEX IF NOT EXISTS idx_request_audit_ts ON request_audit(ts);
`

// Hook persists request outcomes.
type Hook struct {
	db *sql.DB
}

// New builds the hook. Params:
//
//	path string - SQLite database path (default "nova-gateway-audit.db")
func New(params map[string]any) (*Hook, error) {
	path := DefaultPath
	if v, ok := params["path"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("audit_log: path must be a non-empty string")
		}
		path = s
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("audit_log: failed to open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit_log: failed to create schema: %w", err)
	}
	return &Hook{db: db}, nil
}

// Name implements hooks.Hook.
func (h *Hook) Name() string { return HookName }

// PostCallSuccess records a successful request.
func (h *Hook) PostCallSuccess(ctx context.Context, rc *hooks.RequestContext, resp *hooks.Response) error {
	return h.insert(ctx, rc, "success", resp.Latency, nil)
}

// PostCallFailure records a failed request.
func (h *Hook) PostCallFailure(ctx context.Context, rc *hooks.RequestContext, callErr error) error {
	return h.insert(ctx, rc, "failure", time.Since(rc.ReceivedAt), callErr)
}

func (h *Hook) insert(ctx context.Context, rc *hooks.RequestContext, status string, latency time.Duration, callErr error) error {
	var promptTokens, completionTokens any
	if v, ok := rc.Meta("usage"); ok {
		if u, ok := v.(payload.Usage); ok {
			promptTokens = u.PromptTokens
			completionTokens = u.CompletionTokens
		}
	}
	var errText any
	if callErr != nil {
		errText = callErr.Error()
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO request_audit
			(request_id, ts, key_alias, user, model, deployment, call_type,
			 tags, status, latency_ms, prompt_tokens, completion_tokens, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rc.RequestID,
		time.Now().UTC().Format(time.RFC3339Nano),
		rc.Caller.KeyAlias,
		rc.Caller.User,
		rc.Model,
		rc.Deployment,
		string(rc.CallType),
		strings.Join(rc.Tags, ","),
		status,
		latency.Milliseconds(),
		promptTokens,
		completionTokens,
		errText,
	)
	if err != nil {
		return fmt.Errorf("audit_log: insert failed: %w", err)
	}
	return nil
}

// DB exposes the handle for reporting and tests.
func (h *Hook) DB() *sql.DB {
	return h.db
}

// Close flushes and closes the database.
func (h *Hook) Close() error {
	return h.db.Close()
}

var (
	_ hooks.PostCallSuccessHook = (*Hook)(nil)
	_ hooks.PostCallFailureHook = (*Hook)(nil)
)
