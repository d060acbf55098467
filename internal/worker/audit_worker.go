package worker

// audit_worker.go
// Consumes QueueAudit. Handlers enqueue (user, action, detail) after a
// successful write; the worker records it as a structured log line.

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bodega/internal/logger"

	"github.com/rs/zerolog"
)

// AuditEntry is the payload of an audit job.
type AuditEntry struct {
	User   string    `json:"user"`
	Action string    `json:"action"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

type AuditWorker struct {
	log zerolog.Logger
}

func NewAuditWorker() *AuditWorker {
	return &AuditWorker{log: logger.WithComponent("audit")}
}

// NewAuditWorkerWithLogger is used by tests to capture output.
func NewAuditWorkerWithLogger(l zerolog.Logger) *AuditWorker {
	return &AuditWorker{log: l}
}

// Process implements JobHandler. A payload that cannot be decoded or lacks an
// action is permanent and goes straight to the DLQ.
func (w *AuditWorker) Process(_ context.Context, raw json.RawMessage) error {
	var e AuditEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return &PermanentError{Err: err}
	}
	if e.Action == "" {
		return &PermanentError{Err: errors.New("audit entry without action")}
	}
	if e.User == "" {
		e.User = "anonymous"
	}
	w.log.Info().
		Str("user", e.User).
		Str("action", e.Action).
		Str("detail", e.Detail).
		Time("at", e.At).
		Msg("audit")
	return nil
}
