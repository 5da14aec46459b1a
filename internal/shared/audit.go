package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// AuditLog is one row of the per-account activity trail.
type AuditLog struct {
	AccountID int64
	Action    string
	Entity    string
	EntityID  string
	Meta      map[string]any
	At        time.Time
}

// AuditLogger appends rows to audit_logs.
type AuditLogger struct {
	db  Execer
	now func() time.Time
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(db Execer) *AuditLogger {
	return &AuditLogger{db: db, now: time.Now}
}

// Record persists the entry. A zero At is stamped with the current time.
func (l *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.AccountID <= 0 {
		return errors.New("audit log requires an account")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit log requires action, entity and entity id")
	}
	meta := entry.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = l.now()
	}
	_, err = l.db.Exec(ctx, `INSERT INTO audit_logs (account_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`, entry.AccountID, entry.Action, entry.Entity, entry.EntityID, raw, at.UTC())
	return err
}
