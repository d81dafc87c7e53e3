package audit

import (
	"context"
	"database/sql"
	"errors"

	"voice-platform/pkg/utils"
)

// PostgresRepo appends audit events to voice_audit_events.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) (*PostgresRepo, error) {
	if db == nil {
		return nil, errors.New("audit: db is nil")
	}
	return &PostgresRepo{db: db}, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS voice_audit_events (
		id            UUID PRIMARY KEY,
		type          TEXT NOT NULL,
		actor_user_id TEXT NOT NULL DEFAULT '',
		actor_role    TEXT NOT NULL DEFAULT '',
		ip_address    TEXT NOT NULL DEFAULT '',
		call_sid      TEXT NOT NULL DEFAULT '',
		recording_sid TEXT NOT NULL DEFAULT '',
		override_id   TEXT NOT NULL DEFAULT '',
		message       TEXT NOT NULL DEFAULT '',
		metadata      JSONB,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS voice_audit_events_call_sid_idx ON voice_audit_events (call_sid, created_at)`,
	`CREATE OR REPLACE RULE voice_audit_events_no_update AS ON UPDATE TO voice_audit_events DO INSTEAD NOTHING`,
	`CREATE OR REPLACE RULE voice_audit_events_no_delete AS ON DELETE TO voice_audit_events DO INSTEAD NOTHING`,
}

// Migrate creates the table and its append-only rules in one transaction.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range migrations {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

const insertEvent = `INSERT INTO voice_audit_events
	(id, type, actor_user_id, actor_role, ip_address, call_sid, recording_sid, override_id, message, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	var meta any
	if e.Metadata != "" {
		meta = e.Metadata
	}
	_, err := r.db.ExecContext(ctx, insertEvent,
		e.ID, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress,
		e.CallSid, e.RecordingSid, e.OverrideID, e.Message, meta, e.CreatedAt,
	)
	return err
}
