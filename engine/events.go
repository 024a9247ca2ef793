package engine

import (
	"context"
	"database/sql"
	"log/slog"
)

const configEventsMigration = `
CREATE TABLE IF NOT EXISTS config_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    module TEXT NOT NULL,
    entity_kind TEXT NOT NULL,
    entity_id TEXT NOT NULL DEFAULT '',
    action TEXT NOT NULL,
    success INTEGER NOT NULL DEFAULT 1,
    details TEXT NOT NULL DEFAULT ''
) STRICT;

CREATE INDEX IF NOT EXISTS config_events_module_created_idx
    ON config_events (module, created);
CREATE INDEX IF NOT EXISTS config_events_kind_action_idx
    ON config_events (entity_kind, action);
`

// EventLogger records every configuration mutation so admins can answer
// "who turned that field off and when". Write failures are logged, never
// propagated: the audit trail must not block the edit itself.
type EventLogger struct {
	db *sql.DB
}

// NewEventLogger creates an EventLogger and applies the config_events migration.
func NewEventLogger(db *sql.DB) *EventLogger {
	MustMigrate(db, configEventsMigration)
	return &EventLogger{db: db}
}

// Log inserts a configuration change event.
//   - module: the business module whose configuration changed
//   - entityKind: "module", "field", "tab", "link", or "linked_entity"
//   - entityID: the field/link/tab identity (empty for module-level events)
//   - action: e.g. "update", "reorder", "save", "reset"
func (e *EventLogger) Log(ctx context.Context, module, entityKind, entityID, action string, success bool, details string) {
	if e == nil || e.db == nil {
		return
	}

	successInt := 0
	if success {
		successInt = 1
	}

	_, err := e.db.ExecContext(ctx,
		`INSERT INTO config_events (module, entity_kind, entity_id, action, success, details)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		module, entityKind, entityID, action, successInt, details)
	if err != nil {
		slog.Error("failed to log config event", "error", err, "module", module, "action", action)
	}
}
