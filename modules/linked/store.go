// Package linked records module-level relationships: "this module also
// shows related records of entity X". The relationship is independent of
// any individual field.
package linked

import (
	"context"
	"database/sql"

	"github.com/openfield-labs/fieldforge/internal/cfgerr"
)

// Entity declares a related entity shown on a module's detail view.
type Entity struct {
	ModuleName       string `json:"moduleName"`
	EntityName       string `json:"entityName"`
	RelationshipType string `json:"relationshipType"`
	Enabled          bool   `json:"enabled"`
	TabName          string `json:"tabName,omitempty"`
	DisplayOrder     int    `json:"displayOrder"`
	ForeignKeyField  string `json:"foreignKeyField,omitempty"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ListForModule returns a module's linked entities in display order.
func (s *Store) ListForModule(ctx context.Context, module string) ([]Entity, error) {
	return QueryModuleEntities(ctx, s.db, module)
}

// QueryModuleEntities is the transaction-friendly form of ListForModule.
func QueryModuleEntities(ctx context.Context, q Querier, module string) ([]Entity, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT module_name, entity_name, relationship_type, enabled, tab_name, display_order, foreign_key_field
		FROM linked_entities WHERE module_name = ? ORDER BY display_order, entity_name`, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		var enabled int
		if err := rows.Scan(&e.ModuleName, &e.EntityName, &e.RelationshipType, &enabled,
			&e.TabName, &e.DisplayOrder, &e.ForeignKeyField); err != nil {
			return nil, err
		}
		e.Enabled = enabled == 1
		out = append(out, e)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces the relationship. At most one row exists per
// (module, entity) pair.
func (s *Store) Upsert(ctx context.Context, e Entity) error {
	if e.RelationshipType == "" {
		e.RelationshipType = "one-to-many"
	}
	enabled := 0
	if e.Enabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO linked_entities (module_name, entity_name, relationship_type, enabled, tab_name, display_order, foreign_key_field)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(module_name, entity_name) DO UPDATE SET
			relationship_type = excluded.relationship_type,
			enabled = excluded.enabled,
			tab_name = excluded.tab_name,
			display_order = excluded.display_order,
			foreign_key_field = excluded.foreign_key_field
	`, e.ModuleName, e.EntityName, e.RelationshipType, enabled, e.TabName, e.DisplayOrder, e.ForeignKeyField)
	return err
}

// Toggle flips the enabled flag of one relationship.
func (s *Store) Toggle(ctx context.Context, module, entity string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE linked_entities SET enabled = 1 - enabled WHERE module_name = ? AND entity_name = ?`,
		module, entity)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cfgerr.NotFoundf(module, "", "no linked entity %q on module %s", entity, module)
	}
	return nil
}

// Delete removes the relationship.
func (s *Store) Delete(ctx context.Context, module, entity string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM linked_entities WHERE module_name = ? AND entity_name = ?`, module, entity)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cfgerr.NotFoundf(module, "", "no linked entity %q on module %s", entity, module)
	}
	return nil
}
