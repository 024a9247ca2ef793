package links

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/openfield-labs/fieldforge/internal/cfgerr"
)

type auditLogger interface {
	Log(ctx context.Context, module, entityKind, entityID, action string, success bool, details string)
}

type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store owns master_data_links. All dependency-graph checks run before any
// write: a rejected mutation leaves the stored graph untouched.
type Store struct {
	db      *sql.DB
	catalog SourceCatalog
	events  auditLogger
}

func NewStore(db *sql.DB, catalog SourceCatalog, events auditLogger) *Store {
	return &Store{db: db, catalog: catalog, events: events}
}

const linkColumns = `id, field_configuration_id, source_type, source_name,
	display_field, value_field, filter_expression, depends_on_field,
	depends_on_source_column, allow_free_text, validation_type,
	validation_pattern, validation_message, min_value, max_value,
	min_length, max_length, sort_order, active`

// ListForField returns a field's links ordered by sort order.
func (s *Store) ListForField(ctx context.Context, fieldID int64) ([]Link, error) {
	return queryLinks(ctx, s.db, `SELECT `+linkColumns+` FROM master_data_links
		WHERE field_configuration_id = ? ORDER BY sort_order`, fieldID)
}

// Get returns one link by id.
func (s *Store) Get(ctx context.Context, id string) (*Link, error) {
	ls, err := queryLinks(ctx, s.db, `SELECT `+linkColumns+` FROM master_data_links WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(ls) == 0 {
		return nil, cfgerr.NotFoundf("", "", "no master data link with id %s", id)
	}
	return &ls[0], nil
}

// ListForModule returns all links of a module keyed by owning field id.
// Used to annotate field lists without one query per field.
func (s *Store) ListForModule(ctx context.Context, module string) (map[int64][]Link, error) {
	ls, err := QueryModuleLinks(ctx, s.db, module)
	if err != nil {
		return nil, err
	}
	out := map[int64][]Link{}
	for _, l := range ls {
		out[l.FieldConfigurationID] = append(out[l.FieldConfigurationID], l)
	}
	return out, nil
}

// QueryModuleLinks reads every link of a module, usable inside a
// coordinator transaction.
func QueryModuleLinks(ctx context.Context, q Querier, module string) ([]Link, error) {
	return queryLinks(ctx, q, `SELECT l.id, l.field_configuration_id, l.source_type, l.source_name,
			l.display_field, l.value_field, l.filter_expression, l.depends_on_field,
			l.depends_on_source_column, l.allow_free_text, l.validation_type,
			l.validation_pattern, l.validation_message, l.min_value, l.max_value,
			l.min_length, l.max_length, l.sort_order, l.active
		FROM master_data_links l
		JOIN field_configurations f ON f.id = l.field_configuration_id
		WHERE f.module_name = ?
		ORDER BY l.field_configuration_id, l.sort_order`, module)
}

// Create validates and persists a new link. The id is assigned here. A nil
// sortOrder means append-at-end for the field; a non-nil one places the link
// explicitly, including at position zero.
func (s *Store) Create(ctx context.Context, l Link, sortOrder *int) (*Link, error) {
	module, fieldName, err := s.owningField(ctx, l.FieldConfigurationID)
	if err != nil {
		return nil, err
	}
	if err := s.validateLink(ctx, module, fieldName, &l, ""); err != nil {
		return nil, err
	}

	l.ID = uuid.NewString()
	if sortOrder != nil {
		l.SortOrder = *sortOrder
	} else {
		err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM master_data_links WHERE field_configuration_id = ?`,
			l.FieldConfigurationID).Scan(&l.SortOrder)
		if err != nil {
			return nil, err
		}
	}

	if err := InsertLink(ctx, s.db, &l); err != nil {
		return nil, err
	}
	if s.events != nil {
		s.events.Log(ctx, module, "link", l.ID, "create", true, fieldName)
	}
	return &l, nil
}

// Update validates and replaces an existing link's attributes. The cycle
// check excludes the link's previous edge and includes the candidate one.
// A nil sortOrder keeps the stored position.
func (s *Store) Update(ctx context.Context, id string, l Link, sortOrder *int) (*Link, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	l.ID = id
	l.FieldConfigurationID = cur.FieldConfigurationID
	if sortOrder != nil {
		l.SortOrder = *sortOrder
	} else {
		l.SortOrder = cur.SortOrder
	}

	module, fieldName, err := s.owningField(ctx, l.FieldConfigurationID)
	if err != nil {
		return nil, err
	}
	if err := s.validateLink(ctx, module, fieldName, &l, id); err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `UPDATE master_data_links SET
			source_type = ?, source_name = ?, display_field = ?, value_field = ?,
			filter_expression = ?, depends_on_field = ?, depends_on_source_column = ?,
			allow_free_text = ?, validation_type = ?, validation_pattern = ?,
			validation_message = ?, min_value = ?, max_value = ?, min_length = ?,
			max_length = ?, sort_order = ?, active = ?
		WHERE id = ?`,
		string(l.SourceType), l.SourceName, l.DisplayField, l.ValueField,
		marshalFilter(l.Filter), l.DependsOnField, l.DependsOnSourceColumn,
		boolToInt(l.AllowFreeText), string(l.ValidationType), l.ValidationPattern,
		l.ValidationMessage, l.MinValue, l.MaxValue, l.MinLength, l.MaxLength,
		l.SortOrder, boolToInt(l.Active), id)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Log(ctx, module, "link", id, "update", true, fieldName)
	}
	return &l, nil
}

// Delete removes a link unconditionally. Callers refresh any module-level
// link map they cache.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM master_data_links WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cfgerr.NotFoundf("", "", "no master data link with id %s", id)
	}
	return nil
}

// validateLink enforces every invariant a link mutation must satisfy, in
// order: resolvable source, valid columns, valid validation config,
// resolvable cascade target, and an acyclic dependency graph.
func (s *Store) validateLink(ctx context.Context, module, fieldName string, l *Link, excludeLinkID string) error {
	if !l.SourceType.Valid() {
		return cfgerr.InvalidDependencyf(module, fieldName, "unknown source type %q", l.SourceType)
	}
	src, err := Resolve(ctx, s.catalog, l.SourceType, l.SourceName)
	if err != nil {
		return err
	}
	if src == nil {
		return cfgerr.InvalidDependencyf(module, fieldName, "no %s source named %q", l.SourceType, l.SourceName)
	}
	for _, col := range []string{l.DisplayField, l.ValueField, l.DependsOnSourceColumn} {
		if col != "" && !src.HasField(col) {
			return cfgerr.InvalidDependencyf(module, fieldName, "source %q has no column %q", l.SourceName, col)
		}
	}

	if !l.ValidationType.Valid() {
		return cfgerr.InvalidDependencyf(module, fieldName, "unknown validation type %q", l.ValidationType)
	}
	if l.ValidationType == ValidationRegex {
		if _, err := regexp.Compile(l.ValidationPattern); err != nil {
			return cfgerr.InvalidDependencyf(module, fieldName, "invalid validation pattern: %s", err)
		}
	}

	if l.DependsOnField == "" {
		return nil
	}
	if l.DependsOnField == fieldName {
		return cfgerr.Cyclic(module, []string{fieldName, fieldName})
	}

	var n int
	err = s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM field_configurations WHERE module_name = ? AND field_name = ?`,
		module, l.DependsOnField).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return cfgerr.InvalidDependencyf(module, fieldName,
			"dependsOnField %q does not exist in module %s", l.DependsOnField, module)
	}

	edges, err := s.moduleEdges(ctx, module, excludeLinkID)
	if err != nil {
		return err
	}
	edges = append(edges, Edge{Field: fieldName, DependsOn: l.DependsOnField})
	if cycle := FindCycle(edges); cycle != nil {
		return cfgerr.Cyclic(module, cycle)
	}
	return nil
}

// moduleEdges loads the current cascade edges of a module, optionally
// excluding one link (the one being updated).
func (s *Store) moduleEdges(ctx context.Context, module, excludeLinkID string) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.field_name, l.depends_on_field
		FROM master_data_links l
		JOIN field_configurations f ON f.id = l.field_configuration_id
		WHERE f.module_name = ? AND l.depends_on_field != '' AND l.active = 1 AND l.id != ?`,
		module, excludeLinkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Field, &e.DependsOn); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *Store) owningField(ctx context.Context, fieldID int64) (module, fieldName string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT module_name, field_name FROM field_configurations WHERE id = ?`, fieldID).
		Scan(&module, &fieldName)
	if err == sql.ErrNoRows {
		return "", "", cfgerr.NotFoundf("", "", "no field configuration with id %d", fieldID)
	}
	return module, fieldName, err
}

// InsertLink inserts one link row, usable inside a coordinator transaction.
func InsertLink(ctx context.Context, ex Execer, l *Link) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO master_data_links
			(id, field_configuration_id, source_type, source_name, display_field,
			 value_field, filter_expression, depends_on_field, depends_on_source_column,
			 allow_free_text, validation_type, validation_pattern, validation_message,
			 min_value, max_value, min_length, max_length, sort_order, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.FieldConfigurationID, string(l.SourceType), l.SourceName, l.DisplayField,
		l.ValueField, marshalFilter(l.Filter), l.DependsOnField, l.DependsOnSourceColumn,
		boolToInt(l.AllowFreeText), string(l.ValidationType), l.ValidationPattern,
		l.ValidationMessage, l.MinValue, l.MaxValue, l.MinLength, l.MaxLength,
		l.SortOrder, boolToInt(l.Active))
	return err
}

func queryLinks(ctx context.Context, q Querier, query string, args ...any) ([]Link, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		var l Link
		var srcType, valType, filter string
		var freeText, active int
		err := rows.Scan(&l.ID, &l.FieldConfigurationID, &srcType, &l.SourceName,
			&l.DisplayField, &l.ValueField, &filter, &l.DependsOnField,
			&l.DependsOnSourceColumn, &freeText, &valType, &l.ValidationPattern,
			&l.ValidationMessage, &l.MinValue, &l.MaxValue, &l.MinLength, &l.MaxLength,
			&l.SortOrder, &active)
		if err != nil {
			return nil, err
		}
		l.SourceType = SourceType(srcType)
		l.ValidationType = ValidationType(valType)
		l.AllowFreeText = freeText == 1
		l.Active = active == 1
		if filter != "" && filter != "{}" {
			if err := json.Unmarshal([]byte(filter), &l.Filter); err != nil {
				return nil, fmt.Errorf("decoding filter expression of link %s: %w", l.ID, err)
			}
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func marshalFilter(f map[string]string) string {
	if len(f) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(f)
	return string(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
