package fields

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openfield-labs/fieldforge/internal/cfgerr"
)

// Execer is satisfied by both *sql.DB and *sql.Tx so the bulk-save
// coordinator can reuse the insert/scan plumbing inside its transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// auditLogger is the slice of engine.EventLogger this package needs.
type auditLogger interface {
	Log(ctx context.Context, module, entityKind, entityID, action string, success bool, details string)
}

// Store owns field_configurations and tab_configs.
type Store struct {
	db     *sql.DB
	events auditLogger
}

func NewStore(db *sql.DB, events auditLogger) *Store {
	return &Store{db: db, events: events}
}

const fieldColumns = `id, module_name, field_name, field_label, field_type,
	tab_name, tab_index, display_order, enabled, required, grid_size,
	placeholder, help_text, options, parent_field, parent_field_value,
	reorderable, required_configurable, hideable`

// ListFields returns all field configurations of a module, ordered by tab
// then display order.
func (s *Store) ListFields(ctx context.Context, module string) ([]FieldConfiguration, error) {
	return queryFields(ctx, s.db, `SELECT `+fieldColumns+` FROM field_configurations
		WHERE module_name = ? ORDER BY tab_index, tab_name, display_order`, module)
}

// ListTabFields returns a single tab's fields in display order.
func (s *Store) ListTabFields(ctx context.Context, module, tab string) ([]FieldConfiguration, error) {
	return queryFields(ctx, s.db, `SELECT `+fieldColumns+` FROM field_configurations
		WHERE module_name = ? AND tab_name = ? ORDER BY display_order`, module, tab)
}

func (s *Store) GetField(ctx context.Context, id int64) (*FieldConfiguration, error) {
	fcs, err := queryFields(ctx, s.db, `SELECT `+fieldColumns+` FROM field_configurations WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(fcs) == 0 {
		return nil, cfgerr.NotFoundf("", "", "no field configuration with id %d", id)
	}
	return &fcs[0], nil
}

// Patch carries the editable attributes of a field configuration. Nil
// pointers mean "leave unchanged". FieldName and ModuleName are present
// only so that attempts to change them can be rejected explicitly.
type Patch struct {
	FieldName  *string `json:"fieldName"`
	ModuleName *string `json:"moduleName"`

	FieldLabel       *string         `json:"fieldLabel"`
	FieldType        *FieldType      `json:"fieldType"`
	TabName          *string         `json:"tabName"`
	Enabled          *bool           `json:"isEnabled"`
	Required         *bool           `json:"isRequired"`
	GridSize         *int            `json:"gridSize"`
	Placeholder      *string         `json:"placeholder"`
	HelpText         *string         `json:"helpText"`
	Options          *[]SelectOption `json:"options"`
	ParentField      *string         `json:"parentField"`
	ParentFieldValue *string         `json:"parentFieldValue"`
}

// UpdateField applies a patch to one field, enforcing the creation-time
// policy flags and immutable attributes. Rejections name the flag or
// attribute that blocked the edit.
func (s *Store) UpdateField(ctx context.Context, id int64, patch Patch) (*FieldConfiguration, error) {
	cur, err := s.GetField(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.FieldName != nil && *patch.FieldName != cur.FieldName {
		return nil, cfgerr.Policyf(cur.ModuleName, cur.FieldName, "fieldName", "fieldName is immutable")
	}
	if patch.ModuleName != nil && *patch.ModuleName != cur.ModuleName {
		return nil, cfgerr.Policyf(cur.ModuleName, cur.FieldName, "moduleName", "moduleName is immutable")
	}
	if patch.Enabled != nil && !*patch.Enabled && !cur.Hideable {
		return nil, cfgerr.Policyf(cur.ModuleName, cur.FieldName, "isHideable", "field cannot be hidden")
	}
	if patch.Required != nil && *patch.Required != cur.Required && !cur.RequiredConfigurable {
		return nil, cfgerr.Policyf(cur.ModuleName, cur.FieldName, "isRequiredConfigurable", "required flag is fixed")
	}

	next := *cur
	if patch.FieldLabel != nil {
		next.FieldLabel = *patch.FieldLabel
	}
	if patch.FieldType != nil {
		next.FieldType = *patch.FieldType
	}
	if patch.TabName != nil {
		next.TabName = *patch.TabName
	}
	if patch.Enabled != nil {
		next.Enabled = *patch.Enabled
	}
	if patch.Required != nil {
		next.Required = *patch.Required
	}
	if patch.GridSize != nil {
		next.GridSize = *patch.GridSize
	}
	if patch.Placeholder != nil {
		next.Placeholder = *patch.Placeholder
	}
	if patch.HelpText != nil {
		next.HelpText = *patch.HelpText
	}
	if patch.Options != nil {
		next.Options = *patch.Options
	}
	if patch.ParentField != nil {
		next.ParentField = *patch.ParentField
	}
	if patch.ParentFieldValue != nil {
		next.ParentFieldValue = *patch.ParentFieldValue
	}

	if err := s.validateField(ctx, &next); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tabChanged := next.TabName != cur.TabName
	if tabChanged {
		// The field joins the end of the target tab. An existing tab keeps
		// its tab index; a brand-new tab sorts after all current tabs.
		var count int
		var tabIndex sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT count(*), MIN(tab_index) FROM field_configurations WHERE module_name = ? AND tab_name = ?`,
			cur.ModuleName, next.TabName).Scan(&count, &tabIndex)
		if err != nil {
			return nil, err
		}
		next.DisplayOrder = count
		if tabIndex.Valid {
			next.TabIndex = int(tabIndex.Int64)
		} else {
			err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(tab_index) + 1, 0) FROM field_configurations WHERE module_name = ?`,
				cur.ModuleName).Scan(&next.TabIndex)
			if err != nil {
				return nil, err
			}
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE field_configurations SET
			field_label = ?, field_type = ?, tab_name = ?, tab_index = ?, display_order = ?,
			enabled = ?, required = ?,
			grid_size = ?, placeholder = ?, help_text = ?, options = ?,
			parent_field = ?, parent_field_value = ?
		WHERE id = ?`,
		next.FieldLabel, string(next.FieldType), next.TabName, next.TabIndex, next.DisplayOrder,
		boolToInt(next.Enabled), boolToInt(next.Required), next.GridSize, next.Placeholder,
		next.HelpText, marshalOptions(next.Options), next.ParentField, next.ParentFieldValue, id)
	if err != nil {
		return nil, err
	}

	if tabChanged {
		// Close the hole the field left behind in its old tab.
		_, err = tx.ExecContext(ctx, `UPDATE field_configurations SET display_order = display_order - 1
			WHERE module_name = ? AND tab_name = ? AND display_order > ?`,
			cur.ModuleName, cur.TabName, cur.DisplayOrder)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if s.events != nil {
		s.events.Log(ctx, cur.ModuleName, "field", cur.FieldName, "update", true, "")
	}
	return &next, nil
}

// validateField checks the write-time invariants shared by update and save.
func (s *Store) validateField(ctx context.Context, fc *FieldConfiguration) error {
	if !fc.FieldType.Valid() {
		return cfgerr.Policyf(fc.ModuleName, fc.FieldName, "fieldType", "unknown field type %q", fc.FieldType)
	}
	if !GridSizeValid(fc.GridSize) {
		return cfgerr.Policyf(fc.ModuleName, fc.FieldName, "gridSize", "grid size must be one of 1,2,3,4,6,12")
	}
	if fc.FieldType.HasOptions() && len(fc.Options) == 0 {
		return cfgerr.Policyf(fc.ModuleName, fc.FieldName, "options", "%s fields need at least one option", fc.FieldType)
	}
	if fc.ParentField == "" {
		return nil
	}
	if fc.ParentField == fc.FieldName {
		return cfgerr.InvalidDependencyf(fc.ModuleName, fc.FieldName, "field cannot be its own visibility parent")
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM field_configurations WHERE module_name = ? AND field_name = ?`,
		fc.ModuleName, fc.ParentField).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return cfgerr.InvalidDependencyf(fc.ModuleName, fc.FieldName,
			"parentField %q does not exist in module %s", fc.ParentField, fc.ModuleName)
	}
	return nil
}

// InitializeDefaults seeds the built-in field set for a module. It is
// idempotent: if any fields already exist the stored set is returned
// untouched together with an AlreadyInitialized error.
func (s *Store) InitializeDefaults(ctx context.Context, module string) ([]FieldConfiguration, error) {
	existing, err := s.ListFields(ctx, module)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, cfgerr.AlreadyInitializedf(module, "%d fields already configured", len(existing))
	}

	defs := Defaults(module)
	if defs == nil {
		return nil, cfgerr.NotFoundf(module, "", "no default schema for module %q", module)
	}
	if err := ValidateDefaults(defs); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	for i := range defs {
		id, err := InsertField(ctx, tx, &defs[i])
		if err != nil {
			return nil, err
		}
		defs[i].ID = id
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("initialized default field configuration", "module", module, "fields", len(defs))
	if s.events != nil {
		s.events.Log(ctx, module, "module", "", "initialize_fields", true, fmt.Sprintf("%d fields", len(defs)))
	}
	return defs, nil
}

// InsertField inserts one field configuration and returns its assigned id.
func InsertField(ctx context.Context, ex Execer, fc *FieldConfiguration) (int64, error) {
	res, err := ex.ExecContext(ctx, `INSERT INTO field_configurations
			(module_name, field_name, field_label, field_type, tab_name, tab_index,
			 display_order, enabled, required, grid_size, placeholder, help_text,
			 options, parent_field, parent_field_value,
			 reorderable, required_configurable, hideable)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fc.ModuleName, fc.FieldName, fc.FieldLabel, string(fc.FieldType), fc.TabName,
		fc.TabIndex, fc.DisplayOrder, boolToInt(fc.Enabled), boolToInt(fc.Required),
		fc.GridSize, fc.Placeholder, fc.HelpText, marshalOptions(fc.Options),
		fc.ParentField, fc.ParentFieldValue, boolToInt(fc.Reorderable),
		boolToInt(fc.RequiredConfigurable), boolToInt(fc.Hideable))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func queryFields(ctx context.Context, q Querier, query string, args ...any) ([]FieldConfiguration, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FieldConfiguration
	for rows.Next() {
		var fc FieldConfiguration
		var enabled, required, reorderable, reqConf, hideable int
		var ftype, options string
		err := rows.Scan(&fc.ID, &fc.ModuleName, &fc.FieldName, &fc.FieldLabel, &ftype,
			&fc.TabName, &fc.TabIndex, &fc.DisplayOrder, &enabled, &required, &fc.GridSize,
			&fc.Placeholder, &fc.HelpText, &options, &fc.ParentField, &fc.ParentFieldValue,
			&reorderable, &reqConf, &hideable)
		if err != nil {
			return nil, err
		}
		fc.FieldType = FieldType(ftype)
		fc.Enabled = enabled == 1
		fc.Required = required == 1
		fc.Reorderable = reorderable == 1
		fc.RequiredConfigurable = reqConf == 1
		fc.Hideable = hideable == 1
		if options != "" && options != "[]" {
			if err := json.Unmarshal([]byte(options), &fc.Options); err != nil {
				return nil, fmt.Errorf("decoding options of field %s.%s: %w", fc.ModuleName, fc.FieldName, err)
			}
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// QueryModuleFields is the Querier-generic form of ListFields, used by the
// bulk-save coordinator inside its transaction.
func QueryModuleFields(ctx context.Context, q Querier, module string) ([]FieldConfiguration, error) {
	return queryFields(ctx, q, `SELECT `+fieldColumns+` FROM field_configurations
		WHERE module_name = ? ORDER BY tab_index, tab_name, display_order`, module)
}

func marshalOptions(opts []SelectOption) string {
	if len(opts) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(opts)
	return string(b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
