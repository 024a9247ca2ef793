// Package bulk coordinates multi-row configuration writes: drag-and-drop
// reordering, whole-module save, and reset to defaults. Every operation is
// validate-then-write inside one transaction, so a rejected request leaves
// the stored configuration exactly as it was.
package bulk

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/openfield-labs/fieldforge/internal/cfgerr"
	"github.com/openfield-labs/fieldforge/modules/fields"
	"github.com/openfield-labs/fieldforge/modules/linked"
	"github.com/openfield-labs/fieldforge/modules/links"
)

type auditLogger interface {
	Log(ctx context.Context, module, entityKind, entityID, action string, success bool, details string)
}

// Coordinator writes across the field, tab, linked-entity, link and
// registry tables. It holds the database directly rather than going
// through the per-module stores because its writes must share one
// transaction.
type Coordinator struct {
	db      *sql.DB
	catalog links.SourceCatalog
	events  auditLogger
}

func NewCoordinator(db *sql.DB, catalog links.SourceCatalog, events auditLogger) *Coordinator {
	return &Coordinator{db: db, catalog: catalog, events: events}
}

// ReorderField moves one field to a new position within its tab and
// renumbers the tab's fields to a contiguous 0..n-1 sequence. On any
// failure the stored order is untouched and the returned list reflects it.
func (c *Coordinator) ReorderField(ctx context.Context, module, tab string, fieldID int64, newIndex int) ([]fields.FieldConfiguration, error) {
	list, err := fields.QueryModuleFields(ctx, c.db, module)
	if err != nil {
		return nil, err
	}
	var tabFields []fields.FieldConfiguration
	for _, fc := range list {
		if fc.TabName == tab {
			tabFields = append(tabFields, fc)
		}
	}
	sort.SliceStable(tabFields, func(i, j int) bool { return tabFields[i].DisplayOrder < tabFields[j].DisplayOrder })

	cur := -1
	for i, fc := range tabFields {
		if fc.ID == fieldID {
			cur = i
			break
		}
	}
	if cur == -1 {
		return tabFields, cfgerr.NotFoundf(module, "", "no field %d on tab %q", fieldID, tab)
	}
	if !tabFields[cur].Reorderable {
		return tabFields, cfgerr.Policyf(module, tabFields[cur].FieldName, "isReorderable", "field position is fixed")
	}
	if newIndex < 0 || newIndex >= len(tabFields) {
		return tabFields, cfgerr.OutOfRangef(module, "index %d out of range for tab %q with %d fields", newIndex, tab, len(tabFields))
	}

	moved := tabFields[cur]
	next := append(append([]fields.FieldConfiguration{}, tabFields[:cur]...), tabFields[cur+1:]...)
	next = append(next[:newIndex], append([]fields.FieldConfiguration{moved}, next[newIndex:]...)...)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return tabFields, err
	}
	defer tx.Rollback()
	for i := range next {
		next[i].DisplayOrder = i
		_, err := tx.ExecContext(ctx,
			`UPDATE field_configurations SET display_order = ? WHERE id = ?`, i, next[i].ID)
		if err != nil {
			return c.revertOrder(ctx, module, tab, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return c.revertOrder(ctx, module, tab, err)
	}

	if c.events != nil {
		c.events.Log(ctx, module, "field", moved.FieldName, "reorder", true, tab)
	}
	return next, nil
}

// revertOrder re-reads the authoritative order after a failed reorder, so
// the caller always gets back what is actually stored.
func (c *Coordinator) revertOrder(ctx context.Context, module, tab string, cause error) ([]fields.FieldConfiguration, error) {
	list, err := fields.QueryModuleFields(ctx, c.db, module)
	if err != nil {
		return nil, cause
	}
	var tabFields []fields.FieldConfiguration
	for _, fc := range list {
		if fc.TabName == tab {
			tabFields = append(tabFields, fc)
		}
	}
	return tabFields, cause
}

// Snapshot is a complete editor state submitted for atomic save. Links are
// keyed by field name rather than id so they can target fields that don't
// have an id yet.
type Snapshot struct {
	Version        int64                       `json:"version"`
	Tabs           []fields.TabConfig          `json:"tabs"`
	Fields         []fields.FieldConfiguration `json:"fields"`
	LinkedEntities []linked.Entity             `json:"linkedEntities"`
	Links          map[string][]links.Link     `json:"links"`
}

// SaveResult reports the post-save state the editor needs: the new version
// to echo on the next save, and the field list with assigned ids.
type SaveResult struct {
	Version int64                       `json:"version"`
	Fields  []fields.FieldConfiguration `json:"fields"`
}

// SaveModuleConfig replaces a module's entire configuration in one
// transaction. The snapshot is validated in full before the first write;
// the stored version must match the snapshot's or nothing happens.
func (c *Coordinator) SaveModuleConfig(ctx context.Context, module string, snap Snapshot) (*SaveResult, error) {
	stored, err := fields.QueryModuleFields(ctx, c.db, module)
	if err != nil {
		return nil, err
	}
	if err := c.validateSnapshot(ctx, module, &snap, stored); err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx,
		`SELECT config_version FROM module_ui_configs WHERE module_name = ?`, module).Scan(&version)
	if err == sql.ErrNoRows {
		return nil, cfgerr.NotFoundf(module, "", "unknown module %q", module)
	}
	if err != nil {
		return nil, err
	}
	if version != snap.Version {
		return nil, cfgerr.Stale(module, snap.Version, version)
	}

	// Fields absent from the snapshot are removed, links first since the
	// schema's cascade is not active on this connection.
	keep := map[int64]bool{}
	for _, fc := range snap.Fields {
		if fc.ID != 0 {
			keep[fc.ID] = true
		}
	}
	for _, fc := range stored {
		if keep[fc.ID] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM master_data_links WHERE field_configuration_id = ?`, fc.ID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM field_configurations WHERE id = ?`, fc.ID); err != nil {
			return nil, err
		}
	}

	storedByID := map[int64]fields.FieldConfiguration{}
	for _, fc := range stored {
		storedByID[fc.ID] = fc
	}

	saved := make([]fields.FieldConfiguration, len(snap.Fields))
	fieldIDs := map[string]int64{}
	for i, fc := range snap.Fields {
		fc.ModuleName = module
		if fc.ID == 0 {
			id, err := fields.InsertField(ctx, tx, &fc)
			if err != nil {
				return nil, err
			}
			fc.ID = id
		} else {
			// Policy flags never change after creation.
			prev := storedByID[fc.ID]
			fc.Reorderable = prev.Reorderable
			fc.RequiredConfigurable = prev.RequiredConfigurable
			fc.Hideable = prev.Hideable
			if err := updateFieldRow(ctx, tx, &fc); err != nil {
				return nil, err
			}
		}
		saved[i] = fc
		fieldIDs[fc.FieldName] = fc.ID
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tab_configs WHERE module_name = ?`, module); err != nil {
		return nil, err
	}
	for i, tab := range snap.Tabs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tab_configs (module_name, tab_index, name, enabled, display_order) VALUES (?, ?, ?, ?, ?)`,
			module, tab.Index, tab.Name, boolToInt(tab.Enabled), i)
		if err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM linked_entities WHERE module_name = ?`, module); err != nil {
		return nil, err
	}
	for _, e := range snap.LinkedEntities {
		if e.RelationshipType == "" {
			e.RelationshipType = "one-to-many"
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO linked_entities (module_name, entity_name, relationship_type, enabled, tab_name, display_order, foreign_key_field)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			module, e.EntityName, e.RelationshipType, boolToInt(e.Enabled), e.TabName, e.DisplayOrder, e.ForeignKeyField)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM master_data_links WHERE field_configuration_id IN
		(SELECT id FROM field_configurations WHERE module_name = ?)`, module)
	if err != nil {
		return nil, err
	}
	for fieldName, ls := range snap.Links {
		for i := range ls {
			l := ls[i]
			l.FieldConfigurationID = fieldIDs[fieldName]
			if l.ID == "" {
				l.ID = uuid.NewString()
			}
			if err := links.InsertLink(ctx, tx, &l); err != nil {
				return nil, err
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE module_ui_configs SET config_version = config_version + 1 WHERE module_name = ?`, module)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("saved module configuration", "module", module, "fields", len(saved), "version", version+1)
	if c.events != nil {
		c.events.Log(ctx, module, "module", "", "save", true, "")
	}
	return &SaveResult{Version: version + 1, Fields: saved}, nil
}

// validateSnapshot checks every invariant before the transaction starts.
func (c *Coordinator) validateSnapshot(ctx context.Context, module string, snap *Snapshot, stored []fields.FieldConfiguration) error {
	storedByID := map[int64]fields.FieldConfiguration{}
	for _, fc := range stored {
		storedByID[fc.ID] = fc
	}

	names := map[string]bool{}
	tabNames := map[string]bool{}
	for _, tab := range snap.Tabs {
		tabNames[tab.Name] = true
	}

	perTab := map[string][]int{}
	for _, fc := range snap.Fields {
		if names[fc.FieldName] {
			return cfgerr.Policyf(module, fc.FieldName, "fieldName", "duplicate field name")
		}
		names[fc.FieldName] = true

		if fc.ID != 0 {
			prev, ok := storedByID[fc.ID]
			if !ok {
				return cfgerr.NotFoundf(module, fc.FieldName, "no field configuration with id %d", fc.ID)
			}
			if fc.FieldName != prev.FieldName {
				return cfgerr.Policyf(module, prev.FieldName, "fieldName", "fieldName is immutable")
			}
			if !fc.Enabled && !prev.Hideable {
				return cfgerr.Policyf(module, fc.FieldName, "isHideable", "field cannot be hidden")
			}
			if fc.Required != prev.Required && !prev.RequiredConfigurable {
				return cfgerr.Policyf(module, fc.FieldName, "isRequiredConfigurable", "required flag is fixed")
			}
		}

		if !fc.FieldType.Valid() {
			return cfgerr.Policyf(module, fc.FieldName, "fieldType", "unknown field type %q", fc.FieldType)
		}
		if !fields.GridSizeValid(fc.GridSize) {
			return cfgerr.Policyf(module, fc.FieldName, "gridSize", "grid size must be one of 1,2,3,4,6,12")
		}
		if fc.FieldType.HasOptions() && len(fc.Options) == 0 {
			return cfgerr.Policyf(module, fc.FieldName, "options", "%s fields need at least one option", fc.FieldType)
		}
		if !tabNames[fc.TabName] {
			return cfgerr.InvalidDependencyf(module, fc.FieldName, "tab %q is not in the snapshot", fc.TabName)
		}
		perTab[fc.TabName] = append(perTab[fc.TabName], fc.DisplayOrder)
	}

	for _, fc := range snap.Fields {
		if fc.ParentField == "" {
			continue
		}
		if fc.ParentField == fc.FieldName {
			return cfgerr.InvalidDependencyf(module, fc.FieldName, "field cannot be its own visibility parent")
		}
		if !names[fc.ParentField] {
			return cfgerr.InvalidDependencyf(module, fc.FieldName, "parentField %q is not in the snapshot", fc.ParentField)
		}
	}

	for i, tab := range snap.Tabs {
		if tab.Order != i {
			return cfgerr.OutOfRangef(module, "tab orders must be contiguous from 0, got %d at position %d", tab.Order, i)
		}
	}
	for tab, orders := range perTab {
		sort.Ints(orders)
		for i, o := range orders {
			if o != i {
				return cfgerr.OutOfRangef(module, "display orders on tab %q must be contiguous from 0", tab)
			}
		}
	}

	var edges []links.Edge
	for fieldName, ls := range snap.Links {
		if !names[fieldName] {
			return cfgerr.InvalidDependencyf(module, fieldName, "links reference a field not in the snapshot")
		}
		for i := range ls {
			l := &ls[i]
			if !l.SourceType.Valid() {
				return cfgerr.InvalidDependencyf(module, fieldName, "unknown source type %q", l.SourceType)
			}
			src, err := links.Resolve(ctx, c.catalog, l.SourceType, l.SourceName)
			if err != nil {
				return err
			}
			if src == nil {
				return cfgerr.InvalidDependencyf(module, fieldName, "no %s source named %q", l.SourceType, l.SourceName)
			}
			if !l.ValidationType.Valid() {
				return cfgerr.InvalidDependencyf(module, fieldName, "unknown validation type %q", l.ValidationType)
			}
			if l.DependsOnField == "" {
				continue
			}
			if !names[l.DependsOnField] {
				return cfgerr.InvalidDependencyf(module, fieldName, "dependsOnField %q is not in the snapshot", l.DependsOnField)
			}
			edges = append(edges, links.Edge{Field: fieldName, DependsOn: l.DependsOnField})
		}
	}
	if cycle := links.FindCycle(edges); cycle != nil {
		return cfgerr.Cyclic(module, cycle)
	}
	return nil
}

// ResetToDefaults wipes a module's fields, tabs and links and reseeds the
// built-in field set, bumping the config version so concurrent editors get
// a conflict on their next save.
func (c *Coordinator) ResetToDefaults(ctx context.Context, module string) ([]fields.FieldConfiguration, error) {
	defs := fields.Defaults(module)
	if defs == nil {
		return nil, cfgerr.NotFoundf(module, "", "no default schema for module %q", module)
	}
	if err := fields.ValidateDefaults(defs); err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM master_data_links WHERE field_configuration_id IN
		(SELECT id FROM field_configurations WHERE module_name = ?)`, module)
	if err != nil {
		return nil, err
	}
	for _, q := range []string{
		`DELETE FROM field_configurations WHERE module_name = ?`,
		`DELETE FROM tab_configs WHERE module_name = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, module); err != nil {
			return nil, err
		}
	}
	for i := range defs {
		id, err := fields.InsertField(ctx, tx, &defs[i])
		if err != nil {
			return nil, err
		}
		defs[i].ID = id
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE module_ui_configs SET config_version = config_version + 1 WHERE module_name = ?`, module)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	slog.Info("reset module configuration to defaults", "module", module, "fields", len(defs))
	if c.events != nil {
		c.events.Log(ctx, module, "module", "", "reset", true, "")
	}
	return defs, nil
}

func updateFieldRow(ctx context.Context, ex fields.Execer, fc *fields.FieldConfiguration) error {
	_, err := ex.ExecContext(ctx, `UPDATE field_configurations SET
			field_label = ?, field_type = ?, tab_name = ?, tab_index = ?, display_order = ?,
			enabled = ?, required = ?, grid_size = ?, placeholder = ?, help_text = ?,
			options = ?, parent_field = ?, parent_field_value = ?,
			reorderable = ?, required_configurable = ?, hideable = ?
		WHERE id = ?`,
		fc.FieldLabel, string(fc.FieldType), fc.TabName, fc.TabIndex, fc.DisplayOrder,
		boolToInt(fc.Enabled), boolToInt(fc.Required), fc.GridSize, fc.Placeholder,
		fc.HelpText, marshalOptions(fc.Options), fc.ParentField, fc.ParentFieldValue,
		boolToInt(fc.Reorderable), boolToInt(fc.RequiredConfigurable), boolToInt(fc.Hideable), fc.ID)
	return err
}

func marshalOptions(opts []fields.SelectOption) string {
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
