// Package modregistry is the entry point of the configuration engine: the
// per-module on/off switch and display metadata, plus the composed read
// used when an operator expands a module for editing.
package modregistry

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/openfield-labs/fieldforge/internal/cfgerr"
	"github.com/openfield-labs/fieldforge/modules/fields"
	"github.com/openfield-labs/fieldforge/modules/linked"
	"github.com/openfield-labs/fieldforge/modules/links"
)

// LandingModule stays enabled no matter what a batch toggle asks for, so
// an over-eager "disable all" can never lock every operator out of the UI.
const LandingModule = "Customers"

// ModuleUIConfig is the top-level switch and display metadata of one
// business module. Rows are seeded once and never deleted, only disabled.
type ModuleUIConfig struct {
	ModuleName    string `json:"moduleName"`
	Enabled       bool   `json:"isEnabled"`
	DisplayName   string `json:"displayName"`
	Description   string `json:"description"`
	IconName      string `json:"iconName"`
	DisplayOrder  int    `json:"displayOrder"`
	ConfigVersion int64  `json:"configVersion"`
}

// CompleteConfig is everything the configuration UI needs to render one
// expanded module. Version is echoed back on save for conflict detection.
type CompleteConfig struct {
	Module         ModuleUIConfig              `json:"module"`
	Version        int64                       `json:"version"`
	Tabs           []fields.TabConfig          `json:"tabs"`
	Fields         []fields.FieldConfiguration `json:"fields"`
	LinkedEntities []linked.Entity             `json:"linkedEntities"`
	Links          map[int64][]links.Link      `json:"links"`
}

type auditLogger interface {
	Log(ctx context.Context, module, entityKind, entityID, action string, success bool, details string)
}

type Store struct {
	db     *sql.DB
	fields *fields.Store
	linked *linked.Store
	links  *links.Store
	events auditLogger
}

func NewStore(db *sql.DB, fieldStore *fields.Store, linkedStore *linked.Store, linkStore *links.Store, events auditLogger) *Store {
	return &Store{db: db, fields: fieldStore, linked: linkedStore, links: linkStore, events: events}
}

// List returns all modules in display order.
func (s *Store) List(ctx context.Context) ([]ModuleUIConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT module_name, enabled, display_name, description, icon_name, display_order, config_version
		FROM module_ui_configs ORDER BY display_order, module_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModuleUIConfig
	for rows.Next() {
		var m ModuleUIConfig
		var enabled int
		if err := rows.Scan(&m.ModuleName, &enabled, &m.DisplayName, &m.Description,
			&m.IconName, &m.DisplayOrder, &m.ConfigVersion); err != nil {
			return nil, err
		}
		m.Enabled = enabled == 1
		out = append(out, m)
	}
	return out, rows.Err()
}

// Get returns one module's config.
func (s *Store) Get(ctx context.Context, module string) (*ModuleUIConfig, error) {
	m := ModuleUIConfig{}
	var enabled int
	err := s.db.QueryRowContext(ctx, `
		SELECT module_name, enabled, display_name, description, icon_name, display_order, config_version
		FROM module_ui_configs WHERE module_name = ?`, module).
		Scan(&m.ModuleName, &enabled, &m.DisplayName, &m.Description, &m.IconName, &m.DisplayOrder, &m.ConfigVersion)
	if err == sql.ErrNoRows {
		return nil, cfgerr.NotFoundf(module, "", "unknown module %q", module)
	}
	if err != nil {
		return nil, err
	}
	m.Enabled = enabled == 1
	return &m, nil
}

// InitializeDefaults seeds every known module. Idempotent: existing rows
// keep their state and the call reports AlreadyInitialized when nothing
// was inserted.
func (s *Store) InitializeDefaults(ctx context.Context) ([]ModuleUIConfig, error) {
	inserted := 0
	for _, def := range moduleDefaults {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO module_ui_configs (module_name, enabled, display_name, description, icon_name, display_order)
			VALUES (?, 1, ?, ?, ?, ?)
			ON CONFLICT(module_name) DO NOTHING`,
			def.name, def.displayName, def.description, def.icon, def.order)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if inserted == 0 {
		return list, cfgerr.AlreadyInitializedf("", "all %d modules already seeded", len(list))
	}
	slog.Info("seeded module registry", "inserted", inserted)
	return list, nil
}

// SetEnabled toggles one module.
func (s *Store) SetEnabled(ctx context.Context, module string, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE module_ui_configs SET enabled = ? WHERE module_name = ?`, v, module)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cfgerr.NotFoundf(module, "", "unknown module %q", module)
	}
	if s.events != nil {
		s.events.Log(ctx, module, "module", "", "toggle", true, "")
	}
	return nil
}

// Toggle is one entry of a batch enable/disable request.
type Toggle struct {
	ModuleName string `json:"moduleName"`
	Enabled    bool   `json:"enabled"`
}

// BatchSetEnabled applies all toggles in one transaction. The landing
// module is forced to stay enabled regardless of what its entry asks for;
// that override lives here, not in callers, so no client can produce a UI
// with zero reachable modules.
func (s *Store) BatchSetEnabled(ctx context.Context, toggles []Toggle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range toggles {
		enabled := t.Enabled
		if t.ModuleName == LandingModule {
			enabled = true
		}
		v := 0
		if enabled {
			v = 1
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE module_ui_configs SET enabled = ? WHERE module_name = ?`, v, t.ModuleName)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return cfgerr.NotFoundf(t.ModuleName, "", "unknown module %q", t.ModuleName)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if s.events != nil {
		s.events.Log(ctx, "", "module", "", "batch_toggle", true, "")
	}
	return nil
}

// LoadCompleteConfig is the composed read behind "expand a module": field
// defaults are initialized on first access instead of handing the UI an
// empty module, tabs are derived and persisted if absent, and links come
// back keyed by field id.
func (s *Store) LoadCompleteConfig(ctx context.Context, module string) (*CompleteConfig, error) {
	mod, err := s.Get(ctx, module)
	if err != nil {
		return nil, err
	}

	fieldList, err := s.fields.InitializeDefaults(ctx, module)
	if err != nil && !errors.Is(err, &cfgerr.Error{Kind: cfgerr.AlreadyInitialized}) {
		return nil, err
	}

	tabs, err := s.fields.EnsureTabs(ctx, module)
	if err != nil {
		return nil, err
	}

	entities, err := s.linked.ListForModule(ctx, module)
	if err != nil {
		return nil, err
	}

	linkMap, err := s.links.ListForModule(ctx, module)
	if err != nil {
		return nil, err
	}

	return &CompleteConfig{
		Module:         *mod,
		Version:        mod.ConfigVersion,
		Tabs:           tabs,
		Fields:         fieldList,
		LinkedEntities: entities,
		Links:          linkMap,
	}, nil
}

type moduleDefault struct {
	name        string
	displayName string
	description string
	icon        string
	order       int
}

var moduleDefaults = []moduleDefault{
	{name: "Customers", displayName: "Customers", description: "Customer accounts and billing details", icon: "business", order: 0},
	{name: "Leads", displayName: "Leads", description: "Inbound prospects and qualification", icon: "person_add", order: 1},
	{name: "Contacts", displayName: "Contacts", description: "People attached to customer accounts", icon: "contacts", order: 2},
	{name: "Opportunities", displayName: "Opportunities", description: "Open deals and pipeline stages", icon: "trending_up", order: 3},
	{name: "Activities", displayName: "Activities", description: "Tasks, calls and meetings", icon: "event", order: 4},
	{name: "Products", displayName: "Products", description: "Sellable products and price data", icon: "inventory", order: 5},
}
