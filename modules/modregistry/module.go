package modregistry

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/openfield-labs/fieldforge/engine"
	"github.com/openfield-labs/fieldforge/internal/cfgerr"
	"github.com/openfield-labs/fieldforge/modules/fields"
	"github.com/openfield-labs/fieldforge/modules/linked"
	"github.com/openfield-labs/fieldforge/modules/links"
)

//go:embed schema.sql
var migration string

type Module struct {
	db    *sql.DB
	store *Store
}

func New(db *sql.DB, fieldStore *fields.Store, linkedStore *linked.Store, linkStore *links.Store, events *engine.EventLogger) *Module {
	engine.MustMigrate(db, migration)
	return &Module{db: db, store: NewStore(db, fieldStore, linkedStore, linkStore, events)}
}

func (m *Module) Store() *Store { return m.store }

// AttachWorkers prunes the audit trail: config events older than 90 days
// are deleted in the background.
func (m *Module) AttachWorkers(mgr *engine.ProcMgr) {
	mgr.Add(engine.Poll(time.Hour, engine.Cleanup(m.db, "config events",
		`DELETE FROM config_events WHERE created < strftime('%s', 'now') - 60*60*24*90`)))
}

func (m *Module) AttachRoutes(router *engine.Router) {
	router.Handle("GET", "/api/modules", m.handleList)
	router.Handle("POST", "/api/modules", m.handleInitialize)
	router.Handle("PATCH", "/api/modules", m.handleBatchToggle)
	router.Handle("POST", "/api/modules/:module/enabled", m.handleSetEnabled)
	router.Handle("GET", "/api/modules/:module/config", m.handleCompleteConfig)
}

func (m *Module) handleList(r *http.Request, ps httprouter.Params) engine.Response {
	list, err := m.store.List(r.Context())
	if err != nil {
		return engine.Error(err)
	}
	if list == nil {
		list = []ModuleUIConfig{}
	}
	return engine.JSON(list)
}

// handleInitialize seeds the registry. Re-running it is a no-op that still
// returns the full module list, so UI bootstrap can call it blindly.
func (m *Module) handleInitialize(r *http.Request, ps httprouter.Params) engine.Response {
	list, err := m.store.InitializeDefaults(r.Context())
	if err != nil && !errors.Is(err, &cfgerr.Error{Kind: cfgerr.AlreadyInitialized}) {
		return engine.Error(err)
	}
	return engine.JSON(list)
}

func (m *Module) handleBatchToggle(r *http.Request, ps httprouter.Params) engine.Response {
	var toggles []Toggle
	if err := json.NewDecoder(r.Body).Decode(&toggles); err != nil {
		return engine.ClientErrorf("invalid request: %s", err)
	}
	if err := m.store.BatchSetEnabled(r.Context(), toggles); err != nil {
		return engine.Error(err)
	}
	return m.handleList(r, ps)
}

func (m *Module) handleSetEnabled(r *http.Request, ps httprouter.Params) engine.Response {
	body := struct {
		Enabled bool `json:"enabled"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return engine.ClientErrorf("invalid request: %s", err)
	}
	if err := m.store.SetEnabled(r.Context(), ps.ByName("module"), body.Enabled); err != nil {
		return engine.Error(err)
	}
	return engine.Empty()
}

func (m *Module) handleCompleteConfig(r *http.Request, ps httprouter.Params) engine.Response {
	cfg, err := m.store.LoadCompleteConfig(r.Context(), ps.ByName("module"))
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(cfg)
}

// NewTestDB returns a database migrated with the registry schema only.
func NewTestDB(t *testing.T) *sql.DB {
	d := engine.OpenTestDB(t)
	engine.MustMigrate(d, migration)
	return d
}
