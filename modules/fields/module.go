package fields

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/openfield-labs/fieldforge/engine"
)

//go:embed schema.sql
var migration string

// Module exposes the field definition store and tab organizer over HTTP.
type Module struct {
	store *Store
}

func New(db *sql.DB, events *engine.EventLogger) *Module {
	engine.MustMigrate(db, migration)
	return &Module{store: NewStore(db, events)}
}

func (m *Module) Store() *Store { return m.store }

func (m *Module) AttachRoutes(router *engine.Router) {
	router.Handle("GET", "/api/modules/:module/fields", m.handleListFields)
	router.Handle("POST", "/api/modules/:module/fields", m.handleInitFields)
	router.Handle("GET", "/api/fields/:id", m.handleGetField)
	router.Handle("PATCH", "/api/fields/:id", m.handlePatchField)

	router.Handle("GET", "/api/modules/:module/tabs", m.handleListTabs)
	router.Handle("POST", "/api/modules/:module/tab-order", m.handleMoveTab)
	router.Handle("POST", "/api/modules/:module/tabs/:tab/toggle", m.handleToggleTab)
}

func (m *Module) handleListFields(r *http.Request, ps httprouter.Params) engine.Response {
	fcs, err := m.store.ListFields(r.Context(), ps.ByName("module"))
	if err != nil {
		return engine.Error(err)
	}
	if fcs == nil {
		fcs = []FieldConfiguration{}
	}
	return engine.JSON(fcs)
}

func (m *Module) handleInitFields(r *http.Request, ps httprouter.Params) engine.Response {
	fcs, err := m.store.InitializeDefaults(r.Context(), ps.ByName("module"))
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(fcs)
}

func (m *Module) handleGetField(r *http.Request, ps httprouter.Params) engine.Response {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		return engine.ClientErrorf("invalid field id: %s", ps.ByName("id"))
	}
	fc, err := m.store.GetField(r.Context(), id)
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(fc)
}

func (m *Module) handlePatchField(r *http.Request, ps httprouter.Params) engine.Response {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		return engine.ClientErrorf("invalid field id: %s", ps.ByName("id"))
	}

	patch := Patch{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		return engine.ClientErrorf("invalid request: %s", err)
	}

	fc, err := m.store.UpdateField(r.Context(), id, patch)
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(fc)
}

func (m *Module) handleListTabs(r *http.Request, ps httprouter.Params) engine.Response {
	tabs, err := m.store.ListTabs(r.Context(), ps.ByName("module"))
	if err != nil {
		return engine.Error(err)
	}
	if tabs == nil {
		tabs = []TabConfig{}
	}
	return engine.JSON(tabs)
}

func (m *Module) handleMoveTab(r *http.Request, ps httprouter.Params) engine.Response {
	body := struct {
		Index     int `json:"index"`
		Direction int `json:"direction"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return engine.ClientErrorf("invalid request: %s", err)
	}

	tabs, err := m.store.MoveTab(r.Context(), ps.ByName("module"), body.Index, body.Direction)
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(tabs)
}

func (m *Module) handleToggleTab(r *http.Request, ps httprouter.Params) engine.Response {
	tab, err := m.store.ToggleTab(r.Context(), ps.ByName("module"), ps.ByName("tab"))
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(tab)
}

// NewTestDB returns a migrated database for tests in this and dependent packages.
func NewTestDB(t *testing.T) *sql.DB {
	d := engine.OpenTestDB(t)
	engine.MustMigrate(d, migration)
	return d
}
