package linked

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/openfield-labs/fieldforge/engine"
)

//go:embed schema.sql
var migration string

type Module struct {
	store *Store
}

func New(db *sql.DB) *Module {
	engine.MustMigrate(db, migration)
	return &Module{store: NewStore(db)}
}

func (m *Module) Store() *Store { return m.store }

func (m *Module) AttachRoutes(router *engine.Router) {
	router.Handle("GET", "/api/modules/:module/linked-entities", m.handleList)
	router.Handle("PUT", "/api/modules/:module/linked-entities/:entity", m.handlePut)
	router.Handle("POST", "/api/modules/:module/linked-entities/:entity/toggle", m.handleToggle)
	router.Handle("DELETE", "/api/modules/:module/linked-entities/:entity", m.handleDelete)
}

func (m *Module) handleList(r *http.Request, ps httprouter.Params) engine.Response {
	entities, err := m.store.ListForModule(r.Context(), ps.ByName("module"))
	if err != nil {
		return engine.Error(err)
	}
	if entities == nil {
		entities = []Entity{}
	}
	return engine.JSON(entities)
}

func (m *Module) handlePut(r *http.Request, ps httprouter.Params) engine.Response {
	var e Entity
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		return engine.ClientErrorf("invalid request: %s", err)
	}
	e.ModuleName = ps.ByName("module")
	e.EntityName = ps.ByName("entity")

	if err := m.store.Upsert(r.Context(), e); err != nil {
		return engine.Error(err)
	}
	return engine.JSON(e)
}

func (m *Module) handleToggle(r *http.Request, ps httprouter.Params) engine.Response {
	if err := m.store.Toggle(r.Context(), ps.ByName("module"), ps.ByName("entity")); err != nil {
		return engine.Error(err)
	}
	return engine.Empty()
}

func (m *Module) handleDelete(r *http.Request, ps httprouter.Params) engine.Response {
	if err := m.store.Delete(r.Context(), ps.ByName("module"), ps.ByName("entity")); err != nil {
		return engine.Error(err)
	}
	return engine.Empty()
}

// NewTestDB returns a migrated database for tests.
func NewTestDB(t *testing.T) *sql.DB {
	d := engine.OpenTestDB(t)
	engine.MustMigrate(d, migration)
	return d
}
