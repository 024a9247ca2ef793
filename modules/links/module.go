package links

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/openfield-labs/fieldforge/engine"
)

//go:embed schema.sql
var migration string

type Module struct {
	db    *sql.DB
	store *Store
}

func New(db *sql.DB, catalog SourceCatalog, events *engine.EventLogger) *Module {
	engine.MustMigrate(db, migration)
	return &Module{db: db, store: NewStore(db, catalog, events)}
}

func (m *Module) Store() *Store { return m.store }

func (m *Module) AttachRoutes(router *engine.Router) {
	router.Handle("GET", "/api/sources", m.handleListSources)
	router.Handle("GET", "/api/fields/:id/links", m.handleListForField)
	router.Handle("POST", "/api/fields/:id/links", m.handleCreate)
	router.Handle("GET", "/api/modules/:module/links", m.handleListForModule)
	router.Handle("PATCH", "/api/links/:id", m.handleUpdate)
	router.Handle("DELETE", "/api/links/:id", m.handleDelete)
	router.Handle("POST", "/api/links/:id/validate", m.handleValidate)
}

func (m *Module) AttachWorkers(mgr *engine.ProcMgr) {
	sw := &sweeper{db: m.db, events: m.store.events}
	mgr.Add(engine.Poll(time.Minute, engine.PollWorkqueue(engine.WithRateLimiting[*danglingLink](sw, 10))))
}

func (m *Module) handleListSources(r *http.Request, ps httprouter.Params) engine.Response {
	sources, err := m.store.catalog.ListSources(r.Context())
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(sources)
}

func (m *Module) handleListForField(r *http.Request, ps httprouter.Params) engine.Response {
	fieldID, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		return engine.ClientErrorf("invalid field id: %s", ps.ByName("id"))
	}
	ls, err := m.store.ListForField(r.Context(), fieldID)
	if err != nil {
		return engine.Error(err)
	}
	if ls == nil {
		ls = []Link{}
	}
	return engine.JSON(ls)
}

// handleListForModule returns links grouped by field id together with the
// per-field indicator flags.
func (m *Module) handleListForModule(r *http.Request, ps httprouter.Params) engine.Response {
	byField, err := m.store.ListForModule(r.Context(), ps.ByName("module"))
	if err != nil {
		return engine.Error(err)
	}

	type fieldLinks struct {
		Links      []Link     `json:"links"`
		Annotation Annotation `json:"annotation"`
	}
	out := map[string]fieldLinks{}
	for fieldID, ls := range byField {
		out[strconv.FormatInt(fieldID, 10)] = fieldLinks{Links: ls, Annotation: Annotate(ls)}
	}
	return engine.JSON(out)
}

// linkRequest wraps the link payload so an absent sortOrder can be told
// apart from an explicit zero. The outer field shadows the embedded one
// during decoding.
type linkRequest struct {
	Link
	SortOrder *int `json:"sortOrder"`
}

func (m *Module) handleCreate(r *http.Request, ps httprouter.Params) engine.Response {
	fieldID, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		return engine.ClientErrorf("invalid field id: %s", ps.ByName("id"))
	}

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return engine.ClientErrorf("invalid request: %s", err)
	}
	req.Link.FieldConfigurationID = fieldID
	req.Link.Active = true

	created, err := m.store.Create(r.Context(), req.Link, req.SortOrder)
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(created)
}

func (m *Module) handleUpdate(r *http.Request, ps httprouter.Params) engine.Response {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return engine.ClientErrorf("invalid request: %s", err)
	}

	updated, err := m.store.Update(r.Context(), ps.ByName("id"), req.Link, req.SortOrder)
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(updated)
}

func (m *Module) handleDelete(r *http.Request, ps httprouter.Params) engine.Response {
	if err := m.store.Delete(r.Context(), ps.ByName("id")); err != nil {
		return engine.Error(err)
	}
	return engine.Empty()
}

func (m *Module) handleValidate(r *http.Request, ps httprouter.Params) engine.Response {
	body := struct {
		Value string `json:"value"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return engine.ClientErrorf("invalid request: %s", err)
	}

	l, err := m.store.Get(r.Context(), ps.ByName("id"))
	if err != nil {
		return engine.Error(err)
	}

	if err := ValidateValue(body.Value, l); err != nil {
		return engine.JSON(map[string]any{"valid": false, "message": err.Error()})
	}
	return engine.JSON(map[string]any{"valid": true})
}

// NewTestDB returns a database migrated with the links schema only. Most
// tests also need the fields schema; see the fields package.
func NewTestDB(t *testing.T) *sql.DB {
	d := engine.OpenTestDB(t)
	engine.MustMigrate(d, migration)
	return d
}
