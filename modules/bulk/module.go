package bulk

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"github.com/openfield-labs/fieldforge/engine"
	"github.com/openfield-labs/fieldforge/modules/links"
)

// resetTokenTTL bounds how long a minted reset confirmation stays usable.
const resetTokenTTL = 10 * time.Minute

type Module struct {
	coord  *Coordinator
	issuer *engine.TokenIssuer
}

func New(db *sql.DB, catalog links.SourceCatalog, issuer *engine.TokenIssuer, events *engine.EventLogger) *Module {
	return &Module{coord: NewCoordinator(db, catalog, events), issuer: issuer}
}

func (m *Module) Coordinator() *Coordinator { return m.coord }

func (m *Module) AttachRoutes(router *engine.Router) {
	router.Handle("POST", "/api/modules/:module/field-order", m.handleReorder)
	router.Handle("POST", "/api/modules/:module/save", m.handleSave)
	router.Handle("GET", "/api/modules/:module/reset-token", m.handleResetToken)
	router.Handle("POST", "/api/modules/:module/reset", m.handleReset)
}

func (m *Module) handleReorder(r *http.Request, ps httprouter.Params) engine.Response {
	body := struct {
		Tab      string `json:"tab"`
		FieldID  int64  `json:"fieldId"`
		NewIndex int    `json:"newIndex"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return engine.ClientErrorf("invalid request: %s", err)
	}

	list, err := m.coord.ReorderField(r.Context(), ps.ByName("module"), body.Tab, body.FieldID, body.NewIndex)
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(list)
}

func (m *Module) handleSave(r *http.Request, ps httprouter.Params) engine.Response {
	var snap Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		return engine.ClientErrorf("invalid request: %s", err)
	}

	result, err := m.coord.SaveModuleConfig(r.Context(), ps.ByName("module"), snap)
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(result)
}

// handleResetToken mints a short-lived confirmation for the destructive
// reset. The client has to round-trip it, which rules out accidental or
// cross-module resets from a stale page.
func (m *Module) handleResetToken(r *http.Request, ps httprouter.Params) engine.Response {
	now := time.Now()
	tok, err := m.issuer.Sign(&jwt.RegisteredClaims{
		Subject:   ps.ByName("module"),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(resetTokenTTL)),
	})
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(map[string]string{"token": tok})
}

func (m *Module) handleReset(r *http.Request, ps httprouter.Params) engine.Response {
	body := struct {
		Token string `json:"token"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return engine.ClientErrorf("invalid request: %s", err)
	}

	module := ps.ByName("module")
	claims, err := m.issuer.Verify(body.Token)
	if err != nil {
		return engine.Unauthorized(err)
	}
	if claims.Subject != module {
		return engine.ClientErrorf("token was issued for module %q", claims.Subject)
	}

	defs, err := m.coord.ResetToDefaults(r.Context(), module)
	if err != nil {
		return engine.Error(err)
	}
	return engine.JSON(defs)
}
