package engine

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/openfield-labs/fieldforge/internal/cfgerr"
	"github.com/stretchr/testify/assert"
)

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", cfgerr.NotFoundf("Leads", "", "nope"), 404},
		{"out of range", cfgerr.OutOfRangef("Leads", "index 9"), 400},
		{"policy", cfgerr.Policyf("Leads", "Name", "isHideable", "no"), 422},
		{"invalid dependency", cfgerr.InvalidDependencyf("Leads", "City", "no such field"), 422},
		{"cycle", cfgerr.Cyclic("Leads", []string{"A", "B", "A"}), 409},
		{"stale", cfgerr.Stale("Leads", 1, 2), 409},
		{"internal", errors.New("boom"), 500},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/test", nil)
			Handle(rec, req, nil, func(r *http.Request, ps httprouter.Params) Response {
				return Error(tc.err)
			})
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestAlreadyInitializedIsNoOp(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/test", nil)
	Handle(rec, req, nil, func(r *http.Request, ps httprouter.Params) Response {
		return Error(cfgerr.AlreadyInitializedf("Leads", "already seeded"))
	})
	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"status":"already_initialized"}`, rec.Body.String())
}

func TestNilResponseIsEmpty(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/test", nil)
	Handle(rec, req, nil, func(r *http.Request, ps httprouter.Params) Response {
		return nil
	})
	assert.Equal(t, 204, rec.Code)
}
