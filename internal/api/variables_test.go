package api

import (
	"net/http"
	"testing"
)

func TestCustomVariables_Lifecycle(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/custom_variables", nil)
	if w.Code != http.StatusOK || w.Body.String() != "{}\n" {
		t.Fatalf("initial list = %d %q, want 200 {}", w.Code, w.Body.String())
	}

	w = do(t, srv, http.MethodPost, "/api/custom_variables", SaveVariableRequest{
		Name:   "pump_speed",
		Config: map[string]any{"type": "holding_register", "address": 12, "unit": "rpm"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}
	var saved map[string]any
	decode(t, w, &saved)
	if saved["message"] != "Variable pump_speed saved" {
		t.Errorf("message = %v", saved["message"])
	}

	w = do(t, srv, http.MethodGet, "/api/custom_variables", nil)
	var list map[string]map[string]any
	decode(t, w, &list)
	if list["pump_speed"]["unit"] != "rpm" {
		t.Errorf("listed variables = %v", list)
	}

	w = do(t, srv, http.MethodDelete, "/api/custom_variables/pump_speed", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", w.Code, http.StatusOK)
	}
	if srv.vars.Len() != 0 {
		t.Errorf("store still holds %d variables", srv.vars.Len())
	}
}

func TestCustomVariables_Errors(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, http.MethodDelete, "/api/custom_variables/missing", nil)
	assertError(t, w, http.StatusNotFound, ErrCodeNotFound)

	w = do(t, srv, http.MethodPost, "/api/custom_variables", `{"config":{"a":1}}`)
	assertError(t, w, http.StatusBadRequest, ErrCodeInvalidRequest)

	w = do(t, srv, http.MethodPost, "/api/custom_variables", `[1,2]`)
	assertError(t, w, http.StatusBadRequest, ErrCodeInvalidRequest)
}
