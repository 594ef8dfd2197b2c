package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/nerrad567/iedsim/internal/register"
	"github.com/nerrad567/iedsim/internal/snapshot"
)

func TestExport_JSON(t *testing.T) {
	srv := testServer(t)
	if err := srv.image.Set(register.HoldingRegisters, 7, -2); err != nil {
		t.Fatalf("Set: %v", err)
	}

	w := do(t, srv, http.MethodGet, "/api/export_config", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != snapshot.ContentTypeJSON {
		t.Errorf("Content-Type = %q, want %q", ct, snapshot.ContentTypeJSON)
	}

	var snap snapshot.Snapshot
	decode(t, w, &snap)
	if snap.Modbus == nil || snap.Modbus.UnitID != 1 || snap.Modbus.Port != 5020 {
		t.Errorf("modbus_config = %+v", snap.Modbus)
	}
	if snap.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if got := snap.CurrentValues[register.HoldingRegisters][7]; got != 65534 {
		t.Errorf("holding_registers[7] = %d, want 65534", got)
	}
	if got := len(snap.CurrentValues[register.Coils]); got != register.DefaultSize {
		t.Errorf("coils exported = %d, want %d", got, register.DefaultSize)
	}
}

func TestExport_MsgPack(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		accept string
	}{
		{"query", "/api/export_config?format=msgpack", ""},
		{"accept header", "/api/export_config", "application/json;q=0.5, application/msgpack"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			w := httptest.NewRecorder()
			srv.buildRouter().ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if ct := w.Header().Get("Content-Type"); ct != snapshot.ContentTypeMsgPack {
				t.Errorf("Content-Type = %q, want %q", ct, snapshot.ContentTypeMsgPack)
			}
			var snap snapshot.Snapshot
			if err := msgpack.Unmarshal(w.Body.Bytes(), &snap); err != nil {
				t.Fatalf("msgpack.Unmarshal: %v", err)
			}
			if got := snap.CurrentValues[register.InputRegisters][70]; got != 6000 {
				t.Errorf("input_registers[70] = %d, want 6000", got)
			}
		})
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv, http.MethodGet, "/api/export_config?format=xml", nil)
	assertError(t, w, http.StatusBadRequest, ErrCodeInvalidRequest)
}

func TestImport_JSON(t *testing.T) {
	srv := testServer(t)

	body := `{
		"custom_variables": {"setpoint": {"address": 3}},
		"current_values": {
			"coils": {"5": 1},
			"holding_registers": {"3": -10}
		}
	}`
	w := do(t, srv, http.MethodPost, "/api/import_config", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}

	if v, _ := srv.image.Get(register.Coils, 5); v != 1 {
		t.Errorf("coils[5] = %d, want 1", v)
	}
	if v, _ := srv.image.Get(register.HoldingRegisters, 3); v != 65526 {
		t.Errorf("holding_registers[3] = %d, want 65526", v)
	}
	if _, ok := srv.vars.Get("setpoint"); !ok {
		t.Error("custom variable setpoint not imported")
	}
	if n := len(srv.image.RecentChanges(10)); n != 2 {
		t.Errorf("import recorded %d changes, want 2", n)
	}
}

func TestImport_MsgPackRoundTrip(t *testing.T) {
	src := testServer(t)
	if err := src.image.Set(register.InputRegisters, 0, 1300); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, src.snapshots.Export(), snapshot.FormatMsgPack); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	dst := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/import_config", &buf)
	req.Header.Set("Content-Type", snapshot.ContentTypeMsgPack)
	w := httptest.NewRecorder()
	dst.buildRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}
	if v, _ := dst.image.Get(register.InputRegisters, 0); v != 1300 {
		t.Errorf("input_registers[0] = %d, want 1300", v)
	}
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"current_values": [`},
		{"unknown bank", `{"current_values": {"relays": {"0": 1}}}`},
		{"out of range address", `{"current_values": {"coils": {"9999": 1}}}`},
		{"invalid word", `{"current_values": {"holding_registers": {"0": 70000}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t)
			w := do(t, srv, http.MethodPost, "/api/import_config", tt.body)
			assertError(t, w, http.StatusBadRequest, ErrCodeInvalidSnapshot)
		})
	}
}

func TestImport_StopsAtFirstFailure(t *testing.T) {
	srv := testServer(t)

	body := `{"current_values": {"holding_registers": {"1": 11, "2": 70000, "3": 33}}}`
	w := do(t, srv, http.MethodPost, "/api/import_config", body)
	assertError(t, w, http.StatusBadRequest, ErrCodeInvalidSnapshot)

	if v, _ := srv.image.Get(register.HoldingRegisters, 1); v != 11 {
		t.Errorf("holding_registers[1] = %d, want 11 (applied before failure)", v)
	}
	if v, _ := srv.image.Get(register.HoldingRegisters, 3); v == 33 {
		t.Error("holding_registers[3] should not be applied after the failure")
	}
}

func TestResetDefaults(t *testing.T) {
	srv := testServer(t)
	if err := srv.image.Set(register.InputRegisters, 70, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	w := do(t, srv, http.MethodPost, "/api/reset_defaults", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if v, _ := srv.image.Get(register.InputRegisters, 70); v != 6000 {
		t.Errorf("FREQ after reset = %d, want 6000", v)
	}
}
