package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/nerrad567/iedsim/internal/register"
)

func TestSystemStatus(t *testing.T) {
	srv := testServer(t)
	if err := srv.image.Set(register.Coils, 0, 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	w := do(t, srv, http.MethodGet, "/api/system_status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp SystemStatus
	decode(t, w, &resp)
	if resp.Modbus.Address != 1 || resp.Modbus.Port != 5020 || resp.Modbus.Protocol != "Modbus TCP" {
		t.Errorf("modbus = %+v", resp.Modbus)
	}
	if resp.RegisterCount != register.DefaultSize {
		t.Errorf("register_count = %d, want %d", resp.RegisterCount, register.DefaultSize)
	}
	if len(resp.RecentChanges) != 1 || resp.RecentChanges[0].NewValue != 1 {
		t.Errorf("recent_changes = %+v, want one coil write", resp.RecentChanges)
	}
	if resp.System.TotalRequests != 1 {
		t.Errorf("total_requests = %d, want 1 (this request)", resp.System.TotalRequests)
	}
}

func TestStatus_ScaledGroups(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]map[string]float64
	decode(t, w, &resp)
	for _, group := range []string{"voltage", "current", "power", "frequency", "breaker", "transformer"} {
		if _, ok := resp[group]; !ok {
			t.Errorf("missing group %q", group)
		}
	}
	if got := resp["voltage"]["V_L1_N"]; got != 120 {
		t.Errorf("V_L1_N = %v, want 120", got)
	}
	if got := resp["frequency"]["FREQ"]; got != 60 {
		t.Errorf("FREQ = %v, want 60", got)
	}
	if got := resp["breaker"]["BKR_52A"]; got != 1 {
		t.Errorf("BKR_52A = %v, want 1", got)
	}
}

func TestStatus_EmptyCatalog(t *testing.T) {
	srv := testServer(t)
	img, err := register.New(register.Options{})
	if err != nil {
		t.Fatalf("register.New: %v", err)
	}
	srv.image = img

	w := do(t, srv, http.MethodGet, "/api/status", nil)
	var resp map[string]map[string]any
	decode(t, w, &resp)
	for group, values := range resp {
		if len(values) != 0 {
			t.Errorf("group %q = %v, want empty", group, values)
		}
	}
}

func TestRegisterMap(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/register_map", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[register.Bank][]register.Entry
	decode(t, w, &resp)
	catalog := srv.image.Catalog()
	for _, b := range register.AllBanks() {
		if len(resp[b]) != catalog.Len(b) {
			t.Errorf("%s entries = %d, want %d", b, len(resp[b]), catalog.Len(b))
		}
		for i := 1; i < len(resp[b]); i++ {
			if resp[b][i-1].Address >= resp[b][i].Address {
				t.Errorf("%s entries not in address order at %d", b, i)
				break
			}
		}
	}
}

func TestCategory(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, http.MethodGet, "/api/category/input_registers", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var words map[string]CategoryValue
	decode(t, w, &words)

	freq, ok := words["FREQ"]
	if !ok {
		t.Fatal("FREQ missing from category view")
	}
	if freq.RawValue == nil || *freq.RawValue != 6000 {
		t.Errorf("FREQ raw = %v, want 6000", freq.RawValue)
	}
	if freq.ScaledValue == nil || *freq.ScaledValue != 60 {
		t.Errorf("FREQ scaled = %v, want 60", freq.ScaledValue)
	}
	if freq.Unit == nil || *freq.Unit != "Hz" {
		t.Errorf("FREQ unit = %v, want Hz", freq.Unit)
	}
	if freq.Value != nil {
		t.Error("word bank entries should not carry value")
	}

	w = do(t, srv, http.MethodGet, "/api/category/discrete_input", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var bits map[string]CategoryValue
	decode(t, w, &bits)
	bkr := bits["BKR_52A"]
	if bkr.Value == nil || *bkr.Value != 1 {
		t.Errorf("BKR_52A value = %v, want 1", bkr.Value)
	}
	if bkr.RawValue != nil || bkr.ScaledValue != nil {
		t.Error("boolean bank entries should carry only value")
	}
}

func TestCategory_UnknownBank(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv, http.MethodGet, "/api/category/relays", nil)
	assertError(t, w, http.StatusBadRequest, ErrCodeInvalidRequest)
}

func TestChanges(t *testing.T) {
	srv := testServer(t)
	for i := range 5 {
		if err := srv.image.Set(register.HoldingRegisters, 100+i, i+1); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	tests := []struct {
		query     string
		wantCount int
		wantFirst int
	}{
		{"", 5, 100},
		{"?limit=2", 2, 103},
		{"?limit=5000", 5, 100},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("query %q", tt.query), func(t *testing.T) {
			w := do(t, srv, http.MethodGet, "/api/changes"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			var resp struct {
				Changes []register.Change `json:"changes"`
				Count   int               `json:"count"`
			}
			decode(t, w, &resp)
			if resp.Count != tt.wantCount || len(resp.Changes) != tt.wantCount {
				t.Fatalf("count = %d (%d entries), want %d", resp.Count, len(resp.Changes), tt.wantCount)
			}
			if resp.Changes[0].Address != tt.wantFirst {
				t.Errorf("first address = %d, want %d", resp.Changes[0].Address, tt.wantFirst)
			}
		})
	}

	for _, bad := range []string{"0", "-3", "many"} {
		w := do(t, srv, http.MethodGet, "/api/changes?limit="+bad, nil)
		assertError(t, w, http.StatusBadRequest, ErrCodeInvalidRequest)
	}
}
