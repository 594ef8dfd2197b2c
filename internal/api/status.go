package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/iedsim/internal/activity"
	"github.com/nerrad567/iedsim/internal/register"
)

// maxChangesLimit caps the limit query parameter of /api/changes.
const maxChangesLimit = 1000

// ModbusInfo describes the Modbus endpoint in the system status.
type ModbusInfo struct {
	Address  int    `json:"address"`
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Enabled  bool   `json:"enabled"`
}

// SystemStatus is the response of GET /api/system_status.
type SystemStatus struct {
	System        activity.Stats    `json:"system"`
	Modbus        ModbusInfo        `json:"modbus"`
	RegisterCount int               `json:"register_count"`
	RecentChanges []register.Change `json:"recent_changes"`
}

// handleSystemStatus returns activity counters, the Modbus endpoint and the
// recent change log.
func (s *Server) handleSystemStatus(w http.ResponseWriter, _ *http.Request) {
	var stats activity.Stats
	if s.activity != nil {
		stats = s.activity.Stats()
	}
	writeJSON(w, http.StatusOK, SystemStatus{
		System: stats,
		Modbus: ModbusInfo{
			Address:  s.modbusCfg.UnitID,
			IP:       s.modbusCfg.Host,
			Port:     s.modbusCfg.Port,
			Protocol: "Modbus TCP",
			Enabled:  s.modbusCfg.Enabled,
		},
		RegisterCount: s.image.Size(),
		RecentChanges: s.image.RecentChanges(s.recent),
	})
}

// statusPoint names one catalogued register of the common status view.
type statusPoint struct {
	bank register.Bank
	name string
}

// statusGroups lists the registers shown by GET /api/status, by group.
var statusGroups = []struct {
	group  string
	points []statusPoint
}{
	{"voltage", []statusPoint{
		{register.InputRegisters, "V_L1_N"},
		{register.InputRegisters, "V_L2_N"},
		{register.InputRegisters, "V_L3_N"},
		{register.InputRegisters, "V_L1_L2"},
		{register.InputRegisters, "V_L2_L3"},
		{register.InputRegisters, "V_L3_L1"},
	}},
	{"current", []statusPoint{
		{register.InputRegisters, "I_L1"},
		{register.InputRegisters, "I_L2"},
		{register.InputRegisters, "I_L3"},
		{register.InputRegisters, "I_N"},
	}},
	{"power", []statusPoint{
		{register.InputRegisters, "P_TOTAL"},
		{register.InputRegisters, "Q_TOTAL"},
		{register.InputRegisters, "S_TOTAL"},
		{register.InputRegisters, "PF_TOTAL"},
	}},
	{"frequency", []statusPoint{
		{register.InputRegisters, "FREQ"},
	}},
	{"breaker", []statusPoint{
		{register.DiscreteInputs, "BKR_52A"},
		{register.DiscreteInputs, "BKR_52B"},
		{register.DiscreteInputs, "BKR_READY"},
	}},
	{"transformer", []statusPoint{
		{register.InputRegisters, "XFMR_OIL_TEMP"},
		{register.InputRegisters, "XFMR_WNDG_TEMP"},
		{register.InputRegisters, "XFMR_LOAD_PCT"},
		{register.InputRegisters, "XFMR_TAP_POS"},
	}},
}

// handleStatus returns the common monitoring values in engineering units.
// Points missing from the catalog are left out.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	catalog := s.image.Catalog()
	out := make(map[string]map[string]any, len(statusGroups))

	for _, g := range statusGroups {
		values := make(map[string]any, len(g.points))
		for _, p := range g.points {
			entry, ok := catalog.LookupName(p.bank, p.name)
			if !ok {
				continue
			}
			if p.bank.IsBoolean() {
				raw, err := s.image.Get(p.bank, entry.Address)
				if err == nil {
					values[p.name] = raw
				}
				continue
			}
			if v, ok := s.image.ScaledValue(p.bank, entry.Address); ok {
				values[p.name] = v
			}
		}
		out[g.group] = values
	}

	writeJSON(w, http.StatusOK, out)
}

// handleRegisterMap returns the catalog, per bank, in address order.
func (s *Server) handleRegisterMap(w http.ResponseWriter, _ *http.Request) {
	catalog := s.image.Catalog()
	out := make(map[register.Bank][]register.Entry, 4)
	for _, b := range register.AllBanks() {
		entries := catalog.Entries(b)
		if entries == nil {
			entries = []register.Entry{}
		}
		out[b] = entries
	}
	writeJSON(w, http.StatusOK, out)
}

// CategoryValue is one catalogued register in a category view. Word banks
// carry raw, scaled and unit; boolean banks carry value.
type CategoryValue struct {
	Address     int      `json:"address"`
	RawValue    *uint16  `json:"raw_value,omitempty"`
	ScaledValue *float64 `json:"scaled_value,omitempty"`
	Unit        *string  `json:"unit,omitempty"`
	Value       *uint16  `json:"value,omitempty"`
	Description string   `json:"description"`
}

// handleCategory returns every catalogued register of one bank keyed by
// name, read from one consistent copy of the bank.
func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	b, ok := parseBank(w, chi.URLParam(r, "bank"))
	if !ok {
		return
	}
	words, err := s.image.Values(b)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}

	entries := s.image.Catalog().Entries(b)
	out := make(map[string]CategoryValue, len(entries))
	for _, e := range entries {
		raw := words[e.Address]
		cv := CategoryValue{Address: e.Address, Description: e.Description}
		if b.IsBoolean() {
			cv.Value = &raw
		} else {
			scaled := e.Scale.Apply(raw)
			unit := e.Unit
			cv.RawValue, cv.ScaledValue, cv.Unit = &raw, &scaled, &unit
		}
		out[e.Name] = cv
	}
	writeJSON(w, http.StatusOK, out)
}

// handleChanges returns the recent change log, newest last.
//
// Query parameters:
//   - limit: number of entries (default from configuration, max 1000)
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	limit := s.recent
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxChangesLimit)
	}

	changes := s.image.RecentChanges(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"changes": changes,
		"count":   len(changes),
	})
}
