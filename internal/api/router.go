package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/iedsim/internal/register"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.accessLogMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.clientMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Status views
		r.Get("/system_status", s.handleSystemStatus)
		r.Get("/status", s.handleStatus)
		r.Get("/register_map", s.handleRegisterMap)
		r.Get("/category/{bank}", s.handleCategory)
		r.Get("/changes", s.handleChanges)

		// Register access
		r.Post("/get_register", s.handleGetRegister)
		r.Post("/set_coil", s.handleSetBank(register.Coils))
		r.Post("/set_discrete_input", s.handleSetBank(register.DiscreteInputs))
		r.Post("/set_holding_register", s.handleSetBank(register.HoldingRegisters))
		r.Post("/set_input_register", s.handleSetBank(register.InputRegisters))
		r.Route("/registers/{bank}/{address}", func(r chi.Router) {
			r.Get("/", s.handleReadRegister)
			r.Post("/", s.handleWriteRegister)
		})

		// Custom variables
		r.Route("/custom_variables", func(r chi.Router) {
			r.Get("/", s.handleListVariables)
			r.Post("/", s.handleSaveVariable)
			r.Delete("/{name}", s.handleDeleteVariable)
		})

		// Snapshots
		r.Get("/export_config", s.handleExport)
		r.Post("/import_config", s.handleImport)
		r.Post("/reset_defaults", s.handleResetDefaults)
	})

	r.Get(s.wsPath(), s.handleWebSocket)

	return r
}

// wsPath returns the configured WebSocket path.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
