package api

import (
	"net/http"
	"strings"

	"github.com/nerrad567/iedsim/internal/snapshot"
)

// exportFormat picks the export encoding: ?format= wins, then Accept.
func exportFormat(r *http.Request) (snapshot.Format, error) {
	if q := r.URL.Query().Get("format"); q != "" {
		return snapshot.ParseFormat(q)
	}
	for _, accept := range strings.Split(r.Header.Get("Accept"), ",") {
		if snapshot.FormatFromContentType(strings.TrimSpace(accept)) == snapshot.FormatMsgPack {
			return snapshot.FormatMsgPack, nil
		}
	}
	return snapshot.FormatJSON, nil
}

// handleExport returns a full snapshot of registers and custom variables.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := exportFormat(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	snap := s.snapshots.Export()
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	if err := snapshot.Encode(w, snap, format); err != nil {
		s.logger.Warn("writing snapshot export failed", "error", err)
	}
}

// handleImport applies a snapshot in JSON or MessagePack (by Content-Type).
// A failing entry stops the import; entries applied before it stay.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	format := snapshot.FormatFromContentType(r.Header.Get("Content-Type"))
	snap, err := snapshot.Decode(r.Body, format)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	if err := s.snapshots.Import(r.Context(), snap); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Configuration imported successfully",
	})
}

// handleResetDefaults writes every catalog default back into the image.
func (s *Server) handleResetDefaults(w http.ResponseWriter, r *http.Request) {
	if err := s.image.ResetToDefaults(); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "All registers reset to defaults",
	})
}
