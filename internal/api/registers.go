package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/iedsim/internal/register"
)

// registerValue is a value from a request body: an integer, or true/false
// for the boolean banks.
type registerValue int

func (v *registerValue) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*v = 1
		return nil
	case "false":
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 32)
	if err != nil {
		return fmt.Errorf("value must be an integer or boolean, got %s", data)
	}
	*v = registerValue(n)
	return nil
}

// GetRegisterRequest is the body of POST /api/get_register.
type GetRegisterRequest struct {
	Type    string `json:"type"`
	Address *int   `json:"address"`
}

// SetRegisterRequest is the body of the set_* endpoints.
type SetRegisterRequest struct {
	Address *int           `json:"address"`
	Value   *registerValue `json:"value"`
}

// RegisterResponse describes one register.
type RegisterResponse struct {
	Bank        register.Bank   `json:"bank"`
	Address     int             `json:"address"`
	Value       uint16          `json:"value"`
	ScaledValue *float64        `json:"scaled_value,omitempty"`
	Entry       *register.Entry `json:"entry,omitempty"`
}

// decodeJSON decodes the request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeInvalidRequest, "request body too large")
			return false
		}
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// parseBank resolves a bank name from the request, answering 400 for
// unknown names so they never reach the image.
func parseBank(w http.ResponseWriter, name string) (register.Bank, bool) {
	b, err := register.ParseBank(name)
	if err != nil {
		writeBadRequest(w, err.Error())
		return "", false
	}
	return b, true
}

// handleGetRegister reads one register named by {type, address}.
func (s *Server) handleGetRegister(w http.ResponseWriter, r *http.Request) {
	var req GetRegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, ok := parseBank(w, req.Type)
	if !ok {
		return
	}
	if req.Address == nil {
		writeBadRequest(w, "address is required")
		return
	}

	value, err := s.image.Get(b, *req.Address)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"value":   value,
	})
}

// handleSetBank returns the handler of one set_* endpoint.
func (s *Server) handleSetBank(b register.Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetRegisterRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Address == nil || req.Value == nil {
			writeBadRequest(w, "address and value are required")
			return
		}

		if err := s.image.Set(b, *req.Address, int(*req.Value)); err != nil {
			s.writeCoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"address": *req.Address,
			"value":   int(*req.Value),
		})
	}
}

// registerParams parses {bank} and {address} from the route.
func registerParams(w http.ResponseWriter, r *http.Request) (register.Bank, int, bool) {
	b, ok := parseBank(w, chi.URLParam(r, "bank"))
	if !ok {
		return "", 0, false
	}
	addr, err := strconv.Atoi(chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, "address must be an integer")
		return "", 0, false
	}
	return b, addr, true
}

// handleReadRegister returns value, scaled value and catalog entry of one
// register.
func (s *Server) handleReadRegister(w http.ResponseWriter, r *http.Request) {
	b, addr, ok := registerParams(w, r)
	if !ok {
		return
	}
	resp, err := s.describeRegister(b, addr)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWriteRegister sets one register from {"value": n}.
func (s *Server) handleWriteRegister(w http.ResponseWriter, r *http.Request) {
	b, addr, ok := registerParams(w, r)
	if !ok {
		return
	}
	var req struct {
		Value *registerValue `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	if err := s.image.Set(b, addr, int(*req.Value)); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	resp, err := s.describeRegister(b, addr)
	if err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) describeRegister(b register.Bank, addr int) (RegisterResponse, error) {
	value, err := s.image.Get(b, addr)
	if err != nil {
		return RegisterResponse{}, err
	}
	resp := RegisterResponse{Bank: b, Address: addr, Value: value}
	if entry, ok := s.image.Catalog().Lookup(b, addr); ok {
		resp.Entry = &entry
		if !b.IsBoolean() {
			scaled := entry.Scale.Apply(value)
			resp.ScaledValue = &scaled
		}
	}
	return resp, nil
}
