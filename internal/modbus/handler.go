package modbus

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	mb "github.com/simonvetter/modbus"

	"github.com/nerrad567/iedsim/internal/activity"
	"github.com/nerrad567/iedsim/internal/register"
)

// Registers is the part of the process image the handler serves.
type Registers interface {
	Get(b register.Bank, addr int) (uint16, error)
	Set(b register.Bank, addr int, value int) error
	Size() int
}

// Recorder notes one inbound request. *activity.Tracker satisfies it.
type Recorder interface {
	Record(addr, iface string)
}

// Handler implements mb.RequestHandler on top of the process image. Frame
// decoding, quantity limits and single-coil value checks are done by the
// library before a Handle method is called.
//
// Thread Safety: the server calls Handle methods from one goroutine per
// client connection; the image serialises access.
type Handler struct {
	regs     Registers
	unitID   uint8 // 0 accepts every unit
	recorder Recorder
	logger   Logger

	reads      atomic.Uint64
	writes     atomic.Uint64
	exceptions atomic.Uint64
}

var _ mb.RequestHandler = (*Handler)(nil)

// NewHandler creates a handler answering unitID (0 for any).
func NewHandler(regs Registers, unitID uint8, recorder Recorder) *Handler {
	return &Handler{
		regs:     regs,
		unitID:   unitID,
		recorder: recorder,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the handler.
func (h *Handler) SetLogger(logger Logger) {
	h.logger = logger
}

// HandleCoils serves FC 1, 5 and 15.
func (h *Handler) HandleCoils(req *mb.CoilsRequest) ([]bool, error) {
	if err := h.accept(req.ClientAddr, req.UnitId); err != nil {
		return nil, err
	}
	if req.IsWrite {
		values := make([]int, len(req.Args))
		for i, on := range req.Args {
			if on {
				values[i] = 1
			}
		}
		return nil, h.write(register.Coils, req.Addr, values)
	}
	return h.readBits(register.Coils, req.Addr, req.Quantity)
}

// HandleDiscreteInputs serves FC 2.
func (h *Handler) HandleDiscreteInputs(req *mb.DiscreteInputsRequest) ([]bool, error) {
	if err := h.accept(req.ClientAddr, req.UnitId); err != nil {
		return nil, err
	}
	return h.readBits(register.DiscreteInputs, req.Addr, req.Quantity)
}

// HandleHoldingRegisters serves FC 3, 6 and 16.
func (h *Handler) HandleHoldingRegisters(req *mb.HoldingRegistersRequest) ([]uint16, error) {
	if err := h.accept(req.ClientAddr, req.UnitId); err != nil {
		return nil, err
	}
	if req.IsWrite {
		values := make([]int, len(req.Args))
		for i, w := range req.Args {
			values[i] = int(w)
		}
		return nil, h.write(register.HoldingRegisters, req.Addr, values)
	}
	return h.readWords(register.HoldingRegisters, req.Addr, req.Quantity)
}

// HandleInputRegisters serves FC 4.
func (h *Handler) HandleInputRegisters(req *mb.InputRegistersRequest) ([]uint16, error) {
	if err := h.accept(req.ClientAddr, req.UnitId); err != nil {
		return nil, err
	}
	return h.readWords(register.InputRegisters, req.Addr, req.Quantity)
}

// accept records the frame and filters on unit id.
func (h *Handler) accept(clientAddr string, unitID uint8) error {
	if h.recorder != nil {
		h.recorder.Record(clientHost(clientAddr), activity.InterfaceModbus)
	}
	if h.unitID != 0 && unitID != h.unitID {
		h.exceptions.Add(1)
		h.logger.Debug("request for foreign unit", "client", clientAddr, "unit_id", unitID)
		return mb.ErrServerDeviceFailure
	}
	return nil
}

// checkRange validates [addr, addr+qty) against the bank size.
func (h *Handler) checkRange(b register.Bank, addr uint16, qty int) error {
	if int(addr)+qty > h.regs.Size() {
		h.exceptions.Add(1)
		h.logger.Debug("address range rejected", "bank", b, "address", addr, "quantity", qty)
		return mb.ErrIllegalDataAddress
	}
	return nil
}

func (h *Handler) readWords(b register.Bank, addr, qty uint16) ([]uint16, error) {
	if err := h.checkRange(b, addr, int(qty)); err != nil {
		return nil, err
	}
	out := make([]uint16, qty)
	for i := range out {
		w, err := h.regs.Get(b, int(addr)+i)
		if err != nil {
			return nil, h.mapError(b, int(addr)+i, err)
		}
		out[i] = w
	}
	h.reads.Add(1)
	return out, nil
}

func (h *Handler) readBits(b register.Bank, addr, qty uint16) ([]bool, error) {
	words, err := h.readWords(b, addr, qty)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(words))
	for i, w := range words {
		out[i] = w != 0
	}
	return out, nil
}

// write validates the whole range first so a multi-address write is not
// applied partially because of its extent.
func (h *Handler) write(b register.Bank, addr uint16, values []int) error {
	if err := h.checkRange(b, addr, len(values)); err != nil {
		return err
	}
	for i, v := range values {
		if err := h.regs.Set(b, int(addr)+i, v); err != nil {
			return h.mapError(b, int(addr)+i, err)
		}
	}
	h.writes.Add(1)
	return nil
}

// mapError converts image errors into Modbus exceptions.
func (h *Handler) mapError(b register.Bank, addr int, err error) error {
	h.exceptions.Add(1)
	h.logger.Debug("register access failed", "bank", b, "address", addr, "error", err)

	switch {
	case errors.Is(err, register.ErrOutOfRange):
		return mb.ErrIllegalDataAddress
	case errors.Is(err, register.ErrInvalidValue):
		return mb.ErrIllegalDataValue
	default:
		h.logger.Error("unexpected register error", "bank", b, "address", addr, "error", err)
		return mb.ErrServerDeviceFailure
	}
}

// clientHost strips the port from a remote address.
func clientHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// Stats holds request counters.
type Stats struct {
	Reads      uint64 `json:"reads"`
	Writes     uint64 `json:"writes"`
	Exceptions uint64 `json:"exceptions"`
}

// Stats returns current counters.
func (h *Handler) Stats() Stats {
	return Stats{
		Reads:      h.reads.Load(),
		Writes:     h.writes.Load(),
		Exceptions: h.exceptions.Load(),
	}
}

// String describes the handler for logs.
func (h *Handler) String() string {
	if h.unitID == 0 {
		return fmt.Sprintf("modbus handler (any unit, %d registers)", h.regs.Size())
	}
	return fmt.Sprintf("modbus handler (unit %d, %d registers)", h.unitID, h.regs.Size())
}
