// Package modbus exposes the process image over Modbus TCP.
//
// The wire protocol is handled by github.com/simonvetter/modbus. This
// package supplies its RequestHandler:
//
//	FC 1  Read Coils               -> Image.Get(coils, ...)
//	FC 2  Read Discrete Inputs     -> Image.Get(discrete_inputs, ...)
//	FC 3  Read Holding Registers   -> Image.Get(holding_registers, ...)
//	FC 4  Read Input Registers     -> Image.Get(input_registers, ...)
//	FC 5  Write Single Coil        -> Image.Set(coils, ...)
//	FC 6  Write Single Register    -> Image.Set(holding_registers, ...)
//	FC 15 Write Multiple Coils     -> Image.Set(coils, ...) per address
//	FC 16 Write Multiple Registers -> Image.Set(holding_registers, ...) per address
//
// Out-of-range addresses answer Illegal Data Address; requests for another
// unit id answer Server Device Failure. Every frame is recorded in the
// activity tracker.
package modbus
