// Package register holds the process image of the simulated IED.
//
// The image is four fixed-size banks of 16-bit words (coils, discrete
// inputs, holding registers, input registers), a metadata catalog that
// names and scales catalogued addresses, and a bounded change log.
//
//	┌───────────────────────────────────────────────────────────┐
//	│                          Image                            │
//	│                                                           │
//	│   Modbus adapter ──┐                                      │
//	│                    ├──▶ Get / Set ──▶ bank ──▶ ChangeLog  │
//	│   Inspection API ──┘         │                            │
//	│                              └──▶ Catalog (name, scale)   │
//	└───────────────────────────────────────────────────────────┘
//
// # Encoding
//
// Boolean banks store 0 or 1; Set coerces any non-zero value to 1. Word
// banks accept -32768 to 65535 and store negatives in two's complement
// (Set(-1) reads back as 65535).
//
// # Thread Safety
//
// One mutex guards all banks. ResetToDefaults and snapshot imports are
// sequences of ordinary Set calls and interleave with other writers.
package register
