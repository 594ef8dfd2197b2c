package register

import "errors"

// Domain errors for the register package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, register.ErrOutOfRange) {
//	    // answer with an illegal data address exception
//	}
var (
	// ErrOutOfRange is returned when an address falls outside [0, size).
	ErrOutOfRange = errors.New("register: address out of range")

	// ErrInvalidValue is returned when a word value falls outside [-32768, 65535].
	ErrInvalidValue = errors.New("register: invalid value")

	// ErrUnknownBank is returned when a bank name is not one of the four kinds.
	ErrUnknownBank = errors.New("register: unknown bank")

	// ErrInvalidCatalog is returned when catalog data fails validation.
	ErrInvalidCatalog = errors.New("register: invalid catalog")
)
