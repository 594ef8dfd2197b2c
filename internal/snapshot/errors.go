package snapshot

import "errors"

// Domain errors for snapshot handling.
var (
	// ErrInvalidSnapshot is returned for undecodable payloads and for
	// entries the process image rejects. Entries applied before the bad one
	// stay applied.
	ErrInvalidSnapshot = errors.New("snapshot: invalid snapshot")

	// ErrUnknownFormat is returned for an unsupported encoding.
	ErrUnknownFormat = errors.New("snapshot: unknown format")
)
