package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Format is a snapshot wire encoding.
type Format string

// Supported formats.
const (
	FormatJSON    Format = "json"
	FormatMsgPack Format = "msgpack"
)

// Content types written for each format.
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgPack = "application/msgpack"
)

// ParseFormat resolves a format name as given in a query string.
// Returns ErrUnknownFormat for anything but json or msgpack.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "msgpack", "messagepack", "mpk":
		return FormatMsgPack, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFromContentType picks msgpack for application/msgpack and
// application/x-msgpack, JSON for everything else.
func FormatFromContentType(contentType string) Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FormatJSON
	}
	switch mediaType {
	case "application/msgpack", "application/x-msgpack":
		return FormatMsgPack
	default:
		return FormatJSON
	}
}

// FormatFromPath picks msgpack for .msgpack and .mpk files, JSON otherwise.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return FormatMsgPack
	default:
		return FormatJSON
	}
}

// ContentType returns the HTTP content type for f.
func (f Format) ContentType() string {
	if f == FormatMsgPack {
		return ContentTypeMsgPack
	}
	return ContentTypeJSON
}

// Encode writes snap to w in format f.
func Encode(w io.Writer, snap *Snapshot, f Format) error {
	switch f {
	case FormatJSON:
		return json.NewEncoder(w).Encode(snap)
	case FormatMsgPack:
		return msgpack.NewEncoder(w).Encode(snap)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// Decode reads a snapshot in format f. Malformed input returns an error
// wrapping ErrInvalidSnapshot.
func Decode(r io.Reader, f Format) (*Snapshot, error) {
	var snap Snapshot
	var err error
	switch f {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&snap)
	case FormatMsgPack:
		err = msgpack.NewDecoder(r).Decode(&snap)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	return &snap, nil
}
