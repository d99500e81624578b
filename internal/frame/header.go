// Package frame implements the 8-byte header every blob the core
// serializes (indices, translated objects) is prefixed with, and the
// version-dispatch machinery used to migrate older payloads forward.
package frame

import (
	"encoding/binary"
	"fmt"
)

// Magic is the fixed 6-byte prefix of every header.
var Magic = [6]byte{'N', 'I', 'P', 'N', 'I', 'P'}

// Len is the total header size: 6 bytes of magic plus a big-endian u16 version.
const Len = 8

// CurrentVersion is the protocol version this binary writes. Bump it,
// and add a migrate_* function from the prior version, on any
// breaking change to the index or translated-object payload shape.
const CurrentVersion uint16 = 1

// ErrShortHeader is returned when fewer than Len bytes are supplied.
type ErrShortHeader struct {
	Got int
}

func (e ErrShortHeader) Error() string {
	return fmt.Sprintf("frame: short header: got %d bytes, want at least %d", e.Got, Len)
}

// ErrBadMagic is returned when the first 6 bytes don't match Magic.
type ErrBadMagic struct {
	Got [6]byte
}

func (e ErrBadMagic) Error() string {
	return fmt.Sprintf("frame: malformed magic %q, want %q", e.Got[:], Magic[:])
}

// ErrTooNew is returned when a stored version exceeds CurrentVersion.
type ErrTooNew struct {
	Version uint16
}

func (e ErrTooNew) Error() string {
	return fmt.Sprintf("frame: payload is at protocol version %d, we only understand up to %d: our helper is too old", e.Version, CurrentVersion)
}

// Generate returns an 8-byte header for the given version. A nil
// version means "the version this binary currently writes".
func Generate(version *uint16) []byte {
	v := CurrentVersion
	if version != nil {
		v = *version
	}
	buf := make([]byte, Len)
	copy(buf, Magic[:])
	binary.BigEndian.PutUint16(buf[6:8], v)
	return buf
}

// Parse reads the version out of an 8-byte header, checking the magic
// exactly. It does not compare the version against CurrentVersion —
// callers that care about staleness use Check.
func Parse(header []byte) (uint16, error) {
	if len(header) < Len {
		return 0, ErrShortHeader{Got: len(header)}
	}
	var got [6]byte
	copy(got[:], header[:6])
	if got != Magic {
		return 0, ErrBadMagic{Got: got}
	}
	return binary.BigEndian.Uint16(header[6:8]), nil
}

// Check parses the header and fails with ErrTooNew if its version is
// newer than CurrentVersion. It is the read-time gate described in
// the component's version-ordering policy: lower versions are left
// for the caller to migrate, equal versions decode directly, greater
// versions are fatal.
func Check(header []byte) (uint16, error) {
	v, err := Parse(header)
	if err != nil {
		return 0, err
	}
	if v > CurrentVersion {
		return 0, ErrTooNew{Version: v}
	}
	return v, nil
}
