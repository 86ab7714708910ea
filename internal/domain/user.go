package domain

import "errors"

const MaxFidLen = 64

var (
	ErrFidEmpty   = errors.New("identity empty")
	ErrFidTooLong = errors.New("identity too long")
)

// Fid is the opaque stable identifier a client presents at authentication.
// There is no server-side account object behind it; it only keys room
// membership sets for the lifetime of the process.
type Fid string

// ParseFid validates a client-supplied identity string.
func ParseFid(raw string) (Fid, error) {
	if len(raw) == 0 {
		return "", ErrFidEmpty
	}
	if len(raw) > MaxFidLen {
		return "", ErrFidTooLong
	}
	return Fid(raw), nil
}
