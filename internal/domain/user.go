// Package domain contains entities without logic, just meta-data and limits.
package domain

import "errors"

const (
	MaxPseudonymLen = 32
	MaxRoomNameLen  = 32
	MaxMessageLen   = 1024
)

var (
	ErrPseudonymEmpty   = errors.New("pseudonym empty")
	ErrPseudonymTooLong = errors.New("pseudonym too long")
	ErrRoomNameEmpty    = errors.New("room name empty")
	ErrRoomNameTooLong  = errors.New("room name too long")
	ErrMessageEmpty     = errors.New("message empty")
	ErrMessageTooLong   = errors.New("message too long")
)

// ValidatePseudonym checks the display name a client logs in with.
// Limits are byte limits on the UTF-8 encoding, not rune counts.
func ValidatePseudonym(p string) error {
	if len(p) == 0 {
		return ErrPseudonymEmpty
	}
	if len(p) > MaxPseudonymLen {
		return ErrPseudonymTooLong
	}
	return nil
}

// ValidateRoomName checks a room name from a JOIN request.
func ValidateRoomName(r string) error {
	if len(r) == 0 {
		return ErrRoomNameEmpty
	}
	if len(r) > MaxRoomNameLen {
		return ErrRoomNameTooLong
	}
	return nil
}

// ValidateMessage checks chat message text.
func ValidateMessage(m string) error {
	if len(m) == 0 {
		return ErrMessageEmpty
	}
	if len(m) > MaxMessageLen {
		return ErrMessageTooLong
	}
	return nil
}
