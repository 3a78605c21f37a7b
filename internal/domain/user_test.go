package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePseudonym(t *testing.T) {
	assert.NoError(t, ValidatePseudonym("Alice"))
	assert.NoError(t, ValidatePseudonym(strings.Repeat("a", MaxPseudonymLen)))
	assert.ErrorIs(t, ValidatePseudonym(""), ErrPseudonymEmpty)
	assert.ErrorIs(t, ValidatePseudonym(strings.Repeat("a", MaxPseudonymLen+1)), ErrPseudonymTooLong)
	// Byte limit, not rune limit: 17 two-byte runes overflow 32 bytes.
	assert.ErrorIs(t, ValidatePseudonym(strings.Repeat("é", 17)), ErrPseudonymTooLong)
}

func TestValidateRoomName(t *testing.T) {
	assert.NoError(t, ValidateRoomName("Dev"))
	assert.ErrorIs(t, ValidateRoomName(""), ErrRoomNameEmpty)
	assert.ErrorIs(t, ValidateRoomName(strings.Repeat("r", MaxRoomNameLen+1)), ErrRoomNameTooLong)
}

func TestValidateMessage(t *testing.T) {
	assert.NoError(t, ValidateMessage("hello"))
	assert.NoError(t, ValidateMessage(strings.Repeat("m", MaxMessageLen)))
	assert.ErrorIs(t, ValidateMessage(""), ErrMessageEmpty)
	assert.ErrorIs(t, ValidateMessage(strings.Repeat("m", MaxMessageLen+1)), ErrMessageTooLong)
}
