package planner

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	RoomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrInvalidRoomCode = errors.New("room code must be 6 letters or digits")

// NormalizeRoomCode upper-cases a user entered code.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode reports whether code, ignoring case, is six characters from
// A-Z and 0-9.
func ValidRoomCode(code string) bool {
	code = NormalizeRoomCode(code)
	if len(code) != RoomCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(roomCodeAlphabet, r) {
			return false
		}
	}
	return true
}

func GenerateRoomCode() (string, error) {
	var b strings.Builder
	alphabetLen := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := 0; i < RoomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
