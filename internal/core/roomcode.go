package core

import (
	"crypto/rand"
	"strings"
)

// codeAlphabet is the room code character set. Codes are uppercase
// alphanumeric so they survive being read aloud or typed on a phone.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRoomCode returns a random code of the given length. Uniqueness
// among live rooms is the registry's job, not this function's.
func GenerateRoomCode(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unreachable; a zeroed
		// buffer still yields a valid (if predictable) code.
		for i := range buf {
			buf[i] = 0
		}
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// NormalizeRoomCode canonicalizes a human-typed code: codes are
// case-insensitive on input, uppercase everywhere else.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode reports whether a normalized code has the right length
// and alphabet.
func ValidRoomCode(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
