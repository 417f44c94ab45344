package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// codeAlphabet is the character set for session codes: uppercase
// alphanumerics, matched case-insensitively on join.
const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// generateCode returns a random 6-character session code.
func generateCode() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode canonicalizes user input: uppercase, with the display dash
// and surrounding whitespace stripped. "ab3-f91" and "AB3F91" both map to
// "AB3F91".
func NormalizeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	return code
}

// FormatCode renders a canonical code for display, grouped as XXX-XXX.
func FormatCode(code string) string {
	if len(code) != codeLength {
		return code
	}
	return code[:3] + "-" + code[3:]
}
