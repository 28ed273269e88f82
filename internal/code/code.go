// Package code generates and normalizes the public verifier codes printed
// on certificate documents.
package code

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// Alphabet is the restricted 32-symbol set used for code bodies. Visually
// confusable glyphs (0/O, 1/I) are excluded so codes survive transcription
// from a printed page.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Prefix identifies verifier codes issued by this registry.
const Prefix = "PIC"

const groupLen = 4

// Pattern matches a well-formed public code.
var Pattern = regexp.MustCompile(`^PIC-[` + Alphabet + `]{4}-[` + Alphabet + `]{4}$`)

// Generate returns a new public code of the form PIC-AAAA-BBBB. The body
// characters come from crypto/rand: the code is the only secret guarding
// anonymous lookup of a specific certificate, so a predictable source would
// be a security defect.
func Generate() (string, error) {
	body := make([]byte, 2*groupLen)
	if _, err := rand.Read(body); err != nil {
		return "", fmt.Errorf("code: failed to read random bytes: %w", err)
	}
	for i, b := range body {
		// 32 divides 256 evenly, so the modulo draw stays uniform.
		body[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return fmt.Sprintf("%s-%s-%s", Prefix, body[:groupLen], body[groupLen:]), nil
}

// Normalize prepares a caller-supplied code for lookup: trims surrounding
// whitespace, uppercases, and strips internal whitespace.
func Normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "")
}
