package document

import (
	"crypto/sha256"
	"encoding/hex"
)

// Stamp computes the integrity stamp of a rendered document: the SHA-256
// digest of the exact bytes produced by the renderer, as lowercase hex.
// The stamp is persisted at issuance so later tooling can detect silent
// substitution of the published artifact.
func Stamp(documentBytes []byte) string {
	sum := sha256.Sum256(documentBytes)
	return hex.EncodeToString(sum[:])
}
