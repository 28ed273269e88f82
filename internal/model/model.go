package model

import (
	"time"
)

// Status is the persisted two-valued certificate status. "expired" is never
// stored; it is derived at read time from Status and ExpiresAt.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// State is the derived lifecycle state of a certificate.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
	StateRevoked State = "revoked"
)

// Certificate represents an issued compliance certificate.
type Certificate struct {
	ID           string     `json:"id" db:"id"`                       // Unique certificate identifier (UUID), immutable
	PublicCode   string     `json:"public_code" db:"public_code"`     // Human-facing code (PIC-XXXX-XXXX), globally unique, immutable
	CompanyName  string     `json:"company_name" db:"company_name"`   // Certified company name, immutable
	IssuedAt     time.Time  `json:"issued_at" db:"issued_at"`         // Timestamp of issuance
	ExpiresAt    time.Time  `json:"expires_at" db:"expires_at"`       // IssuedAt plus the configured validity period
	Status       Status     `json:"status" db:"status"`               // "active" or "revoked"; one-way transition
	RevokedAt    *time.Time `json:"revoked_at,omitempty" db:"revoked_at"` // Set exactly once, when Status flips to revoked
	DocumentURL  string     `json:"document_url" db:"document_url"`   // Location of the rendered PDF in the object store
	DocumentHash string     `json:"document_hash" db:"document_hash"` // SHA-256 of the rendered PDF, lowercase hex
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`       // Timestamp of row creation (internal)
}

// ValidationResult is the result recorded for a validation attempt.
type ValidationResult string

const (
	ResultFound    ValidationResult = "found"
	ResultExpired  ValidationResult = "expired"
	ResultRevoked  ValidationResult = "revoked"
	ResultNotFound ValidationResult = "not_found"
)

// ValidationLogEntry is an append-only audit record of a validation attempt.
// Entries are never updated or deleted.
type ValidationLogEntry struct {
	ID         int64            `json:"id" db:"id"`                 // Row identifier
	PublicCode string           `json:"public_code" db:"public_code"` // The queried code, normalized, even if not found
	Result     ValidationResult `json:"result" db:"result"`         // Outcome of the lookup
	IP         string           `json:"ip" db:"ip"`                 // Requester network origin
	UserAgent  string           `json:"user_agent" db:"user_agent"` // Requester client identity string
	CreatedAt  time.Time        `json:"created_at" db:"created_at"` // Timestamp of the attempt
}

// CertificateSummary is the public-safe projection returned to anonymous
// validators. Internal fields (id, document hash, revoked_at, raw status)
// are deliberately absent.
type CertificateSummary struct {
	CompanyName string    `json:"company_name"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	PublicCode  string    `json:"public_code"`
	State       State     `json:"state"`
	DocumentURL string    `json:"document_url"`
}
