package cert

import "errors"

// Sentinel errors returned by the certificate services. Handlers map these
// to HTTP status codes; anything else is an upstream failure and surfaces
// as a 500.
var (
	// ErrInvalidInput indicates malformed or missing caller-supplied data.
	ErrInvalidInput = errors.New("cert: invalid input")
	// ErrNotFound indicates no certificate matches the supplied code.
	ErrNotFound = errors.New("cert: certificate not found")
	// ErrAlreadyRevoked indicates a revocation of an already-revoked
	// certificate. Revocation is deliberately not idempotent: repeating it
	// is an operator mistake worth surfacing.
	ErrAlreadyRevoked = errors.New("cert: certificate already revoked")
	// ErrRateLimited indicates the origin exceeded the validation window.
	ErrRateLimited = errors.New("cert: rate limit exceeded")
	// ErrIssuanceFailed indicates issuance exhausted its code-generation
	// retry budget.
	ErrIssuanceFailed = errors.New("cert: issuance failed")
)
