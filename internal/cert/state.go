package cert

import (
	"time"

	"github.com/blockadesystems/integricert/internal/model"
)

// EvaluateState derives the lifecycle state of a certificate from its
// stored status and the clock. Revocation takes precedence over expiry.
// "expired" is never persisted: a certificate that merely aged past its
// expiry requires no write, only this computation at read time. Every read
// path goes through this function; the comparison is never inlined.
func EvaluateState(status model.Status, expiresAt time.Time, now time.Time) model.State {
	if status == model.StatusRevoked {
		return model.StateRevoked
	}
	if !now.Before(expiresAt) {
		return model.StateExpired
	}
	return model.StateActive
}
