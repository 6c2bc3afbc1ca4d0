package domain

import "time"

// DefaultTTL is how long a verification stamp stays usable. Client and
// server filter with the same constant; the API serves it alongside
// credential listings so both sides cannot drift apart.
const DefaultTTL = 7 * 24 * time.Hour

// Usable reports whether a credential's verification is current. A
// credential verified exactly TTL ago is no longer usable.
func Usable(credential Credential, now time.Time, ttl time.Duration) bool {
	if credential.VerifiedAt == nil {
		return false
	}
	return now.Sub(*credential.VerifiedAt) < ttl
}
