// Package dedup rejects a message that is resubmitted for the same session while the
// first copy may still be in flight.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultWindow is how long a fingerprint stays claimed.
const DefaultWindow = 10 * time.Second

// Fingerprint hashes the session id with the normalised content: lower-cased with runs of
// whitespace collapsed.
func Fingerprint(sessionID, content string) string {
	normalised := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	sum := sha256.Sum256([]byte(sessionID + "\x00" + normalised))
	return hex.EncodeToString(sum[:])
}
