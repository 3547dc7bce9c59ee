package mesh

import (
	"crypto/rand"
	"encoding/hex"
)

// NewMessageID returns a fresh 8-hex-character relay id, drawn from a
// CSPRNG so that two concurrent originators collide with negligible
// probability within the seen-set's TTL window.
func NewMessageID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
