// Package fnhash derives a content-addressed cache key for a serialized
// `run` function body (spec §3's RunMethod), so the orchestrator can
// recognize when two exec("run", ...) calls carry byte-identical
// function source and skip re-shipping it to a worker that already has
// it resident. Grounded on the teacher's use of golang.org/x/crypto for
// its auth package (internal/auth/auth.go uses bcrypt for password
// hashing); this domain has no credential to hash, so the same
// dependency is put to content-hashing work instead via its blake2b
// subpackage rather than being dropped.
package fnhash

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Of returns the hex-encoded blake2b-256 digest of a function body, used
// as a worker-side cache key.
func Of(source []byte) string {
	sum := blake2b.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two function bodies hash to the same key without
// the caller needing to compute and compare digests itself.
func Equal(a, b []byte) bool {
	return Of(a) == Of(b)
}
