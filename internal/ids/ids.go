// Package ids generates record and relation identifiers.
//
// Random IDs are 21 symbols over an alphanumeric-plus-underscore alphabet,
// prefixed with a short type tag for debuggability. Derived IDs map a
// SHA-256 digest of "prefix:input" into the same alphabet so that
// re-asserting the same logical edge always yields the same ID.
package ids

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// alphabet is the 63-symbol ID alphabet: digits, letters, underscore.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

// Length is the number of alphabet symbols in an ID body.
const Length = 21

// ID prefixes by entity kind.
const (
	PrefixCollection = "col"
	PrefixBlock      = "blk"
	PrefixRelation   = "rel"
)

// New returns a cryptographically random ID of the form "prefix_<21 symbols>".
// Collision probability within one store's lifetime is negligible.
func New(prefix string) string {
	body := make([]byte, 0, Length)
	buf := make([]byte, Length*2)
	for len(body) < Length {
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand failure means the platform RNG is broken;
			// there is no usable fallback for identity generation.
			panic(fmt.Sprintf("ids: reading random bytes: %v", err))
		}
		for _, b := range buf {
			// Rejection sampling keeps the distribution uniform over
			// the 63-symbol alphabet.
			v := b & 0x3f
			if int(v) >= len(alphabet) {
				continue
			}
			body = append(body, alphabet[v])
			if len(body) == Length {
				break
			}
		}
	}
	return prefix + "_" + string(body)
}

// Derived returns a deterministic ID of the same shape as New, computed
// from a SHA-256 digest of "prefix:input". Identical (prefix, input) pairs
// always yield identical IDs.
func Derived(prefix, input string) string {
	digest := sha256.Sum256([]byte(prefix + ":" + input))
	body := make([]byte, Length)
	for i := 0; i < Length; i++ {
		body[i] = alphabet[int(digest[i])%len(alphabet)]
	}
	return prefix + "_" + string(body)
}
