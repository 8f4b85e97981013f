// Package auth implements the authentication secret matcher and
// per-attempt token bucket for the world's configured authstring.
//
// The reference stores authstring as either a literal or a salted
// MD5-crypt hash, in which case a first successful match against the
// hash is cached as a literal to accelerate subsequent takeover
// attempts. This implementation keeps that contract but widens the
// recognized hash formats to the modern ones this module's dependency
// stack actually provides: Argon2id (github.com/alexedwards/argon2id)
// and bcrypt (golang.org/x/crypto/bcrypt), selected by the hash's
// standard prefix.
package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// Secret matches candidate authentication strings against a configured
// authstring, which is either a literal or a recognized password hash.
// It is safe for concurrent use only insofar as the engine loop is the
// sole caller; it caches successful hash matches as a literal exactly
// like the reference's world_match_authentication.
type Secret struct {
	literal string
	hash    string
	isHash  bool
}

// NewLiteral returns a Secret that matches s verbatim.
func NewLiteral(s string) *Secret {
	return &Secret{literal: s}
}

// NewHash returns a Secret that verifies candidates against hash, an
// Argon2id ("$argon2id$...") or bcrypt ("$2a$"/"$2b$"/"$2y$...") hash
// string.
func NewHash(hash string) *Secret {
	return &Secret{hash: hash, isHash: true}
}

// IsHashed reports whether s is recognizable as an Argon2id or bcrypt
// hash, as opposed to a literal authstring.
func IsHashed(s string) bool {
	return strings.HasPrefix(s, "$argon2id$") ||
		strings.HasPrefix(s, "$2a$") ||
		strings.HasPrefix(s, "$2b$") ||
		strings.HasPrefix(s, "$2y$")
}

// Verify reports whether candidate authenticates. On the first
// successful match against a hash, the literal is cached so later
// calls take the fast constant-time-compare path, matching the
// reference's takeover-acceleration behavior.
func (s *Secret) Verify(candidate string) bool {
	if s.literal != "" || !s.isHash {
		return subtle.ConstantTimeCompare([]byte(s.literal), []byte(candidate)) == 1
	}

	var ok bool
	if strings.HasPrefix(s.hash, "$argon2id$") {
		match, err := argon2id.ComparePasswordAndHash(candidate, s.hash)
		ok = err == nil && match
	} else {
		ok = bcrypt.CompareHashAndPassword([]byte(s.hash), []byte(candidate)) == nil
	}

	if ok {
		s.literal = candidate
	}
	return ok
}
