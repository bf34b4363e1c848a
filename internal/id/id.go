// Package id provides utilities for generating URL-safe identifiers.
//
// Random identifiers use UUIDv4 bytes encoded as base32 (RFC 4648) with no
// padding. Derived identifiers hash a seed tuple with SHA-256 so the same
// inputs always address the same record. Both forms are 26 characters long,
// lowercase, and safe for use in URLs and file paths.
package id

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// New generates a URL-safe identifier using UUIDv4 bytes encoded as base32.
func New() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	// RFC 4122 variant and version bits for a v4 UUID.
	raw[6] = (raw[6] & 0x0f) | 0x40
	raw[8] = (raw[8] & 0x3f) | 0x80

	return strings.ToLower(encoding.EncodeToString(raw[:])), nil
}

// Derive returns a deterministic identifier and a one-byte salt for the
// given seed tuple. The same parts always produce the same identifier, so
// record addresses derived from defining identities are collision-free and
// need no separate index.
func Derive(parts ...string) (string, byte) {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
		// Separator prevents ("ab","c") colliding with ("a","bc").
		h.Write([]byte{0x1f})
	}
	digest := h.Sum(nil)
	return strings.ToLower(encoding.EncodeToString(digest[:16])), digest[16]
}
