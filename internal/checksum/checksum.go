// Package checksum fingerprints file content so a patch can be pinned to the
// exact bytes it was written against.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// shortLen is how many hex digits Short keeps.
const shortLen = 12

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether data hashes to want. Hex case and surrounding
// whitespace are ignored.
func Matches(data []byte, want string) bool {
	return strings.EqualFold(Sum(data), strings.TrimSpace(want))
}

// Short abbreviates a digest for human-facing output.
func Short(sum string) string {
	if len(sum) <= shortLen {
		return sum
	}
	return sum[:shortLen]
}

// ETag renders sum as a strong entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// ParseETag extracts the digest from an If-Match style header value.
// Weak tags are accepted since the digest is content-exact either way.
// Only the first tag of a list is used; "*" and empty values yield "".
func ParseETag(v string) string {
	v, _, _ = strings.Cut(v, ",")
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	if v == "*" {
		return ""
	}
	return v
}
