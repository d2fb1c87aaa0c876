// Package checksum computes the content hashes used as note versions.
//
// A note's version is the hex SHA-256 of its raw bytes. HTTP clients see it
// as a strong ETag and send it back in If-Match for optimistic writes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether want is empty or equals the digest of data.
// An empty want disables the version check.
func Matches(data []byte, want string) bool {
	return want == "" || want == Sum(data)
}

// ETag formats a digest as a strong entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// ParseIfMatch extracts a digest from an If-Match header value.
// Surrounding quotes and a weak prefix are dropped. "*" matches any version
// and yields "".
func ParseIfMatch(header string) string {
	v := strings.TrimSpace(header)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	if v == "*" {
		return ""
	}
	return v
}
