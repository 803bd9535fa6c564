package schema

import (
	"crypto/md5" //nolint:gosec // change detection, not security
	"encoding/hex"
)

// Fingerprint returns the lowercase hex MD5 digest of raw file content.
// Any byte change, whitespace included, yields a new fingerprint.
func Fingerprint(content []byte) string {
	sum := md5.Sum(content) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
