package importmodule

import (
	"fmt"
	"strings"
)

// signatureDelimiter separates the signature components. The path component
// is lowercased first, so the delimiter never collides with it on
// case-insensitive file systems.
const signatureDelimiter = "|"

// Signature computes the deduplication identity for a file: the lowercased
// source path (or file name), byte size, and last-modified epoch millis.
//
// File bytes are deliberately not hashed; that would be too slow for
// multi-thousand-file batches. The accepted weakness is that a renamed but
// otherwise identical file dedups against the original, while a touched but
// byte-identical file imports again.
func Signature(pathOrName string, size int64, modMillis int64) string {
	return strings.ToLower(pathOrName) +
		signatureDelimiter + fmt.Sprintf("%d", size) +
		signatureDelimiter + fmt.Sprintf("%d", modMillis)
}

// CandidateSignature computes the signature for a candidate, preferring the
// source path over the display name.
func CandidateSignature(c Candidate) string {
	name := c.Path
	if name == "" {
		name = c.Name
	}
	return Signature(name, c.Size, c.ModMillis)
}
