package fingerprint

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashKind selects the digest used to render a fingerprint's Hash field,
// per spec.md §3's "SHA-1 or SHA-2-256" choice.
type HashKind string

const (
	HashSHA1   HashKind = "sha1"
	HashSHA256 HashKind = "sha256"
)

// digest hashes raw bytes under kind, returning the lowercase hex digest.
// Defaults to SHA-1 for any unrecognized kind, matching config.Default().
func digest(kind HashKind, data []byte) string {
	switch kind {
	case HashSHA256:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	default:
		sum := sha1.Sum(data)
		return hex.EncodeToString(sum[:])
	}
}

// hashInts hashes the ASCII-decimal, colon-separated, no-leading-zero
// rendering of the given integers — the representation spec.md §8's
// "hash uniqueness of representation" test depends on: "5:7:12" and
// "05:07:12" must hash differently.
func hashInts(kind HashKind, ints ...int) string {
	s := ""
	for i, v := range ints {
		if i > 0 {
			s += ":"
		}
		s += fmt.Sprintf("%d", v)
	}
	return digest(kind, []byte(s))
}
