package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Format selects the digest used to name objects. A repository picks one
// format at init time and keeps it for its lifetime.
type Format string

const (
	FormatSHA256  Format = "sha256"
	FormatBLAKE2b Format = "blake2b"
)

// ParseFormat validates a configured object format. The empty string
// selects FormatSHA256.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatSHA256:
		return FormatSHA256, nil
	case FormatBLAKE2b:
		return FormatBLAKE2b, nil
	default:
		return "", fmt.Errorf("unknown object format %q", s)
	}
}

func (f Format) newHash() hash.Hash {
	switch f {
	case FormatBLAKE2b:
		// New256 only fails for oversized keys.
		h, _ := blake2b.New256(nil)
		return h
	default:
		return sha256.New()
	}
}

// Sum computes the digest of the envelope "type len\0content" in format f.
func (f Format) Sum(objType ObjectType, data []byte) Hash {
	h := f.newHash()
	h.Write(envelopeHeader(objType, len(data)))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashObject computes the SHA-256 of the envelope "type len\0content",
// mirroring Git's object hashing but with SHA-256.
func HashObject(objType ObjectType, data []byte) Hash {
	return FormatSHA256.Sum(objType, data)
}

// ValidHash reports whether s is a full-length lowercase hex digest.
func ValidHash(s string) bool {
	return len(s) == 64 && isHex(s)
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func envelopeHeader(objType ObjectType, n int) []byte {
	return []byte(fmt.Sprintf("%s %d\x00", objType, n))
}
