// Package checksum provides SHA-256 helpers used to fingerprint the exam catalog,
// so operators can tell from /version or the logs which set of exam documents a
// running instance loaded.
package checksum

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
)

// CalculateSHA256 calculates the SHA256 checksum of data from a reader
func CalculateSHA256(reader io.Reader) (string, error) {
	hasher := sha256.New()

	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Fingerprint hashes an ordered list of documents into one hex digest. Each
// document is length-prefixed, so moving bytes between documents changes the result.
func Fingerprint(docs ...[]byte) string {
	hasher := sha256.New()
	var n [8]byte
	for _, d := range docs {
		binary.BigEndian.PutUint64(n[:], uint64(len(d)))
		hasher.Write(n[:])
		hasher.Write(d)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// Short returns the first 12 characters of a hex digest for log lines
func Short(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}
