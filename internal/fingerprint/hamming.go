package fingerprint

import (
	"math/bits"

	"github.com/pkg/errors"
)

// Hamming returns the bitwise Hamming distance between two hex-encoded
// hashes of equal length. The archive stores perceptual hashes as hex
// strings, so distance is computed on that representation directly.
func Hamming(a, b string) (int, error) {
	if len(a) != len(b) {
		return 0, errors.Errorf("hash width mismatch: %d vs %d hex chars", len(a), len(b))
	}
	dist := 0
	for i := 0; i < len(a); i++ {
		x, err := nibble(a[i])
		if err != nil {
			return 0, err
		}
		y, err := nibble(b[i])
		if err != nil {
			return 0, err
		}
		dist += bits.OnesCount8(x ^ y)
	}
	return dist, nil
}

func nibble(c byte) (uint8, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	}
	return 0, errors.Errorf("not a hex digit: %q", c)
}
