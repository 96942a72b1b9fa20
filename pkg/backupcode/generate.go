package backupcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	// Alphabet excludes 0/O, 1/I/L so codes can be read back from paper.
	Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	// Length is the number of characters in every backup code.
	Length = 8
	// DefaultCount is the size of one generated set.
	DefaultCount = 10
)

// Generate returns n distinct codes drawn uniformly from Alphabet using crypto/rand.
func Generate(n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("backup code count must be positive, got %d", n)
	}

	max := big.NewInt(int64(len(Alphabet)))
	seen := make(map[string]struct{}, n)
	codes := make([]string, 0, n)
	for len(codes) < n {
		var b strings.Builder
		b.Grow(Length)
		for i := 0; i < Length; i++ {
			idx, err := rand.Int(rand.Reader, max)
			if err != nil {
				return nil, fmt.Errorf("failed to read random source: %w", err)
			}
			b.WriteByte(Alphabet[idx.Int64()])
		}
		code := b.String()
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// Normalize makes candidate input comparable with issued codes.
func Normalize(candidate string) string {
	return strings.ToUpper(strings.TrimSpace(candidate))
}

// IsWellFormed reports whether a normalized candidate could be a backup code.
func IsWellFormed(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
