package usecase

import (
	"crypto/rand"
	"io"
)

// generateVoucherCode creates a random, human-enterable voucher code.
// Eight characters over A-Z0-9 give ~2.8e11 possible codes; collisions are
// negligible but the store still enforces uniqueness and the caller retries.
func generateVoucherCode() (string, error) {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const codeLength = 8
	// Largest multiple of len(chars) below 256; bytes at or above it are
	// rejected so every character stays uniformly distributed.
	const max = byte(252)

	code := make([]byte, 0, codeLength)
	buffer := make([]byte, codeLength)
	for len(code) < codeLength {
		if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
			return "", err
		}
		for _, b := range buffer {
			if b >= max {
				continue
			}
			code = append(code, chars[int(b)%len(chars)])
			if len(code) == codeLength {
				break
			}
		}
	}
	return string(code), nil
}
