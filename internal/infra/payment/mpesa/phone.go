package mpesa

import (
	"strings"

	"wifi-voucher-gateway/internal/domain"
)

// NormalizePhone converts a subscriber number to the 254XXXXXXXXX form the
// provider expects. Accepted inputs: local ("07..."), plus-prefixed
// ("+2547...") and already-normalized ("2547..."). The same normalization is
// applied before the push and before the number is stored, so records and
// provider traffic always agree.
func NormalizePhone(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	p = strings.TrimPrefix(p, "+")

	switch {
	case strings.HasPrefix(p, "0"):
		p = "254" + p[1:]
	case strings.HasPrefix(p, "254"):
		// already normalized
	default:
		return "", domain.ErrInvalidPhone
	}

	if len(p) != 12 || !allDigits(p) {
		return "", domain.ErrInvalidPhone
	}
	return p, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
