package session

import (
	"crypto/rand"
	"math/big"
)

const sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// rand6 returns six characters drawn from sessionIDAlphabet using a
// cryptographically secure source, the same way the platform's other
// short-identifier generators avoid math/rand's predictability.
func rand6() (string, error) {
	out := make([]byte, 6)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(sessionIDAlphabet))))
		if err != nil {
			return "", err
		}
		out[i] = sessionIDAlphabet[n.Int64()]
	}
	return string(out), nil
}
