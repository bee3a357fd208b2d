// Package credential hashes and verifies PINs and passwords and issues new
// PINs that do not collide with any active user's PIN. It never logs and
// never stores plaintext.
package credential

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

var ErrPINSpaceExhausted = errors.New("could not generate a unique PIN")

const (
	// pinRetries bounds uniqueness retries per PIN length before widening.
	pinRetries = 10

	shortPINDigits = 6
	longPINDigits  = 8
)

type Hasher struct {
	cost int
}

// NewHasher returns a bcrypt hasher. Out-of-range costs fall back to
// bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(b), nil
}

// Verify compares in constant time with respect to the hash contents.
// An empty hash never verifies.
func (h *Hasher) Verify(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NewPIN returns a numeric PIN that matches none of existingHashes. It tries
// the 6-digit space first and widens to 8 digits after repeated collisions.
func (h *Hasher) NewPIN(existingHashes []string) (string, error) {
	for _, digits := range []int{shortPINDigits, longPINDigits} {
		for i := 0; i < pinRetries; i++ {
			candidate, err := randomPIN(digits)
			if err != nil {
				return "", err
			}
			if !h.matchesAny(existingHashes, candidate) {
				return candidate, nil
			}
		}
	}
	return "", ErrPINSpaceExhausted
}

func (h *Hasher) matchesAny(hashes []string, candidate string) bool {
	for _, hash := range hashes {
		if h.Verify(hash, candidate) {
			return true
		}
	}
	return false
}

// randomPIN draws uniformly from [10^(digits-1), 10^digits) so the PIN never
// has a leading zero.
func randomPIN(digits int) (string, error) {
	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Sub(new(big.Int).Mul(lo, big.NewInt(10)), lo)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("read random PIN: %w", err)
	}
	return n.Add(n, lo).String(), nil
}
