package service

import "golang.org/x/crypto/bcrypt"

// SecretHasher is a one-way, salted, deliberately slow password hash.
type SecretHasher interface {
	Hash(raw string) (string, error)
	Verify(raw, hashed string) bool
}

type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using the given cost. Out of range costs
// fall back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(raw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify safely compares a bcrypt hash and a plain secret. Malformed hashes
// simply do not match.
func (h *BcryptHasher) Verify(raw, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(raw)) == nil
}
