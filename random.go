package lottery

import (
	"crypto/rand"
	"math/big"
)

// RandomSource supplies the uniform draws used by the probability policies.
// Tests inject deterministic sources; production uses crypto/rand.
type RandomSource interface {
	// Float64 returns a uniform random value in [0, 1)
	Float64() (float64, error)
}

// SecureRandomSource implements RandomSource using crypto/rand
type SecureRandomSource struct{}

// NewSecureRandomSource creates a new secure random source
func NewSecureRandomSource() *SecureRandomSource {
	return &SecureRandomSource{}
}

// Float64 returns a uniform random value in [0, 1) with 53 bits of precision
func (s *SecureRandomSource) Float64() (float64, error) {
	randomBig, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		return 0, ErrSystemError.WithDetails("random source failure").WithCause(err)
	}
	return float64(randomBig.Int64()) / float64(1<<53), nil
}
