package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeGenerator produces candidate session codes.
type CodeGenerator interface {
	Generate(length int) (string, error)
}

// RandomDigits draws uniformly distributed decimal codes from crypto/rand.
// Leading zeros are kept, so every code has exactly the requested length.
type RandomDigits struct{}

func (RandomDigits) Generate(length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("code length %d out of range", length)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("read random code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}
