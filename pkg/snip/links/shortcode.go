package links

import (
	"crypto/rand"
	"errors"
)

const (
	// Alphabet is the symbol set of generated codes
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	DefaultCodeLength  = 6
	MinCodeLength      = 4
	DefaultMaxAttempts = 10
)

// largest multiple of len(Alphabet) that fits in a byte; bytes at or above
// it are redrawn so every symbol is equally likely.
const unbiasedLimit = 256 - 256%len(Alphabet)

// CodeGenerator draws candidate short codes.
// Implementations should be safe for concurrent use.
type CodeGenerator interface {
	Generate(length int) (string, error)
}

type randomCodes struct{}

// NewRandomCodes returns a generator drawing uniformly from Alphabet with crypto/rand
func NewRandomCodes() CodeGenerator {
	return randomCodes{}
}

func (randomCodes) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	code := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(code) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= unbiasedLimit {
				continue
			}
			code = append(code, Alphabet[int(b)%len(Alphabet)])
			if len(code) == length {
				break
			}
		}
	}
	return string(code), nil
}
