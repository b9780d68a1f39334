package provisioner

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	passwordLower  = "abcdefghijklmnopqrstuvwxyz"
	passwordUpper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	passwordDigits = "0123456789"

	passwordAlphabet = passwordLower + passwordUpper + passwordDigits

	// MinPasswordLength is the floor for generated stream credentials
	MinPasswordLength = 16
)

// GeneratePassword returns a random password of at least
// MinPasswordLength characters containing at least one lowercase letter,
// one uppercase letter and one digit. Randomness comes from crypto/rand.
func GeneratePassword(length int) (string, error) {
	if length < MinPasswordLength {
		length = MinPasswordLength
	}

	buf := make([]byte, length)

	classes := []string{passwordLower, passwordUpper, passwordDigits}
	for i, class := range classes {
		ch, err := randomByte(class)
		if err != nil {
			return "", err
		}
		buf[i] = ch
	}

	for i := len(classes); i < length; i++ {
		ch, err := randomByte(passwordAlphabet)
		if err != nil {
			return "", err
		}
		buf[i] = ch
	}

	// Fisher-Yates so the guaranteed class characters are not always in
	// the first three positions.
	for i := length - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		j := int(n.Int64())
		buf[i], buf[j] = buf[j], buf[i]
	}

	return string(buf), nil
}

func randomByte(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, fmt.Errorf("failed to generate password: %w", err)
	}
	return set[n.Int64()], nil
}
