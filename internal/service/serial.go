package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

const maxSerialAttempts = 100

var (
	serialSpace   = big.NewInt(100_000_000)
	serialPattern = regexp.MustCompile(`^C\d{8}$`)
)

// NewSerial returns "C" followed by eight random digits.
func NewSerial() (string, error) {
	n, err := rand.Int(rand.Reader, serialSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("C%08d", n.Int64()), nil
}

func ValidSerial(s string) bool {
	return serialPattern.MatchString(s)
}
