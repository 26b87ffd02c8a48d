package jwt

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const otpDigits = 6

// NewOTPCode returns a zero-padded random six digit code.
func NewOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func HashOTPCode(code string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(code), 10)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func ValidateOTPCode(hashedCode, code string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedCode), []byte(code))
	return err == nil
}
