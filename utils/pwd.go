package utils

import (
	"log"

	"golang.org/x/crypto/bcrypt"
)

// GetPwd hashes a password.
func GetPwd(pwd string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("generate password error:", err)
	}
	return string(hash)
}

// CheckPwd verifies a password against its hash.
func CheckPwd(pwd string, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pwd)) == nil
}
