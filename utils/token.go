package utils

import (
	"crypto/rand"
	"log"
	"math/big"
)

const tokenCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// TokenLength is the length of generated share tokens.
const TokenLength = 32

// GenerateToken returns a URL-safe random token.
func GenerateToken() string {
	result := make([]byte, TokenLength)
	max := big.NewInt(int64(len(tokenCharset)))
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			log.Fatal("generate token error:", err)
		}
		result[i] = tokenCharset[n.Int64()]
	}
	return string(result)
}
