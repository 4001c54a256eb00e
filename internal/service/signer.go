package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Signer issues and verifies URL signatures. A signature is the hex
// HMAC-SHA256 of "token|expires" (expires empty when no TTL is used),
// verifiable without a record lookup.
type Signer struct {
	key []byte
	ttl time.Duration
}

// NewSigner builds a signer. A zero TTL issues non-expiring signatures.
func NewSigner(key string, ttl time.Duration) *Signer {
	return &Signer{key: []byte(key), ttl: ttl}
}

// Sign returns the signature and expires query values for a token.
func (s *Signer) Sign(token string, now time.Time) (signature, expires string) {
	if s.ttl > 0 {
		expires = strconv.FormatInt(now.Add(s.ttl).Unix(), 10)
	}
	return s.compute(token, expires), expires
}

// SignedURL appends signature parameters to a share URL.
func (s *Signer) SignedURL(base string, now time.Time) string {
	// base already carries the token as its last path segment
	token := base
	if i := lastSlash(base); i >= 0 {
		token = base[i+1:]
	}
	signature, expires := s.Sign(token, now)
	url := base + "?signature=" + signature
	if expires != "" {
		url += "&expires=" + expires
	}
	return url
}

// Verify checks a presented signature, including its expiry when present.
func (s *Signer) Verify(token, signature, expires string, now time.Time) bool {
	if signature == "" {
		return false
	}
	if expires != "" {
		ts, err := strconv.ParseInt(expires, 10, 64)
		if err != nil {
			return false
		}
		if now.Unix() > ts {
			return false
		}
	}
	expected := s.compute(token, expires)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *Signer) compute(token, expires string) string {
	mac := hmac.New(sha256.New, s.key)
	fmt.Fprintf(mac, "%s|%s", token, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
