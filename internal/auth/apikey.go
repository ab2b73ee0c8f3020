package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// APIKeyPrefixLen is the number of leading secret characters stored in
// clear for lookup. The full secret is only ever returned once, at
// creation; the store keeps its hash.
const APIKeyPrefixLen = 8

const apiKeySecretBytes = 24

// NewAPIKeySecret generates a fresh key secret and returns the raw
// secret, its lookup prefix, and the hash to persist.
func NewAPIKeySecret() (secret, prefix, hash string, err error) {
	buf := make([]byte, apiKeySecretBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", fmt.Errorf("generate api key: %w", err)
	}
	secret = hex.EncodeToString(buf)
	prefix = secret[:APIKeyPrefixLen]
	hash, err = HashPassword(secret)
	if err != nil {
		return "", "", "", err
	}
	return secret, prefix, hash, nil
}

// VerifyAPIKeySecret checks a presented secret against a stored hash.
func VerifyAPIKeySecret(secret, hash string) bool {
	return VerifyPassword(secret, hash)
}
