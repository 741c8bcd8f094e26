package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret generates a cryptographically secure random secret of n bytes, hex encoded
func GenerateSecret(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// EngineSecrets are the secrets a deployment needs
type EngineSecrets struct {
	JWTSecret     string
	SigningSecret string
}

// GenerateEngineSecrets generates distinct 256-bit JWT and payment signing secrets
func GenerateEngineSecrets() (EngineSecrets, error) {
	jwtSecret, err := GenerateSecret(32)
	if err != nil {
		return EngineSecrets{}, fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	signingSecret, err := GenerateSecret(32)
	if err != nil {
		return EngineSecrets{}, fmt.Errorf("failed to generate signing secret: %w", err)
	}
	return EngineSecrets{JWTSecret: jwtSecret, SigningSecret: signingSecret}, nil
}
