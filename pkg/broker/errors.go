package broker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced participant, version, tag,
// environment, deployment, or pact does not exist. Callers surface it as
// an absent result or 404; it is never retried.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when an input document is structurally
// malformed. Validation runs before any store mutation.
var ErrValidation = errors.New("validation failed")

// ValidatePactContent checks that a pact document carries the minimum
// structure: consumer, provider, and interactions. Deeper schema
// validation is out of scope.
func ValidatePactContent(content PactContent) error {
	if content == nil {
		return fmt.Errorf("pact document is empty: %w", ErrValidation)
	}
	for _, key := range []string{"consumer", "provider", "interactions"} {
		if _, ok := content[key]; !ok {
			return fmt.Errorf("pact document missing %q: %w", key, ErrValidation)
		}
	}
	return nil
}

// ContentSHA computes the SHA-256 hex digest of the canonical JSON
// serialization of a pact document. The same serialization is stored in
// the content column, so the digest is reproducible from content alone.
func ContentSHA(content PactContent) (string, error) {
	b, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("serialize pact content: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
