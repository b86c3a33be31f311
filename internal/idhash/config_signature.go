package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ConfigSignature returns the SHA256 of v's JSON encoding. Struct fields
// encode in declaration order and map keys sorted, so equal configurations
// always produce equal signatures.
func ConfigSignature(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
