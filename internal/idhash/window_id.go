// Package idhash derives deterministic identifiers from record keys.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeWindowID computes a deterministic window id using SHA256.
// Formula: SHA256(label|start_unix_ms|end_unix_ms)
// Returns hex-encoded hash (64 characters).
func ComputeWindowID(label string, start, end time.Time) string {
	data := fmt.Sprintf("%s|%d|%d", label, start.UnixMilli(), end.UnixMilli())
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
