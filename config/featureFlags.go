package config

import (
	"os"
	"strconv"
	"strings"
)

// EnforceAssignmentClaims turns the advisory assignment lock into a real one:
// Complete() rejects callers whose holder does not match the current claim.
// The legacy behavior (last complete wins) stays the default.
//
// Set via env:
// - CC_ENFORCE_CLAIMS=true
func EnforceAssignmentClaims() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("CC_ENFORCE_CLAIMS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// LockMinutes is the assignment lock TTL shown to counters.
//
// Set via env:
// - CC_LOCK_MINUTES=20
func LockMinutes() int {
	v := strings.TrimSpace(os.Getenv("CC_LOCK_MINUTES"))
	if v == "" {
		return 20
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 20
	}
	return n
}

// DataDir is the directory holding all durable artifacts
// (assignment table, submission log, mapping record, reference blob).
//
// Set via env:
// - CC_DATA_DIR=/var/lib/cyclecount
func DataDir() string {
	v := strings.TrimSpace(os.Getenv("CC_DATA_DIR"))
	if v == "" {
		return "data"
	}
	return v
}
