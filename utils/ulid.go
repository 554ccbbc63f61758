package utils

import (
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

var (
	entropyLock sync.Mutex
)

// GenerateULID generates a new ULID with mutex protection
func GenerateULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()

	return ulid.Make()
}

// RunID identifies one pipeline run in logs
func RunID() string {
	return GenerateULID().String()
}

// StagingSuffix returns a lowercase ULID usable inside an unquoted SQL
// identifier, so concurrent runs never collide on staging table names.
func StagingSuffix() string {
	return strings.ToLower(GenerateULID().String())
}

// ParseULID parses a ULID string
func ParseULID(s string) (ulid.ULID, error) {
	return ulid.Parse(s)
}
