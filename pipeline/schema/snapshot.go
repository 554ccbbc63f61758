package schema

import (
	"regexp"
	"sort"

	"github.com/gear6io/cnpj-pipeline/pkg/errors"
)

var snapshotPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Snapshot is a monthly release label in YYYY-MM form. Lexicographic
// order is chronological order.
type Snapshot string

// ParseSnapshot validates s as a snapshot label
func ParseSnapshot(s string) (Snapshot, error) {
	if !snapshotPattern.MatchString(s) {
		return "", errors.New(ErrInvalidSnapshot, "snapshot must be YYYY-MM", nil).
			AddContext("snapshot", s)
	}
	return Snapshot(s), nil
}

// IsSnapshot reports whether s looks like a snapshot label
func IsSnapshot(s string) bool {
	return snapshotPattern.MatchString(s)
}

func (s Snapshot) String() string {
	return string(s)
}

// SortSnapshots sorts in place, oldest first
func SortSnapshots(s []Snapshot) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}
