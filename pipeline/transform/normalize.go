package transform

import (
	"strings"

	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
)

// NullPartnerID replaces a missing partner document so it can be part of
// the socios primary key.
const NullPartnerID = "00000000000000"

// Normalize applies a single rule to a raw field. The empty string is NULL.
func Normalize(kind schema.RuleKind, v string) string {
	switch kind {
	case schema.Money:
		if v == "" {
			return v
		}
		return strings.Replace(strings.ReplaceAll(v, ".", ""), ",", ".", 1)
	case schema.Date:
		if v == "0" || v == "00000000" {
			return ""
		}
		return v
	case schema.CountryCode:
		if v == "" || len(v) >= 3 {
			return v
		}
		return strings.Repeat("0", 3-len(v)) + v
	case schema.PartnerID:
		if v == "" {
			return NullPartnerID
		}
		return v
	}
	return v
}

type boundRule struct {
	index int
	kind  schema.RuleKind
}

// normalizer holds a type's rules resolved to column positions
type normalizer struct {
	width int
	rules []boundRule
}

func newNormalizer(t schema.Type) normalizer {
	cols := t.Columns()
	n := normalizer{width: len(cols)}
	for _, r := range t.Rules() {
		for i, c := range cols {
			if c == r.Column {
				n.rules = append(n.rules, boundRule{index: i, kind: r.Kind})
				break
			}
		}
	}
	return n
}

// row copies a parsed record into a schema-width row, padding short records
// with NULL and dropping surplus fields, then applies the rules.
func (n normalizer) row(record []string) []string {
	out := make([]string, n.width)
	copy(out, record)
	for _, r := range n.rules {
		out[r.index] = Normalize(r.kind, out[r.index])
	}
	return out
}
