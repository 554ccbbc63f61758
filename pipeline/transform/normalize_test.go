package transform

import (
	"testing"

	"github.com/gear6io/cnpj-pipeline/pipeline/schema"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeMoney(t *testing.T) {
	cases := map[string]string{
		"1.234,56":     "1234.56",
		"1.000.000,00": "1000000.00",
		"0,00":         "0.00",
		"150000":       "150000",
		"":             "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(schema.Money, in), in)
	}
}

func TestNormalizeDate(t *testing.T) {
	t.Run("single zero is null", func(t *testing.T) {
		assert.Equal(t, "", Normalize(schema.Date, "0"))
	})
	t.Run("eight zeros is null", func(t *testing.T) {
		assert.Equal(t, "", Normalize(schema.Date, "00000000"))
	})
	t.Run("real date unchanged", func(t *testing.T) {
		assert.Equal(t, "20050103", Normalize(schema.Date, "20050103"))
	})
	t.Run("null stays null", func(t *testing.T) {
		assert.Equal(t, "", Normalize(schema.Date, ""))
	})
}

func TestNormalizeCountryCode(t *testing.T) {
	assert.Equal(t, "001", Normalize(schema.CountryCode, "1"))
	assert.Equal(t, "045", Normalize(schema.CountryCode, "45"))
	assert.Equal(t, "105", Normalize(schema.CountryCode, "105"))
	assert.Equal(t, "1058", Normalize(schema.CountryCode, "1058"))
	assert.Equal(t, "", Normalize(schema.CountryCode, ""))

	for _, v := range []string{"1", "45", "105", ""} {
		once := Normalize(schema.CountryCode, v)
		assert.Equal(t, once, Normalize(schema.CountryCode, once), "idempotent for %q", v)
	}
}

func TestNormalizePartnerID(t *testing.T) {
	assert.Equal(t, NullPartnerID, Normalize(schema.PartnerID, ""))
	assert.Equal(t, "***123456**", Normalize(schema.PartnerID, "***123456**"))
}

func TestNormalizerPadsAndTruncates(t *testing.T) {
	n := newNormalizer(schema.Cnaes)
	assert.Equal(t, []string{"0111301", ""}, n.row([]string{"0111301"}))
	assert.Equal(t, []string{"0111301", "Cultivo de arroz"}, n.row([]string{"0111301", "Cultivo de arroz", "extra"}))
}
