package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataMarshalFlat(t *testing.T) {
	m := MetadataFor("C1", &Customer{ID: "C1", Name: "Tanaka", TotalSales: 120000, VisitCount: 3})

	b, err := json.Marshal(m)
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(b, &flat))
	assert.Equal(t, "customer", flat["type"])
	assert.Equal(t, "C1", flat["id"])
	assert.Equal(t, "Tanaka", flat["name"])
	assert.EqualValues(t, 120000, flat["totalSales"])
	assert.EqualValues(t, 3, flat["visitCount"])
}

func TestMetadataRoundTrip(t *testing.T) {
	m := MetadataFor("Q9", &Quote{ID: "Q9", CustomerID: "C1", Status: QuoteStatusSent, TotalAmount: 5000, QuoteDate: "2024-01-02"}).
		WithExtra(map[string]any{"sourceFile": "quotes.csv"})

	b, err := json.Marshal(m)
	require.NoError(t, err)

	var got Metadata
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, RecordTypeQuote, got.Type)
	assert.Equal(t, "Q9", got.ID)
	require.NotNil(t, got.Quote)
	assert.Equal(t, QuoteStatusSent, got.Quote.Status)
	assert.Equal(t, int64(5000), got.Quote.TotalAmount)
	assert.Equal(t, map[string]any{"sourceFile": "quotes.csv"}, got.Extra)
}

func TestMetadataKnownKeysWinOverExtra(t *testing.T) {
	m := MetadataFor("C1", &Customer{ID: "C1", Name: "Tanaka"}).
		WithExtra(map[string]any{"name": "spoofed", "type": "quote", "region": "north"})

	v, ok := m.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Tanaka", v)

	v, ok = m.Get("type")
	require.True(t, ok)
	assert.Equal(t, "customer", v)

	v, ok = m.Get("region")
	require.True(t, ok)
	assert.Equal(t, "north", v)
}

func TestWithExtraDoesNotMutate(t *testing.T) {
	base := Metadata{Type: RecordTypeCustomer, Extra: map[string]any{"a": 1}}
	next := base.WithExtra(map[string]any{"b": 2})

	assert.Len(t, base.Extra, 1)
	assert.Len(t, next.Extra, 2)
}

func TestParseRecordType(t *testing.T) {
	cases := map[string]struct {
		want RecordType
		ok   bool
	}{
		"customer":     {RecordTypeCustomer, true},
		" Quote ":      {RecordTypeQuote, true},
		"WORK_HISTORY": {RecordTypeWorkHistory, true},
		"invoice":      {"", false},
		"":             {"", false},
		"work-history": {"", false},
	}
	for in, tc := range cases {
		got, ok := ParseRecordType(in)
		assert.Equal(t, tc.ok, ok, in)
		assert.Equal(t, tc.want, got, in)
	}
}
