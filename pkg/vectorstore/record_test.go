package vectorstore

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeID(t *testing.T) {
	u := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name string
		raw  any
		want string
	}{
		{name: "nil", raw: nil, want: ""},
		{name: "string", raw: "abc", want: "abc"},
		{name: "bytes", raw: []byte("xyz"), want: "xyz"},
		{name: "int", raw: 42, want: "42"},
		{name: "int64", raw: int64(7), want: "7"},
		{name: "uint64", raw: uint64(9), want: "9"},
		{name: "integral float", raw: 12.0, want: "12"},
		{name: "fractional float", raw: 1.5, want: ""},
		{name: "nan", raw: math.NaN(), want: ""},
		{name: "uuid", raw: u, want: u.String()},
		{name: "composite", raw: []int{1}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeID(tt.raw))
		})
	}
}

func TestPayload_FlattenRoundTrip(t *testing.T) {
	ttl := 30.0
	p := Payload{Text: "hello", Timestamp: 100, TTLOverride: &ttl, Metadata: map[string]any{"lang": "en"}}

	flat := p.Flatten()
	assert.Equal(t, "hello", flat[KeyText])
	assert.Equal(t, 100.0, flat[KeyTimestamp])
	assert.Equal(t, 30.0, flat[KeyTTLOverride])
	assert.Equal(t, "en", flat["lang"])

	back := PayloadFromMap(flat)
	assert.Equal(t, p.Text, back.Text)
	assert.Equal(t, p.Timestamp, back.Timestamp)
	assert.Equal(t, *p.TTLOverride, *back.TTLOverride)
	assert.Equal(t, "en", back.Metadata["lang"])
}

func TestPayload_Matches(t *testing.T) {
	p := Payload{Text: "t", Metadata: map[string]any{"user": "u1", "rank": 3}}

	assert.True(t, p.Matches(nil))
	assert.True(t, p.Matches(map[string]any{"user": "u1"}))
	assert.True(t, p.Matches(map[string]any{"rank": 3.0}), "numeric filters decoded from JSON")
	assert.False(t, p.Matches(map[string]any{"user": "u2"}))
	assert.False(t, p.Matches(map[string]any{"missing": "x"}))
}

func TestPayload_CloneIsDeep(t *testing.T) {
	ttl := 5.0
	p := Payload{TTLOverride: &ttl, Metadata: map[string]any{"a": 1}}
	c := p.Clone()
	*c.TTLOverride = 9
	c.Metadata["a"] = 2

	assert.Equal(t, 5.0, *p.TTLOverride)
	assert.Equal(t, 1, p.Metadata["a"])
}

func TestTopK(t *testing.T) {
	records := []Record{
		{ID: "b", Vector: []float32{1, 0}},
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "c", Vector: []float32{0, 1}},
	}

	hits := TopK(records, []float32{1, 0}, 2, nil)
	assert.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID, "ties broken by id")
	assert.Equal(t, "b", hits[1].ID)

	assert.Nil(t, TopK(records, []float32{1, 0}, 0, nil))
}
