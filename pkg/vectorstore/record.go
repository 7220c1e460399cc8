package vectorstore

import (
	"fmt"
	"math"
	"strconv"
)

// Payload keys used when a payload is flattened into a metadata map.
const (
	KeyText        = "text"
	KeyTimestamp   = "timestamp"
	KeyTTLOverride = "ttl_override"
)

// Payload is the data stored next to a vector.
type Payload struct {
	// Text is the stored snippet.
	Text string `json:"text" msgpack:"text"`

	// Timestamp is the write time in unix seconds.
	Timestamp float64 `json:"timestamp" msgpack:"timestamp"`

	// TTLOverride replaces the engine-wide default TTL when set.
	TTLOverride *float64 `json:"ttl_override,omitempty" msgpack:"ttl_override,omitempty"`

	// Metadata holds caller-defined extension fields.
	Metadata map[string]any `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// Record is a stored vector with its payload.
type Record struct {
	ID      string    `json:"id" msgpack:"id"`
	Vector  []float32 `json:"vector,omitempty" msgpack:"vector"`
	Payload Payload   `json:"payload" msgpack:"payload"`
}

// Hit is a single search result.
type Hit struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

// Clone returns a deep copy of the payload. The metadata map is copied one
// level deep.
func (p Payload) Clone() Payload {
	clone := p
	if p.TTLOverride != nil {
		ttl := *p.TTLOverride
		clone.TTLOverride = &ttl
	}
	if p.Metadata != nil {
		clone.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// Flatten merges text, timestamp and ttl into a copy of the metadata map.
func (p Payload) Flatten() map[string]any {
	out := make(map[string]any, len(p.Metadata)+3)
	for k, v := range p.Metadata {
		out[k] = v
	}
	out[KeyText] = p.Text
	out[KeyTimestamp] = p.Timestamp
	if p.TTLOverride != nil {
		out[KeyTTLOverride] = *p.TTLOverride
	}
	return out
}

// PayloadFromMap is the inverse of Flatten. Unknown keys land in Metadata.
func PayloadFromMap(m map[string]any) Payload {
	var p Payload
	for k, v := range m {
		switch k {
		case KeyText:
			p.Text, _ = v.(string)
		case KeyTimestamp:
			if f, ok := ToFloat(v); ok {
				p.Timestamp = f
			}
		case KeyTTLOverride:
			if f, ok := ToFloat(v); ok {
				p.TTLOverride = &f
			}
		default:
			if p.Metadata == nil {
				p.Metadata = make(map[string]any)
			}
			p.Metadata[k] = v
		}
	}
	return p
}

// Matches reports whether the payload satisfies every key of the filter
// (AND semantics). Values are compared by their string form so that a filter
// decoded from JSON matches metadata written by Go code.
func (p Payload) Matches(filter map[string]any) bool {
	if len(filter) == 0 {
		return true
	}
	flat := p.Flatten()
	for k, want := range filter {
		got, ok := flat[k]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// NormalizeID coerces a store-returned id into a string. Ids that cannot be
// represented (nil, NaN, composite values) yield "".
func NormalizeID(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return ""
		}
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

// ToFloat converts common numeric representations into a float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
