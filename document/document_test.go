package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		a    any
		b    any
		same bool
	}{
		{name: "int and float64", a: 5, b: float64(5), same: true},
		{name: "int64 and float64", a: int64(42), b: float64(42), same: true},
		{name: "different numbers", a: 5, b: 6, same: false},
		{name: "number and numeric string", a: 5, b: "5", same: false},
		{name: "equal strings", a: "go", b: "go", same: true},
		{name: "bool and string", a: true, b: "true", same: false},
		{name: "nil and false", a: nil, b: false, same: false},
		{name: "fractional floats", a: 1.5, b: 1.5, same: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.same {
				assert.Equal(t, Key(tt.a), Key(tt.b))
			} else {
				assert.NotEqual(t, Key(tt.a), Key(tt.b))
			}
		})
	}
}

func TestKeyLargeIntegers(t *testing.T) {
	// Past 1e15 float64 loses integer precision; keys switch to the float
	// format but stay deterministic.
	assert.Equal(t, Key(float64(1e16)), Key(float64(1e16)))
	assert.NotEqual(t, Key(float64(1e16)), Key(float64(1e16)+2048))
}

func TestClone(t *testing.T) {
	doc := Document{"id": "d1", "name": "Alice", "meta": map[string]any{"a": 1}}

	clone := doc.Clone()
	clone["name"] = "Bob"

	assert.Equal(t, "Alice", doc["name"])
	// Clone is shallow: nested values are shared.
	clone["meta"].(map[string]any)["a"] = 2
	assert.Equal(t, 2, doc["meta"].(map[string]any)["a"])
}

func TestNowUsesCanonicalLayout(t *testing.T) {
	now := Now()
	parsed, err := time.Parse(TimeLayout, now)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, time.Minute)
}

func TestID(t *testing.T) {
	assert.Equal(t, "d1", Document{"id": "d1"}.ID())
	assert.Empty(t, Document{}.ID())
	assert.Empty(t, Document{"id": 7}.ID(), "non-string ids are treated as absent")
}
