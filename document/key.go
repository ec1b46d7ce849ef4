package document

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Key returns a stable string representation of a field value for use as an
// index posting key.
//
// Two values map to the same key iff the filter engine treats them as equal,
// so the key must survive a JSON round trip: an int written to disk comes
// back as a float64 and still has to land in the same posting list.
func Key(v any) string {
	if v == nil {
		return "null"
	}
	switch val := v.(type) {
	case string:
		return "s:" + val
	case bool:
		if val {
			return "b:true"
		}
		return "b:false"
	}
	if f, ok := Numeric(v); ok {
		return "n:" + formatNumber(f)
	}
	// Composite values (arrays, objects). Rare as index keys but must stay
	// deterministic.
	if b, err := json.Marshal(v); err == nil {
		return "j:" + string(b)
	}
	return fmt.Sprintf("j:%v", v)
}

// Numeric reports whether v is a number, returning it as float64.
func Numeric(v any) (float64, bool) {
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
