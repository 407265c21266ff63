package record

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is a sealed interface over the scalar cell types a grid can hold.
// Only Null, String, Int, Float and Bool implement it.
type Value interface {
	value()
}

// Null is an empty cell. Newly created rows carry Null in the identity column
// until the backend assigns one.
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a text cell.
type String string

func (String) value() {}

// Int is an integral number cell.
type Int int64

func (Int) value() {}

// Float is a fractional number cell. Widgets often hand back integral
// numbers as floats, so Float(2000) and Int(2000) compare equal.
type Float float64

func (Float) value() {}

// Bool is a boolean cell.
type Bool bool

func (Bool) value() {}

// IsNull reports whether v is absent or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Equal compares two values. Numbers compare by numeric value regardless
// of Int/Float representation; nil and Null are equal. Ints compare exactly,
// so distinct int64 values never collapse through float64.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	if isNumber(a) {
		if !isNumber(b) {
			return false
		}
		af, aFloat := a.(Float)
		bf, bFloat := b.(Float)
		if aFloat && bFloat {
			return af == bf
		}
		return compareNumbers(a, b) == 0
	}
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	}
	return false
}

func isNumber(v Value) bool {
	switch v.(type) {
	case Int, Float:
		return true
	}
	return false
}

// compareNumbers orders two Int or Float values. Int pairs use int64
// ordering; float64 is used only when both sides are Float. NaN orders
// below every other number.
func compareNumbers(a, b Value) int {
	switch av := a.(type) {
	case Int:
		switch bv := b.(type) {
		case Int:
			return cmp.Compare(av, bv)
		case Float:
			return compareIntFloat(int64(av), float64(bv))
		}
	case Float:
		switch bv := b.(type) {
		case Int:
			return -compareIntFloat(int64(bv), float64(av))
		case Float:
			return cmp.Compare(av, bv)
		}
	}
	return 0
}

// compareIntFloat orders i against f without rounding i.
func compareIntFloat(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return 1
	case f < -(1 << 63):
		return 1
	case f >= 1<<63:
		return -1
	}
	whole := math.Trunc(f)
	if c := cmp.Compare(i, int64(whole)); c != 0 {
		return c
	}
	switch frac := f - whole; {
	case frac > 0:
		return -1
	case frac < 0:
		return 1
	}
	return 0
}

// Compare orders two values for identity sorting: nulls first, then numbers
// by value, then strings lexically, then bools. Mixed kinds order by kind.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 1:
		return compareNumbers(a, b)
	case 2:
		as, bs := a.(String), b.(String)
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
	case 3:
		ab, bb := a.(Bool), b.(Bool)
		if ab != bb {
			if !ab {
				return -1
			}
			return 1
		}
	}
	return 0
}

func rank(v Value) int {
	switch v.(type) {
	case Int, Float:
		return 1
	case String:
		return 2
	case Bool:
		return 3
	}
	return 0
}

// Text renders a value for display and for comma-joined wire fields.
func Text(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return formatFloat(float64(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	}
	return ""
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// FromAny converts a decoded JSON or YAML scalar into a Value.
// Integral json.Number values become Int, the rest Float.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of range: %d", val)
		}
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Float(f), nil
	default:
		return nil, fmt.Errorf("unsupported cell type: %T", v)
	}
}

// ToAny converts a Value to a plain Go value for encoding.
func ToAny(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	}
	return nil
}

// MarshalValue marshals a Value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite float: %v", f)
		}
		return []byte(formatFloat(f)), nil
	case Bool:
		return json.Marshal(bool(val))
	default:
		return nil, fmt.Errorf("unknown value type: %T", v)
	}
}

// UnmarshalValue decodes a single JSON scalar into a Value.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}
