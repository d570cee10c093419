package pathquery

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Kind is the comparison a Value compiles to.
type Kind int

const (
	// KindSkip drops the predicate entirely.
	KindSkip Kind = iota
	KindSubstring
	KindEquals
	KindRange
	// KindInvalid matches nothing.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindSkip:
		return "skip"
	case KindSubstring:
		return "substring"
	case KindEquals:
		return "equals"
	case KindRange:
		return "range"
	default:
		return "invalid"
	}
}

// Value is a typed query value.
type Value struct {
	kind   Kind
	text   string
	lo, hi float64
}

func Skip() Value { return Value{kind: KindSkip} }

func Invalid() Value { return Value{kind: KindInvalid} }

func Substring(s string) Value { return Value{kind: KindSubstring, text: s} }

func Equals(n float64) Value {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Invalid()
	}
	return Value{kind: KindEquals, lo: n, hi: n}
}

// Between matches lo..hi inclusive. Reversed bounds are swapped.
func Between(lo, hi float64) Value {
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return Invalid()
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return Value{kind: KindRange, lo: lo, hi: hi}
}

// ValueOf maps a loosely typed input, such as a decoded JSON value, to a
// Value: nil skips, strings are substrings, numbers are exact matches and a
// two-element numeric slice or array is a range. Anything else is invalid.
func ValueOf(v any) Value {
	if v == nil {
		return Skip()
	}
	if val, ok := v.(Value); ok {
		return val
	}
	if s, ok := v.(string); ok {
		return Substring(s)
	}
	if n, ok := toFloat(v); ok {
		return Equals(n)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() != 2 {
			return Invalid()
		}
		lo, okLo := toFloat(rv.Index(0).Interface())
		hi, okHi := toFloat(rv.Index(1).Interface())
		if !okLo || !okHi {
			return Invalid()
		}
		return Between(lo, hi)
	}
	return Invalid()
}

func toFloat(v any) (float64, bool) {
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
	default:
		return 0, false
	}
}

// Kind reports the comparison this value compiles to.
func (v Value) Kind() Kind { return v.kind }

func (v Value) String() string {
	switch v.kind {
	case KindSubstring:
		return fmt.Sprintf("contains %q", v.text)
	case KindEquals:
		return fmt.Sprintf("= %g", v.lo)
	case KindRange:
		return fmt.Sprintf("in [%g, %g]", v.lo, v.hi)
	default:
		return v.kind.String()
	}
}

// likePattern wraps s in % wildcards after escaping LIKE metacharacters.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
