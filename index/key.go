// Package index implements the ordered secondary indexes of the cache: composite keys with
// a total order and btree backed tables built from them.
package index

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Key is a composite index key. Elements may be booleans, numbers or strings. Low and High
// may be used as elements of range bounds.
type Key []any

// K builds a Key.
func K(values ...any) Key {
	return Key(values)
}

type sentinel int8

var (
	// Low sorts before every other value.
	Low any = sentinel(-1)

	// High sorts after every other value.
	High any = sentinel(1)
)

func (s sentinel) String() string {
	if s < 0 {
		return "Low"
	}
	return "High"
}

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		if s, ok := v.(string); ok {
			parts[i] = fmt.Sprintf("%q", s)
			continue
		}
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Compare orders keys element by element. When one key is a prefix of the other the
// shorter one goes first.
func Compare(a, b Key) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareValue(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

const (
	rankLow = iota
	rankBool
	rankNumber
	rankString
	rankHigh
)

// ErrInvalidKey is returned by Validate for key elements that cannot be ordered.
var ErrInvalidKey = errors.New("invalid index key")

// Validate checks that every element of k is a bool, a number, a string or a sentinel.
func Validate(k Key) error {
	for i, v := range k {
		if _, ok := rankOf(v); !ok {
			return fmt.Errorf("%w: element %d has type %T", ErrInvalidKey, i, v)
		}
	}
	return nil
}

func rankOf(v any) (int, bool) {
	switch v := v.(type) {
	case sentinel:
		if v < 0 {
			return rankLow, true
		}
		return rankHigh, true
	case bool:
		return rankBool, true
	case string:
		return rankString, true
	}
	if _, _, _, ok := number(v); ok {
		return rankNumber, true
	}
	return 0, false
}

func rank(v any) int {
	r, ok := rankOf(v)
	if !ok {
		panic(fmt.Sprintf("index: unsupported key element type %T", v))
	}
	return r
}

// number normalizes every numeric type to either an int64 or a float64.
func number(v any) (i int64, f float64, isFloat bool, ok bool) {
	switch v := v.(type) {
	case int:
		return int64(v), 0, false, true
	case int8:
		return int64(v), 0, false, true
	case int16:
		return int64(v), 0, false, true
	case int32:
		return int64(v), 0, false, true
	case int64:
		return v, 0, false, true
	case uint:
		return number(uint64(v))
	case uint8:
		return int64(v), 0, false, true
	case uint16:
		return int64(v), 0, false, true
	case uint32:
		return int64(v), 0, false, true
	case uint64:
		if v > math.MaxInt64 {
			return 0, float64(v), true, true
		}
		return int64(v), 0, false, true
	case float32:
		return 0, float64(v), true, true
	case float64:
		return 0, v, true, true
	}
	return 0, 0, false, false
}

func compareValue(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case rankBool:
		va, vb := a.(bool), b.(bool)
		switch {
		case va == vb:
			return 0
		case !va:
			return -1
		}
		return 1
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankNumber:
		ia, fa, floatA, _ := number(a)
		ib, fb, floatB, _ := number(b)
		if !floatA && !floatB {
			switch {
			case ia < ib:
				return -1
			case ia > ib:
				return 1
			}
			return 0
		}
		if !floatA {
			fa = float64(ia)
		}
		if !floatB {
			fb = float64(ib)
		}
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return 0
}
