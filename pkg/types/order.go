package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// number is a normalized numeric value. Integers keep full precision.
type number struct {
	i     int64
	f     float64
	isInt bool
}

func toNumber(v any) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{i: int64(n), isInt: true}, true
	case int8:
		return number{i: int64(n), isInt: true}, true
	case int16:
		return number{i: int64(n), isInt: true}, true
	case int32:
		return number{i: int64(n), isInt: true}, true
	case int64:
		return number{i: n, isInt: true}, true
	case uint:
		return fromUint(uint64(n)), true
	case uint8:
		return number{i: int64(n), isInt: true}, true
	case uint16:
		return number{i: int64(n), isInt: true}, true
	case uint32:
		return number{i: int64(n), isInt: true}, true
	case uint64:
		return fromUint(n), true
	case float32:
		return fromFloat(float64(n)), true
	case float64:
		return fromFloat(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return number{i: i, isInt: true}, true
		}
		if f, err := n.Float64(); err == nil {
			return fromFloat(f), true
		}
	}
	return number{}, false
}

func fromUint(u uint64) number {
	if u > math.MaxInt64 {
		return number{f: float64(u)}
	}
	return number{i: int64(u), isInt: true}
}

// fromFloat folds integral floats into the integer form so 3 and 3.0 agree
func fromFloat(f float64) number {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return number{i: int64(f), isInt: true}
	}
	return number{f: f}
}

func (n number) float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

func compareNumbers(a, b number) int {
	if a.isInt && b.isInt {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		}
		return 0
	}
	af, bf := a.float(), b.float()
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}

// CompareOrder compares two order values. Numbers of any Go kind (and json.Number)
// compare numerically, strings lexically. Any other pairing fails with ErrIncomparable.
func CompareOrder(a, b any) (int, error) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
		}
		return strings.Compare(as, bs), nil
	}

	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if !aok || !bok {
		return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
	}
	return compareNumbers(an, bn), nil
}

// FormatValue renders a field value for display in a chunk label
func FormatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// DocumentKey derives a grouping key for a document identifier. Numerically equal
// ids share a key regardless of their Go kind. Non-scalar ids fail with ErrIncomparable.
func DocumentKey(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "nil", nil
	case string:
		return "s:" + t, nil
	case bool:
		return "b:" + strconv.FormatBool(t), nil
	}

	n, ok := toNumber(v)
	if !ok {
		return "", fmt.Errorf("%w: document id of type %T", ErrIncomparable, v)
	}
	if n.isInt {
		return "n:" + strconv.FormatInt(n.i, 10), nil
	}
	return "n:" + strconv.FormatFloat(n.f, 'g', -1, 64), nil
}
