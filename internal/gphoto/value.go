package gphoto

import (
	"fmt"
	"math"
	"strconv"
)

// Value is the current value of a leaf widget. The concrete type is chosen
// once, from the widget's declared type, when the value is read:
//
//	text, radio, menu  -> TextValue
//	range              -> FloatValue
//	toggle, date       -> IntValue
//
// Containers and buttons have no value.
type Value interface {
	fmt.Stringer
	isValue()
}

// TextValue is the value of text, radio and menu widgets.
type TextValue string

// FloatValue is the value of range widgets.
type FloatValue float64

// IntValue is the value of toggle and date widgets.
type IntValue int

func (TextValue) isValue()  {}
func (FloatValue) isValue() {}
func (IntValue) isValue()   {}

func (v TextValue) String() string { return string(v) }

func (v FloatValue) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }

func (v IntValue) String() string { return strconv.Itoa(int(v)) }

// toText encodes v for text, radio and menu widgets.
func toText(v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case TextValue:
		return string(x), nil
	default:
		return "", fmt.Errorf("%w: want string or bytes, got %T", ErrTypeMismatch, v)
	}
}

// toFloat encodes v for range widgets; strings are parsed first.
func toFloat(v interface{}) (float32, error) {
	switch x := v.(type) {
	case string:
		f, err := strconv.ParseFloat(x, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		return float32(f), nil
	case float32:
		return x, nil
	case float64:
		return float32(x), nil
	case FloatValue:
		return float32(x), nil
	case IntValue:
		return float32(x), nil
	}
	if i, ok := asInt64(v); ok {
		return float32(i), nil
	}
	if u, ok := asUint64(v); ok {
		return float32(u), nil
	}
	return 0, fmt.Errorf("%w: want number or numeric string, got %T", ErrTypeMismatch, v)
}

// toInt encodes v for toggle and date widgets; strings are parsed first.
func toInt(v interface{}) (int, error) {
	switch x := v.(type) {
	case string:
		i, err := strconv.Atoi(x)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		return i, nil
	case IntValue:
		return int(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case float32:
		return integral(float64(x))
	case float64:
		return integral(x)
	case FloatValue:
		return integral(float64(x))
	}
	if i, ok := asInt64(v); ok {
		if i < math.MinInt || i > math.MaxInt {
			return 0, fmt.Errorf("%w: %d overflows int", ErrTypeMismatch, i)
		}
		return int(i), nil
	}
	if u, ok := asUint64(v); ok {
		if u > math.MaxInt {
			return 0, fmt.Errorf("%w: %d overflows int", ErrTypeMismatch, u)
		}
		return int(u), nil
	}
	return 0, fmt.Errorf("%w: want integer or integer string, got %T", ErrTypeMismatch, v)
}

// integral accepts floats without a fractional part, e.g. numbers decoded
// from JSON.
func integral(f float64) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f < math.MinInt || f >= math.MaxInt {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrTypeMismatch, f)
	}
	return int(f), nil
}

func asInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func asUint64(v interface{}) (uint64, bool) {
	switch x := v.(type) {
	case uint:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint64:
		return x, true
	}
	return 0, false
}
