package homie

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Homie property datatypes.
const (
	DatatypeInteger = "integer"
	DatatypeFloat   = "float"
	DatatypeBoolean = "boolean"
	DatatypeString  = "string"
	DatatypeEnum    = "enum"
	DatatypeColor   = "color"
)

// Coerce converts a raw payload to the Go value for datatype.
//
//   - integer: int64, error on malformed input
//   - float: float64, error on malformed input
//   - boolean: true for "true", false for "false", nil for anything else
//   - any other datatype: the raw string
func Coerce(datatype, raw string) (any, error) {
	switch datatype {
	case DatatypeInteger:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, raw)
		}
		return v, nil
	case DatatypeFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a float", ErrInvalidValue, raw)
		}
		return v, nil
	case DatatypeBoolean:
		switch raw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, nil
		}
	default:
		return raw, nil
	}
}

// IsFinite reports whether v can be encoded as a JSON number. Float
// payloads such as "NaN" and "Inf" coerce successfully but are not finite.
func IsFinite(v any) bool {
	f, ok := v.(float64)
	if !ok {
		return true
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FormatValue renders v as a payload for a property of the given datatype.
// format is the property's $format and is only consulted for enums.
//
// Numbers decoded from JSON arrive as float64; integral values are accepted
// for integer properties.
func FormatValue(datatype, format string, v any) (string, error) {
	switch datatype {
	case DatatypeInteger:
		switch n := v.(type) {
		case int:
			return strconv.Itoa(n), nil
		case int64:
			return strconv.FormatInt(n, 10), nil
		case float64:
			if n != math.Trunc(n) || math.IsInf(n, 0) {
				return "", fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, n)
			}
			return strconv.FormatInt(int64(n), 10), nil
		case string:
			if _, err := Coerce(datatype, n); err != nil {
				return "", err
			}
			return n, nil
		}
	case DatatypeFloat:
		switch n := v.(type) {
		case int:
			return strconv.Itoa(n), nil
		case int64:
			return strconv.FormatInt(n, 10), nil
		case float64:
			return strconv.FormatFloat(n, 'f', -1, 64), nil
		case string:
			if _, err := Coerce(datatype, n); err != nil {
				return "", err
			}
			return n, nil
		}
	case DatatypeBoolean:
		switch b := v.(type) {
		case bool:
			return strconv.FormatBool(b), nil
		case string:
			if b == "true" || b == "false" {
				return b, nil
			}
		}
	case DatatypeEnum:
		s, ok := v.(string)
		if !ok {
			break
		}
		if format != "" && !slices.Contains(strings.Split(format, ","), s) {
			return "", fmt.Errorf("%w: %q not in enum %q", ErrInvalidValue, s, format)
		}
		return s, nil
	default:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %T is not valid for datatype %q", ErrInvalidValue, v, datatype)
}
