package json_encoder

import (
	"fmt"
	"math"
	"strconv"
)

const hexDigits = "0123456789abcdef"

// Encode renders v as compact JSON. Object members are written in the order
// the caller built them.
func Encode(v Value) string {
	return string(AppendValue(nil, v))
}

func AppendValue(dst []byte, v Value) []byte {
	switch val := v.(type) {
	case nil, Null:
		return append(dst, "null"...)
	case String:
		return AppendString(dst, string(val))
	case Int:
		return strconv.AppendInt(dst, int64(val), 10)
	case Float:
		return appendFloat(dst, float64(val))
	case Bool:
		return strconv.AppendBool(dst, bool(val))
	case Object:
		dst = append(dst, '{')
		for i, m := range val {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendString(dst, m.Key)
			dst = append(dst, ':')
			dst = AppendValue(dst, m.Value)
		}
		return append(dst, '}')
	case Array:
		dst = append(dst, '[')
		for i, item := range val {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendValue(dst, item)
		}
		return append(dst, ']')
	default:
		return AppendString(dst, fmt.Sprint(v))
	}
}

// AppendString writes s as a quoted JSON string.
func AppendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		dst = append(dst, s[start:i]...)
		switch c {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		default:
			dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xF])
		}
		start = i + 1
	}
	dst = append(dst, s[start:]...)
	return append(dst, '"')
}

// appendFloat uses the shortest representation that round-trips, switching to
// exponent notation only for very small or very large magnitudes.
func appendFloat(dst []byte, f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(dst, "null"...)
	}
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	return strconv.AppendFloat(dst, f, format, -1, 64)
}
