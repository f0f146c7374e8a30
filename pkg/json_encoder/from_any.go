package json_encoder

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// FromAny converts loosely typed metadata into a Value. Map keys are sorted so
// the output is deterministic. Typed slices, arrays and string keyed maps are
// converted element by element. Kinds with no JSON counterpart are rendered
// with fmt.Sprint.
func FromAny(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case Value:
		return val
	case string:
		return String(val)
	case bool:
		return Bool(val)
	case int:
		return Int(val)
	case int8:
		return Int(val)
	case int16:
		return Int(val)
	case int32:
		return Int(val)
	case int64:
		return Int(val)
	case uint:
		return unsigned(uint64(val))
	case uint8:
		return Int(val)
	case uint16:
		return Int(val)
	case uint32:
		return Int(val)
	case uint64:
		return unsigned(val)
	case float32:
		return Float(val)
	case float64:
		return Float(val)
	case map[string]any:
		return ObjectFromMap(val)
	case map[string]string:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := make(Object, 0, len(val))
		for _, k := range keys {
			obj = append(obj, Member{Key: k, Value: String(val[k])})
		}
		return obj
	case []any:
		arr := make(Array, len(val))
		for i, item := range val {
			arr[i] = FromAny(item)
		}
		return arr
	case []string:
		arr := make(Array, len(val))
		for i, item := range val {
			arr[i] = String(item)
		}
		return arr
	case error:
		return String(val.Error())
	case fmt.Stringer:
		return String(val.String())
	default:
		return fromReflect(reflect.ValueOf(val))
	}
}

// unsigned keeps values above MaxInt64 exact by emitting their decimal text.
func unsigned(u uint64) Value {
	if u > math.MaxInt64 {
		return String(strconv.FormatUint(u, 10))
	}
	return Int(int64(u))
}

func fromReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.String:
		return String(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return unsigned(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null{}
		}
		return FromAny(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return Null{}
		}
		return arrayFromReflect(rv)
	case reflect.Array:
		return arrayFromReflect(rv)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		if rv.IsNil() {
			return Null{}
		}
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		obj := make(Object, 0, len(keys))
		for _, k := range keys {
			obj = append(obj, Member{Key: k.String(), Value: FromAny(rv.MapIndex(k).Interface())})
		}
		return obj
	}
	return String(fmt.Sprint(rv.Interface()))
}

func arrayFromReflect(rv reflect.Value) Array {
	arr := make(Array, rv.Len())
	for i := range arr {
		arr[i] = FromAny(rv.Index(i).Interface())
	}
	return arr
}

func ObjectFromMap(m map[string]any) Object {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obj := make(Object, 0, len(m))
	for _, k := range keys {
		obj = append(obj, Member{Key: k, Value: FromAny(m[k])})
	}
	return obj
}
