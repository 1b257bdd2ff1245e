package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface over the allowed value kinds.
type IRValue interface {
	irValue()
}

// IRNull is JSON null.
type IRNull struct{}

func (IRNull) irValue() {}

// IRString is a string value.
type IRString string

func (IRString) irValue() {}

// IRInt is an integer value. There is no float kind.
type IRInt int64

func (IRInt) irValue() {}

// IRBool is a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered list of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps keys to values. Iterate with SortedKeys for stable output.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// SortedKeys returns the keys ordered by UTF-16 code units, the order used
// by canonical JSON. This differs from byte order for astral characters.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// FromGo converts decoded YAML, CUE, or JSON data into an IRValue.
//
// Accepted: nil, string, bool, every Go integer type, json.Number holding an
// integer, float32/float64 holding an integral value (YAML and CUE decoders
// produce those for whole numbers), []any, map[string]any, and values that
// already are IRValues. Anything else is an error naming the offending path.
func FromGo(v any) (IRValue, error) {
	return fromGo(v, "$")
}

func fromGo(v any, path string) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case uint:
		return uintValue(uint64(val), path)
	case uint64:
		return uintValue(val, path)
	case float32:
		return floatValue(float64(val), path)
	case float64:
		return floatValue(val, path)
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("%s: non-integer number %s", path, val)
		}
		return IRInt(n), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			item, err := fromGo(elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr[i] = item
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			item, err := fromGo(elem, path+"."+k)
			if err != nil {
				return nil, err
			}
			obj[k] = item
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("%s: unsupported type %T", path, v)
	}
}

func uintValue(n uint64, path string) (IRValue, error) {
	if n > math.MaxInt64 {
		return nil, fmt.Errorf("%s: %d overflows int64", path, n)
	}
	return IRInt(n), nil
}

func floatValue(f float64, path string) (IRValue, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, fmt.Errorf("%s: floats are not allowed: %v", path, f)
	}
	return IRInt(int64(f)), nil
}

// ObjectFromGo is FromGo for payloads, which must be objects. nil yields an
// empty object.
func ObjectFromGo(v any) (IRObject, error) {
	if v == nil {
		return IRObject{}, nil
	}
	val, err := FromGo(v)
	if err != nil {
		return nil, err
	}
	obj, ok := val.(IRObject)
	if !ok {
		return nil, fmt.Errorf("$: expected object, got %T", val)
	}
	return obj, nil
}

// ToGo converts an IRValue back to plain Go data (map[string]any, []any,
// int64, string, bool, nil).
func ToGo(v IRValue) any {
	switch val := v.(type) {
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes obj canonically.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(obj)
}

// UnmarshalJSON decodes a JSON object, keeping large integers exact.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ObjectFromGo(raw)
	if err != nil {
		return err
	}
	*obj = parsed
	return nil
}
