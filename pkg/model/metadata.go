package model

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrUnsupportedMetadata = goerr.New("unsupported metadata value")
)

// ExtraMetadata holds caller-supplied fields the memory engine does not
// interpret. Values are restricted to string, bool, int64, float64 and nil.
type ExtraMetadata map[string]any

// NewExtraMetadata validates raw values and coerces them into the scalar
// contract. Integers become int64 and floats become float64. Anything else
// is rejected with ErrUnsupportedMetadata.
func NewExtraMetadata(raw map[string]any) (ExtraMetadata, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	out := make(ExtraMetadata, len(raw))
	for key, value := range raw {
		v, err := coerceScalar(value)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid extra metadata", goerr.V("key", key))
		}
		out[key] = v
	}
	return out, nil
}

func coerceScalar(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case bool:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt64(v)
	case float32:
		return finiteFloat(float64(v))
	case float64:
		return finiteFloat(v)
	default:
		return nil, goerr.Wrap(ErrUnsupportedMetadata, "value type is outside the scalar contract",
			goerr.V("type", typeName(value)))
	}
}

func uintToInt64(v uint64) (any, error) {
	if v > math.MaxInt64 {
		return nil, goerr.Wrap(ErrUnsupportedMetadata, "unsigned value overflows int64", goerr.V("value", v))
	}
	return int64(v), nil
}

func finiteFloat(v float64) (any, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, goerr.Wrap(ErrUnsupportedMetadata, "float value must be finite", goerr.V("value", v))
	}
	return v, nil
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

// Clone returns a copy of the map. Values are scalars so a shallow copy is enough.
func (m ExtraMetadata) Clone() ExtraMetadata {
	if m == nil {
		return nil
	}
	cp := make(ExtraMetadata, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Keys returns the keys in sorted order
func (m ExtraMetadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON writes keys in sorted order. Floats always carry a fraction or
// exponent so they decode back as float64 rather than int64.
func (m ExtraMetadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to encode metadata key", goerr.V("key", key))
		}
		buf.Write(k)
		buf.WriteByte(':')

		switch v := m[key].(type) {
		case float64:
			if _, err := finiteFloat(v); err != nil {
				return nil, goerr.Wrap(err, "failed to encode metadata value", goerr.V("key", key))
			}
			text := strconv.FormatFloat(v, 'g', -1, 64)
			if !strings.ContainsAny(text, ".eE") {
				text += ".0"
			}
			buf.WriteString(text)
		case nil, string, bool, int64:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to encode metadata value", goerr.V("key", key))
			}
			buf.Write(raw)
		default:
			return nil, goerr.Wrap(ErrUnsupportedMetadata, "value type is outside the scalar contract",
				goerr.V("key", key), goerr.V("type", typeName(v)))
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes each value explicitly: integer literals become int64,
// other numbers float64. Arrays and objects are rejected.
func (m *ExtraMetadata) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return goerr.Wrap(err, "failed to decode extra metadata")
	}

	out := make(ExtraMetadata, len(raw))
	for key, msg := range raw {
		v, err := decodeScalar(msg)
		if err != nil {
			return goerr.Wrap(err, "failed to decode extra metadata value", goerr.V("key", key))
		}
		out[key] = v
	}
	*m = out
	return nil
}

func decodeScalar(msg json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 {
		return nil, goerr.Wrap(ErrUnsupportedMetadata, "empty value")
	}

	switch trimmed[0] {
	case 'n':
		return nil, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, goerr.Wrap(err, "invalid bool")
		}
		return b, nil
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, goerr.Wrap(err, "invalid string")
		}
		return s, nil
	case '[', '{':
		return nil, goerr.Wrap(ErrUnsupportedMetadata, "composite values are not allowed")
	}

	text := string(trimmed)
	if !bytes.ContainsAny(trimmed, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, goerr.Wrap(ErrUnsupportedMetadata, "invalid number", goerr.V("value", text))
	}
	return finiteFloat(f)
}
