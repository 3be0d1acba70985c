package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/user-segments/internal/apperror"
)

// Value is one loosely typed filter input, kept as the raw JSON the client
// sent. Clients send numbers both as JSON numbers and as strings ("25"), so
// decoding a Value never fails; coercion to the type a field needs happens
// in Compile, where a bad value can be reported with its field name.
type Value struct {
	raw json.RawMessage
}

// Raw wraps raw JSON as a Value. An empty message is an absent value.
func Raw(raw json.RawMessage) Value {
	return Value{raw: append(json.RawMessage(nil), raw...)}
}

// String returns a Value holding a JSON string.
func String(s string) Value {
	b, _ := json.Marshal(s)
	return Value{raw: b}
}

// Number returns a Value holding a JSON number.
func Number(f float64) Value {
	return Value{raw: json.RawMessage(strconv.FormatFloat(f, 'g', -1, 64))}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	v.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// kind returns the first significant byte of the raw JSON, or 0 when the
// value is absent.
func (v Value) kind() byte {
	b := bytes.TrimSpace(v.raw)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// IsNull reports whether the value is absent or JSON null.
func (v Value) IsNull() bool {
	k := v.kind()
	return k == 0 || k == 'n'
}

// Supplied reports whether the client provided a usable value: present,
// not null and not the empty string. Zero is supplied.
func (v Value) Supplied() bool {
	if v.IsNull() {
		return false
	}
	if v.kind() == '"' {
		s, err := v.decodeString()
		return err != nil || s != ""
	}
	return true
}

// Truthy applies JSON-client truthiness: null, false, 0 and "" are falsy,
// everything else (including "0" and objects) is truthy.
func (v Value) Truthy() bool {
	switch v.kind() {
	case 0, 'n', 'f':
		return false
	case '"':
		s, err := v.decodeString()
		return err != nil || s != ""
	case 't', '{', '[':
		return true
	default:
		f, err := strconv.ParseFloat(string(bytes.TrimSpace(v.raw)), 64)
		return err != nil || (f != 0 && !math.IsNaN(f))
	}
}

func (v Value) decodeString() (string, error) {
	var s string
	err := json.Unmarshal(v.raw, &s)
	return s, err
}

// AsString coerces the value to a string. Strings are taken as-is and
// numbers as their literal text; booleans, objects and arrays are rejected.
// A null value yields "".
func (v Value) AsString(field string) (string, error) {
	switch k := v.kind(); {
	case k == 0 || k == 'n':
		return "", nil
	case k == '"':
		s, err := v.decodeString()
		if err != nil {
			return "", apperror.InvalidFilterValue(field, "malformed string")
		}
		return s, nil
	case k == '-' || (k >= '0' && k <= '9'):
		return string(bytes.TrimSpace(v.raw)), nil
	default:
		return "", apperror.InvalidFilterValue(field, fmt.Sprintf("expected a string, got %s", v.raw))
	}
}

// AsNumber coerces a JSON number or a numeric string to float64.
// Non-numeric strings are rejected rather than silently read as zero.
func (v Value) AsNumber(field string) (float64, error) {
	var text string
	switch k := v.kind(); {
	case k == '"':
		s, err := v.decodeString()
		if err != nil {
			return 0, apperror.InvalidFilterValue(field, "malformed string")
		}
		text = strings.TrimSpace(s)
	case k == '-' || (k >= '0' && k <= '9'):
		text = string(bytes.TrimSpace(v.raw))
	default:
		return 0, apperror.InvalidFilterValue(field, fmt.Sprintf("expected a number, got %s", v.raw))
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, apperror.InvalidFilterValue(field, fmt.Sprintf("%q is not a number", text))
	}
	return f, nil
}

// Date layouts accepted for date filters, tried in order. Layouts without a
// zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// AsTime coerces an RFC 3339 timestamp, a YYYY-MM-DD date, or a JSON number
// of Unix milliseconds to a time.
func (v Value) AsTime(field string) (time.Time, error) {
	switch k := v.kind(); {
	case k == '"':
		s, err := v.decodeString()
		if err != nil {
			return time.Time{}, apperror.InvalidFilterValue(field, "malformed string")
		}
		s = strings.TrimSpace(s)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, apperror.InvalidFilterValue(field, fmt.Sprintf("%q is not a date", s))
	case k == '-' || (k >= '0' && k <= '9'):
		ms, err := strconv.ParseInt(string(bytes.TrimSpace(v.raw)), 10, 64)
		if err != nil {
			return time.Time{}, apperror.InvalidFilterValue(field, "timestamps must be whole Unix milliseconds")
		}
		return time.UnixMilli(ms).UTC(), nil
	default:
		return time.Time{}, apperror.InvalidFilterValue(field, fmt.Sprintf("expected a date, got %s", v.raw))
	}
}
