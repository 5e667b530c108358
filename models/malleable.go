package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ValueKind string

const (
	ValueKindNull   ValueKind = "null"
	ValueKindText   ValueKind = "text"
	ValueKindNumber ValueKind = "number"
	ValueKindBool   ValueKind = "bool"
	ValueKindDate   ValueKind = "date"
	ValueKindList   ValueKind = "list"
)

// Value is one malleable field value. Only the member matching Kind is set.
type Value struct {
	Kind   ValueKind
	Text   string
	Number decimal.Decimal
	Bool   bool
	Date   time.Time
	List   []string
}

func TextValue(s string) Value            { return Value{Kind: ValueKindText, Text: s} }
func NumberValue(n decimal.Decimal) Value { return Value{Kind: ValueKindNumber, Number: n} }
func BoolValue(b bool) Value              { return Value{Kind: ValueKindBool, Bool: b} }
func DateValue(t time.Time) Value         { return Value{Kind: ValueKindDate, Date: t} }
func ListValue(items ...string) Value     { return Value{Kind: ValueKindList, List: items} }
func NullValue() Value                    { return Value{Kind: ValueKindNull} }

// IsEmpty reports whether the value counts as absent for required checks.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case ValueKindText:
		return strings.TrimSpace(v.Text) == ""
	case ValueKindList:
		return len(v.List) == 0
	case ValueKindNumber, ValueKindBool:
		return false
	case ValueKindDate:
		return v.Date.IsZero()
	}
	return true
}

// Raw returns the value as a plain Go value, suitable for coercion helpers.
func (v Value) Raw() any {
	switch v.Kind {
	case ValueKindText:
		return v.Text
	case ValueKindNumber:
		return v.Number.String()
	case ValueKindBool:
		return v.Bool
	case ValueKindDate:
		return v.Date
	case ValueKindList:
		return v.List
	}
	return nil
}

func (v Value) String() string {
	switch v.Kind {
	case ValueKindText:
		return v.Text
	case ValueKindNumber:
		return v.Number.String()
	case ValueKindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValueKindDate:
		return formatDate(v.Date)
	case ValueKindList:
		return strings.Join(v.List, ", ")
	}
	return ""
}

func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueKindText:
		return json.Marshal(v.Text)
	case ValueKindNumber:
		return []byte(v.Number.String()), nil
	case ValueKindBool:
		return json.Marshal(v.Bool)
	case ValueKindDate:
		return json.Marshal(formatDate(v.Date))
	case ValueKindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	parsed, err := parseValue(b)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func parseValue(raw []byte) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return NullValue(), nil
	}

	switch raw[0] {
	case 'n':
		return NullValue(), nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		return TextValue(s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case '[':
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var items []any
		if err := dec.Decode(&items); err != nil {
			return Value{}, err
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			switch it := item.(type) {
			case string:
				list = append(list, it)
			case json.Number:
				list = append(list, it.String())
			case bool:
				list = append(list, fmt.Sprintf("%t", it))
			default:
				return Value{}, fmt.Errorf("unsupported list element %v", item)
			}
		}
		return ListValue(list...), nil
	case '{':
		return Value{}, fmt.Errorf("nested objects are not supported")
	}

	n, err := decimal.NewFromString(string(raw))
	if err != nil {
		return Value{}, fmt.Errorf("invalid value %s: %w", raw, err)
	}
	return NumberValue(n), nil
}

type MalleableEntry struct {
	Key   string
	Value Value
}

// MalleableData is an ordered mapping of field key to value. The zero value
// is an empty mapping.
type MalleableData struct {
	entries []MalleableEntry
}

func NewMalleableData(entries ...MalleableEntry) MalleableData {
	var d MalleableData
	for _, e := range entries {
		d.Set(e.Key, e.Value)
	}
	return d
}

func (d MalleableData) Get(key string) (Value, bool) {
	for _, e := range d.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Set replaces the value for key in place, or appends it.
func (d *MalleableData) Set(key string, v Value) {
	for i := range d.entries {
		if d.entries[i].Key == key {
			d.entries[i].Value = v
			return
		}
	}
	d.entries = append(d.entries, MalleableEntry{Key: key, Value: v})
}

func (d MalleableData) Keys() []string {
	keys := make([]string, len(d.entries))
	for i, e := range d.entries {
		keys[i] = e.Key
	}
	return keys
}

func (d MalleableData) Entries() []MalleableEntry {
	return append([]MalleableEntry(nil), d.entries...)
}

func (d MalleableData) Len() int      { return len(d.entries) }
func (d MalleableData) IsEmpty() bool { return len(d.entries) == 0 }

func (d MalleableData) Clone() MalleableData {
	out := MalleableData{entries: make([]MalleableEntry, len(d.entries))}
	for i, e := range d.entries {
		if e.Value.List != nil {
			e.Value.List = append([]string(nil), e.Value.List...)
		}
		out.entries[i] = e
	}
	return out
}

func (d MalleableData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keeping the key order of the document.
func (d *MalleableData) UnmarshalJSON(b []byte) error {
	*d = MalleableData{}

	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to decode malleable data: %w", err)
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("malleable data must be an object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to decode malleable data: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("malleable data key must be a string")
		}

		var raw json.RawMessage
		if err = dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to decode value of %q: %w", key, err)
		}
		v, err := parseValue(raw)
		if err != nil {
			return fmt.Errorf("invalid value of %q: %w", key, err)
		}
		d.Set(key, v)
	}

	if _, err = dec.Token(); err != nil {
		return fmt.Errorf("failed to decode malleable data: %w", err)
	}
	return nil
}
