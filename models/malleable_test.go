package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMalleableData_KeepsOrder(t *testing.T) {
	var d MalleableData
	require.NoError(t, json.Unmarshal([]byte(`{"zeta":"z","alpha":1.50,"flag":true,"tags":["a","b"],"none":null}`), &d))

	assert.Equal(t, []string{"zeta", "alpha", "flag", "tags", "none"}, d.Keys())

	v, ok := d.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, ValueKindNumber, v.Kind)
	assert.Equal(t, "1.5", v.Number.String())

	v, _ = d.Get("flag")
	assert.Equal(t, BoolValue(true), v)

	v, _ = d.Get("tags")
	assert.Equal(t, []string{"a", "b"}, v.List)

	v, _ = d.Get("none")
	assert.True(t, v.IsEmpty())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"z","alpha":1.5,"flag":true,"tags":["a","b"],"none":null}`, string(out))
}

func TestMalleableData_Set(t *testing.T) {
	d := NewMalleableData(
		MalleableEntry{Key: "a", Value: TextValue("1")},
		MalleableEntry{Key: "b", Value: TextValue("2")},
	)
	d.Set("a", TextValue("changed"))
	d.Set("c", ListValue())

	assert.Equal(t, []string{"a", "b", "c"}, d.Keys())
	v, _ := d.Get("a")
	assert.Equal(t, "changed", v.Text)
	assert.Equal(t, 3, d.Len())

	clone := d.Clone()
	clone.Set("a", TextValue("other"))
	v, _ = d.Get("a")
	assert.Equal(t, "changed", v.Text)
}

func TestMalleableData_Null(t *testing.T) {
	var d MalleableData
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsEmpty())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))
}

func TestMalleableData_Rejects(t *testing.T) {
	var d MalleableData
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{"a":{"nested":true}}`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{"a":[{"x":1}]}`), &d))
}

func TestValue_Date(t *testing.T) {
	day := DateValue(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	out, err := json.Marshal(day)
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-01"`, string(out))
	assert.False(t, day.IsEmpty())
	assert.True(t, DateValue(time.Time{}).IsEmpty())
	assert.True(t, TextValue("   ").IsEmpty())
	assert.False(t, NumberValue(dec("0")).IsEmpty())
}
