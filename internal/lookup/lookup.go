// Package lookup resolves values from loosely-typed JSON documents where the
// same datum may live under one of several keys. Callers pass candidate keys
// in priority order; dotted keys descend into nested objects.
package lookup

import (
	"encoding/json"
	"strconv"
	"strings"
)

// First returns the value of the first candidate key present in m with a non-nil value.
func First(m map[string]any, keys ...string) (any, bool) {
	if m == nil {
		return nil, false
	}
	for _, key := range keys {
		if value, ok := path(m, key); ok && value != nil {
			return value, true
		}
	}
	return nil, false
}

// String returns the first candidate rendered as a string. Numbers are
// formatted without a trailing ".0" so numeric ids compare equal to their
// string form.
func String(m map[string]any, keys ...string) (string, bool) {
	value, ok := First(m, keys...)
	if !ok {
		return "", false
	}
	out := AsString(value)
	return out, out != ""
}

// Float returns the first candidate that can be read as a number.
func Float(m map[string]any, keys ...string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	for _, key := range keys {
		value, ok := path(m, key)
		if !ok {
			continue
		}
		if f, ok := AsFloat(value); ok {
			return f, true
		}
	}
	return 0, false
}

// Int returns the first candidate that can be read as an integer.
func Int(m map[string]any, keys ...string) (int, bool) {
	f, ok := Float(m, keys...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Bool returns the first candidate that is a boolean or boolean-like string.
func Bool(m map[string]any, keys ...string) (bool, bool) {
	value, ok := First(m, keys...)
	if !ok {
		return false, false
	}
	switch typed := value.(type) {
	case bool:
		return typed, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		return parsed, err == nil
	case float64:
		return typed != 0, true
	}
	return false, false
}

// List returns the first candidate that is a JSON array.
func List(m map[string]any, keys ...string) ([]any, bool) {
	if m == nil {
		return nil, false
	}
	for _, key := range keys {
		value, ok := path(m, key)
		if !ok {
			continue
		}
		if list, ok := value.([]any); ok {
			return list, true
		}
	}
	return nil, false
}

// Map returns the first candidate that is a JSON object.
func Map(m map[string]any, keys ...string) (map[string]any, bool) {
	if m == nil {
		return nil, false
	}
	for _, key := range keys {
		value, ok := path(m, key)
		if !ok {
			continue
		}
		if obj, ok := value.(map[string]any); ok {
			return obj, true
		}
	}
	return nil, false
}

// Objects keeps the JSON objects of a list and drops everything else.
func Objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// AsString renders scalar JSON values as strings.
func AsString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	}
	return ""
}

// AsFloat reads numbers and numeric strings.
func AsFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	case string:
		if typed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return f, err == nil
	}
	return 0, false
}

// NonEmpty reports whether a decoded payload is a non-empty object or list.
func NonEmpty(payload any) bool {
	switch typed := payload.(type) {
	case map[string]any:
		return len(typed) > 0
	case []any:
		return len(typed) > 0
	}
	return false
}

func path(m map[string]any, key string) (any, bool) {
	if value, ok := m[key]; ok {
		return value, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}
	var current any = m
	for _, part := range strings.Split(key, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
