package internal

import (
	"encoding/json"
	"strconv"
	"strings"
)

// MissingFieldError marks a record that lacks a field the transformer reads
// unconditionally. It fails the whole tender and is handled at the stream
// adapter level.
type MissingFieldError struct {
	Path string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Path
}

// Raw is one semi-structured record as decoded from JSON. Required reads
// return a MissingFieldError; optional reads return zero values.
type Raw map[string]any

func (r Raw) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// String returns the value as a trimmed string, or "" when absent or not
// a string.
func (r Raw) String(key string) string {
	s, _ := r[key].(string)
	return strings.TrimSpace(s)
}

func (r Raw) RequireString(key string) (string, error) {
	v, ok := r[key]
	if !ok {
		return "", &MissingFieldError{Path: key}
	}
	s, _ := v.(string)
	return strings.TrimSpace(s), nil
}

func (r Raw) RequireMap(key string) (Raw, error) {
	v, ok := r[key]
	if !ok {
		return nil, &MissingFieldError{Path: key}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &MissingFieldError{Path: key}
	}
	return Raw(m), nil
}

func (r Raw) RequireList(key string) ([]Raw, error) {
	v, ok := r[key]
	if !ok {
		return nil, &MissingFieldError{Path: key}
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, &MissingFieldError{Path: key}
	}
	out := make([]Raw, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Raw(m))
	}
	return out, nil
}

// List returns a list field, or nil when absent or of the wrong shape.
func (r Raw) List(key string) []Raw {
	out, err := r.RequireList(key)
	if err != nil {
		return nil
	}
	return out
}

// RequireNumber reads a numeric field and renders it as its shortest exact
// decimal form.
func (r Raw) RequireNumber(key string) (string, error) {
	v, ok := r[key]
	if !ok {
		return "", &MissingFieldError{Path: key}
	}
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case json.Number:
		return t.String(), nil
	case string:
		return strings.TrimSpace(t), nil
	default:
		return "", &MissingFieldError{Path: key}
	}
}
