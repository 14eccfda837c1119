package mcp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// UnknownField represents an unknown field that was passed but not recognized
type UnknownField struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// normalizeFields decodes a JSON object, renames alias keys to their
// canonical names and reports keys it does not know. fields maps every
// accepted key (canonical or alias) to its canonical name. A canonical key
// wins over an alias when both are present.
func normalizeFields(data []byte, fields map[string]string) (map[string]json.RawMessage, []UnknownField, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	normalized := make(map[string]json.RawMessage, len(raw))
	var unknown []UnknownField
	for _, key := range keys {
		canonical, ok := fields[key]
		if !ok {
			unknown = append(unknown, decodeUnknownField(key, raw[key]))
			continue
		}
		if _, set := normalized[canonical]; set && key != canonical {
			continue
		}
		normalized[canonical] = raw[key]
	}
	return normalized, unknown, nil
}

// decodeNormalized runs normalizeFields and decodes the result into dst.
func decodeNormalized(data []byte, fields map[string]string, dst any) ([]UnknownField, error) {
	normalized, unknown, err := normalizeFields(data, fields)
	if err != nil {
		return nil, err
	}
	buf, err := json.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(buf, dst); err != nil {
		return nil, err
	}
	return unknown, nil
}

func decodeUnknownField(name string, data json.RawMessage) UnknownField {
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		value = string(data)
	}
	return UnknownField{Name: name, Value: value}
}

// unknownFieldWarnings renders unknown fields for the response.
func unknownFieldWarnings(prefix string, fields []UnknownField) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		name := f.Name
		if prefix != "" {
			name = prefix + "." + name
		}
		out = append(out, fmt.Sprintf("ignored unknown parameter %q", name))
	}
	return out
}

// fieldSet builds a normalizeFields map from canonical names and
// alias=canonical pairs.
func fieldSet(canonical []string, aliases ...string) map[string]string {
	m := make(map[string]string, len(canonical)+len(aliases))
	for _, c := range canonical {
		m[c] = c
	}
	for _, a := range aliases {
		alias, target, _ := strings.Cut(a, "=")
		m[alias] = target
	}
	return m
}

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or an array of strings")
	}
	*s = many
	return nil
}
