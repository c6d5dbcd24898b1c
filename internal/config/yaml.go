// Package config reads flag values from YAML files for ff.
package config

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseYAML is an ff config file parser. Nested mappings are flattened by
// joining keys with "-", so
//
//	ai:
//	  model: gpt-4o-mini
//
// sets --ai-model. Sequences are joined with commas for list flags such as
// --ocr-lang. Null values are skipped.
func ParseYAML(r io.Reader, set func(name, value string) error) error {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decoding yaml config: %w", err)
	}
	return walk("", doc, set)
}

func walk(prefix string, m map[string]any, set func(name, value string) error) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + "-" + k
		}
		if err := setValue(name, m[k], set); err != nil {
			return err
		}
	}
	return nil
}

func setValue(name string, v any, set func(name, value string) error) error {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return walk(name, val, set)
	}

	s, err := scalar(v)
	if err != nil {
		return fmt.Errorf("config key %s: %w", name, err)
	}
	if err := set(name, s); err != nil {
		return fmt.Errorf("config key %s: %w", name, err)
	}
	return nil
}

func scalar(v any) (string, error) {
	switch val := v.(type) {
	case []any:
		parts := make([]string, 0, len(val))
		for _, elem := range val {
			s, err := scalar(elem)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}
