package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type flagName[T ~uint16] struct {
	name  string
	value T
}

func formatFlags[T ~uint16](v T, names []flagName[T], all T, allName string) string {
	if v == 0 {
		return "None"
	}
	if all != 0 && v == all {
		return allName
	}
	parts := make([]string, 0, len(names))
	rest := v
	for _, n := range names {
		if v&n.value == n.value {
			parts = append(parts, n.name)
			rest &^= n.value
		}
	}
	if rest != 0 {
		parts = append(parts, strconv.Itoa(int(rest)))
	}
	return strings.Join(parts, ", ")
}

func parseFlags[T ~uint16](s string, names []flagName[T], all T, allName string) (T, error) {
	var v T
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return T(n), nil
	}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		flag, err := lookupFlag(part, names, all, allName)
		if err != nil {
			return 0, err
		}
		v |= flag
	}
	return v, nil
}

func parseFlagList[T ~uint16](list []string, names []flagName[T], all T, allName string) (T, error) {
	var v T
	for _, s := range list {
		flag, err := lookupFlag(strings.TrimSpace(s), names, all, allName)
		if err != nil {
			return 0, err
		}
		v |= flag
	}
	return v, nil
}

func lookupFlag[T ~uint16](s string, names []flagName[T], all T, allName string) (T, error) {
	if strings.EqualFold(s, "None") {
		return 0, nil
	}
	if all != 0 && strings.EqualFold(s, allName) {
		return all, nil
	}
	for _, n := range names {
		if strings.EqualFold(s, n.name) {
			return n.value, nil
		}
	}
	return 0, fmt.Errorf("unknown value `%s`", s)
}

// unmarshalJSONFlags accepts a number, a comma separated string or a list of names.
func unmarshalJSONFlags[T ~uint16](data []byte, names []flagName[T], all T, allName string) (T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return 0, fmt.Errorf("empty value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		return parseFlags(s, names, all, allName)
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return 0, err
		}
		return parseFlagList(list, names, all, allName)
	default:
		var n uint16
		if err := json.Unmarshal(data, &n); err != nil {
			return 0, err
		}
		return T(n), nil
	}
}

func unmarshalYAMLFlags[T ~uint16](node *yaml.Node, names []flagName[T], all T, allName string) (T, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return parseFlags(node.Value, names, all, allName)
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return 0, err
		}
		return parseFlagList(list, names, all, allName)
	default:
		return 0, fmt.Errorf("line %d: expected a string or a list", node.Line)
	}
}
