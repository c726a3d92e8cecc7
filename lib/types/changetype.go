package types

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ChangeType is a set of file system change kinds.
type ChangeType uint16

const (
	Created ChangeType = 1 << iota
	Deleted
	Changed
	Renamed

	AllChanges = Created | Deleted | Changed | Renamed
)

var changeTypeNames = []flagName[ChangeType]{
	{"Created", Created},
	{"Deleted", Deleted},
	{"Changed", Changed},
	{"Renamed", Renamed},
}

func (c ChangeType) Has(flag ChangeType) bool {
	return c&flag == flag
}

func (c ChangeType) String() string {
	return formatFlags(c, changeTypeNames, AllChanges, "All")
}

func ParseChangeType(s string) (ChangeType, error) {
	c, err := parseFlags(s, changeTypeNames, AllChanges, "All")
	if err != nil {
		return 0, fmt.Errorf("parse change type: %w", err)
	}
	return c, nil
}

func (c ChangeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ChangeType) UnmarshalJSON(bytes []byte) error {
	value, err := unmarshalJSONFlags(bytes, changeTypeNames, AllChanges, "All")
	if err != nil {
		return fmt.Errorf("parse change types: %w", err)
	}
	*c = value
	return nil
}

func (c *ChangeType) UnmarshalYAML(node *yaml.Node) error {
	value, err := unmarshalYAMLFlags(node, changeTypeNames, AllChanges, "All")
	if err != nil {
		return fmt.Errorf("parse change types: %w", err)
	}
	*c = value
	return nil
}
