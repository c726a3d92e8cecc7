package types

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// NotifyFilter selects the attributes whose change is reported.
type NotifyFilter uint16

const (
	FileName      NotifyFilter = 1
	DirectoryName NotifyFilter = 2
	Attributes    NotifyFilter = 4
	Size          NotifyFilter = 8
	LastWrite     NotifyFilter = 16
	LastAccess    NotifyFilter = 32
	CreationTime  NotifyFilter = 64
	Security      NotifyFilter = 256

	DefaultNotifyFilter = LastWrite | FileName | DirectoryName
)

var notifyFilterNames = []flagName[NotifyFilter]{
	{"FileName", FileName},
	{"DirectoryName", DirectoryName},
	{"Attributes", Attributes},
	{"Size", Size},
	{"LastWrite", LastWrite},
	{"LastAccess", LastAccess},
	{"CreationTime", CreationTime},
	{"Security", Security},
}

// HasAny reports whether at least one of flags is set.
func (n NotifyFilter) HasAny(flags NotifyFilter) bool {
	return n&flags != 0
}

func (n NotifyFilter) String() string {
	return formatFlags(n, notifyFilterNames, 0, "")
}

func (n NotifyFilter) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

func (n *NotifyFilter) UnmarshalJSON(bytes []byte) error {
	value, err := unmarshalJSONFlags(bytes, notifyFilterNames, 0, "")
	if err != nil {
		return fmt.Errorf("parse notify filter: %w", err)
	}
	*n = value
	return nil
}

func (n *NotifyFilter) UnmarshalYAML(node *yaml.Node) error {
	value, err := unmarshalYAMLFlags(node, notifyFilterNames, 0, "")
	if err != nil {
		return fmt.Errorf("parse notify filter: %w", err)
	}
	*n = value
	return nil
}
