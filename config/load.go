package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"FileWatcher/lib/types"

	"gopkg.in/yaml.v3"
)

// ErrEmpty is returned for a config file without content. Editors truncate
// files while saving, so callers keep their previous config on ErrEmpty.
var ErrEmpty = errors.New("config file is empty")

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type rawConfig struct {
	AutoReload *bool     `json:"autoReload" yaml:"autoReload"`
	DryRun     bool      `json:"dryRun" yaml:"dryRun"`
	Tasks      []rawTask `json:"tasks" yaml:"tasks"`
}

type rawTask struct {
	Name                  string              `json:"name" yaml:"name"`
	Path                  string              `json:"path" yaml:"path"`
	Filter                *string             `json:"filter" yaml:"filter"`
	IncludeSubdirectories bool                `json:"includeSubdirectories" yaml:"includeSubdirectories"`
	NotifyFilter          *types.NotifyFilter `json:"notifyFilter" yaml:"notifyFilter"`
	ChangeTypes           *types.ChangeType   `json:"changeTypes" yaml:"changeTypes"`
	Command               string              `json:"command" yaml:"command"`
	Arguments             string              `json:"arguments" yaml:"arguments"`
	WorkingDirectory      string              `json:"workingDirectory" yaml:"workingDirectory"`
	Throttle              int                 `json:"throttle" yaml:"throttle"`
	Merge                 bool                `json:"merge" yaml:"merge"`
	Wait                  *bool               `json:"wait" yaml:"wait"`
	Timeout               *int                `json:"timeout" yaml:"timeout"`
}

func FormatOf(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse reads and decodes a config file.
func Parse(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	c, err := Decode(content, FormatOf(filename))
	if err != nil {
		return nil, fmt.Errorf("parse config file `%s` failed: %w", filename, err)
	}
	return c, nil
}

func Decode(content []byte, format Format) (*Config, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmpty
	}
	var raw rawConfig
	switch format {
	case FormatYAML:
		decode := yaml.NewDecoder(bytes.NewReader(content))
		decode.KnownFields(true)
		if err := decode.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrEmpty
			}
			return nil, err
		}
	default:
		decode := json.NewDecoder(bytes.NewReader(content))
		decode.DisallowUnknownFields()
		if err := decode.Decode(&raw); err != nil {
			return nil, err
		}
	}
	return raw.build(), nil
}

func (r *rawConfig) build() *Config {
	c := Default()
	if r.AutoReload != nil {
		c.AutoReload = *r.AutoReload
	}
	c.DryRun = r.DryRun
	for _, rt := range r.Tasks {
		c.Tasks = append(c.Tasks, rt.build())
	}
	return c
}

func (r *rawTask) build() WatchTask {
	t := DefaultTask()
	t.Name = r.Name
	t.Path = r.Path
	if r.Filter != nil && *r.Filter != "" {
		t.Filter = *r.Filter
	}
	t.IncludeSubdirectories = r.IncludeSubdirectories
	if r.NotifyFilter != nil {
		t.NotifyFilter = *r.NotifyFilter
	}
	if r.ChangeTypes != nil {
		t.ChangeTypes = *r.ChangeTypes
	}
	t.Command = r.Command
	t.Arguments = r.Arguments
	t.WorkingDirectory = r.WorkingDirectory
	t.Throttle = r.Throttle
	t.Merge = r.Merge
	if r.Wait != nil {
		t.Wait = *r.Wait
	}
	if r.Timeout != nil {
		t.Timeout = *r.Timeout
	}
	return t
}
