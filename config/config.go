package config

import (
	"fmt"
	"slices"
	"strings"

	"FileWatcher/lib/constant"
	"FileWatcher/lib/types"

	"github.com/bmatcuk/doublestar/v4"
)

// Config is the content of one config file.
type Config struct {
	AutoReload bool
	DryRun     bool
	Tasks      []WatchTask
}

// WatchTask binds a watched directory to a command.
type WatchTask struct {
	Name                  string
	Path                  string
	Filter                string
	IncludeSubdirectories bool
	NotifyFilter          types.NotifyFilter
	ChangeTypes           types.ChangeType
	Command               string
	Arguments             string
	WorkingDirectory      string
	Throttle              int // milliseconds
	Merge                 bool
	Wait                  bool
	Timeout               int // seconds, <= 0 waits indefinitely
}

func Default() *Config {
	return &Config{
		AutoReload: true,
		Tasks:      make([]WatchTask, 0),
	}
}

func DefaultTask() WatchTask {
	return WatchTask{
		Filter:       constant.DefaultFilter,
		NotifyFilter: constant.DefaultNotifyFilter,
		ChangeTypes:  constant.DefaultChangeTypes,
		Wait:         true,
		Timeout:      constant.DefaultTimeout,
	}
}

// Equal compares the flags and every task in order.
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.AutoReload == other.AutoReload &&
		c.DryRun == other.DryRun &&
		slices.Equal(c.Tasks, other.Tasks)
}

func (t *WatchTask) Equal(other *WatchTask) bool {
	if t == nil || other == nil {
		return t == other
	}
	return *t == *other
}

// Validate checks the fields a task cannot run without.
func (t *WatchTask) Validate() error {
	if t == nil {
		return fmt.Errorf("task is nil")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name is empty")
	}
	if strings.TrimSpace(t.Command) == "" {
		return fmt.Errorf("task `%s`: command is empty", t.Name)
	}
	if strings.TrimSpace(t.Path) == "" {
		return fmt.Errorf("task `%s`: path is empty", t.Name)
	}
	if t.Throttle < 0 {
		return fmt.Errorf("task `%s`: throttle must not be negative", t.Name)
	}
	if t.Filter != "" && !doublestar.ValidatePattern(t.Filter) {
		return fmt.Errorf("task `%s`: invalid filter `%s`", t.Name, t.Filter)
	}
	return nil
}

// DuplicateNames returns task names used more than once.
func (c *Config) DuplicateNames() []string {
	seen := make(map[string]int)
	duplicates := make([]string, 0)
	for _, t := range c.Tasks {
		seen[t.Name]++
		if seen[t.Name] == 2 {
			duplicates = append(duplicates, t.Name)
		}
	}
	return duplicates
}
