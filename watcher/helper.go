package watcher

import (
	"path/filepath"

	"FileWatcher/lib/types"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// matchFilter matches a file name (not a path) against the task filter.
func matchFilter(filter string, name string) bool {
	switch filter {
	case "", "*", "*.*":
		return true
	}
	matched, err := doublestar.Match(filter, filepath.Base(name))
	return err == nil && matched
}

// notifyAllows reports whether the notify filter covers an event of this kind.
func notifyAllows(filter types.NotifyFilter, changeType types.ChangeType, isDir bool) bool {
	switch changeType {
	case types.Created, types.Deleted, types.Renamed:
		if isDir {
			return filter.HasAny(types.DirectoryName)
		}
		return filter.HasAny(types.FileName)
	default:
		return true
	}
}

// changedAllowed maps a content or metadata change to the notify filter.
func changedAllowed(filter types.NotifyFilter, op fsnotify.Op) bool {
	switch {
	case op.Has(fsnotify.Write):
		return filter.HasAny(types.LastWrite | types.Size)
	case op.Has(fsnotify.Chmod):
		return filter.HasAny(types.Attributes | types.Security)
	default:
		return false
	}
}
