package watcher

import (
	"fmt"
	"io/fs"
	"time"

	"FileWatcher/lib/log"
	"FileWatcher/lib/types"
)

// ChangeEvent is either a *FileEvent or a *RenamedEvent. Only renames carry
// the previous path.
type ChangeEvent interface {
	ChangeType() types.ChangeType
	// FullPath is the path of the changed entry.
	FullPath() string
	// Name is FullPath relative to the watched directory.
	Name() string
	// Time is when the event arrived.
	Time() time.Time
	String() string

	changeEvent()
}

type FileEvent struct {
	changeType types.ChangeType
	fullPath   string
	name       string
	time       time.Time
}

type RenamedEvent struct {
	FileEvent
	oldFullPath string
	oldName     string
}

// NewFileEvent builds a Created, Changed or Deleted event.
func NewFileEvent(changeType types.ChangeType, fullPath, name string, at time.Time) *FileEvent {
	return &FileEvent{
		changeType: changeType,
		fullPath:   fullPath,
		name:       name,
		time:       at,
	}
}

func NewRenamedEvent(fullPath, name, oldFullPath, oldName string, at time.Time) *RenamedEvent {
	return &RenamedEvent{
		FileEvent:   FileEvent{changeType: types.Renamed, fullPath: fullPath, name: name, time: at},
		oldFullPath: oldFullPath,
		oldName:     oldName,
	}
}

func (e *FileEvent) ChangeType() types.ChangeType { return e.changeType }
func (e *FileEvent) FullPath() string             { return e.fullPath }
func (e *FileEvent) Name() string                 { return e.name }
func (e *FileEvent) Time() time.Time              { return e.time }
func (e *FileEvent) changeEvent()                 {}

func (e *FileEvent) String() string {
	return fmt.Sprintf("%s `%s`", e.changeType, e.name)
}

func (e *RenamedEvent) OldFullPath() string { return e.oldFullPath }
func (e *RenamedEvent) OldName() string     { return e.oldName }

func (e *RenamedEvent) String() string {
	return fmt.Sprintf("%s `%s`, old path was `%s`", e.changeType, e.name, e.oldFullPath)
}

// Config describes one watched directory.
type Config struct {
	Path                  string
	Filter                string
	IncludeSubdirectories bool
	NotifyFilter          types.NotifyFilter
	ChangeTypes           types.ChangeType
	// OnEvent is called from the watcher goroutine and must not block.
	OnEvent func(ChangeEvent)
	// OnError is called for errors reported by the OS, after logging them.
	OnError func(error)
	Logger  *log.Logger
	Tag     string
}

type pendingRename struct {
	fullPath string
	name     string
	// info was recorded for fullPath before it moved, nil when unknown.
	info fs.FileInfo
	time time.Time
}
