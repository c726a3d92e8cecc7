package core

import (
	"context"
	"errors"
	"sync"

	"FileWatcher/config"
	"FileWatcher/lib/command"
	"FileWatcher/lib/log"
	"FileWatcher/watcher"
)

var ErrStopped = errors.New("watcher stopped")

// ProcessEvent is passed to the lifecycle hooks. Task must not be modified.
type ProcessEvent struct {
	Process *command.Process
	Task    *config.WatchTask
	Event   watcher.ChangeEvent
}

// Hooks are called from the task's worker, or for detached processes from
// the goroutine waiting on the process. None fire in dry run.
type Hooks struct {
	ProcessStarted func(ProcessEvent)
	ProcessExited  func(ProcessEvent)
	ProcessTimeout func(ProcessEvent)
}

type Options struct {
	DryRun bool
	Logger *log.Logger
	Hooks  Hooks
}

// Watcher is the engine of one watch task.
type Watcher struct {
	task   config.WatchTask
	dryRun bool
	logger *log.Logger
	hooks  Hooks
	tag    string
	//
	mu          sync.Mutex
	initialized bool
	stopped     bool
	// set by Init
	active  config.WatchTask
	source  *watcher.Watcher
	queue   *Queue[watcher.ChangeEvent]
	cancel  context.CancelFunc
	exited  chan struct{}
	running *registry
}
