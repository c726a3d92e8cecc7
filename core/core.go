package core

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"FileWatcher/config"
	"FileWatcher/lib/log"
	"FileWatcher/watcher"
)

// New validates task and returns an engine for a copy of it. Nothing is
// watched before Init.
func New(task *config.WatchTask, opts Options) (*Watcher, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger(nil, nil)
	}
	return &Watcher{
		task:   *task,
		dryRun: opts.DryRun,
		logger: logger,
		hooks:  opts.Hooks,
		tag:    "task:" + task.Name,
	}, nil
}

// Task returns the task as configured, before environment expansion.
func (w *Watcher) Task() config.WatchTask {
	return w.task
}

func (w *Watcher) DryRun() bool {
	return w.dryRun
}

// Detached is the number of started processes that were not waited on and
// are still running.
func (w *Watcher) Detached() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running == nil {
		return 0
	}
	return w.running.Len()
}

// Init registers the watch and spawns the worker. Calling it again is a no-op.
func (w *Watcher) Init() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}
	if w.initialized {
		return nil
	}
	active := w.task
	active.Path = os.ExpandEnv(active.Path)
	active.Command = os.ExpandEnv(active.Command)
	active.Arguments = os.ExpandEnv(active.Arguments)
	active.WorkingDirectory = os.ExpandEnv(active.WorkingDirectory)

	w.logger.Info(w.tag, fmt.Sprintf("Creating watcher for path %s.", active.Path))
	w.logger.Info(w.tag, fmt.Sprintf("Filter: %s.", active.Filter))
	w.logger.Info(w.tag, fmt.Sprintf("IncludeSubdirectories: %t.", active.IncludeSubdirectories))
	w.logger.Info(w.tag, fmt.Sprintf("NotifyFilter: %s.", active.NotifyFilter))
	w.logger.Info(w.tag, fmt.Sprintf("ChangeTypes: %s.", active.ChangeTypes))
	w.logger.Info(w.tag, fmt.Sprintf("Command: %s.", active.Command))
	if strings.TrimSpace(active.Arguments) != "" {
		w.logger.Info(w.tag, fmt.Sprintf("Arguments: %s.", active.Arguments))
	}
	if strings.TrimSpace(active.WorkingDirectory) != "" {
		w.logger.Info(w.tag, fmt.Sprintf("WorkingDirectory: %s.", active.WorkingDirectory))
	}
	if active.Throttle > 0 {
		w.logger.Info(w.tag, fmt.Sprintf("Throttle: %dms.", active.Throttle))
	}
	if active.Merge {
		w.logger.Info(w.tag, "Merge: true.")
	}

	queue := NewQueue[watcher.ChangeEvent]()
	source, err := watcher.New(watcher.Config{
		Path:                  active.Path,
		Filter:                active.Filter,
		IncludeSubdirectories: active.IncludeSubdirectories,
		NotifyFilter:          active.NotifyFilter,
		ChangeTypes:           active.ChangeTypes,
		OnEvent:               queue.Add,
		Logger:                w.logger,
		Tag:                   w.tag,
	})
	if err != nil {
		return fmt.Errorf("task `%s`: watch path `%s` failed: %w", active.Name, active.Path, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.active = active
	w.source = source
	w.queue = queue
	w.cancel = cancel
	w.exited = make(chan struct{})
	w.running = newRegistry()
	w.initialized = true
	go w.work(ctx)
	return nil
}

// Start initializes the engine if needed and enables event delivery. A stopped
// engine cannot be started again.
func (w *Watcher) Start() error {
	if err := w.Init(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}
	w.logger.Info(w.tag, fmt.Sprintf("Starting watcher for path %s, filter %s.", w.active.Path, w.active.Filter))
	w.source.Enable()
	return nil
}

// Stop disables delivery, cancels the worker and waits for it to exit. A
// worker blocked on a waited process returns once it exits or times out.
// Detached processes are left running.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	initialized := w.initialized
	w.mu.Unlock()
	if !initialized {
		return
	}
	w.logger.Info(w.tag, fmt.Sprintf("Stopping watcher for path %s, filter %s.", w.active.Path, w.active.Filter))
	w.source.Disable()
	w.cancel()
	<-w.exited
	for _, p := range w.running.Release() {
		w.logger.Warn(w.tag, fmt.Sprintf("process %d `%s` is still running, no longer tracked", p.Pid(), p))
	}
}

// Close stops the engine and releases the OS watch.
func (w *Watcher) Close() error {
	w.Stop()
	if w.source == nil {
		return nil
	}
	return w.source.Close()
}

func (w *Watcher) work(ctx context.Context) {
	defer close(w.exited)
	for {
		e, err := w.queue.Take(ctx)
		if err != nil {
			w.logger.Info(w.tag, "Stopping event handler.")
			return
		}
		w.logger.Debug(w.tag, fmt.Sprintf("Received event %s.", e))

		if w.active.Throttle > 0 {
			remaining := time.Duration(w.active.Throttle)*time.Millisecond - time.Since(e.Time())
			if remaining > 0 {
				timer := time.NewTimer(remaining)
				select {
				case <-ctx.Done():
					timer.Stop()
					w.logger.Info(w.tag, "Stopping event handler.")
					return
				case <-timer.C:
				}
			}
		}

		if w.active.Merge {
			for {
				next, ok := w.queue.TryTake()
				if !ok {
					break
				}
				w.logger.Info(w.tag, fmt.Sprintf("Merging %s.", w.describe(e)))
				e = next
			}
		}

		if ctx.Err() != nil {
			w.logger.Info(w.tag, "Stopping event handler.")
			return
		}
		w.logger.Info(w.tag, fmt.Sprintf("Received %s.", w.describe(e)))
		w.handle(e)
	}
}

func (w *Watcher) describe(e watcher.ChangeEvent) string {
	msg := fmt.Sprintf("%s event for path %s, filter %s: %s", e.ChangeType(), w.active.Path, w.active.Filter, e.Name())
	if re, ok := e.(*watcher.RenamedEvent); ok {
		msg += fmt.Sprintf(". Old path was %s", re.OldFullPath())
	}
	return msg
}

// handle dispatches one event. Errors and panics end here so the worker keeps
// running.
func (w *Watcher) handle(e watcher.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(w.tag, fmt.Sprintf("panic handling %s: %v\n%s", e, r, debug.Stack()))
		}
	}()
	if err := w.dispatch(e); err != nil {
		w.logger.Error(w.tag, fmt.Sprintf("error handling %s: %s", e, err))
	}
}
