package core

import (
	"errors"
	"fmt"
	"time"

	"FileWatcher/lib/command"
	"FileWatcher/watcher"
)

// dispatch builds the process for e and, unless in dry run, starts and
// supervises it: waited processes end as exited or timed out, the others are
// detached and tracked until they exit.
func (w *Watcher) dispatch(e watcher.ChangeEvent) error {
	p, err := command.New(&w.active, e, w.logger, w.tag)
	if err != nil {
		return err
	}
	if w.dryRun {
		w.logger.Info(w.tag, fmt.Sprintf("Dry run, not starting `%s`.", p))
		return nil
	}
	if err := p.Start(); err != nil {
		return err
	}
	if !w.active.Wait {
		w.running.Register(p)
	}
	pe := ProcessEvent{Process: p, Task: &w.active, Event: e}
	w.logger.Info(w.tag, fmt.Sprintf("Started process %d: %s", p.Pid(), p))
	call(w.hooks.ProcessStarted, pe)

	if !w.active.Wait {
		go w.detach(pe)
		return nil
	}

	timeout := time.Duration(w.active.Timeout) * time.Second
	if err := p.Wait(timeout); errors.Is(err, command.ErrTimeout) {
		w.logger.Warn(w.tag, fmt.Sprintf("process %d timed out after %s, killing it", p.Pid(), timeout))
		call(w.hooks.ProcessTimeout, pe)
		if err := p.Kill(); err != nil {
			w.logger.Error(w.tag, fmt.Sprintf("kill process %d failed: %s", p.Pid(), err))
		}
		return nil
	} else if err != nil {
		return err
	}
	w.exit(pe)
	return nil
}

func (w *Watcher) detach(pe ProcessEvent) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(w.tag, fmt.Sprintf("panic in exit hook: %v", r))
		}
	}()
	<-pe.Process.Done()
	w.running.Unregister(pe.Process)
	w.exit(pe)
}

func (w *Watcher) exit(pe ProcessEvent) {
	p := pe.Process
	if err := p.Err(); err != nil {
		w.logger.Error(w.tag, fmt.Sprintf("process %d failed: %s", p.Pid(), err))
	}
	if code := p.ExitCode(); code != 0 {
		w.logger.Error(w.tag, fmt.Sprintf("process %d exited with code %d", p.Pid(), code))
	} else {
		w.logger.Info(w.tag, fmt.Sprintf("process %d exited with code 0", p.Pid()))
	}
	call(w.hooks.ProcessExited, pe)
}

func call(hook func(ProcessEvent), pe ProcessEvent) {
	if hook != nil {
		hook(pe)
	}
}
