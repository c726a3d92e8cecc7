package command

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"FileWatcher/config"
	"FileWatcher/lib/constant"
	"FileWatcher/lib/log"
	"FileWatcher/watcher"

	"github.com/google/shlex"
)

var ErrTimeout = errors.New("process timed out")

// waitDelay bounds how long Wait blocks on output pipes still held open by
// children of a process that has exited or been killed.
const waitDelay = 2 * time.Second

// Process is a command built for one change event. It is only started
// outside of dry run.
type Process struct {
	Name string
	Args []string
	Dir  string
	// Env holds the FileWatcher_* variables added to the inherited environment.
	Env []string

	cmd     *exec.Cmd
	stdout  *lineWriter
	stderr  *lineWriter
	started atomic.Bool
	done    chan struct{}
	err     error
}

// New builds the invocation of task for e. Process output is logged line by
// line with the given tag, stdout at info and stderr at error level.
func New(task *config.WatchTask, e watcher.ChangeEvent, logger *log.Logger, tag string) (*Process, error) {
	if task == nil {
		return nil, fmt.Errorf("task is nil")
	}
	if e == nil {
		return nil, fmt.Errorf("event is nil")
	}
	values := placeholders(e)
	args, err := substitute(task.Arguments, values)
	if err != nil {
		return nil, fmt.Errorf("task `%s`: parse arguments fail: %w", task.Name, err)
	}
	p := &Process{
		Name: task.Command,
		Args: args,
		Dir:  task.WorkingDirectory,
		Env:  environment(e),
		done: make(chan struct{}),
	}
	p.stdout = newLineWriter(func(line string) { logger.Info(tag, "> "+line) })
	p.stderr = newLineWriter(func(line string) { logger.Error(tag, "> "+line) })

	cmd := exec.Command(p.Name, p.Args...)
	if p.Dir != "" {
		cmd.Dir = p.Dir
	}
	cmd.Env = append(os.Environ(), p.Env...)
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)
	p.cmd = cmd
	return p, nil
}

func placeholders(e watcher.ChangeEvent) []string {
	oldPath, oldName := "", ""
	if re, ok := e.(*watcher.RenamedEvent); ok {
		oldPath, oldName = re.OldFullPath(), re.OldName()
	}
	return []string{
		constant.PlaceholderFullPath, e.FullPath(),
		constant.PlaceholderName, e.Name(),
		constant.PlaceholderChangeType, e.ChangeType().String(),
		constant.PlaceholderOldPath, oldPath,
		constant.PlaceholderOldName, oldName,
	}
}

// quoteMark follows every quote character of the argument template before
// it is split, so a split argument still shows whether it was quoted.
const quoteMark = "\x02"

var markQuotes = strings.NewReplacer(`"`, `"`+quoteMark, `'`, `'`+quoteMark)

// substitute splits the argument template like a shell would and replaces
// placeholders inside every argument, so substituted paths containing spaces
// stay one argument. An unquoted argument that becomes empty is dropped, a
// quoted one is passed as an empty argument.
func substitute(template string, values []string) ([]string, error) {
	if strings.TrimSpace(template) == "" {
		return nil, nil
	}
	template = strings.ReplaceAll(template, quoteMark, "")
	fields, err := shlex.Split(markQuotes.Replace(template))
	if err != nil {
		return nil, err
	}
	replacer := strings.NewReplacer(values...)
	args := make([]string, 0, len(fields))
	for _, field := range fields {
		quoted := strings.Contains(field, quoteMark)
		arg := replacer.Replace(strings.ReplaceAll(field, quoteMark, ""))
		if arg == "" && !quoted {
			continue
		}
		args = append(args, arg)
	}
	return args, nil
}

func environment(e watcher.ChangeEvent) []string {
	env := []string{
		constant.EnvFullPath + "=" + e.FullPath(),
		constant.EnvName + "=" + e.Name(),
		constant.EnvChangeType + "=" + e.ChangeType().String(),
	}
	if re, ok := e.(*watcher.RenamedEvent); ok {
		env = append(env,
			constant.EnvOldPath+"="+re.OldFullPath(),
			constant.EnvOldName+"="+re.OldName(),
		)
	}
	return env
}

func (p *Process) String() string {
	if len(p.Args) == 0 {
		return p.Name
	}
	return p.Name + " " + strings.Join(p.Args, " ")
}

// Start starts the OS process. Completion is observed through Done, Wait
// or ExitCode.
func (p *Process) Start() error {
	if !p.started.CompareAndSwap(false, true) {
		return fmt.Errorf("process `%s` already started", p.Name)
	}
	if err := p.cmd.Start(); err != nil {
		p.err = err
		close(p.done)
		return fmt.Errorf("start `%s` failed: %w", p.String(), err)
	}
	go func() {
		p.err = p.cmd.Wait()
		p.stdout.Flush()
		p.stderr.Flush()
		close(p.done)
	}()
	return nil
}

func (p *Process) Started() bool {
	return p.started.Load()
}

// Done is closed once the process has exited and its output is logged.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits. A timeout <= 0 waits indefinitely;
// otherwise ErrTimeout is returned when it expires first. Wait does not kill.
func (p *Process) Wait(timeout time.Duration) error {
	if !p.Started() {
		return fmt.Errorf("process `%s` not started", p.Name)
	}
	if timeout <= 0 {
		<-p.done
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
		return ErrTimeout
	}
}

// Kill forcibly stops the process and its process group, then waits until
// its resources are released.
func (p *Process) Kill() error {
	if !p.Started() || p.cmd.Process == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	default:
	}
	err := killProcess(p.cmd)
	if errors.Is(err, os.ErrProcessDone) {
		err = nil
	}
	<-p.done
	return err
}

func (p *Process) Pid() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// ExitCode is -1 until the process has exited, or when it was killed by a
// signal.
func (p *Process) ExitCode() int {
	select {
	case <-p.done:
	default:
		return -1
	}
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Err is the error returned by waiting on the process, if any, other than a
// non-zero exit status.
func (p *Process) Err() error {
	select {
	case <-p.done:
	default:
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(p.err, &exitErr) {
		return nil
	}
	return p.err
}
