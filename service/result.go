package service

import (
	"errors"
	"fmt"
	"sync"
)

// ConfigError is a config file that could not be read or parsed.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config `%s`: %s", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// WatchError is a task that could not be created or started.
type WatchError struct {
	Path string
	Task string
	Err  error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("config `%s`, task `%s`: %s", e.Path, e.Task, e.Err)
}

func (e *WatchError) Unwrap() error {
	return e.Err
}

// Result collects every error recorded while the service runs. Any recorded
// error makes the run a failure.
type Result struct {
	mu     sync.Mutex
	errors []error
}

func (r *Result) add(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *Result) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors) > 0
}

func (r *Result) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

func (r *Result) Err() error {
	return errors.Join(r.Errors()...)
}
