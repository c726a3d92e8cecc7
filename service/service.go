package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"FileWatcher/config"
	"FileWatcher/core"
	"FileWatcher/lib/log"
	"FileWatcher/lib/types"
	"FileWatcher/watcher"

	"golang.org/x/sync/errgroup"
)

// settleDelay lets an editor finish writing a config file before it is read.
const settleDelay = 100 * time.Millisecond

const tag = "service"

type Options struct {
	ConfigFiles []string
	// DryRun and AutoReload are OR-combined with the value of every config.
	DryRun     bool
	AutoReload bool
	Logger     *log.Logger
	Hooks      core.Hooks
}

// Service runs the tasks of every config file and rebuilds them when a file
// changes.
type Service struct {
	options Options
	logger  *log.Logger
	result  *Result

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	bindings []*binding

	mu      sync.Mutex
	started bool
	stopped bool
}

// binding is one config file with the engines built from it.
type binding struct {
	path string

	mu      sync.Mutex
	config  *config.Config
	engines []*core.Watcher

	source *watcher.Watcher
	reload chan struct{}
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewLogger(nil, nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		options: opts,
		logger:  logger,
		result:  &Result{},
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Service) Result() *Result {
	return s.result
}

// Start loads every config file, starts its tasks and, when auto reload is
// on, watches the file. Failures are recorded in Result; only a missing
// config file list is returned.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("service already started")
	}
	if len(s.options.ConfigFiles) == 0 {
		return fmt.Errorf("no config file given")
	}
	s.started = true
	for _, file := range s.options.ConfigFiles {
		path, err := filepath.Abs(file)
		if err != nil {
			s.fail(&ConfigError{Path: file, Err: err})
			continue
		}
		b := &binding{path: path, reload: make(chan struct{}, 1)}
		s.bindings = append(s.bindings, b)
		s.reconcile(b)
		if s.options.AutoReload || b.autoReload() {
			s.watch(b)
		}
	}
	return nil
}

// Stop stops watching config files and stops every engine.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	var g errgroup.Group
	for _, b := range s.snapshot() {
		b := b
		g.Go(func() error {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.source != nil {
				_ = b.source.Close()
			}
			return s.stopEngines(b)
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn(tag, fmt.Sprintf("stop failed: %s", err))
	}
}

// Reload reconciles the config file at path with the running engines.
func (s *Service) Reload(path string) error {
	b, err := s.binding(path)
	if err != nil {
		return err
	}
	s.reconcile(b)
	return nil
}

// ReloadAll reconciles every config file.
func (s *Service) ReloadAll() {
	for _, b := range s.snapshot() {
		s.reconcile(b)
	}
}

// Watchers returns the engines currently running for the config file at path.
func (s *Service) Watchers(path string) []*core.Watcher {
	b, err := s.binding(path)
	if err != nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*core.Watcher(nil), b.engines...)
}

// Running is the number of running engines over all config files.
func (s *Service) Running() int {
	n := 0
	for _, b := range s.snapshot() {
		b.mu.Lock()
		n += len(b.engines)
		b.mu.Unlock()
	}
	return n
}

// Watching is the number of config files watched for changes.
func (s *Service) Watching() int {
	n := 0
	for _, b := range s.snapshot() {
		b.mu.Lock()
		if b.source != nil {
			n++
		}
		b.mu.Unlock()
	}
	return n
}

func (s *Service) snapshot() []*binding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*binding(nil), s.bindings...)
}

func (s *Service) binding(path string) (*binding, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	for _, b := range s.snapshot() {
		if b.path == abs {
			return b, nil
		}
	}
	return nil, fmt.Errorf("config `%s` is not loaded", path)
}

func (s *Service) fail(err error) {
	s.logger.Error(tag, err.Error())
	s.result.add(err)
}

func (b *binding) autoReload() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config != nil && b.config.AutoReload
}

// reconcile loads the config file and rebuilds its engines when the loaded
// config differs from the running one. A broken or empty file keeps the
// running engines.
func (s *Service) reconcile(b *binding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.ctx.Err() != nil {
		return
	}

	cfg, err := config.Parse(b.path)
	if errors.Is(err, config.ErrEmpty) {
		s.logger.Warn(tag, fmt.Sprintf("config `%s` is empty, keep current tasks", b.path))
		return
	}
	if err != nil {
		s.fail(&ConfigError{Path: b.path, Err: err})
		return
	}
	cfg.DryRun = cfg.DryRun || s.options.DryRun
	cfg.AutoReload = cfg.AutoReload || s.options.AutoReload

	if b.config != nil && b.config.Equal(cfg) {
		s.logger.Info(tag, fmt.Sprintf("config `%s` is unchanged", b.path))
		return
	}
	if b.config != nil {
		s.logger.Info(tag, fmt.Sprintf("config `%s` changed, restarting %d task(s)", b.path, len(b.engines)))
	}
	if err := s.stopEngines(b); err != nil {
		s.logger.Warn(tag, fmt.Sprintf("stop tasks of `%s` failed: %s", b.path, err))
	}
	b.config = cfg

	for _, name := range cfg.DuplicateNames() {
		s.logger.Warn(tag, fmt.Sprintf("config `%s`: task name `%s` is used more than once", b.path, name))
	}
	if cfg.DryRun {
		s.logger.Info(tag, fmt.Sprintf("config `%s`: dry run, commands are not started", b.path))
	}
	for i := range cfg.Tasks {
		task := &cfg.Tasks[i]
		engine, err := core.New(task, core.Options{
			DryRun: cfg.DryRun,
			Logger: s.logger,
			Hooks:  s.options.Hooks,
		})
		if err != nil {
			s.fail(&WatchError{Path: b.path, Task: task.Name, Err: err})
			continue
		}
		if err := engine.Start(); err != nil {
			_ = engine.Close()
			s.fail(&WatchError{Path: b.path, Task: task.Name, Err: err})
			continue
		}
		b.engines = append(b.engines, engine)
	}
	s.logger.Info(tag, fmt.Sprintf("config `%s`: %d of %d task(s) running", b.path, len(b.engines), len(cfg.Tasks)))
}

// stopEngines stops and disposes every engine of b in parallel. b.mu must be
// held.
func (s *Service) stopEngines(b *binding) error {
	var g errgroup.Group
	for _, engine := range b.engines {
		g.Go(engine.Close)
	}
	b.engines = nil
	return g.Wait()
}

// watch observes the directory of the config file for writes to the file.
func (s *Service) watch(b *binding) {
	source, err := watcher.New(watcher.Config{
		Path:         filepath.Dir(b.path),
		Filter:       escapePattern(filepath.Base(b.path)),
		NotifyFilter: types.FileName | types.LastWrite,
		ChangeTypes:  types.Created | types.Changed | types.Renamed,
		OnEvent: func(watcher.ChangeEvent) {
			select {
			case b.reload <- struct{}{}:
			default:
			}
		},
		Logger: s.logger,
		Tag:    tag,
	})
	if err != nil {
		s.fail(&ConfigError{Path: b.path, Err: fmt.Errorf("watch failed: %w", err)})
		return
	}
	source.Enable()
	b.mu.Lock()
	b.source = source
	b.mu.Unlock()
	s.logger.Info(tag, fmt.Sprintf("watching config `%s` for changes", b.path))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-b.reload:
			}
			timer := time.NewTimer(settleDelay)
			select {
			case <-s.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			select {
			case <-b.reload:
			default:
			}
			s.logger.Info(tag, fmt.Sprintf("config `%s` was written, reloading", b.path))
			s.reconcile(b)
		}
	}()
}

// escapePattern makes a file name match itself literally as a filter.
func escapePattern(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if strings.ContainsRune(`*?[]{}\`, r) {
			sb.WriteRune('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
