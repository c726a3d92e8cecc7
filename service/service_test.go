package service

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"FileWatcher/core"
	"FileWatcher/lib/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) count(s string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Count(b.buf.String(), s)
}

func writeConfig(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func jsonConfig(dir string, filter string, autoReload bool) string {
	return fmt.Sprintf(`{
	"autoReload": %t,
	"dryRun": true,
	"tasks": [
		{"name": "first", "path": %q, "filter": %q, "command": "true"}
	]
}`, autoReload, dir, filter)
}

func startService(t *testing.T, opts Options) (*Service, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	opts.Logger = log.NewLogger(buf, nil)
	s := New(opts)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s, buf
}

func TestServiceNoConfigFiles(t *testing.T) {
	s := New(Options{Logger: log.Discard()})
	assert.Error(t, s.Start())
}

func TestServiceStart(t *testing.T) {
	watched := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, jsonConfig(watched, "*.txt", true))

	s, _ := startService(t, Options{ConfigFiles: []string{path}})

	assert.False(t, s.Result().Failed())
	assert.NoError(t, s.Result().Err())
	engines := s.Watchers(path)
	require.Len(t, engines, 1)
	assert.Equal(t, "first", engines[0].Task().Name)
	assert.True(t, engines[0].DryRun())
	assert.Equal(t, 1, s.Running())
	assert.Equal(t, 1, s.Watching())
	assert.Nil(t, s.Watchers(filepath.Join(t.TempDir(), "other.json")))
}

func TestServiceAutoReloadOff(t *testing.T) {
	watched := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, jsonConfig(watched, "*", false))

	s, _ := startService(t, Options{ConfigFiles: []string{path}})

	assert.Equal(t, 1, s.Running())
	assert.Equal(t, 0, s.Watching())
}

func TestServiceGlobalOverrides(t *testing.T) {
	watched := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, fmt.Sprintf(`
autoReload: false
tasks:
  - name: yaml
    path: %s
    command: "true"
`, watched))

	s, _ := startService(t, Options{ConfigFiles: []string{path}, DryRun: true, AutoReload: true})

	engines := s.Watchers(path)
	require.Len(t, engines, 1)
	assert.True(t, engines[0].DryRun())
	assert.Equal(t, 1, s.Watching())
}

func TestServiceReloadEqualConfig(t *testing.T) {
	watched := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, jsonConfig(watched, "*.txt", true))
	s, buf := startService(t, Options{ConfigFiles: []string{path}, AutoReload: true})
	before := s.Watchers(path)
	require.Len(t, before, 1)

	// same values, different bytes
	writeConfig(t, path, strings.ReplaceAll(jsonConfig(watched, "*.txt", true), "\t", "    ")+"\n")

	require.Eventually(t, func() bool {
		return buf.count("is unchanged") >= 1
	}, 5*time.Second, 20*time.Millisecond)
	after := s.Watchers(path)
	require.Len(t, after, 1)
	assert.Same(t, before[0], after[0])
	assert.NoError(t, before[0].Start())
}

func TestServiceReloadChangedConfig(t *testing.T) {
	watched := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, jsonConfig(watched, "*.txt", true))
	s, _ := startService(t, Options{ConfigFiles: []string{path}, AutoReload: true})
	before := s.Watchers(path)
	require.Len(t, before, 1)

	writeConfig(t, path, jsonConfig(watched, "*.log", true))

	require.Eventually(t, func() bool {
		after := s.Watchers(path)
		return len(after) == 1 && after[0] != before[0]
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "*.log", s.Watchers(path)[0].Task().Filter)
	assert.ErrorIs(t, before[0].Start(), core.ErrStopped)
}

func TestServiceReloadManually(t *testing.T) {
	watched := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, jsonConfig(watched, "*.txt", false))
	s, _ := startService(t, Options{ConfigFiles: []string{path}})
	before := s.Watchers(path)

	writeConfig(t, path, jsonConfig(watched, "*.md", false))
	time.Sleep(200 * time.Millisecond)
	assert.Same(t, before[0], s.Watchers(path)[0])

	require.NoError(t, s.Reload(path))
	assert.Equal(t, "*.md", s.Watchers(path)[0].Task().Filter)
	assert.Error(t, s.Reload(filepath.Join(t.TempDir(), "unknown.json")))

	writeConfig(t, path, jsonConfig(watched, "*.go", false))
	s.ReloadAll()
	assert.Equal(t, "*.go", s.Watchers(path)[0].Task().Filter)
}

func TestServiceBrokenConfig(t *testing.T) {
	watched := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, `{"tasks": [`)
	s, _ := startService(t, Options{ConfigFiles: []string{path}, AutoReload: true})

	require.True(t, s.Result().Failed())
	var configErr *ConfigError
	require.True(t, errors.As(s.Result().Err(), &configErr))
	assert.Equal(t, path, configErr.Path)
	assert.Equal(t, 0, s.Running())
	assert.Equal(t, 1, s.Watching())

	writeConfig(t, path, jsonConfig(watched, "*", true))
	require.Eventually(t, func() bool {
		return s.Running() == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestServiceEmptyConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	writeConfig(t, path, "# nothing yet\n")
	s, buf := startService(t, Options{ConfigFiles: []string{path}})

	assert.False(t, s.Result().Failed())
	assert.Equal(t, 0, s.Running())
	assert.Equal(t, 1, buf.count("is empty"))
}

func TestServiceTaskErrors(t *testing.T) {
	watched := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, fmt.Sprintf(`{
	"dryRun": true,
	"tasks": [
		{"name": "missing", "path": %q, "command": "true"},
		{"name": "", "path": %q, "command": "true"},
		{"name": "ok", "path": %q, "command": "true"}
	]
}`, filepath.Join(watched, "missing"), watched, watched))

	s, _ := startService(t, Options{ConfigFiles: []string{path}})

	errs := s.Result().Errors()
	require.Len(t, errs, 2)
	var watchErr *WatchError
	require.True(t, errors.As(errs[0], &watchErr))
	assert.Equal(t, "missing", watchErr.Task)
	engines := s.Watchers(path)
	require.Len(t, engines, 1)
	assert.Equal(t, "ok", engines[0].Task().Name)
}

func TestServiceStop(t *testing.T) {
	watched := t.TempDir()
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, jsonConfig(watched, "*", true))
	s := New(Options{ConfigFiles: []string{path}, AutoReload: true, Logger: log.Discard()})
	require.NoError(t, s.Start())
	engines := s.Watchers(path)
	require.Len(t, engines, 1)

	start := time.Now()
	s.Stop()
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, s.Running())
	assert.ErrorIs(t, engines[0].Start(), core.ErrStopped)
	s.Stop()
}

func TestEscapePattern(t *testing.T) {
	assert.Equal(t, "config.json", escapePattern("config.json"))
	assert.Equal(t, `a\[1\]\*.json`, escapePattern("a[1]*.json"))
}
