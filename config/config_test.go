package config

import (
	"os"
	"path/filepath"
	"testing"

	"FileWatcher/lib/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDefaults(t *testing.T) {
	c, err := Decode([]byte(`{"tasks": [{"name": "build", "path": "/src", "command": "make"}]}`), FormatJSON)
	require.NoError(t, err)

	assert.True(t, c.AutoReload)
	assert.False(t, c.DryRun)
	require.Len(t, c.Tasks, 1)

	task := c.Tasks[0]
	assert.Equal(t, "build", task.Name)
	assert.Equal(t, "*", task.Filter)
	assert.Equal(t, types.DefaultNotifyFilter, task.NotifyFilter)
	assert.Equal(t, types.AllChanges, task.ChangeTypes)
	assert.True(t, task.Wait)
	assert.Equal(t, -1, task.Timeout)
	assert.Equal(t, 0, task.Throttle)
	assert.False(t, task.Merge)
	assert.False(t, task.IncludeSubdirectories)
}

func TestDecodePascalCaseJSON(t *testing.T) {
	content := `{
		"AutoReload": false,
		"DryRun": true,
		"Tasks": [{
			"Name": "copy",
			"Path": "/in",
			"Filter": "*.txt",
			"ChangeTypes": "Created, Renamed",
			"NotifyFilter": "FileName",
			"Command": "cp",
			"Arguments": "{FullPath} /out",
			"Throttle": 500,
			"Merge": true,
			"Wait": false,
			"Timeout": 30
		}]
	}`
	c, err := Decode([]byte(content), FormatJSON)
	require.NoError(t, err)

	assert.False(t, c.AutoReload)
	assert.True(t, c.DryRun)
	task := c.Tasks[0]
	assert.Equal(t, "*.txt", task.Filter)
	assert.Equal(t, types.Created|types.Renamed, task.ChangeTypes)
	assert.Equal(t, types.FileName, task.NotifyFilter)
	assert.Equal(t, 500, task.Throttle)
	assert.True(t, task.Merge)
	assert.False(t, task.Wait)
	assert.Equal(t, 30, task.Timeout)
}

func TestDecodeYAML(t *testing.T) {
	content := `
autoReload: true
tasks:
  - name: sync
    path: /data
    includeSubdirectories: true
    changeTypes: [Changed]
    command: rsync
    arguments: -a {FullPath} remote:/data
`
	c, err := Decode([]byte(content), FormatYAML)
	require.NoError(t, err)
	require.Len(t, c.Tasks, 1)
	assert.True(t, c.Tasks[0].IncludeSubdirectories)
	assert.Equal(t, types.Changed, c.Tasks[0].ChangeTypes)
	assert.Equal(t, "*", c.Tasks[0].Filter)
	assert.True(t, c.Tasks[0].Wait)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte("  \n"), FormatJSON)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Decode([]byte("# nothing yet\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Decode([]byte(`{"tasks": [{"name": "x", "bogus": 1}]}`), FormatJSON)
	assert.Error(t, err)

	_, err = Decode([]byte("tasks:\n  - name: x\n    bogus: 1\n"), FormatYAML)
	assert.Error(t, err)

	_, err = Decode([]byte(`{"tasks": [`), FormatJSON)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmpty)
}

func TestParseByExtension(t *testing.T) {
	dir := t.TempDir()
	jsonFile := filepath.Join(dir, "watch.json")
	yamlFile := filepath.Join(dir, "watch.yml")
	require.NoError(t, os.WriteFile(jsonFile, []byte(`{"dryRun": true}`), 0o644))
	require.NoError(t, os.WriteFile(yamlFile, []byte("dryRun: true\n"), 0o644))

	for _, f := range []string{jsonFile, yamlFile} {
		c, err := Parse(f)
		require.NoError(t, err)
		assert.True(t, c.DryRun)
		assert.Empty(t, c.Tasks)
	}

	_, err := Parse(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestEqual(t *testing.T) {
	a, err := Decode([]byte(`{"tasks": [{"name": "a", "path": "/a", "command": "x"}, {"name": "b", "path": "/b", "command": "y"}]}`), FormatJSON)
	require.NoError(t, err)
	// same values, different bytes
	b, err := Decode([]byte("tasks:\n- name: a\n  path: /a\n  command: x\n  wait: true\n- name: b\n  path: /b\n  command: y\n"), FormatYAML)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	b.Tasks[1].Throttle = 10
	assert.False(t, a.Equal(b))

	b.Tasks[1].Throttle = 0
	b.Tasks[0], b.Tasks[1] = b.Tasks[1], b.Tasks[0]
	assert.False(t, a.Equal(b), "task order matters")

	b.Tasks[0], b.Tasks[1] = b.Tasks[1], b.Tasks[0]
	b.DryRun = true
	assert.False(t, a.Equal(b))

	var nilConfig *Config
	assert.False(t, a.Equal(nilConfig))
	assert.True(t, nilConfig.Equal(nil))
}

func TestValidate(t *testing.T) {
	valid := DefaultTask()
	valid.Name = "t"
	valid.Path = "/tmp"
	valid.Command = "true"
	require.NoError(t, valid.Validate())

	var nilTask *WatchTask
	assert.Error(t, nilTask.Validate())

	tt := []struct {
		name   string
		modify func(*WatchTask)
	}{
		{"empty name", func(w *WatchTask) { w.Name = "" }},
		{"blank command", func(w *WatchTask) { w.Command = "  " }},
		{"empty path", func(w *WatchTask) { w.Path = "" }},
		{"negative throttle", func(w *WatchTask) { w.Throttle = -1 }},
		{"bad filter", func(w *WatchTask) { w.Filter = "[a-" }},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			task := valid
			tc.modify(&task)
			assert.Error(t, task.Validate())
		})
	}
}

func TestDuplicateNames(t *testing.T) {
	c := Default()
	c.Tasks = []WatchTask{{Name: "a"}, {Name: "b"}, {Name: "a"}, {Name: "a"}}
	assert.Equal(t, []string{"a"}, c.DuplicateNames())
}
