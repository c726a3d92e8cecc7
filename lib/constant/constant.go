package constant

import "FileWatcher/lib/types"

const (
	AppName = "FileWatcher"
	Version = "v1.0.0"
)

// Environment variables passed to every started command.
const (
	EnvFullPath   = "FileWatcher_FullPath"
	EnvName       = "FileWatcher_Name"
	EnvChangeType = "FileWatcher_ChangeType"
	EnvOldPath    = "FileWatcher_OldPath"
	EnvOldName    = "FileWatcher_OldName"
)

// Placeholders substituted in task arguments.
const (
	PlaceholderFullPath   = "{FullPath}"
	PlaceholderName       = "{Name}"
	PlaceholderChangeType = "{ChangeType}"
	PlaceholderOldPath    = "{OldPath}"
	PlaceholderOldName    = "{OldName}"
)

const (
	DefaultFilter       = "*"
	DefaultChangeTypes  = types.AllChanges
	DefaultNotifyFilter = types.DefaultNotifyFilter
	DefaultTimeout      = -1
)
