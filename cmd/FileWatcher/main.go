package main

import (
	"fmt"
	"os"

	"FileWatcher/lib/constant"

	"github.com/spf13/cobra"
)

var RootCommand = &cobra.Command{
	Use:   "FileWatcher [flags] CONFIGFILE...",
	Short: "Run commands when files in watched directories change",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if paramVersion {
			fmt.Println(fmt.Sprintf("%s %s", constant.AppName, constant.Version))
			return
		}
		exitCode = run(args)
	},
}

var (
	paramDryRun  bool
	paramReload  bool
	paramLogFile string
	paramDebug   bool
	paramVersion bool

	exitCode int
)

func init() {
	RootCommand.Flags().BoolVarP(&paramDryRun, "dryrun", "d", false, "build commands but do not run them")
	RootCommand.Flags().BoolVarP(&paramReload, "reload", "r", true, "reload config files when they change")
	RootCommand.Flags().StringVarP(&paramLogFile, "log-file", "l", "", "write log to file")
	RootCommand.Flags().BoolVar(&paramDebug, "debug", false, "enable debug log")
	RootCommand.Flags().BoolVarP(&paramVersion, "version", "v", false, "show version")
}

func main() {
	if err := RootCommand.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
