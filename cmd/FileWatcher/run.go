package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"FileWatcher/lib/constant"
	"FileWatcher/lib/log"
	"FileWatcher/service"
)

func run(configFiles []string) int {
	logger := log.NewLogger(os.Stdout, nil)
	if paramLogFile != "" {
		f, err := os.OpenFile(paramLogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Println(fmt.Sprintf("open log file failed: %s", err))
			return 1
		}
		defer f.Close()
		logger.SetOutput(f)
	}
	logger.SetDebug(paramDebug)
	logger.Info("global", fmt.Sprintf("%s %s", constant.AppName, constant.Version))
	defer logger.Info("global", "Bye!!")
	logger.Debug("global", "debug mode enabled")
	if len(configFiles) == 0 {
		logger.Error("global", "no config file given")
		return 1
	}
	if paramDryRun {
		logger.Info("global", "dry run, commands are not started")
	}

	s := service.New(service.Options{
		ConfigFiles: configFiles,
		DryRun:      paramDryRun,
		AutoReload:  paramReload,
		Logger:      logger,
	})
	if err := s.Start(); err != nil {
		logger.Error("global", fmt.Sprintf("start failed: %s", err))
		return 1
	}
	if s.Running() == 0 && s.Watching() == 0 {
		logger.Error("global", "no task is running and no config file is watched, exit")
		s.Stop()
		return 1
	}

	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(osSignals)
	for osSignal := range osSignals {
		if osSignal == syscall.SIGHUP {
			logger.Info("global", "receive SIGHUP signal, reload config files")
			s.ReloadAll()
			continue
		}
		logger.Warn("global", fmt.Sprintf("receive %s signal, exit", osSignal))
		break
	}
	s.Stop()

	if err := s.Result().Err(); err != nil {
		logger.Error("global", fmt.Sprintf("finished with errors: %s", err))
		return 1
	}
	return 0
}
