//go:build !windows

package command

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the command in its own process group so a timeout
// kills everything it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcess(cmd *exec.Cmd) error {
	pid := cmd.Process.Pid
	pgid, err := unix.Getpgid(pid)
	if err == nil && pgid == pid {
		err = unix.Kill(-pgid, unix.SIGKILL)
		if err == nil || errors.Is(err, unix.ESRCH) {
			return nil
		}
	}
	return cmd.Process.Kill()
}
