//go:build !windows

package engine

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr gives the child its own process group so the whole
// tree can be signalled through the negated pid.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func shellInvocation(command string) (string, []string) {
	return "sh", []string{"-c", command}
}
