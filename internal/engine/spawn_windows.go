//go:build windows

package engine

import (
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

// configureSysProcAttr keeps spawned children from flashing console windows.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNoWindow, HideWindow: true}
}

func shellInvocation(command string) (string, []string) {
	return "cmd", []string{"/C", command}
}
