//go:build windows

package helpscan

import (
	"os"
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

// configureHelpCommand hides the console window and forces Python helpers to
// emit UTF-8 so their usage text parses cleanly.
func configureHelpCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNoWindow,
		HideWindow:    true,
	}
	cmd.Env = append(os.Environ(), "PYTHONUTF8=1", "PYTHONIOENCODING=utf-8")
}
