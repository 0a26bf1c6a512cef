//go:build !windows

package helpscan

import "os/exec"

func configureHelpCommand(cmd *exec.Cmd) {}
