//go:build !windows

package engine

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

func newKiller(log zerolog.Logger) killer {
	return groupKiller{log: log}
}

// groupKiller signals the child's process group. Children are placed in
// their own group at spawn (see configureSysProcAttr), so the negated pid
// reaches the whole tree.
type groupKiller struct {
	log zerolog.Logger
}

func (k groupKiller) Kill(pid int) error {
	if pid <= 0 {
		return nil
	}
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal process group %d: %w", pid, err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", pid, err)
	}
	return nil
}

func (k groupKiller) KillRobust(pid int) error {
	if pid <= 0 {
		return nil
	}
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	time.Sleep(100 * time.Millisecond)

	// Signal 0 probes liveness without delivering anything.
	if syscall.Kill(pid, 0) == nil {
		k.log.Warn().Int("pid", pid).Msg("process survived SIGTERM, sending SIGKILL")
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		_ = syscall.Kill(pid, syscall.SIGKILL)
		time.Sleep(100 * time.Millisecond)
	}

	// Sweep any children that escaped the group.
	_ = exec.Command("pkill", "-KILL", "-P", strconv.Itoa(pid)).Run()
	return nil
}
