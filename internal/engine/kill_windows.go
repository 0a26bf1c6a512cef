//go:build windows

package engine

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func newKiller(log zerolog.Logger) killer {
	return taskKiller{log: log}
}

// taskKiller terminates process trees through taskkill; Windows has no
// POSIX process groups to signal.
type taskKiller struct {
	log zerolog.Logger
}

func (k taskKiller) Kill(pid int) error {
	if pid <= 0 {
		return nil
	}
	cmd := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid))
	configureSysProcAttr(cmd)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("taskkill %d: %w", pid, err)
	}
	return nil
}

func (k taskKiller) KillRobust(pid int) error {
	if pid <= 0 {
		return nil
	}
	first := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid))
	configureSysProcAttr(first)
	firstOut, firstErr := first.CombinedOutput()

	// taskkill returns before the processes are actually gone.
	time.Sleep(100 * time.Millisecond)

	if k.stillRunning(pid) {
		k.log.Warn().Int("pid", pid).Msg("process survived first taskkill, retrying")
		time.Sleep(200 * time.Millisecond)
		retry := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid))
		configureSysProcAttr(retry)
		_ = retry.Run()
		time.Sleep(100 * time.Millisecond)
	}

	// Sweep children still parented to the pid.
	sweep := exec.Command("wmic", "process", "where", fmt.Sprintf("ParentProcessId=%d", pid), "delete")
	configureSysProcAttr(sweep)
	_ = sweep.Run()

	if firstErr != nil {
		out := string(firstOut)
		// An already-exited target is not an error.
		if !strings.Contains(out, "not found") && !strings.Contains(out, "No tasks") {
			return fmt.Errorf("taskkill %d: %w: %s", pid, firstErr, strings.TrimSpace(out))
		}
	}
	return nil
}

func (k taskKiller) stillRunning(pid int) bool {
	check := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/NH")
	configureSysProcAttr(check)
	out, err := check.Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), strconv.Itoa(pid))
}
