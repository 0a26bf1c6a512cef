//go:build !windows

package engine

import (
	"syscall"
	"testing"
	"time"
)

func TestSignalTerminationReportsNoExitCode(t *testing.T) {
	eng, sink := newTestEngine(t)

	pid, err := eng.Launch(LaunchSpec{
		Category: CategoryGlobalScript,
		ID:       "doomed",
		Shell:    "sleep 30",
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		t.Fatalf("kill: %v", err)
	}

	waitUntil(t, 3*time.Second, "exit event", func() bool {
		return sink.exitCount("doomed") > 0
	})

	exit, _ := sink.lastExit("doomed")
	if exit.code != nil || exit.success {
		t.Fatalf("exit = %+v, want nil code and failure", exit)
	}
	states := sink.states("doomed")
	if states[len(states)-1] != StateFailed {
		t.Fatalf("states = %v, want terminal failed", states)
	}
}

func TestStopKillsProcessGroup(t *testing.T) {
	eng, _ := newTestEngine(t)

	// The shell keeps a sleep child; both belong to the launch's process
	// group and must die with the stop.
	pid, err := eng.Launch(LaunchSpec{
		Category: CategoryService,
		ID:       "tree",
		Shell:    "sleep 30 & sleep 31",
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	if err := eng.Stop(CategoryService, "tree"); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Signal 0 probes the process group for survivors.
	waitUntil(t, 3*time.Second, "process group gone", func() bool {
		return syscall.Kill(-pid, 0) != nil
	})
}
