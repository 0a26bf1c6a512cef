package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testPoll = 10 * time.Millisecond

// recordingSink captures every event for assertions. All methods are safe
// for concurrent use, like any real sink must be.
type recordingSink struct {
	mu       sync.Mutex
	logs     []logRec
	statuses []statusRec
	exits    []exitRec
}

type logRec struct {
	cat    Category
	id     string
	stream Stream
	line   string
}

type statusRec struct {
	cat   Category
	id    string
	state State
	pid   int
}

type exitRec struct {
	cat     Category
	id      string
	code    *int
	success bool
}

func (s *recordingSink) OnLog(cat Category, id string, stream Stream, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, logRec{cat, id, stream, line})
}

func (s *recordingSink) OnStatus(cat Category, id string, state State, pid int, meta Meta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, statusRec{cat, id, state, pid})
}

func (s *recordingSink) OnExit(cat Category, id string, code *int, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exits = append(s.exits, exitRec{cat, id, code, success})
}

func (s *recordingSink) exitCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.exits {
		if e.id == id {
			n++
		}
	}
	return n
}

func (s *recordingSink) lastExit(id string) (exitRec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.exits) - 1; i >= 0; i-- {
		if s.exits[i].id == id {
			return s.exits[i], true
		}
	}
	return exitRec{}, false
}

func (s *recordingSink) states(id string) []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []State
	for _, st := range s.statuses {
		if st.id == id {
			out = append(out, st.state)
		}
	}
	return out
}

func (s *recordingSink) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs) + len(s.statuses) + len(s.exits)
}

func waitUntil(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func newTestEngine(t *testing.T) (*Engine, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	eng := New(sink, WithPollInterval(testPoll))
	t.Cleanup(func() { _ = eng.Close() })
	return eng, sink
}

func TestLaunchEchoScenario(t *testing.T) {
	requireUnix(t)
	eng, sink := newTestEngine(t)

	if _, err := eng.Launch(LaunchSpec{
		Category: CategoryProjectScript,
		ID:       "build",
		Program:  "echo",
		Args:     []string{"hello"},
	}); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	waitUntil(t, 3*time.Second, "exit event", func() bool {
		return sink.exitCount("build") > 0
	})

	sink.mu.Lock()
	logs := append([]logRec(nil), sink.logs...)
	sink.mu.Unlock()
	if len(logs) != 1 || logs[0].stream != StreamStdout || logs[0].line != "hello" {
		t.Fatalf("logs = %+v, want one stdout %q", logs, "hello")
	}

	exit, _ := sink.lastExit("build")
	if exit.code == nil || *exit.code != 0 || !exit.success {
		t.Fatalf("exit = %+v, want code 0 success", exit)
	}

	states := sink.states("build")
	if len(states) == 0 || states[len(states)-1] != StateCompleted {
		t.Fatalf("states = %v, want terminal completed", states)
	}
	if eng.IsRunning(CategoryProjectScript, "build") {
		t.Fatalf("still registered after exit")
	}

	// Exactly once: no further exit events arrive.
	time.Sleep(5 * testPoll)
	if n := sink.exitCount("build"); n != 1 {
		t.Fatalf("exit events = %d, want 1", n)
	}
}

func TestLaunchSpawnFailedIsRetryable(t *testing.T) {
	requireUnix(t)
	eng, _ := newTestEngine(t)

	_, err := eng.Launch(LaunchSpec{
		Category: CategoryProjectScript,
		ID:       "bad",
		Program:  "/nonexistent/binary",
	})
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("err = %v, want ErrSpawn", err)
	}
	if eng.IsRunning(CategoryProjectScript, "bad") {
		t.Fatalf("failed launch left a registry entry")
	}

	// The slot is immediately reusable.
	if _, err := eng.Launch(LaunchSpec{
		Category: CategoryProjectScript,
		ID:       "bad",
		Shell:    "echo retry",
	}); err != nil {
		t.Fatalf("relaunch: %v", err)
	}
}

func TestLaunchDuplicateID(t *testing.T) {
	requireUnix(t)
	eng, _ := newTestEngine(t)

	if _, err := eng.Launch(LaunchSpec{
		Category: CategoryService,
		ID:       "api",
		Shell:    "sleep 30",
	}); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	_, err := eng.Launch(LaunchSpec{
		Category: CategoryService,
		ID:       "api",
		Shell:    "sleep 30",
	})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}

	// The same id in another category does not collide.
	if _, err := eng.Launch(LaunchSpec{
		Category: CategoryGlobalScript,
		ID:       "api",
		Shell:    "sleep 30",
	}); err != nil {
		t.Fatalf("cross-category launch: %v", err)
	}

	if got := eng.ListRunning(CategoryService); len(got) != 1 || got[0] != "api" {
		t.Fatalf("ListRunning = %v", got)
	}
}

func TestStopLongSleeperIsIdempotent(t *testing.T) {
	requireUnix(t)
	eng, sink := newTestEngine(t)

	if _, err := eng.Launch(LaunchSpec{
		Category: CategoryService,
		ID:       "db",
		Shell:    "sleep 30",
	}); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	if err := eng.Stop(CategoryService, "db"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if eng.IsRunning(CategoryService, "db") {
		t.Fatalf("still registered after stop")
	}

	if err := eng.Stop(CategoryService, "db"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("second stop err = %v, want ErrNotRunning", err)
	}

	// A stopped process never reports a successful exit.
	time.Sleep(10 * testPoll)
	if exit, ok := sink.lastExit("db"); ok && exit.success {
		t.Fatalf("stop produced successful exit: %+v", exit)
	}
	states := sink.states("db")
	if len(states) == 0 || states[len(states)-1] != StateStopped {
		t.Fatalf("states = %v, want terminal stopped", states)
	}
}

func TestExitCodeMapping(t *testing.T) {
	requireUnix(t)
	eng, sink := newTestEngine(t)

	if _, err := eng.Launch(LaunchSpec{
		Category: CategoryGlobalScript,
		ID:       "failing",
		Shell:    "exit 3",
	}); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	waitUntil(t, 3*time.Second, "exit event", func() bool {
		return sink.exitCount("failing") > 0
	})

	exit, _ := sink.lastExit("failing")
	if exit.code == nil || *exit.code != 3 || exit.success {
		t.Fatalf("exit = %+v, want code 3 failure", exit)
	}
	states := sink.states("failing")
	if states[len(states)-1] != StateFailed {
		t.Fatalf("states = %v, want terminal failed", states)
	}
}

func TestServiceLifecycleStates(t *testing.T) {
	requireUnix(t)
	eng, sink := newTestEngine(t)

	if _, err := eng.Launch(LaunchSpec{
		Category: CategoryService,
		ID:       "web",
		Shell:    "echo up",
	}); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	waitUntil(t, 3*time.Second, "exit event", func() bool {
		return sink.exitCount("web") > 0
	})

	states := sink.states("web")
	if len(states) < 2 || states[0] != StateStarting {
		t.Fatalf("states = %v, want starting first", states)
	}
	// A service that exits on its own lands in stopped, not completed.
	if states[len(states)-1] != StateStopped {
		t.Fatalf("states = %v, want terminal stopped", states)
	}
	if exit, _ := sink.lastExit("web"); !exit.success {
		t.Fatalf("exit = %+v, want success", exit)
	}
}

func TestRunGroupSequentialOrdering(t *testing.T) {
	requireUnix(t)
	eng, _ := newTestEngine(t)

	marker := filepath.Join(t.TempDir(), "order.txt")
	specs := []LaunchSpec{
		{Category: CategoryGlobalScript, ID: "first", Shell: fmt.Sprintf("sleep 0.1; echo a >> %s", marker)},
		{Category: CategoryGlobalScript, ID: "second", Shell: fmt.Sprintf("echo b >> %s", marker)},
	}

	results := eng.RunGroup(specs, GroupSequential, true)
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("group entry %s: %v", res.ID, res.Err)
		}
	}

	waitUntil(t, 3*time.Second, "both scripts done", func() bool {
		data, err := os.ReadFile(marker)
		return err == nil && len(data) >= 4
	})
	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	if string(data) != "a\nb\n" {
		t.Fatalf("marker = %q, want %q", data, "a\nb\n")
	}
}

func TestRunGroupStopOnFailure(t *testing.T) {
	requireUnix(t)
	eng, _ := newTestEngine(t)

	specs := []LaunchSpec{
		{Category: CategoryGlobalScript, ID: "a", Program: "/nonexistent/binary"},
		{Category: CategoryGlobalScript, ID: "b", Shell: "echo b"},
		{Category: CategoryGlobalScript, ID: "c", Shell: "echo c"},
	}

	results := eng.RunGroup(specs, GroupSequential, true)
	if len(results) != 1 || results[0].ID != "a" || results[0].Err == nil {
		t.Fatalf("results = %+v, want only a's failure", results)
	}

	results = eng.RunGroup(specs, GroupSequential, false)
	if len(results) != 3 {
		t.Fatalf("results = %+v, want all three attempted", results)
	}
	if results[0].Err == nil || results[1].Err != nil || results[2].Err != nil {
		t.Fatalf("results = %+v", results)
	}
}

func TestRunGroupParallelLaunchesAll(t *testing.T) {
	requireUnix(t)
	eng, _ := newTestEngine(t)

	specs := []LaunchSpec{
		{Category: CategoryGlobalScript, ID: "p1", Shell: "sleep 5"},
		{Category: CategoryGlobalScript, ID: "p2", Shell: "sleep 5"},
	}
	results := eng.RunGroup(specs, GroupParallel, false)
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if got := eng.ListRunning(CategoryGlobalScript); len(got) != 2 {
		t.Fatalf("ListRunning = %v, want both sleeping", got)
	}
}

func TestShutdownSuppressesEventsAndIsIdempotent(t *testing.T) {
	requireUnix(t)
	sink := &recordingSink{}
	eng := New(sink, WithPollInterval(testPoll))

	if _, err := eng.Launch(LaunchSpec{
		Category: CategoryService,
		ID:       "chatty",
		Shell:    "while true; do echo tick; sleep 0.02; done",
	}); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	waitUntil(t, 3*time.Second, "first output", func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.logs) > 0
	})

	eng.Shutdown()
	if eng.IsRunning(CategoryService, "chatty") {
		t.Fatalf("still registered after shutdown")
	}

	// No events after shutdown, even while pipes drain.
	before := sink.eventCount()
	time.Sleep(10 * testPoll)
	if after := sink.eventCount(); after != before {
		t.Fatalf("events after shutdown: %d -> %d", before, after)
	}

	eng.Shutdown()
	_ = eng.Close()
}

func TestCloseShutsDown(t *testing.T) {
	requireUnix(t)
	sink := &recordingSink{}
	eng := New(sink, WithPollInterval(testPoll))

	if _, err := eng.Launch(LaunchSpec{
		Category: CategoryService,
		ID:       "lingering",
		Shell:    "sleep 30",
	}); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	if err := eng.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if eng.IsRunning(CategoryService, "lingering") {
		t.Fatalf("still registered after close")
	}
}

func TestLaunchEnvOverridesAmbient(t *testing.T) {
	requireUnix(t)
	eng, sink := newTestEngine(t)

	t.Setenv("STAGEHAND_TEST_VALUE", "ambient")
	if _, err := eng.Launch(LaunchSpec{
		Category: CategoryGlobalScript,
		ID:       "env",
		Shell:    "echo $STAGEHAND_TEST_VALUE",
		Env:      map[string]string{"STAGEHAND_TEST_VALUE": "override"},
	}); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	waitUntil(t, 3*time.Second, "exit event", func() bool {
		return sink.exitCount("env") > 0
	})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.logs) != 1 || sink.logs[0].line != "override" {
		t.Fatalf("logs = %+v, want %q", sink.logs, "override")
	}
}

func TestStderrStreamTagged(t *testing.T) {
	requireUnix(t)
	eng, sink := newTestEngine(t)

	if _, err := eng.Launch(LaunchSpec{
		Category: CategoryGlobalScript,
		ID:       "noisy",
		Shell:    "echo oops 1>&2",
	}); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	waitUntil(t, 3*time.Second, "exit event", func() bool {
		return sink.exitCount("noisy") > 0
	})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.logs) != 1 || sink.logs[0].stream != StreamStderr || sink.logs[0].line != "oops" {
		t.Fatalf("logs = %+v, want one stderr %q", sink.logs, "oops")
	}
}

func TestPumpReportsScannerError(t *testing.T) {
	var buf bytes.Buffer
	eng := New(NopSink{}, WithLogger(zerolog.New(&buf)))
	defer eng.Close()

	// A single line over the scanner's buffer limit aborts the scan.
	h := &handle{cat: CategoryService, id: "chatty"}
	var pumps sync.WaitGroup
	pumps.Add(1)
	eng.pump(h, StreamStdout, strings.NewReader(strings.Repeat("x", 2<<20)), &pumps)
	pumps.Wait()

	out := buf.String()
	if !strings.Contains(out, "output scan aborted") || !strings.Contains(out, "chatty") {
		t.Fatalf("scanner error not logged:\n%s", out)
	}
}
