package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mbenning/stagehand/internal/metrics"
)

// Engine errors returned synchronously from Launch and Stop. Watch-loop and
// shutdown failures are logged and absorbed; no caller is waiting on them.
var (
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")
	ErrSpawn          = errors.New("spawn failed")
)

const (
	defaultPollInterval = 100 * time.Millisecond
	shutdownGrace       = 50 * time.Millisecond
)

// LaunchSpec describes one process to supervise. Either Program+Args or
// Shell must be set; Shell runs the string through the system shell
// (sh -c on POSIX, cmd /C on Windows).
type LaunchSpec struct {
	Category Category
	ID       string
	Dir      string
	Program  string
	Args     []string
	Shell    string
	Env      map[string]string
	Meta     Meta
}

// GroupMode selects how RunGroup schedules its specs.
type GroupMode string

const (
	GroupParallel   GroupMode = "parallel"
	GroupSequential GroupMode = "sequential"
)

// GroupResult reports the immediate launch outcome for one group entry.
type GroupResult struct {
	ID  string
	PID int
	Err error
}

// Option configures an Engine.
type Option func(*Engine)

// WithPollInterval overrides the exit-watch poll interval. Tests shorten it.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.poll = d
		}
	}
}

// WithLogger routes the engine's own diagnostics through the given logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Engine supervises externally spawned child processes: it launches them,
// pumps their output, detects exit, and terminates process trees on stop or
// shutdown. Lifecycle transitions are reported through the Sink.
type Engine struct {
	sink Sink
	reg  *registry
	kill killer
	log  zerolog.Logger

	poll     time.Duration
	shutdown atomic.Bool
	closed   sync.Once
}

// New constructs an Engine reporting to sink. A nil sink discards events.
func New(sink Sink, opts ...Option) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	e := &Engine{
		sink: sink,
		reg:  newRegistry(),
		poll: defaultPollInterval,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.kill = newKiller(e.log)
	return e
}

// Launch starts the process described by spec and registers it under
// (spec.Category, spec.ID). It returns the OS pid on success. When the slot
// is occupied it fails with ErrAlreadyRunning without spawning anything; when
// the spawn itself fails the slot is released and ErrSpawn is returned.
func (e *Engine) Launch(spec LaunchSpec) (int, error) {
	if err := e.reg.reserve(spec.Category, spec.ID); err != nil {
		return 0, fmt.Errorf("%s %q: %w", spec.Category, spec.ID, err)
	}

	// Observers see the attempt even if the spawn fails right after.
	if spec.Category == CategoryService {
		e.sink.OnStatus(spec.Category, spec.ID, StateStarting, 0, spec.Meta)
	} else {
		e.sink.OnStatus(spec.Category, spec.ID, StateRunning, 0, spec.Meta)
	}

	cmd, stdout, stderr, err := e.spawn(spec)
	if err != nil {
		e.reg.release(spec.Category, spec.ID)
		return 0, fmt.Errorf("%s %q: %w: %v", spec.Category, spec.ID, ErrSpawn, err)
	}

	h := &handle{
		cat:    spec.Category,
		id:     spec.ID,
		pid:    cmd.Process.Pid,
		meta:   spec.Meta,
		cmd:    cmd,
		waitCh: make(chan waitResult, 1),
	}
	e.reg.fulfill(h)
	metrics.RecordLaunch(string(spec.Category))
	metrics.SetRunning(string(spec.Category), e.reg.count(spec.Category))

	e.sink.OnStatus(h.cat, h.id, StateRunning, h.pid, h.meta)

	var pumps sync.WaitGroup
	pumps.Add(2)
	go e.pump(h, StreamStdout, stdout, &pumps)
	go e.pump(h, StreamStderr, stderr, &pumps)
	go e.reap(h, &pumps)
	go e.watch(h)

	return h.pid, nil
}

// Stop terminates the registered process and its descendants. The registry
// entry is removed first so a concurrent exit-watch tick cannot double-report.
// A second Stop for the same id returns ErrNotRunning.
func (e *Engine) Stop(cat Category, id string) error {
	h := e.reg.remove(cat, id)
	if h == nil {
		return fmt.Errorf("%s %q: %w", cat, id, ErrNotRunning)
	}
	metrics.RecordStop(string(cat))
	metrics.SetRunning(string(cat), e.reg.count(cat))

	if err := e.kill.Kill(h.pid); err != nil {
		e.log.Warn().Err(err).Int("pid", h.pid).Str("id", id).Msg("tree kill failed")
	}
	// Fallback directly against the owned child; reaping happens in reap().
	_ = h.cmd.Process.Kill()

	// A caller-initiated stop is never reported as successful completion.
	if cat == CategoryService {
		e.sink.OnStatus(cat, id, StateStopped, 0, h.meta)
	} else {
		e.sink.OnStatus(cat, id, StateFailed, 0, h.meta)
	}
	return nil
}

// IsRunning reports whether an entity is registered. Absence is the single
// source of truth for "not running".
func (e *Engine) IsRunning(cat Category, id string) bool {
	return e.reg.contains(cat, id)
}

// ListRunning returns a sorted snapshot of the ids registered in a category.
func (e *Engine) ListRunning(cat Category) []string {
	return e.reg.list(cat)
}

// RunGroup launches specs according to mode. Parallel launches every entry
// without waiting. Sequential waits for each successfully launched entry to
// leave the registry before proceeding; with stopOnFailure a failed launch
// truncates the run and the skipped entries are not reported.
func (e *Engine) RunGroup(specs []LaunchSpec, mode GroupMode, stopOnFailure bool) []GroupResult {
	results := make([]GroupResult, 0, len(specs))

	if mode != GroupSequential {
		for _, spec := range specs {
			pid, err := e.Launch(spec)
			results = append(results, GroupResult{ID: spec.ID, PID: pid, Err: err})
		}
		return results
	}

	for _, spec := range specs {
		pid, err := e.Launch(spec)
		results = append(results, GroupResult{ID: spec.ID, PID: pid, Err: err})
		if err != nil {
			if stopOnFailure {
				break
			}
			continue
		}
		for e.reg.contains(spec.Category, spec.ID) && !e.shutdown.Load() {
			time.Sleep(e.poll)
		}
	}
	return results
}

// Shutdown force-terminates everything the engine supervises. It suppresses
// all further event emission, sweeps every registered process tree with the
// robust kill, drains the registry, and re-applies the robust kill to the
// original pid snapshot to close the race with slow-terminating processes.
// Safe to call more than once.
func (e *Engine) Shutdown() {
	e.shutdown.Store(true)

	// Let in-flight watch-loop iterations observe the flag.
	time.Sleep(shutdownGrace)

	snap := e.reg.snapshot()
	for _, h := range snap {
		e.log.Info().Str("category", string(h.cat)).Str("id", h.id).Int("pid", h.pid).Msg("stopping supervised process")
		if err := e.kill.KillRobust(h.pid); err != nil {
			e.log.Error().Err(err).Int("pid", h.pid).Msg("robust tree kill failed")
		}
	}

	for _, h := range e.reg.drain() {
		// Last-resort cleanup against the owned child; the reaper goroutine
		// collects the exit status once the process is gone.
		_ = h.cmd.Process.Kill()
		metrics.SetRunning(string(h.cat), 0)
	}

	for _, h := range snap {
		_ = e.kill.KillRobust(h.pid)
	}
	if len(snap) > 0 {
		e.log.Info().Int("count", len(snap)).Msg("all supervised processes stopped")
	}
}

// Close shuts the engine down unless an explicit Shutdown already ran.
// It implements io.Closer so the engine can be tied to application teardown.
func (e *Engine) Close() error {
	e.closed.Do(func() {
		if !e.shutdown.Load() {
			e.Shutdown()
		}
	})
	return nil
}

// spawn builds and starts the OS process with both output streams piped.
func (e *Engine) spawn(spec LaunchSpec) (*exec.Cmd, io.ReadCloser, io.ReadCloser, error) {
	program := spec.Program
	args := spec.Args
	if spec.Shell != "" {
		program, args = shellInvocation(spec.Shell)
	}
	if program == "" {
		return nil, nil, nil, errors.New("empty command")
	}

	cmd := exec.Command(program, args...)
	cmd.Dir = spec.Dir

	env := os.Environ()
	for k, v := range spec.Env {
		// Later entries win inside exec, so appending overrides ambient vars.
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stderr pipe: %w", err)
	}

	configureSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, nil, nil, err
	}
	return cmd, stdout, stderr, nil
}

// pump reads complete lines from one output stream and forwards them as log
// events. Non-UTF-8 bytes are replaced, never fatal. The loop ends when the
// pipe closes, which happens once the child (and anything holding the pipe)
// has exited.
func (e *Engine) pump(h *handle, stream Stream, r io.Reader, pumps *sync.WaitGroup) {
	defer pumps.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if e.shutdown.Load() {
			continue
		}
		e.sink.OnLog(h.cat, h.id, stream, strings.ToValidUTF8(scanner.Text(), "�"))
	}
	// An aborted scan (a line over the buffer limit, a read error) leaves the
	// pipe undrained; surface it so the stall is diagnosable.
	if err := scanner.Err(); err != nil {
		e.log.Warn().Err(err).Str("id", h.id).Str("stream", string(stream)).Msg("output scan aborted")
	}
}

// reap performs the single Wait for the child once both pumps have drained
// their pipes, then publishes the decoded exit status.
func (e *Engine) reap(h *handle, pumps *sync.WaitGroup) {
	pumps.Wait()
	err := h.cmd.Wait()

	var res waitResult
	switch {
	case err == nil:
		code := 0
		res.code = &code
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if code := exitErr.ExitCode(); code >= 0 {
				res.code = &code
			}
			// Signal-terminated: no exit code to report.
		} else {
			res.err = err
		}
	}
	h.waitCh <- res
}

// watch polls for the child's exit. Each tick it checks the shutdown flag
// (exit silently; shutdown kills and drains instead), whether a concurrent
// Stop removed the entry (exit silently), and whether the reaper has
// published an exit status (remove and report, exactly once).
func (e *Engine) watch(h *handle) {
	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	for {
		if e.shutdown.Load() {
			return
		}
		<-ticker.C

		if !e.reg.contains(h.cat, h.id) {
			return
		}

		select {
		case res := <-h.waitCh:
			if e.reg.remove(h.cat, h.id) == nil {
				// Stop won the race and already reported.
				return
			}
			metrics.SetRunning(string(h.cat), e.reg.count(h.cat))
			if e.shutdown.Load() {
				return
			}
			if res.err != nil {
				e.log.Warn().Err(res.err).Str("id", h.id).Msg("wait failed, treating process as exited")
			}
			e.report(h, res)
			return
		default:
		}
	}
}

func (e *Engine) report(h *handle, res waitResult) {
	success := res.code != nil && *res.code == 0
	metrics.RecordExit(string(h.cat), success)
	e.sink.OnStatus(h.cat, h.id, terminalState(h.cat, res.code), 0, h.meta)
	e.sink.OnExit(h.cat, h.id, res.code, success)
}
