package engine

import "time"

// Category namespaces entity ids. The same id may exist in several
// categories at once; launches never collide across categories.
type Category string

const (
	CategoryService       Category = "service"
	CategoryProjectScript Category = "script"
	CategoryGlobalScript  Category = "global-script"
)

// Stream identifies which output pipe a log line was read from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// State captures the lifecycle position of a supervised entity. Services move
// Starting -> Running -> Stopped; one-shot scripts move Running -> Completed
// or Running -> Failed. A terminal state is reported exactly once per launch.
type State string

const (
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateStopped   State = "stopped"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Meta carries category-specific launch metadata. It is informational only
// and is echoed back on status events so observers can correlate.
type Meta struct {
	Mode   string
	Preset string
}

// EventType tags the variants of Event.
type EventType string

const (
	EventLog    EventType = "log"
	EventStatus EventType = "status"
	EventExit   EventType = "exit"
)

// Event is the materialized form of a sink callback, used by sinks that
// forward onto channels (the TUI) rather than acting immediately.
type Event struct {
	Timestamp time.Time
	Category  Category
	ID        string
	Type      EventType

	// EventLog fields.
	Stream Stream
	Line   string

	// EventStatus fields. PID is zero when no process is associated.
	State State
	PID   int
	Meta  Meta

	// EventExit fields. ExitCode is nil when the process was killed by a
	// signal or the exit status could not be collected.
	ExitCode *int
	Success  bool
}

// Sink receives lifecycle and log notifications from the engine. The engine
// never holds its registry lock across a sink call, but sinks must still be
// safe for concurrent use: pump and watch goroutines call in from many
// processes at once.
type Sink interface {
	OnLog(cat Category, id string, stream Stream, line string)
	OnStatus(cat Category, id string, state State, pid int, meta Meta)
	OnExit(cat Category, id string, code *int, success bool)
}

func terminalState(cat Category, code *int) State {
	if cat == CategoryService {
		return StateStopped
	}
	if code != nil && *code == 0 {
		return StateCompleted
	}
	return StateFailed
}
