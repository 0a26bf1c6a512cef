package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// NopSink discards every event.
type NopSink struct{}

func (NopSink) OnLog(Category, string, Stream, string) {}

func (NopSink) OnStatus(Category, string, State, int, Meta) {}

func (NopSink) OnExit(Category, string, *int, bool) {}

// MultiSink fans every event out to each wrapped sink in order.
type MultiSink []Sink

func (m MultiSink) OnLog(cat Category, id string, stream Stream, line string) {
	for _, s := range m {
		s.OnLog(cat, id, stream, line)
	}
}

func (m MultiSink) OnStatus(cat Category, id string, state State, pid int, meta Meta) {
	for _, s := range m {
		s.OnStatus(cat, id, state, pid, meta)
	}
}

func (m MultiSink) OnExit(cat Category, id string, code *int, success bool) {
	for _, s := range m {
		s.OnExit(cat, id, code, success)
	}
}

// ChannelSink forwards events onto a bounded channel for a consumer running
// its own loop (the TUI). Status and exit events block until delivered so
// lifecycle transitions are never lost; log lines are dropped when the
// consumer cannot keep up, with the count kept for display. Close marks the
// consumer gone, after which blocked emitters are released and every further
// event counts as dropped.
type ChannelSink struct {
	out       chan Event
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewChannelSink builds a sink with the given buffer size. A size of zero
// results in a minimally buffered channel.
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 1
	}
	return &ChannelSink{
		out:  make(chan Event, size),
		done: make(chan struct{}),
	}
}

// Close signals that no consumer will read Events anymore. Watch and pump
// goroutines still reporting afterwards no longer block on the channel.
func (s *ChannelSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Events exposes the delivery channel.
func (s *ChannelSink) Events() <-chan Event {
	return s.out
}

// Dropped reports how many log lines were discarded so far.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *ChannelSink) OnLog(cat Category, id string, stream Stream, line string) {
	evt := Event{
		Timestamp: time.Now(),
		Category:  cat,
		ID:        id,
		Type:      EventLog,
		Stream:    stream,
		Line:      line,
	}
	select {
	case s.out <- evt:
	default:
		s.dropped.Add(1)
	}
}

func (s *ChannelSink) OnStatus(cat Category, id string, state State, pid int, meta Meta) {
	evt := Event{
		Timestamp: time.Now(),
		Category:  cat,
		ID:        id,
		Type:      EventStatus,
		State:     state,
		PID:       pid,
		Meta:      meta,
	}
	select {
	case s.out <- evt:
	case <-s.done:
		s.dropped.Add(1)
	}
}

func (s *ChannelSink) OnExit(cat Category, id string, code *int, success bool) {
	evt := Event{
		Timestamp: time.Now(),
		Category:  cat,
		ID:        id,
		Type:      EventExit,
		ExitCode:  code,
		Success:   success,
	}
	select {
	case s.out <- evt:
	case <-s.done:
		s.dropped.Add(1)
	}
}

// LogSink renders events through a zerolog logger for headless runs. Child
// output is logged verbatim under the entity id; lifecycle transitions carry
// their state and pid as fields.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) OnLog(cat Category, id string, stream Stream, line string) {
	evt := s.Log.Info()
	if stream == StreamStderr {
		evt = s.Log.Warn()
	}
	evt.Str("id", id).Str("stream", string(stream)).Msg(line)
}

func (s LogSink) OnStatus(cat Category, id string, state State, pid int, meta Meta) {
	evt := s.Log.Info().Str("id", id).Str("category", string(cat)).Str("state", string(state))
	if pid > 0 {
		evt = evt.Int("pid", pid)
	}
	if meta.Mode != "" {
		evt = evt.Str("mode", meta.Mode)
	}
	if meta.Preset != "" {
		evt = evt.Str("preset", meta.Preset)
	}
	evt.Msg("status")
}

func (s LogSink) OnExit(cat Category, id string, code *int, success bool) {
	evt := s.Log.Info().Str("id", id).Str("category", string(cat)).Bool("success", success)
	if code != nil {
		evt = evt.Int("exitCode", *code)
	}
	evt.Msg("exit")
}
