// Package tui is the interactive monitor: a table of supervised processes
// with a scrolling log pane, fed by engine events.
package tui

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/mbenning/stagehand/internal/engine"
)

const (
	tableTitle          = "Processes"
	logsTitle           = "Logs"
	defaultLogRetention = 500
)

// Option configures UI behaviour.
type Option func(*UI)

// WithMaxLogs sets the maximum number of log lines retained per process.
func WithMaxLogs(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxLogs = n
		}
	}
}

type procKey struct {
	cat engine.Category
	id  string
}

type procState struct {
	key       procKey
	state     engine.State
	pid       int
	meta      engine.Meta
	lastEvent time.Time
	exitCode  *int
	logs      []logLine
}

type logLine struct {
	stream engine.Stream
	text   string
}

// UI coordinates the interactive monitor backed by tview.
type UI struct {
	app   *tview.Application
	table *tview.Table
	logs  *tview.TextView
	eng   *engine.Engine
	sink  *engine.ChannelSink

	mu          sync.RWMutex
	procs       map[procKey]*procState
	visible     []procKey
	selected    procKey
	logsFocused bool
	maxLogs     int

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

// New constructs the UI. Events must arrive through sink; eng is used for
// stop requests issued from the keyboard.
func New(eng *engine.Engine, sink *engine.ChannelSink, opts ...Option) *UI {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 1).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	logs := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	logs.SetBorder(true).SetTitle(logsTitle)
	logs.SetChangedFunc(func() {
		app.Draw()
	})

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 3, true).
		AddItem(logs, 0, 2, false)

	ui := &UI{
		app:     app,
		table:   table,
		logs:    logs,
		eng:     eng,
		sink:    sink,
		procs:   make(map[procKey]*procState),
		maxLogs: defaultLogRetention,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ui)
	}

	table.SetSelectionChangedFunc(func(row, column int) {
		ui.mu.Lock()
		defer ui.mu.Unlock()
		ui.syncSelection(row)
		ui.renderLogsLocked()
	})

	app.SetRoot(flex, true)
	app.SetInputCapture(ui.handleKey)

	ui.mu.Lock()
	ui.refreshTableLocked()
	ui.mu.Unlock()

	return ui
}

// Done returns a channel closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the tview application and consumes engine events until the
// context is cancelled or the user quits.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.consumeEvents(ctx)
	}()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()

	u.cancelMu.Lock()
	cancel = u.cancel
	u.cancel = nil
	u.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	u.wg.Wait()
	u.Stop()
	// Nobody drains the channel anymore; release any watch goroutine still
	// reporting an exit.
	u.sink.Close()
	return err
}

// Stop terminates the application loop.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

func (u *UI) consumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-u.sink.Events():
			if !ok {
				return
			}
			u.applyEvent(evt)
			u.app.QueueUpdateDraw(func() {
				u.mu.Lock()
				defer u.mu.Unlock()
				u.refreshTableLocked()
				u.renderLogsLocked()
			})
		}
	}
}

// applyEvent folds one engine event into the process map.
func (u *UI) applyEvent(evt engine.Event) {
	u.mu.Lock()
	defer u.mu.Unlock()

	key := procKey{cat: evt.Category, id: evt.ID}
	p, ok := u.procs[key]
	if !ok {
		p = &procState{key: key}
		u.procs[key] = p
	}
	p.lastEvent = evt.Timestamp

	switch evt.Type {
	case engine.EventLog:
		p.logs = append(p.logs, logLine{stream: evt.Stream, text: evt.Line})
		if over := len(p.logs) - u.maxLogs; over > 0 {
			p.logs = append(p.logs[:0:0], p.logs[over:]...)
		}
	case engine.EventStatus:
		p.state = evt.State
		p.meta = evt.Meta
		if evt.PID > 0 {
			p.pid = evt.PID
		}
	case engine.EventExit:
		p.exitCode = evt.ExitCode
	}
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEnter:
		u.toggleFocus()
		return nil
	case tcell.KeyUp, tcell.KeyDown:
		return event
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case 's', 'S':
			u.stopSelected()
			return nil
		case 'c', 'C':
			u.clearSelected()
			return nil
		}
	}
	return event
}

func (u *UI) toggleFocus() {
	if u.logsFocused {
		u.app.SetFocus(u.table)
	} else {
		u.app.SetFocus(u.logs)
	}
	u.logsFocused = !u.logsFocused
}

func (u *UI) stopSelected() {
	u.mu.RLock()
	key := u.selected
	u.mu.RUnlock()
	if key.id == "" {
		return
	}
	// Runs off the UI goroutine; the stop itself shells out to kill tools.
	go func() {
		_ = u.eng.Stop(key.cat, key.id)
	}()
}

func (u *UI) clearSelected() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if p, ok := u.procs[u.selected]; ok {
		p.logs = nil
	}
	u.renderLogsLocked()
}

func (u *UI) syncSelection(row int) {
	idx := row - 1
	if idx >= 0 && idx < len(u.visible) {
		u.selected = u.visible[idx]
	}
}

func (u *UI) refreshTableLocked() {
	u.visible = u.visible[:0]
	for key := range u.procs {
		u.visible = append(u.visible, key)
	}
	sort.Slice(u.visible, func(i, j int) bool {
		if u.visible[i].cat != u.visible[j].cat {
			return u.visible[i].cat < u.visible[j].cat
		}
		return u.visible[i].id < u.visible[j].id
	})

	u.table.Clear()
	for col, header := range []string{"ID", "CATEGORY", "STATE", "PID"} {
		cell := tview.NewTableCell(header).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false)
		u.table.SetCell(0, col, cell)
	}
	for i, key := range u.visible {
		p := u.procs[key]
		pid := ""
		if p.pid > 0 && !terminal(p.state) {
			pid = fmt.Sprintf("%d", p.pid)
		}
		u.table.SetCell(i+1, 0, tview.NewTableCell(key.id))
		u.table.SetCell(i+1, 1, tview.NewTableCell(string(key.cat)))
		u.table.SetCell(i+1, 2, tview.NewTableCell(string(p.state)).SetTextColor(stateColor(p.state)))
		u.table.SetCell(i+1, 3, tview.NewTableCell(pid))
	}

	if u.selected.id == "" && len(u.visible) > 0 {
		u.selected = u.visible[0]
	}
}

func (u *UI) renderLogsLocked() {
	u.logs.Clear()
	p, ok := u.procs[u.selected]
	if !ok {
		return
	}
	u.logs.SetTitle(fmt.Sprintf("%s: %s", logsTitle, u.selected.id))
	for _, line := range p.logs {
		if line.stream == engine.StreamStderr {
			fmt.Fprintf(u.logs, "[red]%s[-]\n", tview.Escape(line.text))
		} else {
			fmt.Fprintf(u.logs, "%s\n", tview.Escape(line.text))
		}
	}
	if dropped := u.sink.Dropped(); dropped > 0 {
		fmt.Fprintf(u.logs, "[gray]... %d log lines dropped[-]\n", dropped)
	}
	u.logs.ScrollToEnd()
}

func terminal(s engine.State) bool {
	switch s {
	case engine.StateStopped, engine.StateCompleted, engine.StateFailed:
		return true
	}
	return false
}

func stateColor(s engine.State) tcell.Color {
	switch s {
	case engine.StateRunning:
		return tcell.ColorGreen
	case engine.StateStarting:
		return tcell.ColorYellow
	case engine.StateFailed:
		return tcell.ColorRed
	case engine.StateStopped, engine.StateCompleted:
		return tcell.ColorGray
	}
	return tcell.ColorWhite
}
