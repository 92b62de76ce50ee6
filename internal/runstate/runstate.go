package runstate

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// maxLogEntries caps the retained log buffer. Older entries are dropped.
const maxLogEntries = 100

// LogEntry is one retained log line.
type LogEntry struct {
	Timestamp time.Time
	Level     slog.Level
	Message   string
}

// Progress is a snapshot of pipeline run progress.
type Progress struct {
	ProcessedWindows int
	TotalWindows     int
	Elapsed          time.Duration
	TotalRevenue     float64
}

// State holds transient per-run log and progress information. It is owned by
// the orchestrator for the lifetime of one invocation and safe for concurrent
// use by pack workers.
type State struct {
	mu        sync.Mutex
	startTime time.Time
	entries   []LogEntry
	progress  Progress
}

// NewState creates run state with the clock started at now.
func NewState(now time.Time) *State {
	return &State{startTime: now}
}

// AppendLog records one log line, evicting the oldest beyond the cap.
func (s *State) AppendLog(level slog.Level, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, LogEntry{Timestamp: time.Now(), Level: level, Message: message})
	if len(s.entries) > maxLogEntries {
		s.entries = s.entries[len(s.entries)-maxLogEntries:]
	}
}

// Entries returns a copy of the retained log lines.
func (s *State) Entries() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]LogEntry, len(s.entries))
	copy(out, s.entries)

	return out
}

// UpdateProgress records completed/total window counts and the running
// revenue total, stamping elapsed time since the run started.
func (s *State) UpdateProgress(processed, total int, revenue float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress = Progress{
		ProcessedWindows: processed,
		TotalWindows:     total,
		Elapsed:          time.Since(s.startTime),
		TotalRevenue:     revenue,
	}
}

// Progress returns the latest progress snapshot.
func (s *State) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.progress
}

// TeeHandler is a slog.Handler that mirrors every record into a State's log
// buffer before passing it to the next handler. Components keep plain
// *slog.Logger values; the run context sees everything they log.
type TeeHandler struct {
	state *State
	next  slog.Handler
}

// NewTeeHandler wraps next so records are also retained in state.
func NewTeeHandler(state *State, next slog.Handler) *TeeHandler {
	return &TeeHandler{state: state, next: next}
}

func (h *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	h.state.AppendLog(r.Level, r.Message)
	return h.next.Handle(ctx, r)
}

func (h *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TeeHandler{state: h.state, next: h.next.WithAttrs(attrs)}
}

func (h *TeeHandler) WithGroup(name string) slog.Handler {
	return &TeeHandler{state: h.state, next: h.next.WithGroup(name)}
}
