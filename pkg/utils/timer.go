package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is one named, timed step of a task.
type Phase struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	done     bool
}

// PhaseTimer is returned by Timer.Start; Stop records the elapsed time.
type PhaseTimer struct {
	timer *Timer
	name  string
}

// Stop is idempotent: only the first call records a duration.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.stop(pt.name)
}

// Timer records the duration of sequential phases and logs a summary.
// Restarting a phase name overwrites the previous measurement.
type Timer struct {
	mu     sync.Mutex
	name   string
	start  time.Time
	phases map[string]*Phase
	order  []string
	logger Logger
	clock  Clock
}

type TimerOption func(*Timer)

// WithLogger routes PrintSummary output to logger at info level.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) { t.logger = logger }
}

func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		if clock != nil {
			t.clock = clock
		}
	}
}

func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:   name,
		phases: map[string]*Phase{},
		clock:  NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.clock.Now()
	return t
}

func (t *Timer) Start(name string) *PhaseTimer {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, seen := t.phases[name]; !seen {
		t.order = append(t.order, name)
	}
	t.phases[name] = &Phase{Name: name, Start: t.clock.Now()}
	return &PhaseTimer{timer: t, name: name}
}

func (t *Timer) stop(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.phases[name]
	if !ok {
		return 0
	}
	if !p.done {
		p.Duration = t.clock.Since(p.Start)
		p.done = true
	}
	return p.Duration
}

// Duration returns the recorded duration of a stopped phase, or zero.
func (t *Timer) Duration(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.phases[name]; ok && p.done {
		return p.Duration
	}
	return 0
}

// Total is the time since the timer was created.
func (t *Timer) Total() time.Duration {
	return t.clock.Since(t.start)
}

// Phases returns copies of the phases in start order.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Phase, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.phases[name])
	}
	return out
}

func (t *Timer) lines() []string {
	phases := t.Phases()
	lines := make([]string, 0, len(phases)+2)
	lines = append(lines, fmt.Sprintf("=== %s timing ===", t.name))
	for i, p := range phases {
		lines = append(lines, fmt.Sprintf("%d. %s: %v", i+1, p.Name, p.Duration))
	}
	return append(lines, fmt.Sprintf("total: %v", t.Total()))
}

// Summary renders the phases as newline-terminated text.
func (t *Timer) Summary() string {
	return strings.Join(t.lines(), "\n") + "\n"
}

// PrintSummary logs the summary one line at a time. No-op without a logger.
func (t *Timer) PrintSummary() {
	if t.logger == nil {
		return
	}
	for _, line := range t.lines() {
		t.logger.Info("%s", line)
	}
}
