package nettrace

import (
	"sort"
	"sync"
	"time"
)

type PhaseKind string

const (
	PhaseDNS      PhaseKind = "dns"
	PhaseConnect  PhaseKind = "connect"
	PhaseTLS      PhaseKind = "tls"
	PhaseReqHdrs  PhaseKind = "request_headers"
	PhaseReqBody  PhaseKind = "request_body"
	PhaseTTFB     PhaseKind = "ttfb"
	PhaseTransfer PhaseKind = "transfer"
)

type PhaseMeta struct {
	Addr   string
	Reused bool
	Cached bool
}

type Phase struct {
	Kind     PhaseKind
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Err      string
	Meta     PhaseMeta
}

// Timeline is the settled view of one exchange's network phases, sorted by
// start time.
type Timeline struct {
	Started   time.Time
	Completed time.Time
	Duration  time.Duration
	Err       string
	Phases    []Phase
}

func (tl *Timeline) Clone() *Timeline {
	if tl == nil {
		return nil
	}
	ph := make([]Phase, len(tl.Phases))
	copy(ph, tl.Phases)
	out := *tl
	out.Phases = ph
	return &out
}

// Durations sums phase durations by kind. A kind can occur more than once,
// for example two connect phases after a redirect.
func (tl *Timeline) Durations() map[PhaseKind]time.Duration {
	if tl == nil {
		return nil
	}
	out := make(map[PhaseKind]time.Duration, len(tl.Phases))
	for _, phase := range tl.Phases {
		if phase.Duration <= 0 {
			continue
		}
		out[phase.Kind] += phase.Duration
	}
	return out
}

type phaseState struct {
	kind  PhaseKind
	start time.Time
	meta  PhaseMeta
}

// Collector accumulates phase begin/end events from httptrace callbacks.
// Callbacks arrive on transport goroutines, so every method locks.
type Collector struct {
	mu       sync.Mutex
	started  time.Time
	finished time.Time
	err      string
	phases   []Phase
	active   map[PhaseKind]*phaseState
}

func NewCollector() *Collector {
	return &Collector{active: make(map[PhaseKind]*phaseState)}
}

func (c *Collector) Begin(kind PhaseKind, ts time.Time) {
	if kind == "" {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() || ts.Before(c.started) {
		c.started = ts
	}
	c.active[kind] = &phaseState{kind: kind, start: ts}
}

func (c *Collector) End(kind PhaseKind, ts time.Time, err error) {
	if kind == "" {
		return
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.active[kind]
	if !ok {
		state = &phaseState{kind: kind, start: ts}
	}
	if ts.Before(state.start) {
		ts = state.start
	}

	phase := Phase{
		Kind:     kind,
		Start:    state.start,
		End:      ts,
		Duration: ts.Sub(state.start),
		Meta:     state.meta,
	}
	if err != nil {
		phase.Err = err.Error()
	}

	c.phases = append(c.phases, phase)
	delete(c.active, kind)
	if ts.After(c.finished) {
		c.finished = ts
	}
}

func (c *Collector) UpdateMeta(kind PhaseKind, fn func(*PhaseMeta)) {
	if kind == "" || fn == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.active[kind]
	if state == nil {
		return
	}
	fn(&state.meta)
}

func (c *Collector) Fail(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	c.mu.Lock()
	c.err = msg
	c.mu.Unlock()
}

// Complete flushes still-active phases as incomplete. Called once when the
// exchange settles, before Timeline.
func (c *Collector) Complete(ts time.Time) {
	if ts.IsZero() {
		ts = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ts.After(c.finished) {
		c.finished = ts
	}
	for kind, state := range c.active {
		c.phases = append(c.phases, Phase{
			Kind:     kind,
			Start:    state.start,
			End:      ts,
			Duration: ts.Sub(state.start),
			Meta:     state.meta,
			Err:      "incomplete",
		})
	}
	c.active = make(map[PhaseKind]*phaseState)
}

func (c *Collector) Timeline() *Timeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.phases) == 0 && len(c.active) == 0 && c.started.IsZero() {
		return nil
	}

	ph := make([]Phase, len(c.phases))
	copy(ph, c.phases)
	sort.SliceStable(ph, func(i, j int) bool {
		if ph[i].Start.Equal(ph[j].Start) {
			return ph[i].End.Before(ph[j].End)
		}
		return ph[i].Start.Before(ph[j].Start)
	})

	start := c.started
	if start.IsZero() && len(ph) > 0 {
		start = ph[0].Start
	}
	finish := c.finished
	if finish.IsZero() && len(ph) > 0 {
		finish = ph[len(ph)-1].End
	}

	tl := &Timeline{
		Started:   start,
		Completed: finish,
		Err:       c.err,
		Phases:    ph,
	}
	if !tl.Started.IsZero() && !tl.Completed.Before(tl.Started) {
		tl.Duration = tl.Completed.Sub(tl.Started)
	}
	return tl
}
