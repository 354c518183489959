package snapshot

import (
	"sync"
	"sync/atomic"
	"time"
)

type DropPolicy int

const (
	DropNewest DropPolicy = iota
	DropOldest
	DropListener
)

type Config struct {
	BufferSize     int
	ListenerBuffer int
	DropPolicy     DropPolicy
}

func defaultConfig(cfg Config) Config {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.ListenerBuffer <= 0 {
		cfg.ListenerBuffer = 64
	}

	switch cfg.DropPolicy {
	case DropNewest, DropOldest, DropListener:
	default:
		cfg.DropPolicy = DropOldest
	}
	return cfg
}

type State int

const (
	StateOpen State = iota
	StateClosed
	StateFailed
)

// Session fans published snapshots out to listeners. One session backs one
// execution handle; snapshots arrive in strictly increasing sequence order
// and the last one before Close is the terminal view.
type Session struct {
	cfg Config

	mu        sync.RWMutex
	state     State
	err       error
	last      *Snapshot
	buffer    *ringBuffer
	listeners map[int]*listener
	nextLID   int

	done chan struct{}

	stats Stats
}

type Stats struct {
	StartedAt time.Time
	EndedAt   time.Time
	Published uint64
	Dropped   uint64
}

type listener struct {
	ch        chan *Snapshot
	policy    DropPolicy
	closed    int32
	closeOnce sync.Once
}

type Listener struct {
	C      <-chan *Snapshot
	Cancel func()
	Replay []*Snapshot
}

func NewSession(cfg Config) *Session {
	cfg = defaultConfig(cfg)
	return &Session{
		cfg:       cfg,
		state:     StateOpen,
		buffer:    newRingBuffer(cfg.BufferSize),
		listeners: make(map[int]*listener),
		done:      make(chan struct{}),
		stats:     Stats{StartedAt: time.Now()},
	}
}

func (s *Session) State() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.err
}

// Last returns the most recently published snapshot, nil before the first
// publish.
func (s *Session) Last() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Session) StatsSnapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Session) History() []*Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buffer.snapshot()
}

// Subscribe registers a listener and replays what was already published so
// late subscribers still observe the full progression.
func (s *Session) Subscribe() Listener {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextLID
	s.nextLID++
	l := &listener{
		ch:     make(chan *Snapshot, s.cfg.ListenerBuffer),
		policy: s.cfg.DropPolicy,
	}
	if s.state == StateOpen {
		s.listeners[id] = l
	} else {
		l.close()
	}

	return Listener{
		C: l.ch,
		Cancel: func() {
			s.removeListener(id)
		},
		Replay: s.buffer.snapshot(),
	}
}

func (s *Session) removeListener(id int) {
	s.mu.Lock()
	l, ok := s.listeners[id]
	if ok {
		delete(s.listeners, id)
	}
	s.mu.Unlock()
	if ok {
		l.close()
	}
}

func (l *listener) close() {
	l.closeOnce.Do(func() {
		atomic.StoreInt32(&l.closed, 1)
		close(l.ch)
	})
}

// Publish stamps the snapshot and fans it out. Publishing after Close is a
// no-op, which is what suppresses abandoned handles.
func (s *Session) Publish(snap *Snapshot) {
	if snap == nil {
		return
	}

	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	snap.Sequence = nextSequence()
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}
	s.last = snap
	s.buffer.append(snap)
	s.stats.Published++
	listeners := make([]*listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	dropped := 0
	for _, l := range listeners {
		if !l.emit(snap) {
			dropped++
		}
	}
	if dropped > 0 {
		s.mu.Lock()
		s.stats.Dropped += uint64(dropped)
		s.mu.Unlock()
	}
}

func (l *listener) emit(snap *Snapshot) bool {
	if atomic.LoadInt32(&l.closed) == 1 {
		return false
	}

	send := func() bool {
		switch l.policy {
		case DropNewest:
			select {
			case l.ch <- snap:
				return true
			default:
				return false
			}
		case DropListener:
			select {
			case l.ch <- snap:
				return true
			default:
				l.close()
				return false
			}
		default: // DropOldest - discard one buffered snapshot to make room
			select {
			case l.ch <- snap:
				return true
			default:
				select {
				case <-l.ch:
				default:
				}
				select {
				case l.ch <- snap:
					return true
				default:
					return false
				}
			}
		}
	}
	defer func() {
		if r := recover(); r != nil {
			atomic.StoreInt32(&l.closed, 1)
		}
	}()
	return send()
}

// Close settles the session. A nil error means the exchange completed (or
// was cancelled without an error result); idempotent.
func (s *Session) Close(err error) {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state = StateFailed
		s.err = err
	} else {
		s.state = StateClosed
	}
	if s.stats.EndedAt.IsZero() {
		s.stats.EndedAt = time.Now()
	}

	listeners := make([]*listener, 0, len(s.listeners))
	for id, l := range s.listeners {
		listeners = append(listeners, l)
		delete(s.listeners, id)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l.close()
	}
	close(s.done)
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

type ringBuffer struct {
	items []*Snapshot
	start int
	count int
}

func newRingBuffer(size int) *ringBuffer {
	if size <= 0 {
		size = 1
	}
	return &ringBuffer{items: make([]*Snapshot, size)}
}

func (r *ringBuffer) append(snap *Snapshot) {
	if r.count < len(r.items) {
		r.items[(r.start+r.count)%len(r.items)] = snap
		r.count++
		return
	}
	r.items[r.start] = snap
	r.start = (r.start + 1) % len(r.items)
}

func (r *ringBuffer) snapshot() []*Snapshot {
	out := make([]*Snapshot, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.items[(r.start+i)%len(r.items)])
	}
	return out
}
