package httpclient

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sfsm565826960/PostmanLite/internal/nettrace"
	"github.com/sfsm565826960/PostmanLite/internal/reqspec"
	"github.com/sfsm565826960/PostmanLite/internal/signing"
	"github.com/sfsm565826960/PostmanLite/internal/snapshot"
	"github.com/sfsm565826960/PostmanLite/internal/telemetry"
)

type State int

const (
	StateIdle State = iota
	StateSending
	StateBuffering
	StateStreaming
	StateSettled
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateBuffering:
		return "buffering"
	case StateStreaming:
		return "streaming"
	case StateSettled:
		return "settled"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

func (s State) terminal() bool {
	return s == StateSettled || s == StateCancelled
}

// Handle is the live cancellation token for one execution. At most one
// handle is active per Executor; starting a new send cancels the previous
// handle before creating its own.
type Handle struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	session *snapshot.Session

	mu        sync.Mutex
	state     State
	cancelled bool
	timeline  *nettrace.Timeline
}

func newHandle(parent context.Context) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{
		id:      uuid.NewString(),
		ctx:     ctx,
		cancel:  cancel,
		session: snapshot.NewSession(snapshot.Config{}),
		state:   StateSending,
	}
}

func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) Session() *snapshot.Session {
	return h.session
}

func (h *Handle) Done() <-chan struct{} {
	return h.session.Done()
}

// Last returns the authoritative snapshot so far: the most recent publish,
// or nil when nothing was published before cancellation.
func (h *Handle) Last() *snapshot.Snapshot {
	return h.session.Last()
}

// Timeline returns the network phase breakdown, nil unless tracing was
// enabled and the exchange reached the transport.
func (h *Handle) Timeline() *nettrace.Timeline {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timeline
}

func (h *Handle) setTimeline(tl *nettrace.Timeline) {
	if tl == nil {
		return
	}
	h.mu.Lock()
	h.timeline = tl
	h.mu.Unlock()
}

// Cancel aborts the exchange: the transport is signalled through the
// context, the read loop stops at its next suspension point and no further
// snapshot is published. No error snapshot is produced; whatever was last
// published stays. Idempotent.
func (h *Handle) Cancel() {
	h.mu.Lock()
	if h.state.terminal() {
		h.mu.Unlock()
		return
	}
	h.state = StateCancelled
	h.cancelled = true
	h.mu.Unlock()

	h.cancel()
	h.session.Close(nil)
}

func (h *Handle) cancelRequested() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	if !h.state.terminal() {
		h.state = s
	}
	h.mu.Unlock()
}

func (h *Handle) settle(err error) {
	h.mu.Lock()
	if h.state.terminal() {
		h.mu.Unlock()
		return
	}
	h.state = StateSettled
	h.mu.Unlock()

	h.cancel()
	h.session.Close(err)
}

func (h *Handle) publish(snap *snapshot.Snapshot) {
	h.session.Publish(snap)
}

// Executor owns the single in-flight-exchange invariant. The current handle
// is explicit executor state, never package-level.
type Executor struct {
	client *Client
	signer *signing.Signer

	mu         sync.Mutex
	current    *Handle
	transport  Transport
	lastSigned *signing.HeaderSet
}

func NewExecutor(client *Client, signer *signing.Signer) *Executor {
	if client == nil {
		client = NewClient()
	}
	return &Executor{client: client, signer: signer}
}

// SetTransport overrides the transport for every subsequent send. Passing
// nil restores the default net/http transport.
func (e *Executor) SetTransport(t Transport) {
	e.mu.Lock()
	e.transport = t
	e.mu.Unlock()
}

// LastSignedHeaders exposes the most recently computed signed header set
// for display. Read-only; a fresh set is computed on every send.
func (e *Executor) LastSignedHeaders() *signing.HeaderSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSigned == nil {
		return nil
	}
	copied := *e.lastSigned
	return &copied
}

// Current returns the handle of the in-flight exchange, nil when idle.
func (e *Executor) Current() *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Cancel aborts the in-flight exchange, if any. Idempotent.
func (e *Executor) Cancel() {
	e.mu.Lock()
	current := e.current
	e.mu.Unlock()
	if current != nil {
		current.Cancel()
	}
}

// Send starts one execution. A still-running prior execution is cancelled
// first and its snapshot abandoned. Auth headers are recomputed fresh; a
// signing failure is logged and the send proceeds without them.
func (e *Executor) Send(
	ctx context.Context,
	spec *reqspec.RequestSpec,
	globalHeaders reqspec.KeyValueList,
	auth reqspec.AuthConfig,
	opts Options,
) (*Handle, error) {
	var signed *signing.HeaderSet
	if auth.Enabled && e.signer != nil {
		headerSet, err := e.signer.Compute(auth)
		if err != nil {
			log.Printf("postmanlite: compute signed headers: %v (sending without auth headers)", err)
		} else {
			signed = &headerSet
		}
	}

	wire, err := BuildWireRequest(spec, globalHeaders, signed)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.current != nil && !e.current.State().terminal() {
		prior := e.current
		e.mu.Unlock()
		prior.Cancel()
		e.mu.Lock()
	}
	handle := newHandle(ctx)
	e.current = handle
	e.lastSigned = signed
	transport := e.transport
	e.mu.Unlock()

	if transport == nil {
		transport = e.client.Transport(opts)
	}

	go e.run(handle, transport, wire, spec.StreamingEnabled)
	return handle, nil
}

func (e *Executor) run(h *Handle, transport Transport, wire *WireRequest, streaming bool) {
	start := time.Now()

	spanCtx, span := e.client.telemetry.Start(h.ctx, telemetry.RequestStart{
		Method: wire.Method,
		URL:    wire.URL,
	})

	statusCode := 0
	var runErr error
	defer func() {
		span.End(telemetry.RequestResult{Err: runErr, StatusCode: statusCode})
	}()

	resp, err := transport.RoundTrip(spanCtx, wire)
	if err != nil {
		if h.cancelRequested() || errors.Is(err, context.Canceled) {
			// Aborted: no error snapshot, prior state retained.
			h.Cancel()
			return
		}
		runErr = err
		h.publish(&snapshot.Snapshot{
			Status:       0,
			Headers:      nil,
			Elapsed:      time.Since(start),
			IsError:      true,
			ErrorMessage: err.Error(),
		})
		h.settle(err)
		return
	}

	if resp.Opaque {
		// Cross-origin style restriction: settle well-formed, not an error.
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		h.publish(&snapshot.Snapshot{
			Status:       0,
			ContentType:  snapshot.ContentTypeOpaque,
			Body:         "response is opaque: the transport did not expose status, headers or body",
			Elapsed:      time.Since(start),
			EffectiveURL: resp.EffectiveURL,
		})
		h.settle(nil)
		return
	}

	if resp.Timeline != nil {
		defer func() {
			tl := resp.Timeline()
			h.setTimeline(tl)
			span.RecordTrace(tl)
		}()
	}

	statusCode = resp.Status
	if streaming {
		h.setState(StateStreaming)
		runErr = drainStream(h, resp, start)
		return
	}
	h.setState(StateBuffering)
	runErr = drainBuffered(h, resp, start)
}
