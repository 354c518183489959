package httpclient

import (
	"context"
	"crypto/tls"
	"io"
	"net/http/httptrace"
	"time"

	"github.com/sfsm565826960/PostmanLite/internal/nettrace"
)

// traceSession translates httptrace callbacks into nettrace phases for one
// exchange. Request body and TTFB phases need their own flags because the
// callbacks fire in transport order, not phase order.
type traceSession struct {
	collector      *nettrace.Collector
	trace          *httptrace.ClientTrace
	reqBodyActive  bool
	ttfbActive     bool
	transferActive bool
}

func newTraceSession() *traceSession {
	s := &traceSession{collector: nettrace.NewCollector()}
	s.trace = &httptrace.ClientTrace{
		DNSStart:             s.onDNSStart,
		DNSDone:              s.onDNSDone,
		ConnectStart:         s.onConnectStart,
		ConnectDone:          s.onConnectDone,
		GotConn:              s.onGotConn,
		TLSHandshakeStart:    s.onTLSHandshakeStart,
		TLSHandshakeDone:     s.onTLSHandshakeDone,
		WroteHeaders:         s.onWroteHeaders,
		WroteRequest:         s.onWroteRequest,
		GotFirstResponseByte: s.onGotFirstResponseByte,
	}
	return s
}

func (s *traceSession) bind(ctx context.Context) context.Context {
	return httptrace.WithClientTrace(ctx, s.trace)
}

func (s *traceSession) onDNSStart(info httptrace.DNSStartInfo) {
	s.collector.Begin(nettrace.PhaseDNS, time.Now())
	if info.Host != "" {
		s.collector.UpdateMeta(nettrace.PhaseDNS, func(meta *nettrace.PhaseMeta) {
			meta.Addr = info.Host
		})
	}
}

func (s *traceSession) onDNSDone(info httptrace.DNSDoneInfo) {
	s.collector.UpdateMeta(nettrace.PhaseDNS, func(meta *nettrace.PhaseMeta) {
		if len(info.Addrs) > 0 {
			meta.Addr = info.Addrs[0].String()
		}
		if info.Coalesced {
			meta.Cached = true
		}
	})
	s.collector.End(nettrace.PhaseDNS, time.Now(), info.Err)
	if info.Err != nil {
		s.collector.Fail(info.Err)
	}
}

func (s *traceSession) onConnectStart(network, addr string) {
	s.collector.Begin(nettrace.PhaseConnect, time.Now())
	if addr != "" {
		s.collector.UpdateMeta(nettrace.PhaseConnect, func(meta *nettrace.PhaseMeta) {
			meta.Addr = addr
		})
	}
}

func (s *traceSession) onConnectDone(network, addr string, err error) {
	s.collector.End(nettrace.PhaseConnect, time.Now(), err)
	if err != nil {
		s.collector.Fail(err)
	}
}

func (s *traceSession) onGotConn(info httptrace.GotConnInfo) {
	if !info.Reused {
		return
	}
	// A reused connection skips connect entirely; record a zero-width
	// phase so the timeline still shows where it came from.
	now := time.Now()
	s.collector.Begin(nettrace.PhaseConnect, now)
	s.collector.UpdateMeta(nettrace.PhaseConnect, func(meta *nettrace.PhaseMeta) {
		meta.Reused = true
		if info.Conn != nil {
			meta.Addr = info.Conn.RemoteAddr().String()
		}
	})
	s.collector.End(nettrace.PhaseConnect, now, nil)
}

func (s *traceSession) onTLSHandshakeStart() {
	s.collector.Begin(nettrace.PhaseTLS, time.Now())
}

func (s *traceSession) onTLSHandshakeDone(state tls.ConnectionState, err error) {
	s.collector.End(nettrace.PhaseTLS, time.Now(), err)
	if err != nil {
		s.collector.Fail(err)
	}
}

func (s *traceSession) onWroteHeaders() {
	now := time.Now()
	s.collector.Begin(nettrace.PhaseReqHdrs, now)
	s.collector.End(nettrace.PhaseReqHdrs, now, nil)
	if !s.reqBodyActive {
		s.reqBodyActive = true
		s.collector.Begin(nettrace.PhaseReqBody, now)
	}
}

func (s *traceSession) onWroteRequest(info httptrace.WroteRequestInfo) {
	now := time.Now()
	if s.reqBodyActive {
		s.collector.End(nettrace.PhaseReqBody, now, info.Err)
		s.reqBodyActive = false
	}
	if info.Err != nil {
		s.collector.Fail(info.Err)
		return
	}
	if !s.ttfbActive {
		s.ttfbActive = true
		s.collector.Begin(nettrace.PhaseTTFB, now)
	}
}

func (s *traceSession) onGotFirstResponseByte() {
	now := time.Now()
	if s.ttfbActive {
		s.collector.End(nettrace.PhaseTTFB, now, nil)
		s.ttfbActive = false
	}
	if !s.transferActive {
		s.transferActive = true
		s.collector.Begin(nettrace.PhaseTransfer, now)
	}
}

func (s *traceSession) finishTransfer(err error) {
	if !s.transferActive {
		return
	}
	s.collector.End(nettrace.PhaseTransfer, time.Now(), err)
	s.transferActive = false
	if err != nil {
		s.collector.Fail(err)
	}
}

func (s *traceSession) timeline() *nettrace.Timeline {
	s.collector.Complete(time.Now())
	return s.collector.Timeline()
}

// tracedBody closes the transfer phase when the response body finishes, on
// EOF or on Close, whichever comes first.
type tracedBody struct {
	io.ReadCloser
	session *traceSession
	done    bool
}

func (b *tracedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && !b.done {
		b.done = true
		if err == io.EOF {
			b.session.finishTransfer(nil)
		} else {
			b.session.finishTransfer(err)
		}
	}
	return n, err
}

func (b *tracedBody) Close() error {
	if !b.done {
		b.done = true
		b.session.finishTransfer(nil)
	}
	return b.ReadCloser.Close()
}
