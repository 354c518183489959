package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
	"github.com/sfsm565826960/PostmanLite/internal/nettrace"
)

// HeaderValue is one precedence-resolved header. Order matters for the raw
// preview, so the wire request carries a slice rather than a map.
type HeaderValue struct {
	Key   string
	Value string
}

// WireRequest is the fully assembled descriptor handed to the transport:
// everything is resolved, encoded and ordered.
type WireRequest struct {
	Method     string
	URL        string
	Headers    []HeaderValue
	Body       []byte
	HalfDuplex bool
}

// WireResponse is what a transport yields. Opaque marks exchanges whose
// status, headers and body the transport cannot expose; the engine settles
// those as well-formed non-error snapshots. Timeline, when set, yields the
// network phase breakdown once the exchange has settled.
type WireResponse struct {
	Status       int
	StatusText   string
	Proto        string
	Headers      http.Header
	Body         io.ReadCloser
	Opaque       bool
	EffectiveURL string
	Timeline     func() *nettrace.Timeline
}

// Transport performs one exchange. The engine treats it as a black box and
// aborts it through the context only.
type Transport interface {
	RoundTrip(ctx context.Context, req *WireRequest) (*WireResponse, error)
}

type netTransport struct {
	client *Client
	opts   Options
}

// Transport returns the default net/http-backed transport for opts.
func (c *Client) Transport(opts Options) Transport {
	return &netTransport{client: c, opts: opts}
}

func (t *netTransport) RoundTrip(ctx context.Context, req *WireRequest) (*WireResponse, error) {
	if req == nil {
		return nil, errdef.New(errdef.CodeHTTP, "wire request is nil")
	}

	factory := t.client.resolveHTTPFactory()
	if factory == nil {
		return nil, errdef.New(errdef.CodeHTTP, "http client factory unavailable")
	}
	httpClient, err := factory(t.opts, req.HalfDuplex)
	if err != nil {
		return nil, err
	}

	var session *traceSession
	if t.opts.Trace {
		session = newTraceSession()
		ctx = session.bind(ctx)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "build request")
	}
	for _, header := range req.Headers {
		httpReq.Header.Add(header.Key, header.Value)
	}

	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "perform request")
	}

	effective := req.URL
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		effective = httpResp.Request.URL.String()
	}

	resp := &WireResponse{
		Status:       httpResp.StatusCode,
		StatusText:   httpResp.Status,
		Proto:        httpResp.Proto,
		Headers:      httpResp.Header.Clone(),
		Body:         httpResp.Body,
		EffectiveURL: effective,
	}
	if session != nil {
		resp.Body = &tracedBody{ReadCloser: httpResp.Body, session: session}
		resp.Timeline = session.timeline
	}
	return resp, nil
}
