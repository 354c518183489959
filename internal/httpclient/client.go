package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"github.com/sfsm565826960/PostmanLite/internal/errdef"
	"github.com/sfsm565826960/PostmanLite/internal/telemetry"
)

type Options struct {
	Timeout            time.Duration
	FollowRedirects    bool
	InsecureSkipVerify bool
	ProxyURL           string
	Trace              bool
}

// Client owns what is shared between executions: the cookie jar, the
// http.Client factory and the telemetry instrumenter. The factory can be
// overridden so tests never open sockets.
type Client struct {
	jar         http.CookieJar
	httpFactory func(Options, bool) (*http.Client, error)
	telemetry   telemetry.Instrumenter
}

func NewClient() *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{jar: jar, telemetry: telemetry.Noop()}
	c.httpFactory = c.buildHTTPClient
	return c
}

// SetHTTPFactory allows callers to override how http.Client instances are created.
// Passing nil restores the default factory.
func (c *Client) SetHTTPFactory(factory func(Options, bool) (*http.Client, error)) {
	if factory == nil {
		factory = c.buildHTTPClient
	}
	c.httpFactory = factory
}

// SetTelemetry configures the instrumenter used to emit spans around each
// execution. Passing nil restores the no-op implementation.
func (c *Client) SetTelemetry(instr telemetry.Instrumenter) {
	if instr == nil {
		instr = telemetry.Noop()
	}
	c.telemetry = instr
}

func (c *Client) resolveHTTPFactory() func(Options, bool) (*http.Client, error) {
	if c == nil {
		return nil
	}
	if c.httpFactory != nil {
		return c.httpFactory
	}
	return c.buildHTTPClient
}

// halfDuplex asks for h2 explicitly so request and response bytes may
// overlap in flight while a streaming exchange still carries a body.
func (c *Client) buildHTTPClient(opts Options, halfDuplex bool) (*http.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, errdef.Wrap(errdef.CodeHTTP, err, "parse proxy url")
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if halfDuplex {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, errdef.Wrap(errdef.CodeHTTP, err, "enable http2 for streaming")
		}
	}

	client := &http.Client{Transport: transport, Jar: c.jar}
	if opts.Timeout > 0 && !halfDuplex {
		// Streaming exchanges get no overall deadline; the handle's
		// context is the only way to end them early.
		client.Timeout = opts.Timeout
	}
	if !opts.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client, nil
}
