package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/sfsm565826960/PostmanLite/internal/nettrace"
)

var tracerName = "github.com/sfsm565826960/PostmanLite/internal/telemetry"

type Instrumenter interface {
	Start(ctx context.Context, info RequestStart) (context.Context, RequestSpan)
	Shutdown(ctx context.Context) error
}

type RequestStart struct {
	Method string
	URL    string
}

type RequestResult struct {
	Err        error
	StatusCode int
}

type RequestSpan interface {
	RecordTrace(tl *nettrace.Timeline)
	End(result RequestResult)
}

type providerOptions struct {
	exporter       sdktrace.SpanExporter
	spanProcessors []sdktrace.SpanProcessor
}

type Option func(*providerOptions)

func WithSpanProcessor(proc sdktrace.SpanProcessor) Option {
	return func(opts *providerOptions) {
		if proc != nil {
			opts.spanProcessors = append(opts.spanProcessors, proc)
		}
	}
}

func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(opts *providerOptions) {
		if exp != nil {
			opts.exporter = exp
		}
	}
}

type manager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	shutdown sync.Once
}

func New(cfg Config, opts ...Option) (Instrumenter, error) {
	builder := providerOptions{}
	for _, opt := range opts {
		opt(&builder)
	}

	if !cfg.Enabled() && builder.exporter == nil && len(builder.spanProcessors) == 0 {
		return Noop(), nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(buildResourceAttributes(cfg)...),
	)
	if err != nil {
		return nil, err
	}

	exporter := builder.exporter
	if exporter == nil && cfg.Enabled() {
		exporter, err = newExporter(cfg)
		if err != nil {
			return nil, err
		}
	}

	var tpOpts []sdktrace.TracerProviderOption
	tpOpts = append(tpOpts, sdktrace.WithResource(res))
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	for _, proc := range builder.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(proc))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &manager{tracer: tp.Tracer(tracerName), provider: tp}, nil
}

func (m *manager) Start(ctx context.Context, info RequestStart) (context.Context, RequestSpan) {
	if strings.TrimSpace(info.URL) == "" {
		return ctx, noopSpan{}
	}

	ctx, span := m.tracer.Start(
		ctx,
		spanNameFor(info),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(buildSpanAttributes(info)...),
	)
	return ctx, &requestSpan{span: span}
}

func (m *manager) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	var shutdownErr error
	m.shutdown.Do(func() {
		shutdownErr = m.provider.Shutdown(ctx)
	})
	return shutdownErr
}

type requestSpan struct {
	span trace.Span
}

func (rs *requestSpan) RecordTrace(tl *nettrace.Timeline) {
	if rs == nil || rs.span == nil || tl == nil {
		return
	}

	rs.span.SetAttributes(attribute.Int64("postmanlite.trace.duration_ms", tl.Duration.Milliseconds()))
	if !tl.Started.IsZero() {
		rs.span.SetAttributes(
			attribute.String("postmanlite.trace.started_at", tl.Started.Format(time.RFC3339Nano)),
		)
	}
	if strings.TrimSpace(tl.Err) != "" {
		rs.span.AddEvent(
			"postmanlite.trace.error",
			trace.WithAttributes(attribute.String("postmanlite.error", tl.Err)),
		)
	}

	for _, phase := range tl.Phases {
		attrs := []attribute.KeyValue{
			attribute.String("postmanlite.trace.phase", string(phase.Kind)),
			attribute.Int64("postmanlite.trace.phase_duration_ms", phase.Duration.Milliseconds()),
		}
		if phase.Meta.Addr != "" {
			attrs = append(attrs, attribute.String("postmanlite.trace.addr", phase.Meta.Addr))
		}
		if phase.Meta.Reused {
			attrs = append(attrs, attribute.Bool("postmanlite.trace.reused", true))
		}
		if phase.Err != "" {
			attrs = append(attrs, attribute.String("postmanlite.trace.phase_error", phase.Err))
		}
		rs.span.AddEvent("postmanlite.trace.phase", trace.WithAttributes(attrs...))
	}
}

func (rs *requestSpan) End(result RequestResult) {
	if rs == nil || rs.span == nil {
		return
	}

	if result.StatusCode > 0 {
		rs.span.SetAttributes(semconv.HTTPStatusCodeKey.Int(result.StatusCode))
	}

	statusCode := codes.Unset
	statusMsg := ""

	if result.Err != nil {
		rs.span.RecordError(result.Err)
		statusCode = codes.Error
		statusMsg = result.Err.Error()
	}

	if result.Err == nil && result.StatusCode >= 400 {
		statusCode = codes.Error
		statusMsg = fmt.Sprintf("HTTP %d", result.StatusCode)
	}

	if statusCode == codes.Unset {
		statusCode = codes.Ok
		statusMsg = "OK"
	}

	rs.span.SetStatus(statusCode, statusMsg)
	rs.span.End()
}

func Noop() Instrumenter {
	return noopInstrumenter{}
}

type noopInstrumenter struct{}

type noopSpan struct{}

func (noopInstrumenter) Start(ctx context.Context, _ RequestStart) (context.Context, RequestSpan) {
	return ctx, noopSpan{}
}

func (noopInstrumenter) Shutdown(context.Context) error { return nil }

func (noopSpan) RecordTrace(*nettrace.Timeline) {}

func (noopSpan) End(RequestResult) {}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("telemetry endpoint is required")
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	client := otlptracegrpc.NewClient(clientOpts...)
	return otlptrace.New(ctx, client)
}

func buildResourceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}
	if strings.TrimSpace(cfg.Version) != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}
	return attrs
}

func buildSpanAttributes(info RequestStart) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if info.Method != "" {
		attrs = append(attrs, semconv.HTTPMethodKey.String(info.Method))
	}
	if parsed, err := url.Parse(info.URL); err == nil {
		if parsed.Scheme != "" {
			attrs = append(attrs, semconv.HTTPSchemeKey.String(parsed.Scheme))
		}
		if target := parsed.RequestURI(); target != "" {
			attrs = append(attrs, semconv.HTTPTargetKey.String(target))
		}
	}
	if info.URL != "" {
		attrs = append(attrs, semconv.HTTPURLKey.String(info.URL))
	}
	return attrs
}

func spanNameFor(info RequestStart) string {
	if info.Method == "" {
		return "http.request"
	}
	if parsed, err := url.Parse(info.URL); err == nil && parsed.Host != "" {
		return fmt.Sprintf("%s %s", info.Method, parsed.Host)
	}
	return info.Method
}
