package trace

import (
	"context"
	"log/slog"
	"net/http"

	"mentor/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "mentor"

// otelErrorHandler logs OTel internal errors via slog.
type otelErrorHandler struct{}

func (otelErrorHandler) Handle(err error) {
	slog.Error("otel error", "error", err)
}

// Init installs a global tracer provider that exports over OTLP/HTTP.
// Spans are batched; call shutdown before exit to flush them.
func Init(ctx context.Context, cfg config.TraceConfig) (shutdown func(context.Context) error, err error) {
	otel.SetErrorHandler(otelErrorHandler{})

	exporter, err := otlptracehttp.New(ctx, exporterOptions(cfg)...)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	slog.Debug("tracing enabled", "endpoint", cfg.Endpoint, "url_path", cfg.URLPath, "has_api_key", cfg.APIKey != "")
	return tp.Shutdown, nil
}

func exporterOptions(cfg config.TraceConfig) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithHTTPClient(&http.Client{
			Transport: &loggingTransport{inner: http.DefaultTransport},
		}),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(cfg.URLPath))
	}
	if cfg.APIKey != "" {
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{
			"Authorization": "Bearer " + cfg.APIKey,
		}))
	}
	return opts
}

// loggingTransport logs failed exports at error level and the rest at debug.
type loggingTransport struct {
	inner http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		slog.Error("otlp export failed", "url", req.URL.String(), "error", err)
		return resp, err
	}
	if resp.StatusCode >= 300 {
		slog.Error("otlp export rejected", "url", req.URL.String(), "status", resp.StatusCode)
	} else {
		slog.Debug("otlp export ok", "url", req.URL.String(), "content_length", req.ContentLength)
	}
	return resp, nil
}

// Tracer returns the mentor tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(serviceName)
}
