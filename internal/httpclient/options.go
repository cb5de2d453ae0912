// Package httpclient provides an instrumented JSON HTTP client with OTEL
// tracing, request metrics and br/gzip response decoding.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ResponseErrorHandler turns a completed response into an error, or nil
// when the response is usable.
type ResponseErrorHandler func(statusCode int, body []byte) error

type options struct {
	baseURL       string
	timeout       time.Duration
	headers       map[string]string
	providerName  string
	roundTripper  http.RoundTripper
	meterProvider metric.MeterProvider
	tracer        trace.Tracer
	errorHandler  ResponseErrorHandler
}

// Option configures a Client.
type Option func(*options)

// WithBaseURL sets the URL relative paths are resolved against.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithTimeout bounds every request, body read included.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHeaders sets headers sent on every request.
func WithHeaders(h map[string]string) Option {
	return func(o *options) { o.headers = h }
}

// WithProviderName labels metrics and spans.
func WithProviderName(name string) Option {
	return func(o *options) { o.providerName = name }
}

// WithRoundTripper replaces the pooled base transport.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) { o.roundTripper = rt }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithErrorHandler installs a handler run on every response.
func WithErrorHandler(h ResponseErrorHandler) Option {
	return func(o *options) { o.errorHandler = h }
}
