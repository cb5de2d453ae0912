package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDialKeepAlive   = 30 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxConnsPerHost = 16
	defaultIdleConnTimeout = 90 * time.Second

	metricRequestCounter  = "http_client_requests_total"
	metricRequestDuration = "http_client_request_duration_seconds"

	instrumentationName = "github.com/fd1az/craftcalc/internal/httpclient"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsError reports a 4xx or 5xx status.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// Client issues GET requests against a base URL.
type Client struct {
	http         *http.Client
	baseURL      string
	headers      map[string]string
	providerName string
	tracer       trace.Tracer
	errorHandler ResponseErrorHandler

	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// New builds a Client. The base transport is pooled, decodes br and gzip
// bodies and is wrapped with otelhttp.
func New(opts ...Option) (*Client, error) {
	o := &options{timeout: defaultRequestTimeout, providerName: "default"}
	for _, opt := range opts {
		opt(o)
	}

	base := o.roundTripper
	if base == nil {
		base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			DialContext:       (&net.Dialer{KeepAlive: defaultDialKeepAlive}).DialContext,
			ForceAttemptHTTP2: true,
			MaxConnsPerHost:   defaultMaxConnsPerHost,
			IdleConnTimeout:   defaultIdleConnTimeout,
		}
	}

	transport := otelhttp.NewTransport(
		&decodingTransport{next: base},
		otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}),
	)

	mp := o.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	requests, err := meter.Int64Counter(
		metricRequestCounter,
		metric.WithDescription("Total number of outbound HTTP requests"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		metricRequestDuration,
		metric.WithDescription("Outbound HTTP request latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	return &Client{
		http:         &http.Client{Transport: transport, Timeout: o.timeout},
		baseURL:      strings.TrimSuffix(o.baseURL, "/"),
		headers:      o.headers,
		providerName: o.providerName,
		tracer:       tracer,
		errorHandler: o.errorHandler,
		requests:     requests,
		duration:     duration,
	}, nil
}

// Get performs a GET and reads the whole body. A non-nil Response is
// returned whenever the server answered, even if the error handler failed it.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	target := c.resolve(path, query)

	ctx, span := c.tracer.Start(ctx, "http.get",
		trace.WithAttributes(
			attribute.String("http.url", target),
			attribute.String("provider", c.providerName),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recordError(ctx, span, err, start)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordError(ctx, span, err, start)
		return nil, fmt.Errorf("read body: %w", err)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if c.errorHandler != nil {
		if herr := c.errorHandler(resp.StatusCode, body); herr != nil {
			span.SetStatus(codes.Error, herr.Error())
			c.record(ctx, false, start)
			return out, herr
		}
	}

	c.record(ctx, !out.IsError(), start)
	return out, nil
}

// GetJSON performs Get and decodes a successful body into dst.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, dst any) (*Response, error) {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return resp, err
	}
	if resp.IsError() || len(resp.Body) == 0 {
		return resp, nil
	}
	if err := json.Unmarshal(resp.Body, dst); err != nil {
		return resp, &DecodeError{Err: err}
	}
	return resp, nil
}

// DecodeError marks a body that arrived but could not be parsed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode response: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

func (c *Client) resolve(path string, query url.Values) string {
	target := path
	if c.baseURL != "" && !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + "/" + strings.TrimPrefix(path, "/")
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return target
}

func (c *Client) recordError(ctx context.Context, span trace.Span, err error, start time.Time) {
	span.RecordError(err)

	var netErr net.Error
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	if errors.As(err, &netErr) && netErr.Timeout() {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}

	span.SetStatus(codes.Error, err.Error())
	c.record(ctx, false, start)
}

func (c *Client) record(ctx context.Context, success bool, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("provider", c.providerName),
		attribute.Bool("success", success),
	)
	c.requests.Add(ctx, 1, attrs)
	c.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}
