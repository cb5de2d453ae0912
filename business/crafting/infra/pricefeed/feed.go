// Package pricefeed streams live market prices from a websocket service and
// implements app.PriceFeed.
package pricefeed

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/craftcalc/business/crafting/app"
	"github.com/fd1az/craftcalc/business/crafting/domain"
	"github.com/fd1az/craftcalc/internal/logger"
	"github.com/fd1az/craftcalc/internal/wsconn"
)

const (
	meterName  = "crafting.pricefeed"
	bufferSize = 256
)

// Config configures the feed.
type Config struct {
	URL            string
	Server         string // empty subscribes to every server
	MaxReconnects  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PingInterval   time.Duration // negative disables pings
}

// Feed opens one websocket connection per subscription.
type Feed struct {
	config Config
	log    logger.LoggerInterface
	now    func() time.Time

	current atomic.Pointer[wsconn.Client]

	received metric.Int64Counter
}

var _ app.PriceFeed = (*Feed)(nil)

// New builds a feed. Nothing is dialled until Subscribe.
func New(cfg Config, log logger.LoggerInterface) (*Feed, error) {
	counter, err := otel.Meter(meterName).Int64Counter(
		"crafting_price_ticks_total",
		metric.WithDescription("Price ticks received, by outcome"),
	)
	if err != nil {
		return nil, err
	}
	return &Feed{config: cfg, log: log, now: time.Now, received: counter}, nil
}

// Subscribe connects and streams ticks until ctx ends. The channel is closed
// once the connection is torn down.
func (f *Feed) Subscribe(ctx context.Context) (<-chan domain.PriceTick, error) {
	wsCfg := wsconn.DefaultConfig(f.config.URL, "pricefeed")
	wsCfg.MaxReconnects = f.config.MaxReconnects
	if f.config.InitialBackoff > 0 {
		wsCfg.InitialBackoff = f.config.InitialBackoff
	}
	if f.config.MaxBackoff > 0 {
		wsCfg.MaxBackoff = f.config.MaxBackoff
	}
	switch {
	case f.config.PingInterval < 0:
		wsCfg.PingInterval = 0
	case f.config.PingInterval > 0:
		wsCfg.PingInterval = f.config.PingInterval
	}

	client, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.PriceTick, bufferSize)
	client.OnMessage(func(_ context.Context, raw []byte) {
		f.handle(ctx, raw, out)
	})
	client.OnStateChange(func(s wsconn.State, err error) {
		if err != nil {
			f.log.Warn(ctx, "price feed state changed", "state", string(s), "error", err)
			return
		}
		f.log.Info(ctx, "price feed state changed", "state", string(s))
	})
	client.OnConnect(func(ctx context.Context) error {
		return client.SendJSON(ctx, subscribeRequest{Op: "subscribe", Server: f.config.Server})
	})

	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, err
	}
	f.current.Store(client)

	go func() {
		<-ctx.Done()
		f.current.CompareAndSwap(client, nil)
		client.Close()
		close(out)
	}()
	return out, nil
}

// Connected reports whether the latest subscription is live.
func (f *Feed) Connected() bool {
	c := f.current.Load()
	return c != nil && c.IsConnected()
}

func (f *Feed) handle(ctx context.Context, raw []byte, out chan<- domain.PriceTick) {
	ticks, errs := decodeFrame(raw, f.now())
	for _, err := range errs {
		f.received.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "rejected")))
		f.log.Warn(ctx, "price tick rejected", "error", err)
	}
	for _, t := range ticks {
		select {
		case out <- t:
			f.received.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "accepted")))
		case <-ctx.Done():
			return
		}
	}
}
