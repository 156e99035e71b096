package gtfsrt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/theoremus-urban-solutions/fleetview/fleet"
	"github.com/theoremus-urban-solutions/fleetview/pubsub"
)

// DefaultReadInterval is used when a feed sets no interval.
const DefaultReadInterval = 30 * time.Second

// Feed describes one VehiclePositions source.
type Feed struct {
	Name        string
	URL         string
	Interval    time.Duration
	Timeout     time.Duration
	VehicleType fleet.Type
}

// Observer receives poll outcomes, typically for metrics.
type Observer interface {
	FeedPolled(feed string, vehicles int, err error)
}

type noopObserver struct{}

func (noopObserver) FeedPolled(string, int, error) {}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) { p.log = l }
}

// WithObserver sets the observer notified of every poll.
func WithObserver(o Observer) PollerOption {
	return func(p *Poller) { p.obs = o }
}

// WithTracer sets the tracer used for poll spans.
func WithTracer(t trace.Tracer) PollerOption {
	return func(p *Poller) { p.tracer = t }
}

// WithChannel overrides fleet.TelemetryChannel.
func WithChannel(channel string) PollerOption {
	return func(p *Poller) { p.channel = channel }
}

// WithRegistry shares an object id registry between pollers. Each poller keys
// its vehicles under its feed name.
func WithRegistry(r *Registry) PollerOption {
	return func(p *Poller) { p.reg = r }
}

// Poller fetches a feed on an interval and publishes its vehicles.
type Poller struct {
	feed    Feed
	channel string
	client  *Client
	reg     *Registry
	pub     *pubsub.Publisher[fleet.Vehicle]
	log     *slog.Logger
	obs     Observer
	tracer  trace.Tracer
}

// NewPoller registers publisher "gtfsrt-<feed name>" on the telemetry channel.
func NewPoller(dist *pubsub.Distributor[fleet.Vehicle], feed Feed, opts ...PollerOption) (*Poller, error) {
	if feed.Interval <= 0 {
		feed.Interval = DefaultReadInterval
	}
	if feed.VehicleType == "" {
		feed.VehicleType = fleet.Truck
	}
	p := &Poller{
		feed:    feed,
		channel: fleet.TelemetryChannel,
		client:  NewClient(feed.Timeout),
		log:     slog.Default(),
		obs:     noopObserver{},
		tracer:  otel.Tracer("github.com/theoremus-urban-solutions/fleetview/gtfsrt"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.reg == nil {
		p.reg = NewRegistry()
	}
	p.reg = p.reg.Scoped(feed.Name)
	pub, err := dist.RegisterPublisher("gtfsrt-"+feed.Name, p.channel)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", feed.Name, err)
	}
	p.pub = pub
	p.log = p.log.With("feed", feed.Name)
	return p, nil
}

// Poll fetches, decodes and publishes the feed once and returns the number of
// vehicles published.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	ctx, span := p.tracer.Start(ctx, "gtfsrt.Poller.Poll", trace.WithAttributes(
		attribute.String("feed", p.feed.Name),
	))
	defer span.End()

	n, err := p.poll(ctx)
	p.obs.FeedPolled(p.feed.Name, n, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "poll_failed")
		return 0, err
	}
	span.SetAttributes(attribute.Int("vehicles", n))
	return n, nil
}

func (p *Poller) poll(ctx context.Context) (int, error) {
	data, err := p.client.Fetch(ctx, p.feed.URL)
	if err != nil {
		return 0, fmt.Errorf("feed %s: %w", p.feed.Name, err)
	}
	vehicles, err := DecodeVehicles(data, p.reg, p.feed.VehicleType)
	if err != nil {
		return 0, fmt.Errorf("feed %s: %w", p.feed.Name, err)
	}
	if err := p.pub.PublishMany(vehicles); err != nil {
		return 0, err
	}
	return len(vehicles), nil
}

// Run polls immediately and then once per interval until ctx is done. Poll
// failures are logged and do not stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	defer p.pub.Unpublish()

	ticker := time.NewTicker(p.feed.Interval)
	defer ticker.Stop()
	for {
		n, err := p.Poll(ctx)
		switch {
		case errors.Is(err, ErrEmptyFeed):
			p.log.Debug("feed has no vehicles")
		case err != nil && ctx.Err() == nil:
			p.log.Warn("poll failed", "error", err)
		case err == nil:
			p.log.Debug("feed polled", "vehicles", n)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
