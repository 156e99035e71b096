package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/theoremus-urban-solutions/fleetview/layer"
	"github.com/theoremus-urban-solutions/fleetview/pubsub"
	"github.com/theoremus-urban-solutions/fleetview/viewport"
)

// DefaultQueueCapacity is the number of batches a consumer holds, including
// the one being processed.
const DefaultQueueCapacity = 2

var queryFields = []string{"objectId", "heading", "depth", "vehicleId"}

// ViewportSource yields the viewport a consumer draws on.
type ViewportSource interface {
	ActiveViewport() viewport.Viewport
}

// LayerSource yields the vehicle layer for a viewport.
type LayerSource interface {
	LayerFor(ctx context.Context, vp viewport.Viewport) (layer.Layer, error)
}

// Observer receives consumer outcomes, typically for metrics.
type Observer interface {
	BatchDropped(consumer string)
	BatchSkipped(consumer string)
	BatchAborted(consumer string, applied int)
	BatchApplied(consumer string, added, updated int)
}

type noopObserver struct{}

func (noopObserver) BatchDropped(string)           {}
func (noopObserver) BatchSkipped(string)           {}
func (noopObserver) BatchAborted(string, int)      {}
func (noopObserver) BatchApplied(string, int, int) {}

// Option configures a Consumer.
type Option func(*Consumer)

// WithQueueCapacity overrides DefaultQueueCapacity. Values below one are ignored.
func WithQueueCapacity(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Consumer) { c.log = l }
}

// WithObserver sets the observer notified of batch outcomes.
func WithObserver(o Observer) Option {
	return func(c *Consumer) { c.obs = o }
}

// WithTracer sets the tracer used for batch spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Consumer) { c.tracer = t }
}

// WithErrorHandler sets a hook called with every error from a background drain.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Consumer) { c.onError = fn }
}

// Consumer applies telemetry batches to the layer of the active viewport.
type Consumer struct {
	id       string
	views    ViewportSource
	layers   LayerSource
	capacity int
	log      *slog.Logger
	obs      Observer
	tracer   trace.Tracer
	onError  func(error)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	idle     *sync.Cond
	queue    [][]pubsub.DataItem[Vehicle]
	draining bool
	sub      *pubsub.Subscription
}

// NewConsumer creates a consumer named id. The id is also its subscriber id.
func NewConsumer(id string, views ViewportSource, layers LayerSource, opts ...Option) *Consumer {
	c := &Consumer{
		id:       id,
		views:    views,
		layers:   layers,
		capacity: DefaultQueueCapacity,
		log:      slog.Default(),
		obs:      noopObserver{},
		tracer:   otel.Tracer("github.com/theoremus-urban-solutions/fleetview/fleet"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("consumer", id)
	c.idle = sync.NewCond(&c.mu)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

func (c *Consumer) ID() string { return c.id }

// Attach subscribes the consumer to channel on dist.
func (c *Consumer) Attach(dist *pubsub.Distributor[Vehicle], channel string) error {
	sub, err := dist.RegisterSubscriber(c.id, func(chunk []pubsub.DataItem[Vehicle], _ string, _ *pubsub.Distributor[Vehicle]) {
		c.Push(chunk)
	}, channel, pubsub.Stream)
	if err != nil {
		return fmt.Errorf("attach consumer %s: %w", c.id, err)
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()
	c.log.Info("consumer attached", "channel", sub.Channel())
	return nil
}

// Push queues a batch and returns false when the queue is full and the batch
// was dropped. It never blocks.
func (c *Consumer) Push(batch []pubsub.DataItem[Vehicle]) bool {
	c.mu.Lock()
	if len(c.queue) >= c.capacity {
		c.mu.Unlock()
		c.obs.BatchDropped(c.id)
		c.log.Debug("queue full, batch dropped", "vehicles", len(batch))
		return false
	}
	c.queue = append(c.queue, batch)
	start := !c.draining
	c.draining = true
	c.mu.Unlock()

	if start {
		go c.drain()
	}
	return true
}

// Pending returns the number of queued batches, including one in progress.
func (c *Consumer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Wait blocks until the queue is empty.
func (c *Consumer) Wait() {
	c.mu.Lock()
	for c.draining {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

// Close unsubscribes the consumer and cancels the batch in progress.
func (c *Consumer) Close() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
	c.cancel()
}

func (c *Consumer) drain() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.draining = false
			c.idle.Broadcast()
			c.mu.Unlock()
			return
		}
		batch := c.queue[0]
		c.mu.Unlock()

		if err := c.UpdateFeatures(c.ctx, batch); err != nil && c.ctx.Err() == nil {
			c.log.Error("fleet update failed", "error", err)
			if c.onError != nil {
				c.onError(err)
			}
		}

		c.mu.Lock()
		c.queue[0] = nil
		c.queue = c.queue[1:]
		c.mu.Unlock()
	}
}

// UpdateFeatures writes batch to the layer of the active viewport, one edit
// per vehicle: an update when the layer already holds the vehicle's object id,
// an add otherwise. Nothing is written unless the viewport is ready and
// stationary. If the viewport starts moving the remaining vehicles are
// skipped and nil is returned.
func (c *Consumer) UpdateFeatures(ctx context.Context, batch []pubsub.DataItem[Vehicle]) error {
	vp := c.views.ActiveViewport()
	if vp == nil || !vp.Ready() {
		c.obs.BatchSkipped(c.id)
		return nil
	}

	// the watch goes in before the stationary check so a gesture starting in
	// between still aborts the batch
	var moved, fired atomic.Bool
	watch := vp.WatchFlags([]viewport.Property{viewport.Stationary}, func(_ viewport.Property, stationary bool) {
		if fired.Swap(true) {
			return
		}
		if !stationary {
			moved.Store(true)
		}
	})
	defer watch.Remove()
	if !vp.Stationary() {
		c.obs.BatchSkipped(c.id)
		return nil
	}

	ctx, span := c.tracer.Start(ctx, "fleet.Consumer.UpdateFeatures", trace.WithAttributes(
		attribute.String("consumer", c.id),
		attribute.String("viewport", vp.ID()),
		attribute.Int("vehicles", len(batch)),
	))
	defer span.End()

	lyr, err := c.layers.LayerFor(ctx, vp)
	if err != nil {
		return c.fail(span, fmt.Errorf("layer for %s: %w", vp.ID(), err))
	}
	features, err := lyr.QueryFeatures(ctx, layer.Query{OutFields: queryFields, ReturnGeometry: true})
	if err != nil {
		return c.fail(span, fmt.Errorf("query %s: %w", lyr.ID(), err))
	}
	onLayer := make(map[int64]layer.Feature, len(features))
	for _, f := range features {
		onLayer[f.ObjectID] = f
	}

	added, updated := 0, 0
	for _, item := range batch {
		if moved.Load() {
			span.SetAttributes(attribute.Bool("aborted", true))
			c.obs.BatchAborted(c.id, added+updated)
			c.log.Debug("viewport moved, batch abandoned", "applied", added+updated, "vehicles", len(batch))
			return nil
		}

		v := item.Data
		var edits layer.Edits
		if f, ok := onLayer[v.ObjectID]; ok {
			f.Geometry = v.Point()
			f.Attributes = v.Attributes()
			edits.UpdateFeatures = []layer.Feature{f}
		} else {
			f := v.Feature()
			edits.AddFeatures = []layer.Feature{f}
			onLayer[v.ObjectID] = f
		}
		if _, err := lyr.ApplyEdits(ctx, edits); err != nil {
			return c.fail(span, fmt.Errorf("edit object %d on %s: %w", v.ObjectID, lyr.ID(), err))
		}
		if len(edits.AddFeatures) > 0 {
			added++
		} else {
			updated++
		}
	}

	span.SetAttributes(attribute.Int("added", added), attribute.Int("updated", updated))
	c.obs.BatchApplied(c.id, added, updated)
	return nil
}

func (c *Consumer) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "fleet_update_failed")
	return fmt.Errorf("consumer %s: %w", c.id, err)
}
