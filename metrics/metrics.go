// Package metrics exposes Prometheus collectors for the telemetry pipeline.
//
// A single Collectors value satisfies the observer interfaces of pubsub,
// viewsync, fleet and gtfsrt, so it can be handed to each component's
// WithObserver option.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fleetview"

type Collectors struct {
	published     *prometheus.CounterVec
	delivered     *prometheus.CounterVec
	driverChanges *prometheus.CounterVec
	mirrored      prometheus.Counter
	batches       *prometheus.CounterVec
	edits         *prometheus.CounterVec
	feedPolls     *prometheus.CounterVec
	feedVehicles  *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collectors{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_items_published_total",
			Help:      "Items accepted by the distributor, by channel.",
		}, []string{"channel"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_items_delivered_total",
			Help:      "Items handed to subscribers, counted once per subscriber.",
		}, []string{"channel"}),
		driverChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewsync_driver_changes_total",
			Help:      "Driver handovers, labelled by whether a driver was set or cleared.",
		}, []string{"state"}),
		mirrored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewsync_viewpoints_mirrored_total",
			Help:      "Viewpoints copied onto follower viewports.",
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumer_batches_total",
			Help:      "Telemetry batches by consumer and outcome.",
		}, []string{"consumer", "outcome"}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumer_feature_edits_total",
			Help:      "Feature edits applied to layers, by consumer and kind.",
		}, []string{"consumer", "kind"}),
		feedPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gtfsrt_polls_total",
			Help:      "GTFS-RT feed polls by feed and result.",
		}, []string{"feed", "result"}),
		feedVehicles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gtfsrt_vehicles",
			Help:      "Vehicles decoded by the last successful poll.",
		}, []string{"feed"}),
	}
	reg.MustRegister(c.published, c.delivered, c.driverChanges, c.mirrored,
		c.batches, c.edits, c.feedPolls, c.feedVehicles)
	return c
}

func (c *Collectors) Published(channel string, items int) {
	c.published.WithLabelValues(channel).Add(float64(items))
}

func (c *Collectors) Delivered(channel string, subscribers, items int) {
	c.delivered.WithLabelValues(channel).Add(float64(subscribers * items))
}

func (c *Collectors) DriverChanged(id string) {
	state := "set"
	if id == "" {
		state = "cleared"
	}
	c.driverChanges.WithLabelValues(state).Inc()
}

func (c *Collectors) Mirrored(targets int) {
	c.mirrored.Add(float64(targets))
}

func (c *Collectors) BatchDropped(consumer string) {
	c.batches.WithLabelValues(consumer, "dropped").Inc()
}

func (c *Collectors) BatchSkipped(consumer string) {
	c.batches.WithLabelValues(consumer, "skipped").Inc()
}

// BatchAborted counts an aborted batch. Edits applied before the abort are
// counted with kind "partial".
func (c *Collectors) BatchAborted(consumer string, applied int) {
	c.batches.WithLabelValues(consumer, "aborted").Inc()
	c.edits.WithLabelValues(consumer, "partial").Add(float64(applied))
}

func (c *Collectors) BatchApplied(consumer string, added, updated int) {
	c.batches.WithLabelValues(consumer, "applied").Inc()
	c.edits.WithLabelValues(consumer, "add").Add(float64(added))
	c.edits.WithLabelValues(consumer, "update").Add(float64(updated))
}

func (c *Collectors) FeedPolled(feed string, vehicles int, err error) {
	if err != nil {
		c.feedPolls.WithLabelValues(feed, "error").Inc()
		return
	}
	c.feedPolls.WithLabelValues(feed, "ok").Inc()
	c.feedVehicles.WithLabelValues(feed).Set(float64(vehicles))
}
