package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theoremus-urban-solutions/fleetview/fleet"
	"github.com/theoremus-urban-solutions/fleetview/mapview"
	"github.com/theoremus-urban-solutions/fleetview/pubsub"
)

// IngestPublisherID is the publisher id used for telemetry posted over HTTP.
const IngestPublisherID = "http-ingest"

const (
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 20
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithProducerRef sets the SIRI producer reference.
func WithProducerRef(ref string) Option {
	return func(s *Server) { s.producerRef = ref }
}

// WithValidFor sets how long exported SIRI deliveries stay valid.
func WithValidFor(d time.Duration) Option {
	return func(s *Server) { s.validFor = d }
}

// WithChannel sets the telemetry channel POSTed records are published on.
func WithChannel(channel string) Option {
	return func(s *Server) { s.channel = channel }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

type Server struct {
	dist        *pubsub.Distributor[fleet.Vehicle]
	groups      []*mapview.Group
	ingest      *pubsub.Publisher[fleet.Vehicle]
	gatherer    prometheus.Gatherer
	log         *slog.Logger
	producerRef string
	validFor    time.Duration
	channel     string
	now         func() time.Time
	started     time.Time
	mux         *http.ServeMux
}

// New registers the ingest publisher on dist and builds the routes.
func New(dist *pubsub.Distributor[fleet.Vehicle], groups []*mapview.Group, opts ...Option) (*Server, error) {
	s := &Server{
		dist:     dist,
		groups:   groups,
		gatherer: prometheus.DefaultGatherer,
		log:      slog.Default(),
		channel:  fleet.TelemetryChannel,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "server")
	pub, err := dist.RegisterPublisher(IngestPublisherID, s.channel)
	if err != nil {
		return nil, fmt.Errorf("register ingest publisher: %w", err)
	}
	s.ingest = pub
	s.started = s.now()

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/telemetry", s.handleTelemetry)
	s.mux.HandleFunc("GET /api/viewers", s.handleViewers)
	s.mux.HandleFunc("GET /api/fleet.geojson", s.handleGeoJSON)
	s.mux.HandleFunc("GET /api/siri/vehicle-monitoring.json", s.handleVehicleMonitoringJSON)
	s.mux.HandleFunc("GET /api/siri/vehicle-monitoring.xml", s.handleVehicleMonitoringXML)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return s, nil
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Close unregisters the ingest publisher.
func (s *Server) Close() { s.ingest.Unpublish() }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and unregisters the ingest publisher.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("server shut down successfully")
	return nil
}

// viewer resolves the viewer query parameter.
func (s *Server) viewer(r *http.Request) (*mapview.Viewer, error) {
	id := r.URL.Query().Get("viewer")
	if id == "" {
		for _, g := range s.groups {
			if v := g.Focused(); v != nil {
				return v, nil
			}
		}
		return nil, mapview.ErrViewerNotFound
	}
	for _, g := range s.groups {
		if v, ok := g.View(id); ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", mapview.ErrViewerNotFound, id)
}
