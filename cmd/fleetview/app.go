package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/fleetview/config"
	"github.com/theoremus-urban-solutions/fleetview/fleet"
	"github.com/theoremus-urban-solutions/fleetview/gtfsrt"
	"github.com/theoremus-urban-solutions/fleetview/mapview"
	"github.com/theoremus-urban-solutions/fleetview/metrics"
	"github.com/theoremus-urban-solutions/fleetview/pubsub"
	"github.com/theoremus-urban-solutions/fleetview/server"
	"github.com/theoremus-urban-solutions/fleetview/simulator"
	"github.com/theoremus-urban-solutions/fleetview/viewsync"
)

// app owns every long-running component of the service.
type app struct {
	cfg      *config.AppConfig
	log      *slog.Logger
	registry *prometheus.Registry
	dist     *pubsub.Distributor[fleet.Vehicle]
	groups   []*mapview.Group
	sim      *simulator.Simulator
	pollers  []*gtfsrt.Poller
	srv      *server.Server
}

func newApp(cfg *config.AppConfig, logger *slog.Logger) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	a := &app{cfg: cfg, log: logger, registry: reg}
	a.dist = pubsub.New[fleet.Vehicle](pubsub.WithLogger(logger), pubsub.WithObserver(m))

	for _, gc := range cfg.ViewGroups {
		g := mapview.NewGroup(gc.ID, a.dist,
			mapview.WithLogger(logger),
			mapview.WithTelemetryChannel(cfg.Telemetry.Channel),
			mapview.WithDispatcherOptions(viewsync.WithObserver(m)),
			mapview.WithConsumerOptions(
				fleet.WithQueueCapacity(cfg.Telemetry.QueueCapacity),
				fleet.WithObserver(m),
				fleet.WithErrorHandler(func(err error) { logger.Error("consumer batch failed", "error", err) }),
			),
		)
		a.groups = append(a.groups, g)
		for i := 0; i < gc.Views; i++ {
			if _, err := g.AddView(); err != nil {
				a.close()
				return nil, fmt.Errorf("group %s: %w", g.ID(), err)
			}
		}
	}

	nextObjectID := int64(1)
	if cfg.Simulator.Enabled {
		seed, err := loadSeed(cfg.Simulator.SeedFile)
		if err != nil {
			a.close()
			return nil, err
		}
		for _, v := range seed {
			nextObjectID = max(nextObjectID, v.ObjectID+1)
		}
		a.sim, err = simulator.New(a.dist,
			simulator.WithFleet(seed),
			simulator.WithStartDelay(config.Millis(cfg.Simulator.StartDelayMS)),
			simulator.WithFrameInterval(config.Millis(cfg.Simulator.FrameIntervalMS)),
			simulator.WithLogger(logger),
			simulator.WithChannel(cfg.Telemetry.Channel),
		)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	ids := gtfsrt.NewRegistryFrom(nextObjectID)
	for _, fc := range cfg.GTFSRT.Feeds {
		p, err := gtfsrt.NewPoller(a.dist, gtfsrt.Feed{
			Name:        fc.Name,
			URL:         fc.VehiclePositionsURL,
			Interval:    config.Millis(fc.ReadIntervalMS),
			Timeout:     config.Millis(fc.TimeoutMS),
			VehicleType: fleet.Type(fc.DefaultVehicleType),
		},
			gtfsrt.WithLogger(logger),
			gtfsrt.WithObserver(m),
			gtfsrt.WithRegistry(ids),
			gtfsrt.WithChannel(cfg.Telemetry.Channel),
		)
		if err != nil {
			a.close()
			return nil, err
		}
		a.pollers = append(a.pollers, p)
	}

	srv, err := server.New(a.dist, a.groups,
		server.WithLogger(logger),
		server.WithGatherer(reg),
		server.WithChannel(cfg.Telemetry.Channel),
		server.WithProducerRef(cfg.SIRI.ProducerRef),
		server.WithValidFor(config.Millis(cfg.SIRI.ValidForMS)),
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.srv = srv
	return a, nil
}

// run blocks until ctx is cancelled or a component fails, then stops the
// rest and closes every group.
func (a *app) run(ctx context.Context) error {
	defer a.close()
	g, ctx := errgroup.WithContext(ctx)

	addr := ":" + strconv.Itoa(a.cfg.Server.Port)
	g.Go(func() error { return a.srv.ListenAndServe(ctx, addr) })
	if a.sim != nil {
		g.Go(func() error { return a.sim.Run(ctx) })
	}
	for _, p := range a.pollers {
		g.Go(func() error { return p.Run(ctx) })
	}

	a.log.Info("fleetview started",
		"port", a.cfg.Server.Port,
		"groups", len(a.groups),
		"simulator", a.sim != nil,
		"feeds", len(a.pollers),
	)
	return g.Wait()
}

func (a *app) close() {
	for _, g := range a.groups {
		g.Close()
	}
}

func loadSeed(path string) ([]fleet.Vehicle, error) {
	if path == "" {
		return simulator.DefaultSeed(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return simulator.LoadSeed(data)
}
