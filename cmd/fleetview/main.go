package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/theoremus-urban-solutions/fleetview/config"
	"github.com/theoremus-urban-solutions/fleetview/internal"
)

func main() {
	mode := flag.String("mode", "serve", "serve|oneshot")
	configPath := flag.String("config", "", "path to config.yml (default: search config.yml, ./config/config.yml)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	simulate := flag.Bool("simulate", false, "run the demo fleet simulator (overrides config)")
	feed := flag.String("feed", "", "oneshot: GTFS-RT VehiclePositions URL or file")
	format := flag.String("format", "json", "oneshot: json|xml")
	vehicleType := flag.String("vehicleType", "truck", "oneshot: truck|van")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *simulate {
		cfg.Simulator.Enabled = true
	}

	logger, closer := internal.InitLogging(cfg.Logging)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "oneshot":
		err = oneshot(ctx, os.Stdout, oneshotArgs{
			feed:        *feed,
			format:      *format,
			vehicleType: *vehicleType,
			producerRef: cfg.SIRI.ProducerRef,
		})
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logger.Error("fleetview exited", "error", err)
		stop()
		closer.Close()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	return a.run(ctx)
}
