package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/theoremus-urban-solutions/fleetview/fleet"
	"github.com/theoremus-urban-solutions/fleetview/formatter"
	"github.com/theoremus-urban-solutions/fleetview/gtfsrt"
	"github.com/theoremus-urban-solutions/fleetview/siri"
)

const oneshotTimeout = 30 * time.Second

type oneshotArgs struct {
	feed        string
	format      string
	vehicleType string
	producerRef string
}

// oneshot fetches one VehiclePositions feed and writes it to w as a SIRI VM
// delivery.
func oneshot(ctx context.Context, w io.Writer, args oneshotArgs) error {
	if args.feed == "" {
		return errors.New("oneshot requires -feed")
	}
	vt := fleet.Type(args.vehicleType)
	if vt != fleet.Truck && vt != fleet.Van {
		return fmt.Errorf("unknown vehicle type %q", args.vehicleType)
	}

	ctx, cancel := context.WithTimeout(ctx, oneshotTimeout)
	defer cancel()
	data, err := gtfsrt.NewClient(oneshotTimeout).Fetch(ctx, args.feed)
	if err != nil {
		return err
	}
	vehicles, err := gtfsrt.DecodeVehicles(data, gtfsrt.NewRegistry(), vt)
	if err != nil && !errors.Is(err, gtfsrt.ErrEmptyFeed) {
		return err
	}

	res := siri.BuildVehicleMonitoring(vehicles, siri.Options{ProducerRef: args.producerRef})
	rb := formatter.NewResponseBuilder()
	var buf []byte
	switch args.format {
	case "xml":
		buf = rb.BuildXML(res)
	case "json":
		buf, err = rb.BuildJSON(res)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", args.format)
	}
	_, err = fmt.Fprintln(w, string(buf))
	return err
}
