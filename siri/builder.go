package siri

import (
	"math"
	"time"

	"github.com/theoremus-urban-solutions/fleetview/fleet"
	"github.com/theoremus-urban-solutions/fleetview/geo"
	"github.com/theoremus-urban-solutions/fleetview/utils"
)

// Options controls how a VM delivery is built.
type Options struct {
	ProducerRef string        // codespace, "UNKNOWN" when empty
	ValidFor    time.Duration // ValidUntil offset, omitted when zero
	Now         time.Time     // response time, time.Now when zero
}

// BuildVehicleMonitoring wraps one VehicleActivity per vehicle in a complete
// SIRI response.
func BuildVehicleMonitoring(vehicles []fleet.Vehicle, opts Options) *SiriResponse {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	codespace := opts.ProducerRef
	if codespace == "" {
		codespace = "UNKNOWN"
	}
	ts := utils.Iso8601FromUnixSeconds(now.Unix())
	validUntil := utils.ValidUntilFrom(now, opts.ValidFor)

	vm := VehicleMonitoring{
		ResponseTimestamp: ts,
		ValidUntil:        validUntil,
		VehicleActivity:   make([]VehicleActivityEntry, 0, len(vehicles)),
	}
	for _, v := range vehicles {
		vm.VehicleActivity = append(vm.VehicleActivity, vehicleActivity(v, ts, validUntil, codespace))
	}

	return &SiriResponse{
		Siri: SiriServiceDelivery{
			ServiceDelivery: ServiceDelivery{
				ResponseTimestamp:         ts,
				ProducerRef:               codespace,
				VehicleMonitoringDelivery: []VehicleMonitoring{vm},
			},
		},
	}
}

func vehicleActivity(v fleet.Vehicle, responseTS, validUntil, codespace string) VehicleActivityEntry {
	recorded := responseTS
	if v.TelemetryUpdateTime > 0 {
		recorded = utils.Iso8601FromUnixMillis(v.TelemetryUpdateTime)
	}
	lat, lon := v.Latitude, v.Longitude
	bearing := v.Heading
	velocity := int(math.Round(geo.MphToMetersPerSecond(v.Speed)))
	fuel := v.FuelLevel
	mph := v.Speed

	status := "inProgress"
	if v.Speed == 0 {
		status = "stopped"
	}

	return VehicleActivityEntry{
		RecordedAtTime: recorded,
		ValidUntilTime: validUntil,
		MonitoredVehicleJourney: MonitoredVehicleJourney{
			LineRef:           string(v.VehicleType),
			PublishedLineName: v.VehicleID,
			OperatorRef:       codespace,
			Monitored:         true,
			DataSource:        codespace,
			VehicleLocation:   &VehicleLocation{Latitude: &lat, Longitude: &lon},
			Bearing:           &bearing,
			Velocity:          &velocity,
			VehicleStatus:     status,
			VehicleRef:        v.VehicleID,
			Extensions:        &Extensions{ObjectID: v.ObjectID, FuelLevel: &fuel, SpeedMph: &mph},
		},
	}
}
