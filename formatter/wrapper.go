package formatter

import (
	"strings"

	"github.com/theoremus-urban-solutions/fleetview/siri"
)

// FilterVehicleMonitoring keeps the activities whose LineRef contains lineRef
// and whose VehicleRef equals vehicleRef. Empty filters match everything and
// comparisons ignore case. The input is not modified.
func FilterVehicleMonitoring(res *siri.SiriResponse, lineRef, vehicleRef string) *siri.SiriResponse {
	lineRef = strings.ToLower(strings.TrimSpace(lineRef))
	vehicleRef = strings.ToLower(strings.TrimSpace(vehicleRef))
	if lineRef == "" && vehicleRef == "" {
		return res
	}

	out := *res
	sd := res.Siri.ServiceDelivery
	deliveries := make([]siri.VehicleMonitoring, 0, len(sd.VehicleMonitoringDelivery))
	for _, vm := range sd.VehicleMonitoringDelivery {
		filtered := vm
		filtered.VehicleActivity = []siri.VehicleActivityEntry{}
		for _, va := range vm.VehicleActivity {
			mvj := va.MonitoredVehicleJourney
			if lineRef != "" && !strings.Contains(strings.ToLower(mvj.LineRef), lineRef) {
				continue
			}
			if vehicleRef != "" && strings.ToLower(mvj.VehicleRef) != vehicleRef {
				continue
			}
			filtered.VehicleActivity = append(filtered.VehicleActivity, va)
		}
		deliveries = append(deliveries, filtered)
	}
	out.Siri.ServiceDelivery.VehicleMonitoringDelivery = deliveries
	return &out
}
