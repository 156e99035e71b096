// Package gtfsrt turns GTFS-Realtime VehiclePositions feeds into fleet
// telemetry.
//
// Client fetches the raw protobuf, DecodeVehicles maps each vehicle position
// to a fleet.Vehicle with a stable object id from a Registry, and Poller does
// both on an interval and publishes the result to the telemetry channel.
package gtfsrt
