// Package server exposes the fleet over HTTP.
//
// Routes:
//   - GET  /api/health
//   - POST /api/telemetry                      JSON array of telemetry records
//   - GET  /api/viewers                        viewers of every group
//   - GET  /api/fleet.geojson?viewer=          a viewer's feature layer
//   - GET  /api/siri/vehicle-monitoring.json   SIRI VM, optional viewer, lineref, vehicleref
//   - GET  /api/siri/vehicle-monitoring.xml
//   - GET  /metrics
//
// Without a viewer parameter the focused viewer of the first group is used.
package server
