// Package siri defines SIRI (Service Interface for Real-time Information) data types.
//
// SIRI is a European standard (CEN/TS 15531) for real-time public transport information.
// This package covers the VehicleMonitoringDelivery (VM) module and builds VM
// deliveries from fleet telemetry, so fleet positions can be consumed by SIRI
// clients.
//
// All types include JSON struct tags; XML is written by the formatter package.
package siri
