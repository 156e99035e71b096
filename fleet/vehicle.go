package fleet

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/theoremus-urban-solutions/fleetview/layer"
)

// TelemetryChannel is the channel producers publish vehicle telemetry on.
const TelemetryChannel = "vehicle-telemetry"

// Type is a vehicle class.
type Type string

const (
	Truck Type = "truck"
	Van   Type = "van"
)

// Vehicle is one telemetry record. The JSON field names are the wire format
// accepted by the ingest endpoint and emitted in feature attributes.
type Vehicle struct {
	ObjectID            int64   `json:"objectId" yaml:"objectId" validate:"gt=0"`
	VehicleID           string  `json:"vehicleId" yaml:"vehicleId" validate:"required"`
	VehicleType         Type    `json:"vehicleType" yaml:"vehicleType" validate:"oneof=truck van"`
	Longitude           float64 `json:"longitude" yaml:"longitude" validate:"gte=-180,lte=180"`
	Latitude            float64 `json:"latitude" yaml:"latitude" validate:"gte=-90,lte=90"`
	Heading             float64 `json:"heading" yaml:"heading" validate:"gte=0,lt=360"`
	Speed               float64 `json:"speed" yaml:"speed" validate:"gte=0"` // mph
	FuelLevel           float64 `json:"fuelLevel" yaml:"fuelLevel" validate:"gte=0,lte=1"`
	TelemetryUpdateTime int64   `json:"telemetryUpdateTime,omitempty" yaml:"telemetryUpdateTime,omitempty"`
	Width               float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Depth               float64 `json:"depth,omitempty" yaml:"depth,omitempty"`
}

var validate = validator.New()

// Validate checks field ranges.
func (v Vehicle) Validate() error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("vehicle %q: %w", v.VehicleID, err)
	}
	return nil
}

// Point returns the vehicle position as a layer geometry.
func (v Vehicle) Point() *layer.Point {
	return &layer.Point{Longitude: v.Longitude, Latitude: v.Latitude}
}

// Attributes returns the feature attributes for v, keyed by JSON field name.
func (v Vehicle) Attributes() map[string]any {
	attrs := map[string]any{
		"objectId":    v.ObjectID,
		"vehicleId":   v.VehicleID,
		"vehicleType": string(v.VehicleType),
		"longitude":   v.Longitude,
		"latitude":    v.Latitude,
		"heading":     v.Heading,
		"speed":       v.Speed,
		"fuelLevel":   v.FuelLevel,
	}
	if v.TelemetryUpdateTime != 0 {
		attrs["telemetryUpdateTime"] = v.TelemetryUpdateTime
	}
	if v.Depth != 0 {
		attrs["depth"] = v.Depth
	}
	if v.Width != 0 {
		attrs["width"] = v.Width
	}
	return attrs
}

// Feature returns v as a layer feature.
func (v Vehicle) Feature() layer.Feature {
	return layer.Feature{ObjectID: v.ObjectID, Geometry: v.Point(), Attributes: v.Attributes()}
}

// FromFeature rebuilds a vehicle from feature attributes written by
// Attributes. Missing or mistyped attributes are left zero.
func FromFeature(f layer.Feature) Vehicle {
	v := Vehicle{ObjectID: f.ObjectID}
	a := f.Attributes
	v.VehicleID, _ = a["vehicleId"].(string)
	if t, ok := a["vehicleType"].(string); ok {
		v.VehicleType = Type(t)
	}
	v.Heading, _ = a["heading"].(float64)
	v.Speed, _ = a["speed"].(float64)
	v.FuelLevel, _ = a["fuelLevel"].(float64)
	v.TelemetryUpdateTime, _ = a["telemetryUpdateTime"].(int64)
	v.Width, _ = a["width"].(float64)
	v.Depth, _ = a["depth"].(float64)
	if f.Geometry != nil {
		v.Longitude = f.Geometry.Longitude
		v.Latitude = f.Geometry.Latitude
	}
	return v
}
