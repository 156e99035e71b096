// Package layer defines the renderable feature layer the fleet consumer edits,
// and an in-memory implementation.
package layer

import (
	"context"
	"errors"
)

var (
	ErrFeatureNotFound  = errors.New("feature not found")
	ErrDuplicateFeature = errors.New("feature already exists")
)

// AllFields selects every attribute in Query.OutFields.
const AllFields = "*"

// Point is a point geometry in WGS84 degrees.
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Feature is one graphic on a layer. ObjectID is its stable key.
type Feature struct {
	ObjectID   int64
	Geometry   *Point
	Attributes map[string]any
}

// Clone returns a copy that shares no maps or pointers with f.
func (f Feature) Clone() Feature {
	out := Feature{ObjectID: f.ObjectID}
	if f.Geometry != nil {
		g := *f.Geometry
		out.Geometry = &g
	}
	if f.Attributes != nil {
		out.Attributes = make(map[string]any, len(f.Attributes))
		for k, v := range f.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// Query selects features. Empty OutFields returns no attributes; AllFields
// returns all of them. Empty ObjectIDs matches every feature.
type Query struct {
	OutFields      []string
	ReturnGeometry bool
	ObjectIDs      []int64
}

// Edits is one edit request. Adds and updates are applied together or not at all.
type Edits struct {
	AddFeatures    []Feature
	UpdateFeatures []Feature
}

// EditResult reports the object ids touched by an edit request.
type EditResult struct {
	Added   []int64
	Updated []int64
}

// Layer is a queryable, editable collection of features.
type Layer interface {
	ID() string
	QueryFeatures(ctx context.Context, q Query) ([]Feature, error)
	ApplyEdits(ctx context.Context, e Edits) (EditResult, error)
}
