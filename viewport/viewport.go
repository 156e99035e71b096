// Package viewport defines the viewport capability the synchronization and
// fleet layers depend on, plus a headless implementation.
//
// A viewport exposes four watchable properties. Interacting and Animation are
// true while the user drags or an animated navigation runs; Stationary is true
// when neither is. Viewpoint is the camera position. Implementations must not
// invoke watch callbacks from inside Watch* or WatchHandle.Remove, and must not
// hold internal locks while invoking callbacks.
package viewport

// Property names a watchable viewport property.
type Property string

const (
	Interacting Property = "interacting"
	Animation   Property = "animation"
	Stationary  Property = "stationary"
	Viewpoint   Property = "viewpoint"
)

// Point is a geographic position in degrees.
type Point struct {
	Longitude float64 `json:"longitude" yaml:"longitude"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
}

// Camera describes a 3D camera pose.
type Camera struct {
	Position Point   `json:"position"`
	Altitude float64 `json:"altitude"`
	Heading  float64 `json:"heading"`
	Tilt     float64 `json:"tilt"`
}

// ViewpointValue is the shared camera state mirrored across a view group.
type ViewpointValue struct {
	Center   Point   `json:"center"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
	Camera   *Camera `json:"camera,omitempty"`
}

// FlagFunc is called when a boolean property changes.
type FlagFunc func(prop Property, value bool)

// ViewpointFunc is called when the viewpoint changes.
type ViewpointFunc func(vp ViewpointValue)

// WatchHandle revokes a watch.
type WatchHandle interface {
	Remove()
}

// Navigation is an in-flight animated navigation.
type Navigation interface {
	Finish()
}

// Viewport is a watchable visual frame.
type Viewport interface {
	ID() string
	Ready() bool
	Interacting() bool
	Stationary() bool
	// Animation returns the navigation in flight, or nil.
	Animation() Navigation
	// Viewpoint returns the current viewpoint and false when none is set yet.
	Viewpoint() (ViewpointValue, bool)
	SetViewpoint(vp ViewpointValue)
	WatchFlags(props []Property, fn FlagFunc) WatchHandle
	WatchViewpoint(fn ViewpointFunc) WatchHandle
}
