package mapview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/theoremus-urban-solutions/fleetview/layer"
	"github.com/theoremus-urban-solutions/fleetview/viewport"
	"github.com/theoremus-urban-solutions/fleetview/viewsync"
)

// ViewType selects which of a viewer's viewports is shown.
type ViewType string

const (
	View2D ViewType = "2d"
	View3D ViewType = "3d"
)

// ErrUnknownViewType is returned for a view type other than 2D or 3D.
var ErrUnknownViewType = errors.New("unknown view type")

// Viewer is one map frame. It owns a 2D and a 3D viewport, shows one of them
// at a time and keeps a vehicle layer per view type.
type Viewer struct {
	id         string
	dispatcher *viewsync.Dispatcher
	views      map[ViewType]viewport.Viewport

	mu       sync.Mutex
	viewType ViewType
	sync     bool
	camera   *viewport.Camera // last 3D camera, restored when switching back
	layers   map[ViewType]*layer.Memory
}

// ViewerOption configures a Viewer.
type ViewerOption func(*Viewer)

// WithViewports replaces the default headless viewports.
func WithViewports(v2d, v3d viewport.Viewport) ViewerOption {
	return func(v *Viewer) {
		v.views[View2D] = v2d
		v.views[View3D] = v3d
	}
}

// NewViewer creates a viewer showing its 2D viewport. Sync starts disabled.
func NewViewer(id string, dispatcher *viewsync.Dispatcher, opts ...ViewerOption) *Viewer {
	v := &Viewer{
		id:         id,
		dispatcher: dispatcher,
		views: map[ViewType]viewport.Viewport{
			View2D: viewport.NewHeadless(id + "-2d"),
			View3D: viewport.NewHeadless(id + "-3d"),
		},
		viewType: View2D,
		layers:   map[ViewType]*layer.Memory{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Viewer) ID() string { return v.id }

func (v *Viewer) ViewType() ViewType {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewType
}

// Viewport returns the viewport for t.
func (v *Viewer) Viewport(t ViewType) (viewport.Viewport, bool) {
	vp, ok := v.views[t]
	return vp, ok
}

// ActiveViewport returns the viewport currently shown.
func (v *Viewer) ActiveViewport() viewport.Viewport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.views[v.viewType]
}

// LayerFor returns the vehicle layer of the view type vp belongs to, creating
// it on first use.
func (v *Viewer) LayerFor(_ context.Context, vp viewport.Viewport) (layer.Layer, error) {
	for t, candidate := range v.views {
		if candidate == vp {
			return v.Layer(t), nil
		}
	}
	return nil, fmt.Errorf("viewer %s: viewport %s is not mine", v.id, vp.ID())
}

// Layer returns the vehicle layer for t, creating an empty one on first use.
func (v *Viewer) Layer(t ViewType) *layer.Memory {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.layers[t]
	if !ok {
		l = layer.NewMemory("vehicles-" + string(t))
		v.layers[t] = l
	}
	return l
}

// Sync reports whether the viewer follows its group.
func (v *Viewer) Sync() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sync
}

// SetSync subscribes or unsubscribes the shown viewport with the group.
func (v *Viewer) SetSync(on bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	active := v.views[v.viewType]
	if on {
		if err := v.dispatcher.Subscribe(active); err != nil {
			return fmt.Errorf("viewer %s: %w", v.id, err)
		}
	} else {
		v.dispatcher.Unsubscribe(active)
	}
	v.sync = on
	return nil
}

func (v *Viewer) ToggleSync() error {
	return v.SetSync(!v.Sync())
}

// SetViewType switches the shown viewport. The new viewport takes over the
// current viewpoint and, when the old one was synced, its place in the group.
func (v *Viewer) SetViewType(t ViewType) error {
	next, ok := v.views[t]
	if !ok {
		return fmt.Errorf("viewer %s: %q: %w", v.id, t, ErrUnknownViewType)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if t == v.viewType {
		return nil
	}

	cur := v.views[v.viewType]
	synced := v.dispatcher.IsSubscribed(cur)
	v.dispatcher.Unsubscribe(cur)

	vp, hasViewpoint := cur.Viewpoint()
	switch t {
	case View2D:
		if vp.Camera != nil {
			cam := *vp.Camera
			v.camera = &cam
		}
	case View3D:
		if v.camera != nil {
			cam := *v.camera
			vp.Camera = &cam
		}
	}
	if hasViewpoint {
		next.SetViewpoint(vp)
	}
	v.viewType = t

	if synced {
		if err := v.dispatcher.Subscribe(next); err != nil {
			return fmt.Errorf("viewer %s: %w", v.id, err)
		}
	}
	return nil
}

func (v *Viewer) ToggleView() error {
	if v.ViewType() == View2D {
		return v.SetViewType(View3D)
	}
	return v.SetViewType(View2D)
}
