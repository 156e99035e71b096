package mapview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/fleetview/viewport"
	"github.com/theoremus-urban-solutions/fleetview/viewsync"
)

func TestViewer_SetViewTypeCarriesViewpointAndSync(t *testing.T) {
	d := viewsync.NewDispatcher(viewsync.WithScheduler(&viewsync.ManualScheduler{}))
	v := NewViewer("v", d)
	require.NoError(t, v.SetSync(true))

	v2d, _ := v.Viewport(View2D)
	v3d, _ := v.Viewport(View3D)
	vp := viewport.ViewpointValue{Center: viewport.Point{Longitude: -97, Latitude: 33}, Scale: 9000}
	v2d.SetViewpoint(vp)

	require.NoError(t, v.ToggleView())
	assert.Equal(t, View3D, v.ViewType())
	assert.Same(t, v3d, v.ActiveViewport())
	got, ok := v3d.Viewpoint()
	require.True(t, ok)
	assert.Equal(t, vp, got)
	assert.False(t, d.IsSubscribed(v2d))
	assert.True(t, d.IsSubscribed(v3d))

	require.NoError(t, v.SetViewType(View3D), "switching to the shown type is a no-op")
	assert.ErrorIs(t, v.SetViewType("4d"), ErrUnknownViewType)
}

func TestViewer_UnsyncedSwitchStaysUnsynced(t *testing.T) {
	d := viewsync.NewDispatcher(viewsync.WithScheduler(&viewsync.ManualScheduler{}))
	v := NewViewer("v", d)

	require.NoError(t, v.ToggleView())
	assert.Equal(t, 0, d.Len())
	_, ok := v.ActiveViewport().Viewpoint()
	assert.False(t, ok, "no viewpoint to carry over")
}

func TestViewer_CameraRestoredOnReturnTo3D(t *testing.T) {
	d := viewsync.NewDispatcher(viewsync.WithScheduler(&viewsync.ManualScheduler{}))
	v := NewViewer("v", d)
	require.NoError(t, v.SetViewType(View3D))

	cam := &viewport.Camera{Position: viewport.Point{Longitude: -97, Latitude: 33}, Altitude: 1200, Tilt: 60}
	v.ActiveViewport().SetViewpoint(viewport.ViewpointValue{Scale: 5000, Camera: cam})

	require.NoError(t, v.SetViewType(View2D))
	v.ActiveViewport().SetViewpoint(viewport.ViewpointValue{Scale: 7000})
	require.NoError(t, v.SetViewType(View3D))

	got, _ := v.ActiveViewport().Viewpoint()
	assert.Equal(t, 7000.0, got.Scale)
	require.NotNil(t, got.Camera)
	assert.Equal(t, *cam, *got.Camera)
}

func TestViewer_LayerFor(t *testing.T) {
	v := NewViewer("v", viewsync.NewDispatcher())
	v3d, _ := v.Viewport(View3D)

	l, err := v.LayerFor(context.Background(), v3d)
	require.NoError(t, err)
	assert.Equal(t, "vehicles-3d", l.ID())
	again, _ := v.LayerFor(context.Background(), v3d)
	assert.Same(t, l, again)

	_, err = v.LayerFor(context.Background(), viewport.NewHeadless("stranger"))
	assert.Error(t, err)
}
