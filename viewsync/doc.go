// Package viewsync keeps a group of viewports showing the same area.
//
// The viewport the user is working with drives; every other viewport in the
// group follows. Handover happens on interaction, and the final viewpoint is
// copied to the followers when the driver comes to rest.
//
//	d := viewsync.NewDispatcher()
//	_ = d.Subscribe(map2D)
//	_ = d.Subscribe(map3D)
//	defer d.Close()
package viewsync
