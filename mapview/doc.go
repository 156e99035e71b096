// Package mapview assembles viewports, the view dispatcher and fleet
// consumers into viewers and view groups.
package mapview
