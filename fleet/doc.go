// Package fleet holds the vehicle telemetry record and the consumer that
// turns telemetry batches into edits on a viewer's feature layer.
//
// The consumer keeps a small bounded queue and drops batches that arrive
// while it is full. A batch is abandoned part way through when the viewport
// starts moving.
package fleet
