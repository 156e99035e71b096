// Package pubsub distributes data from publishers to subscribers through named
// channels.
//
// A Channel is an ordered, timestamped buffer. Every publish call stamps all of
// its items with one timestamp, so a channel's items are always in time order.
// Consumption is destructive: ConsumeTimeChunk removes what it returns, which
// gives exactly-once delivery per chunk and no replay.
//
// A Distributor owns the channels and the publisher/subscriber registrations.
// Publishing appends to the channel and immediately drains it to the
// subscribers of that channel, in registration order:
//
//	dist := pubsub.New[fleet.Vehicle]()
//	pub, _ := dist.RegisterPublisher("simulator", "vehicle-telemetry")
//	sub, _ := dist.RegisterSubscriber("viewer-1", onData, "vehicle-telemetry", pubsub.Stream)
//	_ = pub.PublishMany(frame)
//	sub.Unsubscribe()
//
// Delivery is single-flight per channel. A publish that lands while a delivery
// is running on the same channel only appends; the running delivery keeps
// draining until the channel is empty.
package pubsub
