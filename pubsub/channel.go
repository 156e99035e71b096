package pubsub

import (
	"sync"
	"time"
)

// DataItem is a timestamped item broadcast from a channel. The timestamp is
// the time the publisher handed the data over; all items from one publish
// call share it.
type DataItem[T any] struct {
	Data      T     `json:"data"`
	Timestamp int64 `json:"timestamp"` // epoch milliseconds
}

// Cloner lets a payload type that holds references provide its own deep copy.
// Payloads that do not implement it are copied by value.
type Cloner[T any] interface {
	Clone() T
}

func clone[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}
	return v
}

// Channel is an ordered, timestamped buffer of data items for one topic.
type Channel[T any] struct {
	name string
	now  func() time.Time

	mu    sync.Mutex
	items []DataItem[T]
}

// NewChannel creates an empty channel. A nil clock defaults to time.Now.
func NewChannel[T any](name string, now func() time.Time) *Channel[T] {
	if now == nil {
		now = time.Now
	}
	return &Channel[T]{name: name, now: now}
}

// Name returns the channel name.
func (c *Channel[T]) Name() string { return c.name }

// Len returns the number of items waiting in the channel.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Add appends a single item.
func (c *Channel[T]) Add(data T) {
	ts := c.now().UnixMilli()
	c.mu.Lock()
	c.items = append(c.items, DataItem[T]{Data: clone(data), Timestamp: ts})
	c.mu.Unlock()
}

// AddMany appends items with one shared timestamp.
func (c *Channel[T]) AddMany(data []T) {
	if len(data) == 0 {
		return
	}
	ts := c.now().UnixMilli()
	batch := make([]DataItem[T], len(data))
	for i, d := range data {
		batch[i] = DataItem[T]{Data: clone(d), Timestamp: ts}
	}
	c.mu.Lock()
	c.items = append(c.items, batch...)
	c.mu.Unlock()
}

// ConsumeTimeChunk removes and returns every item with
// start <= timestamp <= end, in insertion order.
//
// A zero start means the beginning of time and a zero end means now. Bounds
// given in the wrong order are swapped. start == 0 && end == 0 returns the
// whole channel regardless of the clock.
func (c *Channel[T]) ConsumeTimeChunk(start, end int64) []DataItem[T] {
	all := start == 0 && end == 0
	if end == 0 {
		end = c.now().UnixMilli()
	}
	if start > end {
		start, end = end, start
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if all {
		chunk := c.items
		c.items = nil
		return chunk
	}

	var chunk []DataItem[T]
	kept := c.items[:0]
	for _, it := range c.items {
		if it.Timestamp >= start && it.Timestamp <= end {
			chunk = append(chunk, it)
			continue
		}
		kept = append(kept, it)
	}
	// zero the tail so consumed payloads can be collected
	var zero DataItem[T]
	for i := len(kept); i < len(c.items); i++ {
		c.items[i] = zero
	}
	c.items = kept
	return chunk
}

// Clear drops all items without notifying anyone.
func (c *Channel[T]) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}
