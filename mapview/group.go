package mapview

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/theoremus-urban-solutions/fleetview/fleet"
	"github.com/theoremus-urban-solutions/fleetview/pubsub"
	"github.com/theoremus-urban-solutions/fleetview/viewsync"
)

// ErrViewerNotFound is returned when no viewer has the requested id.
var ErrViewerNotFound = errors.New("viewer not found")

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithDispatcherOptions passes options to the group's dispatcher.
func WithDispatcherOptions(opts ...viewsync.Option) GroupOption {
	return func(g *Group) { g.dispatcherOpts = append(g.dispatcherOpts, opts...) }
}

// WithConsumerOptions passes options to every viewer's fleet consumer.
func WithConsumerOptions(opts ...fleet.Option) GroupOption {
	return func(g *Group) { g.consumerOpts = append(g.consumerOpts, opts...) }
}

// WithTelemetryChannel sets the channel viewers consume. Defaults to
// fleet.TelemetryChannel.
func WithTelemetryChannel(channel string) GroupOption {
	return func(g *Group) { g.channel = channel }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GroupOption {
	return func(g *Group) { g.log = l }
}

// Group is a set of viewers kept in step by one dispatcher. Every viewer
// consumes fleet telemetry from the group's distributor.
type Group struct {
	id             string
	dist           *pubsub.Distributor[fleet.Vehicle]
	channel        string
	dispatcherOpts []viewsync.Option
	consumerOpts   []fleet.Option
	log            *slog.Logger
	dispatcher     *viewsync.Dispatcher

	mu        sync.Mutex
	nextID    int
	viewers   []*member
	focusedID string
}

type member struct {
	viewer   *Viewer
	consumer *fleet.Consumer
}

// NewGroup creates an empty group. An empty id gets a generated one.
func NewGroup(id string, dist *pubsub.Distributor[fleet.Vehicle], opts ...GroupOption) *Group {
	if id == "" {
		id = uuid.NewString()
	}
	g := &Group{
		id:      id,
		dist:    dist,
		channel: fleet.TelemetryChannel,
		log:     slog.Default(),
		nextID:  1,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With("group", id)
	g.dispatcher = viewsync.NewDispatcher(append([]viewsync.Option{viewsync.WithLogger(g.log)}, g.dispatcherOpts...)...)
	return g
}

func (g *Group) ID() string { return g.id }

func (g *Group) Dispatcher() *viewsync.Dispatcher { return g.dispatcher }

// AddView creates viewer "<group>-view-<n>", syncs it with the group and
// attaches its fleet consumer. The first viewer added gets focus.
func (g *Group) AddView() (*Viewer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := fmt.Sprintf("%s-view-%d", g.id, g.nextID)
	g.nextID++

	v := NewViewer(id, g.dispatcher)
	if err := v.SetSync(true); err != nil {
		return nil, err
	}
	c := fleet.NewConsumer(id, v, v, append([]fleet.Option{fleet.WithLogger(g.log)}, g.consumerOpts...)...)
	if g.dist != nil {
		if err := c.Attach(g.dist, g.channel); err != nil {
			_ = v.SetSync(false)
			return nil, err
		}
	}

	g.viewers = append(g.viewers, &member{viewer: v, consumer: c})
	if g.focusedID == "" {
		g.focusedID = id
	}
	g.log.Info("viewer added", "viewer", id)
	return v, nil
}

// RemoveView takes the viewer out of sync, detaches its consumer and drops it.
func (g *Group) RemoveView(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("remove %s from %s: %w", id, g.id, ErrViewerNotFound)
	}
	m := g.viewers[i]
	if err := m.viewer.SetSync(false); err != nil {
		return err
	}
	m.consumer.Close()
	g.viewers = append(g.viewers[:i], g.viewers[i+1:]...)
	if g.focusedID == id {
		g.focusedID = ""
		if len(g.viewers) > 0 {
			g.focusedID = g.viewers[0].viewer.ID()
		}
	}
	g.log.Info("viewer removed", "viewer", id)
	return nil
}

// View returns the viewer with id.
func (g *Group) View(id string) (*Viewer, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i := g.indexLocked(id); i >= 0 {
		return g.viewers[i].viewer, true
	}
	return nil, false
}

// Consumer returns the fleet consumer of viewer id.
func (g *Group) Consumer(id string) (*fleet.Consumer, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i := g.indexLocked(id); i >= 0 {
		return g.viewers[i].consumer, true
	}
	return nil, false
}

// Views returns the viewers in the order they were added.
func (g *Group) Views() []*Viewer {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Viewer, len(g.viewers))
	for i, m := range g.viewers {
		out[i] = m.viewer
	}
	return out
}

// Focused returns the focused viewer, or nil for an empty group.
func (g *Group) Focused() *Viewer {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i := g.indexLocked(g.focusedID); i >= 0 {
		return g.viewers[i].viewer
	}
	return nil
}

// Focus moves focus to viewer id.
func (g *Group) Focus(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.indexLocked(id) < 0 {
		return fmt.Errorf("focus %s in %s: %w", id, g.id, ErrViewerNotFound)
	}
	g.focusedID = id
	return nil
}

// Wait blocks until every viewer's consumer has drained its queue.
func (g *Group) Wait() {
	g.mu.Lock()
	consumers := make([]*fleet.Consumer, len(g.viewers))
	for i, m := range g.viewers {
		consumers[i] = m.consumer
	}
	g.mu.Unlock()
	for _, c := range consumers {
		c.Wait()
	}
}

// Close detaches every consumer and releases the dispatcher.
func (g *Group) Close() {
	g.mu.Lock()
	members := g.viewers
	g.viewers = nil
	g.focusedID = ""
	g.mu.Unlock()
	for _, m := range members {
		m.consumer.Close()
	}
	g.dispatcher.Close()
}

func (g *Group) indexLocked(id string) int {
	for i, m := range g.viewers {
		if m.viewer.ID() == id {
			return i
		}
	}
	return -1
}
