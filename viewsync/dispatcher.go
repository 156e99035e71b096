package viewsync

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/theoremus-urban-solutions/fleetview/viewport"
)

// ErrNilViewport is returned when subscribing a nil viewport.
var ErrNilViewport = errors.New("nil viewport")

// Observer is notified when the driving viewport changes and when a viewpoint
// is mirrored, typically for metrics.
type Observer interface {
	DriverChanged(id string) // empty when the group has no driver
	Mirrored(targets int)
}

type noopObserver struct{}

func (noopObserver) DriverChanged(string) {}
func (noopObserver) Mirrored(int)         {}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithScheduler sets the scheduler used for the deferred activation step.
func WithScheduler(s Scheduler) Option {
	return func(d *Dispatcher) { d.sched = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithObserver sets the observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.obs = o }
}

// Dispatcher keeps the viewports of one view group in step. At any time at
// most one subscribed viewport is the driver; its viewpoint changes are
// copied onto every other subscribed viewport.
//
// A viewport becomes the driver in two steps. When it starts interacting or
// animating it is armed: a stationary watch is attached right away and the
// viewpoint watch is deferred to the next tick, so the event that armed it is
// not mirrored. Arming a viewport disarms whichever other viewport was armed
// or driving. When the driver turns stationary its final viewpoint is
// mirrored once and the group has no driver until the next interaction.
type Dispatcher struct {
	sched Scheduler
	log   *slog.Logger
	obs   Observer

	mu          sync.Mutex
	subscribers []*subscriber
	active      *subscriber
}

// NewDispatcher creates a dispatcher. Without WithScheduler the activation
// step runs on a zero-delay timer.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sched: TimerScheduler{},
		log:   slog.Default(),
		obs:   noopObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "viewsync")
	return d
}

// Subscribe adds vp to the group. Subscribing a viewport twice is a no-op.
func (d *Dispatcher) Subscribe(vp viewport.Viewport) error {
	if vp == nil {
		return ErrNilViewport
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.indexLocked(vp) >= 0 {
		return nil
	}
	rec := newSubscriber(vp)
	rec.hold(interactToken, vp.WatchFlags(
		[]viewport.Property{viewport.Interacting, viewport.Animation},
		d.onInteract(rec),
	))
	d.subscribers = append(d.subscribers, rec)
	d.log.Debug("viewport subscribed", "viewport", vp.ID())
	return nil
}

// Unsubscribe removes vp from the group and revokes all of its watches and
// any pending activation. If vp was the driver the group has no driver.
func (d *Dispatcher) Unsubscribe(vp viewport.Viewport) {
	d.mu.Lock()
	i := d.indexLocked(vp)
	if i < 0 {
		d.mu.Unlock()
		return
	}
	rec := d.subscribers[i]
	rec.release(true)
	d.subscribers = append(d.subscribers[:i], d.subscribers[i+1:]...)
	wasActive := d.active == rec
	if wasActive {
		d.active = nil
	}
	d.mu.Unlock()

	d.log.Debug("viewport unsubscribed", "viewport", vp.ID())
	if wasActive {
		d.obs.DriverChanged("")
	}
}

// IsSubscribed reports whether vp belongs to the group.
func (d *Dispatcher) IsSubscribed(vp viewport.Viewport) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.indexLocked(vp) >= 0
}

// Active returns the driving viewport, or nil.
func (d *Dispatcher) Active() viewport.Viewport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return nil
	}
	return d.active.target
}

// Len returns the number of subscribed viewports.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subscribers)
}

// Close unsubscribes every viewport.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	for _, rec := range d.subscribers {
		rec.release(true)
	}
	hadDriver := d.active != nil
	d.subscribers = nil
	d.active = nil
	d.mu.Unlock()
	if hadDriver {
		d.obs.DriverChanged("")
	}
}

func (d *Dispatcher) indexLocked(vp viewport.Viewport) int {
	for i, rec := range d.subscribers {
		if rec.target == vp {
			return i
		}
	}
	return -1
}

func (d *Dispatcher) memberLocked(rec *subscriber) bool {
	for _, r := range d.subscribers {
		if r == rec {
			return true
		}
	}
	return false
}

func (d *Dispatcher) othersLocked(rec *subscriber) []viewport.Viewport {
	out := make([]viewport.Viewport, 0, len(d.subscribers))
	for _, r := range d.subscribers {
		if r != rec {
			out = append(out, r.target)
		}
	}
	return out
}

func (d *Dispatcher) onInteract(rec *subscriber) viewport.FlagFunc {
	return func(_ viewport.Property, value bool) {
		if !value {
			return
		}
		d.mu.Lock()
		if !d.memberLocked(rec) || rec.armed() {
			d.mu.Unlock()
			return
		}

		// disarm everyone else; only the previous driver can have an
		// animation worth finishing
		var nav viewport.Navigation
		for _, other := range d.subscribers {
			if other == rec || !other.armed() {
				continue
			}
			other.release(false)
			if other == d.active {
				nav = other.target.Animation()
				d.active = nil
			}
		}
		d.armLocked(rec)
		d.mu.Unlock()

		if nav != nil {
			nav.Finish()
		}
		d.log.Debug("viewport armed", "viewport", rec.target.ID())
	}
}

func (d *Dispatcher) armLocked(rec *subscriber) {
	rec.seq++
	seq := rec.seq
	rec.hold(stationaryToken, rec.target.WatchFlags(
		[]viewport.Property{viewport.Stationary},
		d.onStationary(rec),
	))
	rec.cancel = d.sched.Defer(func() { d.activate(rec, seq) })
}

func (d *Dispatcher) activate(rec *subscriber, seq uint64) {
	d.mu.Lock()
	if rec.seq != seq || rec.cancel == nil || !d.memberLocked(rec) {
		d.mu.Unlock()
		return
	}
	rec.cancel = nil
	if d.active != nil && d.active != rec {
		d.active.release(false)
	}
	rec.hold(viewpointToken, rec.target.WatchViewpoint(d.onViewpoint(rec)))
	d.active = rec
	d.mu.Unlock()

	d.log.Debug("viewport driving", "viewport", rec.target.ID())
	d.obs.DriverChanged(rec.target.ID())
}

func (d *Dispatcher) onViewpoint(rec *subscriber) viewport.ViewpointFunc {
	return func(vp viewport.ViewpointValue) {
		d.mu.Lock()
		if d.active != rec {
			d.mu.Unlock()
			return
		}
		targets := d.othersLocked(rec)
		d.mu.Unlock()

		d.mirror(targets, vp)
	}
}

func (d *Dispatcher) onStationary(rec *subscriber) viewport.FlagFunc {
	return func(_ viewport.Property, value bool) {
		if !value {
			return
		}
		d.mu.Lock()
		if !d.memberLocked(rec) || !rec.armed() {
			d.mu.Unlock()
			return
		}
		vp, ok := rec.target.Viewpoint()
		targets := d.othersLocked(rec)
		rec.release(false)
		wasActive := d.active == rec
		if wasActive {
			d.active = nil
		}
		d.mu.Unlock()

		if ok {
			d.mirror(targets, vp)
		}
		if wasActive {
			d.obs.DriverChanged("")
		}
		d.log.Debug("viewport stationary", "viewport", rec.target.ID())
	}
}

// mirror copies vp onto every target that already has a viewpoint.
func (d *Dispatcher) mirror(targets []viewport.Viewport, vp viewport.ViewpointValue) {
	n := 0
	for _, t := range targets {
		if _, ok := t.Viewpoint(); !ok {
			continue
		}
		t.SetViewpoint(vp)
		n++
	}
	d.obs.Mirrored(n)
}
