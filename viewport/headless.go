package viewport

import (
	"sort"
	"sync"
)

type flagWatcher struct {
	props map[Property]bool
	fn    FlagFunc
}

// Headless is an in-memory viewport. It has no renderer; it keeps the
// watchable state and fires watches synchronously on the goroutine that
// changed the state, in registration order.
type Headless struct {
	id string

	mu           sync.Mutex
	ready        bool
	interacting  bool
	nav          *navigation
	vp           *ViewpointValue
	nextWatch    int
	flagWatchers map[int]flagWatcher
	vpWatchers   map[int]ViewpointFunc
}

// NewHeadless creates a ready, stationary viewport with no viewpoint.
func NewHeadless(id string) *Headless {
	return &Headless{
		id:           id,
		ready:        true,
		flagWatchers: map[int]flagWatcher{},
		vpWatchers:   map[int]ViewpointFunc{},
	}
}

func (h *Headless) ID() string { return h.id }

func (h *Headless) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// SetReady toggles readiness. Readiness is not watchable.
func (h *Headless) SetReady(ready bool) {
	h.mu.Lock()
	h.ready = ready
	h.mu.Unlock()
}

func (h *Headless) Interacting() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interacting
}

func (h *Headless) Stationary() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stationaryLocked()
}

func (h *Headless) stationaryLocked() bool { return !h.interacting && h.nav == nil }

func (h *Headless) Animation() Navigation {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.nav == nil {
		return nil
	}
	return h.nav
}

func (h *Headless) Viewpoint() (ViewpointValue, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.vp == nil {
		return ViewpointValue{}, false
	}
	return *h.vp, true
}

func (h *Headless) SetViewpoint(vp ViewpointValue) {
	h.mu.Lock()
	v := vp
	h.vp = &v
	calls := h.viewpointCallsLocked()
	h.mu.Unlock()
	for _, fn := range calls {
		fn(vp)
	}
}

// SetInteracting simulates the user starting or stopping a gesture.
func (h *Headless) SetInteracting(interacting bool) {
	h.mu.Lock()
	if h.interacting == interacting {
		h.mu.Unlock()
		return
	}
	wasStationary := h.stationaryLocked()
	h.interacting = interacting
	fire := h.flagCallsLocked(Interacting, interacting)
	if s := h.stationaryLocked(); s != wasStationary {
		fire = append(fire, h.flagCallsLocked(Stationary, s)...)
	}
	h.mu.Unlock()
	fire.run()
}

// GoTo starts an animated navigation to target. The viewpoint changes when
// the returned navigation finishes. Starting a navigation while another is in
// flight replaces it.
func (h *Headless) GoTo(target ViewpointValue) Navigation {
	h.mu.Lock()
	wasAnimating := h.nav != nil
	wasStationary := h.stationaryLocked()
	n := &navigation{h: h, target: target}
	h.nav = n
	var fire flagCalls
	if !wasAnimating {
		fire = h.flagCallsLocked(Animation, true)
	}
	if wasStationary {
		fire = append(fire, h.flagCallsLocked(Stationary, false)...)
	}
	h.mu.Unlock()
	fire.run()
	return n
}

func (h *Headless) finish(n *navigation) {
	h.mu.Lock()
	if h.nav != n {
		h.mu.Unlock()
		return
	}
	h.nav = nil
	target := n.target
	h.vp = &target
	vpCalls := h.viewpointCallsLocked()
	fire := h.flagCallsLocked(Animation, false)
	if h.stationaryLocked() {
		fire = append(fire, h.flagCallsLocked(Stationary, true)...)
	}
	h.mu.Unlock()

	for _, fn := range vpCalls {
		fn(target)
	}
	fire.run()
}

func (h *Headless) WatchFlags(props []Property, fn FlagFunc) WatchHandle {
	set := make(map[Property]bool, len(props))
	for _, p := range props {
		set[p] = true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextWatch++
	id := h.nextWatch
	h.flagWatchers[id] = flagWatcher{props: set, fn: fn}
	return &watchHandle{remove: func() {
		h.mu.Lock()
		delete(h.flagWatchers, id)
		h.mu.Unlock()
	}}
}

func (h *Headless) WatchViewpoint(fn ViewpointFunc) WatchHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextWatch++
	id := h.nextWatch
	h.vpWatchers[id] = fn
	return &watchHandle{remove: func() {
		h.mu.Lock()
		delete(h.vpWatchers, id)
		h.mu.Unlock()
	}}
}

// WatchCount returns the number of live watches, for leak checks.
func (h *Headless) WatchCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.flagWatchers) + len(h.vpWatchers)
}

type flagCall struct {
	fn    FlagFunc
	prop  Property
	value bool
}

type flagCalls []flagCall

func (c flagCalls) run() {
	for _, call := range c {
		call.fn(call.prop, call.value)
	}
}

func (h *Headless) flagCallsLocked(prop Property, value bool) flagCalls {
	var out flagCalls
	for _, id := range sortedKeys(h.flagWatchers) {
		w := h.flagWatchers[id]
		if w.props[prop] {
			out = append(out, flagCall{fn: w.fn, prop: prop, value: value})
		}
	}
	return out
}

func (h *Headless) viewpointCallsLocked() []ViewpointFunc {
	out := make([]ViewpointFunc, 0, len(h.vpWatchers))
	for _, id := range sortedKeys(h.vpWatchers) {
		out = append(out, h.vpWatchers[id])
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

type watchHandle struct {
	once   sync.Once
	remove func()
}

func (w *watchHandle) Remove() { w.once.Do(w.remove) }

type navigation struct {
	h      *Headless
	target ViewpointValue
}

func (n *navigation) Finish() { n.h.finish(n) }

var _ Viewport = (*Headless)(nil)
