package viewsync

import "github.com/theoremus-urban-solutions/fleetview/viewport"

type token int

const (
	interactToken token = iota
	stationaryToken
	viewpointToken
)

// subscriber is the dispatcher's record for one viewport. It owns every watch
// it holds and the pending activation; release revokes them together.
// All fields are guarded by the dispatcher's mutex.
type subscriber struct {
	target  viewport.Viewport
	watches map[token]viewport.WatchHandle
	cancel  func() bool // pending activation, nil when none
	seq     uint64      // invalidates activations that were already running
}

func newSubscriber(vp viewport.Viewport) *subscriber {
	return &subscriber{target: vp, watches: map[token]viewport.WatchHandle{}}
}

func (s *subscriber) hold(t token, h viewport.WatchHandle) {
	if old, ok := s.watches[t]; ok {
		old.Remove()
	}
	s.watches[t] = h
}

func (s *subscriber) scheduled() bool { return s.cancel != nil }

func (s *subscriber) driving() bool {
	_, ok := s.watches[viewpointToken]
	return ok
}

// armed reports whether the viewport is scheduled or driving.
func (s *subscriber) armed() bool {
	_, stationary := s.watches[stationaryToken]
	return stationary || s.scheduled() || s.driving()
}

// release revokes the pending activation and the drive watches. With all set
// it also revokes the interaction watch, which ends the subscription.
func (s *subscriber) release(all bool) {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.seq++
	for t, h := range s.watches {
		if t == interactToken && !all {
			continue
		}
		h.Remove()
		delete(s.watches, t)
	}
}
