package pubsub

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultChannel is used when a publisher or subscriber names no channel.
const DefaultChannel = "__default__"

// Registration and publish errors.
var (
	ErrDuplicatePublisher     = errors.New("publisher already registered")
	ErrDuplicateSubscriber    = errors.New("subscriber already registered")
	ErrPublisherNotRegistered = errors.New("publisher not registered")
	ErrNilHandler             = errors.New("nil data changed handler")
)

// UpdateType tells the distributor how a subscriber wants its data.
type UpdateType string

const (
	Stream UpdateType = "stream"
	Digest UpdateType = "digest"
)

// DataChangedFunc receives every chunk drained from the subscribed channel.
// The chunk slice belongs to the callee.
type DataChangedFunc[T any] func(chunk []DataItem[T], channel string, d *Distributor[T])

// Observer receives distribution counts, typically for metrics.
type Observer interface {
	Published(channel string, items int)
	Delivered(channel string, subscribers, items int)
}

type noopObserver struct{}

func (noopObserver) Published(string, int)      {}
func (noopObserver) Delivered(string, int, int) {}

type options struct {
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// Option configures a Distributor.
type Option func(*options)

// WithClock sets the clock used to timestamp items.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver sets the observer notified of publishes and deliveries.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

type publisherReg struct {
	id                string
	channel           string
	lastPublishedTime int64
}

type subscriberReg[T any] struct {
	id         string
	channel    string
	updateType UpdateType
	fn         DataChangedFunc[T]
}

type channelState[T any] struct {
	ch       *Channel[T]
	inFlight bool
}

// Distributor routes published data into channels and fans each drained
// chunk out to the channel's subscribers.
type Distributor[T any] struct {
	now func() time.Time
	log *slog.Logger
	obs Observer

	mu          sync.Mutex
	channels    map[string]*channelState[T]
	publishers  []*publisherReg
	subscribers []*subscriberReg[T]
}

// New creates an empty Distributor.
func New[T any](opts ...Option) *Distributor[T] {
	o := options{now: time.Now, logger: slog.Default(), observer: noopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Distributor[T]{
		now:      o.now,
		log:      o.logger.With("component", "pubsub"),
		obs:      o.observer,
		channels: map[string]*channelState[T]{},
	}
}

func channelOrDefault(channel string) string {
	if channel == "" {
		return DefaultChannel
	}
	return channel
}

// RegisterPublisher registers id as a publisher on channel, creating the
// channel if needed. Registering the same (id, channel) twice is an error and
// leaves the first registration in place.
func (d *Distributor[T]) RegisterPublisher(id, channel string) (*Publisher[T], error) {
	channel = channelOrDefault(channel)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.findPublisher(id, channel) >= 0 {
		return nil, fmt.Errorf("register publisher %q on channel %q: %w", id, channel, ErrDuplicatePublisher)
	}
	if _, ok := d.channels[channel]; !ok {
		d.channels[channel] = &channelState[T]{ch: NewChannel[T](channel, d.now)}
	}
	d.publishers = append(d.publishers, &publisherReg{id: id, channel: channel})
	d.log.Info("publisher registered", "id", id, "channel", channel)
	return &Publisher[T]{d: d, id: id, channel: channel}, nil
}

// RegisterSubscriber registers fn to receive the chunks published on channel.
// Registering the same (id, channel) twice is an error.
func (d *Distributor[T]) RegisterSubscriber(id string, fn DataChangedFunc[T], channel string, updateType UpdateType) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	channel = channelOrDefault(channel)
	if updateType == "" {
		updateType = Stream
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.findSubscriber(id, channel) >= 0 {
		return nil, fmt.Errorf("register subscriber %q on channel %q: %w", id, channel, ErrDuplicateSubscriber)
	}
	d.subscribers = append(d.subscribers, &subscriberReg[T]{
		id:         id,
		channel:    channel,
		updateType: updateType,
		fn:         fn,
	})
	d.log.Info("subscriber registered", "id", id, "channel", channel, "update_type", string(updateType))
	return &Subscription{id: id, channel: channel, cancel: func() { d.unsubscribe(id, channel) }}, nil
}

// Channel returns the named channel, or nil if no publisher created it.
func (d *Distributor[T]) Channel(name string) *Channel[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.channels[channelOrDefault(name)]; ok {
		return st.ch
	}
	return nil
}

// LastPublished returns the epoch millisecond time of the last publish by
// (id, channel), and false if no such publisher is registered.
func (d *Distributor[T]) LastPublished(id, channel string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.findPublisher(id, channelOrDefault(channel))
	if i < 0 {
		return 0, false
	}
	return d.publishers[i].lastPublishedTime, true
}

func (d *Distributor[T]) findPublisher(id, channel string) int {
	for i, p := range d.publishers {
		if p.id == id && p.channel == channel {
			return i
		}
	}
	return -1
}

func (d *Distributor[T]) findSubscriber(id, channel string) int {
	for i, s := range d.subscribers {
		if s.id == id && s.channel == channel {
			return i
		}
	}
	return -1
}

func (d *Distributor[T]) unsubscribe(id, channel string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := d.findSubscriber(id, channel); i >= 0 {
		d.subscribers = append(d.subscribers[:i], d.subscribers[i+1:]...)
		d.log.Info("subscriber removed", "id", id, "channel", channel)
	}
}

func (d *Distributor[T]) unpublish(id, channel string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := d.findPublisher(id, channel); i >= 0 {
		d.publishers = append(d.publishers[:i], d.publishers[i+1:]...)
		d.log.Info("publisher removed", "id", id, "channel", channel)
	}
}

func (d *Distributor[T]) ready(channel string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.channels[channel]
	return ok && !st.inFlight
}

func (d *Distributor[T]) publish(id, channel string, n int, add func(*Channel[T])) error {
	d.mu.Lock()
	i := d.findPublisher(id, channel)
	if i < 0 {
		d.mu.Unlock()
		return fmt.Errorf("publish %q on channel %q: %w", id, channel, ErrPublisherNotRegistered)
	}
	st := d.channels[channel]
	add(st.ch)
	d.publishers[i].lastPublishedTime = d.now().UnixMilli()
	if st.inFlight {
		// the running delivery picks these items up on its next pass
		d.mu.Unlock()
		d.obs.Published(channel, n)
		return nil
	}
	st.inFlight = true
	d.mu.Unlock()

	d.obs.Published(channel, n)
	d.pump(channel, st)
	return nil
}

// pump drains the channel to its subscribers until it is empty. Only one pump
// runs per channel at a time.
func (d *Distributor[T]) pump(channel string, st *channelState[T]) {
	finished := false
	defer func() {
		if !finished {
			d.mu.Lock()
			st.inFlight = false
			d.mu.Unlock()
		}
	}()

	for {
		d.mu.Lock()
		chunk := st.ch.ConsumeTimeChunk(0, d.now().UnixMilli())
		if len(chunk) == 0 {
			st.inFlight = false
			finished = true
			d.mu.Unlock()
			return
		}
		subs := make([]*subscriberReg[T], 0, len(d.subscribers))
		for _, s := range d.subscribers {
			if s.channel == channel {
				subs = append(subs, s)
			}
		}
		d.mu.Unlock()

		for _, s := range subs {
			own := make([]DataItem[T], len(chunk))
			copy(own, chunk)
			s.fn(own, channel, d)
		}
		d.obs.Delivered(channel, len(subs), len(chunk))
		d.log.Debug("chunk delivered", "channel", channel, "items", len(chunk), "subscribers", len(subs))
	}
}

// Publisher is the handle returned by RegisterPublisher.
type Publisher[T any] struct {
	d       *Distributor[T]
	id      string
	channel string
}

// ID returns the publisher id.
func (p *Publisher[T]) ID() string { return p.id }

// Channel returns the channel the publisher writes to.
func (p *Publisher[T]) Channel() string { return p.channel }

// Publish adds one item to the channel and delivers it.
func (p *Publisher[T]) Publish(data T) error {
	return p.d.publish(p.id, p.channel, 1, func(c *Channel[T]) { c.Add(data) })
}

// PublishMany adds items with one shared timestamp and delivers them.
func (p *Publisher[T]) PublishMany(data []T) error {
	return p.d.publish(p.id, p.channel, len(data), func(c *Channel[T]) { c.AddMany(data) })
}

// Ready reports whether no delivery is in flight on the publisher's channel.
// Publishing while not ready is allowed; the items join the running delivery.
func (p *Publisher[T]) Ready() bool { return p.d.ready(p.channel) }

// Unpublish removes the registration. Later publishes fail.
func (p *Publisher[T]) Unpublish() { p.d.unpublish(p.id, p.channel) }

// Subscription is the handle returned by RegisterSubscriber.
type Subscription struct {
	id      string
	channel string
	once    sync.Once
	cancel  func()
}

// ID returns the subscriber id.
func (s *Subscription) ID() string { return s.id }

// Channel returns the subscribed channel.
func (s *Subscription) Channel() string { return s.channel }

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}
