// Package simulator drives a demo fleet by dead reckoning and publishes each
// frame to the telemetry channel.
package simulator

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/theoremus-urban-solutions/fleetview/fleet"
	"github.com/theoremus-urban-solutions/fleetview/geo"
	"github.com/theoremus-urban-solutions/fleetview/pubsub"
)

// PublisherID is the publisher id the simulator registers with.
const PublisherID = "simulator"

const (
	DefaultStartDelay    = 10 * time.Second
	DefaultFrameInterval = 5 * time.Second
)

// ErrEmptyFleet is returned when the simulator has no vehicles to drive.
var ErrEmptyFleet = errors.New("empty fleet")

//go:embed seed.yml
var seedYAML []byte

// LoadSeed parses and validates a YAML list of vehicles.
func LoadSeed(data []byte) ([]fleet.Vehicle, error) {
	var vehicles []fleet.Vehicle
	if err := yaml.Unmarshal(data, &vehicles); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if len(vehicles) == 0 {
		return nil, ErrEmptyFleet
	}
	for _, v := range vehicles {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	return vehicles, nil
}

// DefaultSeed returns the built-in demo fleet.
func DefaultSeed() []fleet.Vehicle {
	vehicles, err := LoadSeed(seedYAML)
	if err != nil {
		panic(err)
	}
	return vehicles
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithStartDelay sets the wait before the seed fleet is first published.
func WithStartDelay(d time.Duration) Option {
	return func(s *Simulator) { s.startDelay = d }
}

// WithFrameInterval sets both the tick period and the time each frame advances.
func WithFrameInterval(d time.Duration) Option {
	return func(s *Simulator) { s.frame = d }
}

// WithFleet replaces the embedded seed fleet.
func WithFleet(vehicles []fleet.Vehicle) Option {
	return func(s *Simulator) { s.fleet = append([]fleet.Vehicle(nil), vehicles...) }
}

// WithClock sets the clock used for telemetry timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

// WithChannel overrides fleet.TelemetryChannel.
func WithChannel(channel string) Option {
	return func(s *Simulator) { s.channel = channel }
}

// Simulator moves every vehicle along its heading at its speed, turning one
// degree per frame.
type Simulator struct {
	pub        *pubsub.Publisher[fleet.Vehicle]
	channel    string
	startDelay time.Duration
	frame      time.Duration
	now        func() time.Time
	log        *slog.Logger

	busy  atomic.Bool
	mu    sync.Mutex
	fleet []fleet.Vehicle
}

// New registers the simulator as a publisher on the telemetry channel.
func New(dist *pubsub.Distributor[fleet.Vehicle], opts ...Option) (*Simulator, error) {
	s := &Simulator{
		channel:    fleet.TelemetryChannel,
		startDelay: DefaultStartDelay,
		frame:      DefaultFrameInterval,
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fleet == nil {
		s.fleet = DefaultSeed()
	}
	if s.frame <= 0 {
		return nil, fmt.Errorf("simulator: frame interval must be positive, got %s", s.frame)
	}
	pub, err := dist.RegisterPublisher(PublisherID, s.channel)
	if err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}
	s.pub = pub
	s.log = s.log.With("component", "simulator")
	return s, nil
}

// Fleet returns a copy of the current fleet state.
func (s *Simulator) Fleet() []fleet.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fleet.Vehicle(nil), s.fleet...)
}

// Run publishes the initial fleet after the start delay, then steps once per
// frame until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	defer s.pub.Unpublish()

	timer := time.NewTimer(s.startDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
	}
	if err := s.PublishFleet(); err != nil {
		return err
	}
	s.log.Info("simulator started", "vehicles", len(s.Fleet()), "frame", s.frame)

	ticker := time.NewTicker(s.frame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("simulator stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Step(); err != nil {
				return err
			}
		}
	}
}

// PublishFleet publishes the current fleet state unconditionally.
func (s *Simulator) PublishFleet() error {
	return s.pub.PublishMany(s.Fleet())
}

// Step advances the fleet by one frame and publishes it when the channel has
// no delivery in flight. It reports whether a frame was published. A Step
// that overlaps a running one does nothing.
func (s *Simulator) Step() (bool, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return false, nil
	}
	defer s.busy.Store(false)

	frame := s.advance()
	if !s.pub.Ready() {
		s.log.Debug("channel busy, frame not published")
		return false, nil
	}
	if err := s.pub.PublishMany(frame); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Simulator) advance() []fleet.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp := s.now().UnixMilli()
	for i := range s.fleet {
		s.fleet[i] = Advance(s.fleet[i], s.frame)
		s.fleet[i].TelemetryUpdateTime = stamp
	}
	return append([]fleet.Vehicle(nil), s.fleet...)
}

// Advance moves v for d along its heading at its speed and turns it one
// degree clockwise.
func Advance(v fleet.Vehicle, d time.Duration) fleet.Vehicle {
	travelled := geo.MphToMetersPerSecond(v.Speed) * d.Seconds()
	end, bearing := geo.Destination(geo.Coord{Lat: v.Latitude, Lon: v.Longitude}, v.Heading, travelled)
	v.Latitude = end.Lat
	v.Longitude = end.Lon
	v.Heading = geo.NormalizeHeading(bearing + 1)
	return v
}
