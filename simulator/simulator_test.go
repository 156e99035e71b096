package simulator

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/fleetview/fleet"
	"github.com/theoremus-urban-solutions/fleetview/geo"
	"github.com/theoremus-urban-solutions/fleetview/pubsub"
)

func TestDefaultSeed(t *testing.T) {
	vehicles := DefaultSeed()
	require.Len(t, vehicles, 10)
	assert.Equal(t, "VAN001", vehicles[0].VehicleID)
	assert.Equal(t, fleet.Truck, vehicles[9].VehicleType)
	assert.Equal(t, 20.0, vehicles[0].Depth)
}

func TestLoadSeed_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "[]"},
		{"not yaml", "{{{"},
		{"invalid vehicle", "- {objectId: 1, vehicleId: X, vehicleType: bus}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeed([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestAdvance(t *testing.T) {
	v := fleet.Vehicle{Speed: 25, Heading: 15, Latitude: 33.047488, Longitude: -97.08459}
	next := Advance(v, time.Second)

	moved := geo.Distance(geo.Coord{Lat: v.Latitude, Lon: v.Longitude}, geo.Coord{Lat: next.Latitude, Lon: next.Longitude})
	assert.InDelta(t, 11.176, moved, 1e-3)
	assert.InDelta(t, 16, next.Heading, 1e-3)
}

func TestAdvance_HeadingWraps(t *testing.T) {
	next := Advance(fleet.Vehicle{Speed: 0, Heading: 359.5}, time.Second)
	assert.InDelta(t, 0.5, next.Heading, 1e-9)
	assert.True(t, next.Heading >= 0 && next.Heading < 360)
}

func TestSimulator_StepPublishesFrames(t *testing.T) {
	dist := pubsub.New[fleet.Vehicle]()
	var frames [][]pubsub.DataItem[fleet.Vehicle]
	_, err := dist.RegisterSubscriber("viewer", func(chunk []pubsub.DataItem[fleet.Vehicle], _ string, _ *pubsub.Distributor[fleet.Vehicle]) {
		frames = append(frames, chunk)
	}, fleet.TelemetryChannel, pubsub.Stream)
	require.NoError(t, err)

	now := time.UnixMilli(1_700_000_000_000)
	s, err := New(dist, WithFrameInterval(time.Second), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	published, err := s.Step()
	require.NoError(t, err)
	assert.True(t, published)
	require.Len(t, frames, 1)
	require.Len(t, frames[0], 10)
	assert.Equal(t, now.UnixMilli(), frames[0][0].Data.TelemetryUpdateTime)
	assert.Equal(t, s.Fleet(), dataOf(frames[0]))

	seed := DefaultSeed()
	assert.NotEqual(t, seed[0].Latitude, frames[0][0].Data.Latitude)
}

func TestSimulator_OverlappingStepIsIgnored(t *testing.T) {
	dist := pubsub.New[fleet.Vehicle]()
	var s *Simulator
	var nested []bool
	_, err := dist.RegisterSubscriber("viewer", func([]pubsub.DataItem[fleet.Vehicle], string, *pubsub.Distributor[fleet.Vehicle]) {
		if len(nested) == 0 {
			// a step overlapping the running one is ignored
			published, _ := s.Step()
			nested = append(nested, published)
		}
	}, fleet.TelemetryChannel, pubsub.Stream)
	require.NoError(t, err)

	s, err = New(dist, WithFleet(DefaultSeed()[:2]), WithFrameInterval(time.Second))
	require.NoError(t, err)

	published, err := s.Step()
	require.NoError(t, err)
	assert.True(t, published)
	assert.Equal(t, []bool{false}, nested)
}

func TestSimulator_DuplicateRegistration(t *testing.T) {
	dist := pubsub.New[fleet.Vehicle]()
	_, err := New(dist)
	require.NoError(t, err)
	_, err = New(dist)
	assert.ErrorIs(t, err, pubsub.ErrDuplicatePublisher)
}

func TestSimulator_WithChannel(t *testing.T) {
	dist := pubsub.New[fleet.Vehicle]()
	_, err := New(dist, WithChannel("demo"))
	require.NoError(t, err)

	_, onDemo := dist.LastPublished(PublisherID, "demo")
	_, onDefault := dist.LastPublished(PublisherID, fleet.TelemetryChannel)
	assert.True(t, onDemo)
	assert.False(t, onDefault)
}

func TestSimulator_RunStopsOnCancel(t *testing.T) {
	dist := pubsub.New[fleet.Vehicle]()
	s, err := New(dist, WithStartDelay(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))

	_, ok := dist.LastPublished(PublisherID, fleet.TelemetryChannel)
	assert.False(t, ok, "publisher is unregistered when Run returns")
}

func TestSimulator_RunPublishesAfterDelay(t *testing.T) {
	dist := pubsub.New[fleet.Vehicle]()
	got := make(chan int, 16)
	_, err := dist.RegisterSubscriber("viewer", func(chunk []pubsub.DataItem[fleet.Vehicle], _ string, _ *pubsub.Distributor[fleet.Vehicle]) {
		select {
		case got <- len(chunk):
		default:
		}
	}, fleet.TelemetryChannel, pubsub.Stream)
	require.NoError(t, err)

	s, err := New(dist, WithStartDelay(time.Millisecond), WithFrameInterval(time.Millisecond))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case n := <-got:
			assert.Equal(t, 10, n)
		case <-time.After(time.Second):
			t.Fatal("no frame published")
		}
	}
	cancel()
	require.NoError(t, <-done)
}

func TestFrameDistanceMatchesSpeed(t *testing.T) {
	// 60 mph for one minute is one mile
	next := Advance(fleet.Vehicle{Speed: 60, Heading: 90}, time.Minute)
	moved := geo.Distance(geo.Coord{}, geo.Coord{Lat: next.Latitude, Lon: next.Longitude})
	assert.InDelta(t, 1609.344, moved, 0.01)
	assert.False(t, math.IsNaN(next.Heading))
}

func dataOf(items []pubsub.DataItem[fleet.Vehicle]) []fleet.Vehicle {
	out := make([]fleet.Vehicle, len(items))
	for i, it := range items {
		out[i] = it.Data
	}
	return out
}
