package gtfsrt

import (
	"errors"
	"fmt"
	"sync"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/fleetview/fleet"
	"github.com/theoremus-urban-solutions/fleetview/geo"
)

// ErrEmptyFeed is returned when a feed holds no usable vehicle position.
var ErrEmptyFeed = errors.New("feed has no vehicle positions")

// Registry hands out stable object ids for feed vehicle keys. Ids are never
// reused. Scoped registries share the id space of their parent.
type Registry struct {
	space  *idSpace
	prefix string
}

type idSpace struct {
	mu   sync.Mutex
	ids  map[string]int64
	next int64
}

func NewRegistry() *Registry {
	return NewRegistryFrom(1)
}

// NewRegistryFrom creates a registry whose first id is first, for feeds that
// share a layer with vehicles numbered elsewhere.
func NewRegistryFrom(first int64) *Registry {
	if first < 1 {
		first = 1
	}
	return &Registry{space: &idSpace{ids: map[string]int64{}, next: first}}
}

// Scoped returns a registry drawing from the same ids whose keys live under
// scope, so equal vehicle keys from two feeds get different ids.
func (r *Registry) Scoped(scope string) *Registry {
	return &Registry{space: r.space, prefix: r.prefix + scope + "/"}
}

// ObjectID returns the id for key, assigning one on first sight.
func (r *Registry) ObjectID(key string) int64 {
	key = r.prefix + key
	s := r.space
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[key]; ok {
		return id
	}
	id := s.next
	s.next++
	s.ids[key] = id
	return id
}

// Len returns the number of known vehicles across the shared id space.
func (r *Registry) Len() int {
	r.space.mu.Lock()
	defer r.space.mu.Unlock()
	return len(r.space.ids)
}

// DecodeVehicles parses a FeedMessage and returns one telemetry record per
// entity carrying a vehicle position. Vehicles are keyed by descriptor id,
// then label, then entity id. Speed is converted from m/s to mph. Records
// that fail validation are dropped. A feed without usable positions yields
// ErrEmptyFeed.
func DecodeVehicles(data []byte, reg *Registry, vehicleType fleet.Type) ([]fleet.Vehicle, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	headerTS := int64(fm.GetHeader().GetTimestamp())
	out := make([]fleet.Vehicle, 0, len(fm.GetEntity()))
	for _, e := range fm.GetEntity() {
		vp := e.GetVehicle()
		if vp == nil || vp.GetPosition() == nil {
			continue
		}
		key := vp.GetVehicle().GetId()
		if key == "" {
			key = vp.GetVehicle().GetLabel()
		}
		if key == "" {
			key = e.GetId()
		}
		if key == "" {
			continue
		}

		pos := vp.GetPosition()
		ts := int64(vp.GetTimestamp())
		if ts == 0 {
			ts = headerTS
		}
		label := vp.GetVehicle().GetLabel()
		if label == "" {
			label = key
		}
		v := fleet.Vehicle{
			ObjectID:    reg.ObjectID(key),
			VehicleID:   label,
			VehicleType: vehicleType,
			Longitude:   float64(pos.GetLongitude()),
			Latitude:    float64(pos.GetLatitude()),
			Heading:     geo.NormalizeHeading(float64(pos.GetBearing())),
			Speed:       geo.MetersPerSecondToMph(float64(pos.GetSpeed())),
		}
		if ts > 0 {
			v.TelemetryUpdateTime = ts * 1000
		}
		if err := v.Validate(); err != nil {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, ErrEmptyFeed
	}
	return out, nil
}
