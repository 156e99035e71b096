package layer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	geojson "github.com/paulmach/go.geojson"
)

// Memory is a mutex-guarded in-memory layer.
type Memory struct {
	id string

	mu       sync.RWMutex
	features map[int64]Feature
	edits    int
}

func NewMemory(id string) *Memory {
	return &Memory{id: id, features: map[int64]Feature{}}
}

func (m *Memory) ID() string { return m.id }

func (m *Memory) QueryFeatures(ctx context.Context, q Query) ([]Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []int64
	if len(q.ObjectIDs) > 0 {
		for _, id := range q.ObjectIDs {
			if _, ok := m.features[id]; ok {
				ids = append(ids, id)
			}
		}
	} else {
		ids = m.sortedIDsLocked()
	}

	out := make([]Feature, 0, len(ids))
	for _, id := range ids {
		out = append(out, project(m.features[id], q))
	}
	return out, nil
}

func project(f Feature, q Query) Feature {
	out := Feature{ObjectID: f.ObjectID}
	if q.ReturnGeometry && f.Geometry != nil {
		g := *f.Geometry
		out.Geometry = &g
	}
	out.Attributes = map[string]any{}
	for _, name := range q.OutFields {
		if name == AllFields {
			for k, v := range f.Attributes {
				out.Attributes[k] = v
			}
			break
		}
		if v, ok := f.Attributes[name]; ok {
			out.Attributes[name] = v
		}
	}
	return out
}

// ApplyEdits adds and updates features. An add for an existing object id or
// an update for a missing one fails the whole request. Updates merge the
// given attributes into the stored ones and replace the geometry when set.
func (m *Memory) ApplyEdits(ctx context.Context, e Edits) (EditResult, error) {
	if err := ctx.Err(); err != nil {
		return EditResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[int64]bool{}
	for _, f := range e.AddFeatures {
		if _, ok := m.features[f.ObjectID]; ok || seen[f.ObjectID] {
			return EditResult{}, fmt.Errorf("add object %d to %s: %w", f.ObjectID, m.id, ErrDuplicateFeature)
		}
		seen[f.ObjectID] = true
	}
	for _, f := range e.UpdateFeatures {
		if _, ok := m.features[f.ObjectID]; !ok {
			return EditResult{}, fmt.Errorf("update object %d on %s: %w", f.ObjectID, m.id, ErrFeatureNotFound)
		}
	}

	var res EditResult
	for _, f := range e.AddFeatures {
		m.features[f.ObjectID] = f.Clone()
		res.Added = append(res.Added, f.ObjectID)
	}
	for _, f := range e.UpdateFeatures {
		cur := m.features[f.ObjectID]
		if f.Geometry != nil {
			g := *f.Geometry
			cur.Geometry = &g
		}
		if cur.Attributes == nil {
			cur.Attributes = map[string]any{}
		}
		for k, v := range f.Attributes {
			cur.Attributes[k] = v
		}
		m.features[f.ObjectID] = cur
		res.Updated = append(res.Updated, f.ObjectID)
	}
	m.edits++
	return res, nil
}

// Len returns the number of features.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.features)
}

// EditCount returns how many edit requests were applied.
func (m *Memory) EditCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.edits
}

// Features returns a copy of every feature ordered by object id.
func (m *Memory) Features() []Feature {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Feature, 0, len(m.features))
	for _, id := range m.sortedIDsLocked() {
		out = append(out, m.features[id].Clone())
	}
	return out
}

// GeoJSON encodes the layer as a FeatureCollection of points. Features
// without geometry are skipped.
func (m *Memory) GeoJSON() ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, f := range m.Features() {
		if f.Geometry == nil {
			continue
		}
		gf := geojson.NewPointFeature([]float64{f.Geometry.Longitude, f.Geometry.Latitude})
		gf.ID = f.ObjectID
		for k, v := range f.Attributes {
			gf.SetProperty(k, v)
		}
		fc.AddFeature(gf)
	}
	return fc.MarshalJSON()
}

func (m *Memory) sortedIDsLocked() []int64 {
	ids := make([]int64, 0, len(m.features))
	for id := range m.features {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

var _ Layer = (*Memory)(nil)
