package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock { return &fakeClock{t: time.UnixMilli(1_700_000_000_000)} }

type point struct {
	ID   int
	Tags []string
}

func (p point) Clone() point {
	out := p
	out.Tags = append([]string(nil), p.Tags...)
	return out
}

func TestChannel_AddManySharesTimestamp(t *testing.T) {
	clk := newFakeClock()
	ch := NewChannel[int]("nums", clk.Now)

	ch.AddMany([]int{1, 2, 3})
	clk.Advance(time.Second)
	ch.Add(4)

	items := ch.ConsumeTimeChunk(0, 0)
	require.Len(t, items, 4)
	assert.Equal(t, items[0].Timestamp, items[1].Timestamp)
	assert.Equal(t, items[1].Timestamp, items[2].Timestamp)
	assert.Equal(t, items[2].Timestamp+1000, items[3].Timestamp)
	for i, it := range items {
		assert.Equal(t, i+1, it.Data)
	}
}

func TestChannel_ConsumeZeroZeroReturnsEverything(t *testing.T) {
	clk := newFakeClock()
	ch := NewChannel[int]("nums", clk.Now)
	ch.AddMany([]int{1, 2})

	// items stamped in the future relative to the clock still come back
	clk.Advance(-time.Hour)
	got := ch.ConsumeTimeChunk(0, 0)
	assert.Len(t, got, 2)
	assert.Equal(t, 0, ch.Len())
}

func TestChannel_ConsumeTimeChunkWindow(t *testing.T) {
	clk := newFakeClock()
	ch := NewChannel[string]("words", clk.Now)
	base := clk.Now().UnixMilli()

	ch.Add("a")
	clk.Advance(10 * time.Millisecond)
	ch.AddMany([]string{"b", "c"})
	clk.Advance(10 * time.Millisecond)
	ch.Add("d")

	got := ch.ConsumeTimeChunk(base+10, base+10)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Data)
	assert.Equal(t, "c", got[1].Data)

	rest := ch.ConsumeTimeChunk(0, 0)
	require.Len(t, rest, 2)
	assert.Equal(t, "a", rest[0].Data)
	assert.Equal(t, "d", rest[1].Data)
}

func TestChannel_BoundsAreOrderIndependent(t *testing.T) {
	fill := func() (*Channel[int], int64) {
		clk := newFakeClock()
		ch := NewChannel[int]("nums", clk.Now)
		base := clk.Now().UnixMilli()
		for i := 0; i < 5; i++ {
			ch.Add(i)
			clk.Advance(5 * time.Millisecond)
		}
		return ch, base
	}

	a, base := fill()
	b, _ := fill()

	forward := a.ConsumeTimeChunk(base+5, base+15)
	backward := b.ConsumeTimeChunk(base+15, base+5)
	assert.Equal(t, forward, backward)
	assert.Len(t, forward, 3)
	assert.Equal(t, a.Len(), b.Len())
}

func TestChannel_ZeroEndMeansNow(t *testing.T) {
	clk := newFakeClock()
	ch := NewChannel[int]("nums", clk.Now)
	base := clk.Now().UnixMilli()
	ch.Add(1)
	clk.Advance(time.Second)
	ch.Add(2)

	got := ch.ConsumeTimeChunk(base+1, 0)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Data)
}

func TestChannel_ExactlyOnceAcrossChunks(t *testing.T) {
	clk := newFakeClock()
	ch := NewChannel[int]("nums", clk.Now)
	base := clk.Now().UnixMilli()

	want := map[int]bool{}
	for i := 0; i < 50; i++ {
		if i%3 == 0 {
			ch.AddMany([]int{i * 10, i*10 + 1})
			want[i*10], want[i*10+1] = true, true
		} else {
			ch.Add(i * 10)
			want[i*10] = true
		}
		clk.Advance(time.Millisecond)
	}

	seen := map[int]int{}
	for _, w := range [][2]int64{{base + 40, base + 10}, {base, base + 5}, {base + 30, base + 49}, {0, 0}} {
		for _, it := range ch.ConsumeTimeChunk(w[0], w[1]) {
			seen[it.Data]++
		}
	}
	assert.Equal(t, len(want), len(seen))
	for v, n := range seen {
		assert.True(t, want[v], "unexpected item %d", v)
		assert.Equal(t, 1, n, "item %d delivered %d times", v, n)
	}
	assert.Empty(t, ch.ConsumeTimeChunk(0, 0))
}

func TestChannel_DeepCopiesPayload(t *testing.T) {
	ch := NewChannel[point]("points", nil)
	p := point{ID: 1, Tags: []string{"x"}}
	ch.Add(p)
	p.Tags[0] = "mutated"

	got := ch.ConsumeTimeChunk(0, 0)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].Data.Tags[0])
}

func TestChannel_Clear(t *testing.T) {
	ch := NewChannel[int]("nums", nil)
	ch.AddMany([]int{1, 2, 3})
	ch.Clear()
	assert.Equal(t, 0, ch.Len())
	assert.Equal(t, "nums", ch.Name())
}
