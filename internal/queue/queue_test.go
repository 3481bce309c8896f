package queue

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var inf = float32(math.Inf(1))

func TestBounded_TryAccept(t *testing.T) {
	q := NewBounded(3)

	ok, r := q.TryAccept(Item{ID: 1, Distance: 10}, inf)
	assert.True(t, ok)
	assert.Equal(t, inf, r, "radius must not shrink before saturation")

	ok, r = q.TryAccept(Item{ID: 2, Distance: 20}, inf)
	assert.True(t, ok)
	assert.Equal(t, inf, r)

	ok, r = q.TryAccept(Item{ID: 3, Distance: 30}, inf)
	assert.True(t, ok)
	assert.Equal(t, float32(30), r, "saturation tightens radius to the k-th distance")

	// Better candidate evicts the maximum.
	ok, r = q.TryAccept(Item{ID: 4, Distance: 5}, r)
	assert.True(t, ok)
	assert.Equal(t, float32(20), r)
	assert.Equal(t, 3, q.Len())

	// Worse candidate is rejected and the radius is returned unchanged.
	ok, r = q.TryAccept(Item{ID: 5, Distance: 25}, r)
	assert.False(t, ok)
	assert.Equal(t, float32(20), r)

	top, ok := q.Max()
	require.True(t, ok)
	assert.Equal(t, Item{ID: 2, Distance: 20}, top)

	sorted := q.AppendSorted(nil)
	assert.Equal(t, []Item{{4, 5}, {1, 10}, {2, 20}}, sorted)
}

func TestBounded_ZeroCapacity(t *testing.T) {
	q := NewBounded(0)
	ok, r := q.TryAccept(Item{ID: 1, Distance: 1}, 7)
	assert.False(t, ok)
	assert.Equal(t, float32(7), r)
	assert.Equal(t, 0, q.Len())
	assert.True(t, q.Full())

	_, ok = q.Max()
	assert.False(t, ok)
}

func TestBounded_NegativeCapacity(t *testing.T) {
	q := NewBounded(-3)
	assert.Equal(t, 0, q.Cap())
	q.Reset(-1)
	assert.Equal(t, 0, q.Cap())
}

func TestBounded_TieBreak(t *testing.T) {
	q := NewBounded(2)
	q.TryAccept(Item{ID: 9, Distance: 1}, inf)
	q.TryAccept(Item{ID: 7, Distance: 1}, inf)

	// Same distance, lower id ranks ahead of the current maximum (id 9).
	ok, _ := q.TryAccept(Item{ID: 3, Distance: 1}, inf)
	assert.True(t, ok)
	// Same distance, higher id ranks behind.
	ok, _ = q.TryAccept(Item{ID: 8, Distance: 1}, inf)
	assert.False(t, ok)

	assert.Equal(t, []Item{{3, 1}, {7, 1}}, q.AppendSorted(nil))
}

func TestBounded_ResetReusesStorage(t *testing.T) {
	q := NewBounded(8)
	for i := 0; i < 8; i++ {
		q.TryAccept(Item{ID: uint32(i), Distance: float32(i)}, inf)
	}
	before := cap(q.items)

	q.Reset(4)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 4, q.Cap())
	assert.Equal(t, before, cap(q.items))

	q.Reset(16)
	assert.Equal(t, 16, q.Cap())
	assert.GreaterOrEqual(t, cap(q.items), 16)
}

func TestBounded_Drain(t *testing.T) {
	q := NewBounded(4)
	for _, d := range []float32{3, 1, 4, 2} {
		q.TryAccept(Item{ID: uint32(d), Distance: d}, inf)
	}
	out := q.Drain(nil)
	assert.Equal(t, []Item{{4, 4}, {3, 3}, {2, 2}, {1, 1}}, out)
	assert.Equal(t, 0, q.Len())

	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestBounded_MatchesSort(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		k := rng.Intn(20)
		n := rng.Intn(200)
		q := NewBounded(k)

		all := make([]Item, n)
		radius := inf
		for i := range all {
			all[i] = Item{ID: uint32(i), Distance: rng.Float32() * 100}
			if all[i].Distance < radius {
				var accepted bool
				accepted, radius = q.TryAccept(all[i], radius)
				_ = accepted
			}
		}

		sort.Slice(all, func(i, j int) bool { return worse(all[j], all[i]) })
		want := all[:min(k, n)]
		got := q.AppendSorted(nil)
		if len(want) == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.Equal(t, want, got, "trial %d", trial)
	}
}

func TestBoundedProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("size never exceeds k", prop.ForAll(
		func(k int, distances []float32) bool {
			q := NewBounded(k)
			for i, d := range distances {
				q.TryAccept(Item{ID: uint32(i), Distance: d}, inf)
				if q.Len() > k {
					return false
				}
			}
			return q.Len() == min(k, len(distances))
		},
		gen.IntRange(0, 32),
		gen.SliceOf(gen.Float32Range(0, 1000)),
	))

	properties.Property("radius is non-increasing", prop.ForAll(
		func(k int, distances []float32) bool {
			q := NewBounded(k)
			radius := inf
			for i, d := range distances {
				if d >= radius {
					continue
				}
				_, next := q.TryAccept(Item{ID: uint32(i), Distance: d}, radius)
				if next > radius {
					return false
				}
				radius = next
			}
			return true
		},
		gen.IntRange(0, 32),
		gen.SliceOf(gen.Float32Range(0, 1000)),
	))

	properties.Property("saturated radius equals max", prop.ForAll(
		func(k int, distances []float32) bool {
			q := NewBounded(k)
			radius := inf
			for i, d := range distances {
				if d < radius {
					_, radius = q.TryAccept(Item{ID: uint32(i), Distance: d}, radius)
				}
			}
			if !q.Full() || k == 0 {
				return radius == inf
			}
			top, _ := q.Max()
			return top.Distance == radius
		},
		gen.IntRange(0, 16),
		gen.SliceOf(gen.Float32Range(0, 1000)),
	))

	properties.TestingRun(t)
}
