package bvh

import (
	"context"
	"slices"
	"unsafe"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/rayknn/geom"
	"github.com/hupe1980/rayknn/resource"
)

const (
	defaultLeafSize          = 4
	maxLeafSize              = 16
	defaultBins              = 16
	defaultParallelThreshold = 1 << 16
	cancelCheckInterval      = 1 << 12
)

// BoundsFunc returns the bounding box of primitive i. It may be called from
// several goroutines at once.
type BoundsFunc func(i int) geom.AABB

// Options configures Build.
type Options struct {
	// LeafSize is the primitive count below which a node always becomes a leaf.
	LeafSize int

	// Bins is the number of SAH bins evaluated per split.
	Bins int

	// ParallelThreshold is the primitive count from which bounds are computed
	// by several goroutines.
	ParallelThreshold int

	// Resources bounds the number of build goroutines. May be nil.
	Resources *resource.Controller
}

// node is either an inner node (count == 0) whose left child directly follows
// it and whose right child is at index right, or a leaf referencing
// prims[start:start+count].
type node struct {
	bounds geom.AABB
	start  uint32
	count  uint32
	right  uint32
}

var nodeSize = int64(unsafe.Sizeof(node{}))

// Tree is a built BVH.
type Tree struct {
	nodes []node
	prims []uint32
	n     int
}

// EstimateMemory returns an upper bound for the bytes a tree over n
// primitives occupies.
func EstimateMemory(n int) int64 {
	if n <= 0 {
		return 0
	}
	return int64(2*n)*nodeSize + int64(n)*4
}

// Build constructs a tree over n primitives.
func Build(ctx context.Context, n int, bounds BoundsFunc, optFns ...func(o *Options)) (*Tree, error) {
	opts := Options{
		LeafSize:          defaultLeafSize,
		Bins:              defaultBins,
		ParallelThreshold: defaultParallelThreshold,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.LeafSize <= 0 {
		opts.LeafSize = defaultLeafSize
	}
	if opts.Bins < 2 {
		opts.Bins = defaultBins
	}

	if n <= 0 {
		return &Tree{}, ctx.Err()
	}

	boxes, cents, err := primitiveBounds(ctx, n, bounds, opts)
	if err != nil {
		return nil, err
	}

	b := &builder{
		ctx:   ctx,
		opts:  opts,
		boxes: boxes,
		cents: cents,
		ids:   make([]uint32, n),
		nodes: make([]node, 0, 2*n/opts.LeafSize+1),
		bins:  make([]bin, opts.Bins),
	}
	for i := range b.ids {
		b.ids[i] = uint32(i)
	}

	b.build(0, n)
	if b.err != nil {
		return nil, b.err
	}

	return &Tree{
		nodes: slices.Clip(b.nodes),
		prims: b.ids,
		n:     n,
	}, nil
}

func primitiveBounds(ctx context.Context, n int, bounds BoundsFunc, opts Options) ([]geom.AABB, []geom.Vec3, error) {
	boxes := make([]geom.AABB, n)
	cents := make([]geom.Vec3, n)

	fill := func(from, to int) {
		for i := from; i < to; i++ {
			bb := bounds(i)
			boxes[i] = bb
			cents[i] = bb.Centroid()
		}
	}

	workers := opts.Resources.Workers()
	if n < opts.ParallelThreshold || workers <= 1 {
		fill(0, n)
		return boxes, cents, ctx.Err()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	chunk := (n + workers - 1) / workers
	for from := 0; from < n; from += chunk {
		to := min(from+chunk, n)
		g.Go(func() error {
			if err := opts.Resources.AcquireWorker(gctx); err != nil {
				return err
			}
			defer opts.Resources.ReleaseWorker()
			fill(from, to)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return boxes, cents, nil
}

type bin struct {
	bounds geom.AABB
	count  int
}

type builder struct {
	ctx   context.Context
	opts  Options
	boxes []geom.AABB
	cents []geom.Vec3
	ids   []uint32
	nodes []node
	bins  []bin
	built int
	err   error
}

func (b *builder) build(start, end int) uint32 {
	idx := uint32(len(b.nodes))
	b.nodes = append(b.nodes, node{})

	bounds := geom.EmptyAABB()
	cbounds := geom.EmptyAABB()
	for _, id := range b.ids[start:end] {
		bounds = bounds.Union(b.boxes[id])
		cbounds = cbounds.Extend(b.cents[id])
	}

	count := end - start
	if count <= b.opts.LeafSize || b.err != nil {
		b.leaf(idx, bounds, start, count)
		return idx
	}

	b.built += count
	if b.built >= cancelCheckInterval {
		b.built = 0
		if err := b.ctx.Err(); err != nil {
			b.err = err
			b.leaf(idx, bounds, start, count)
			return idx
		}
	}

	mid, ok := b.split(bounds, cbounds, start, end)
	if !ok {
		b.leaf(idx, bounds, start, count)
		return idx
	}

	b.build(start, mid)
	right := b.build(mid, end)
	b.nodes[idx] = node{bounds: bounds, right: right}
	return idx
}

func (b *builder) leaf(idx uint32, bounds geom.AABB, start, count int) {
	b.nodes[idx] = node{bounds: bounds, start: uint32(start), count: uint32(count)}
}

// split partitions ids[start:end] and returns the split position. It reports
// false if a leaf is cheaper.
func (b *builder) split(bounds, cbounds geom.AABB, start, end int) (int, bool) {
	count := end - start
	axis := cbounds.LongestAxis()
	lo := cbounds.Min.Index(axis)
	extent := cbounds.Max.Index(axis) - lo

	if extent <= 0 {
		// Coincident centroids: SAH cannot separate them, halve by position.
		if count <= maxLeafSize {
			return 0, false
		}
		return start + count/2, true
	}

	nb := len(b.bins)
	for i := range b.bins {
		b.bins[i] = bin{bounds: geom.EmptyAABB()}
	}
	scale := float32(nb) / extent
	binOf := func(id uint32) int {
		i := int((b.cents[id].Index(axis) - lo) * scale)
		return min(max(i, 0), nb-1)
	}
	for _, id := range b.ids[start:end] {
		bi := &b.bins[binOf(id)]
		bi.bounds = bi.bounds.Union(b.boxes[id])
		bi.count++
	}

	// Sweep from the right to get suffix areas, then from the left.
	rightArea := make([]float32, nb)
	rightCount := make([]int, nb)
	acc := geom.EmptyAABB()
	n := 0
	for i := nb - 1; i > 0; i-- {
		acc = acc.Union(b.bins[i].bounds)
		n += b.bins[i].count
		rightArea[i] = acc.SurfaceArea()
		rightCount[i] = n
	}

	bestCost := float32(-1)
	bestSplit := -1
	acc = geom.EmptyAABB()
	n = 0
	for i := 0; i < nb-1; i++ {
		acc = acc.Union(b.bins[i].bounds)
		n += b.bins[i].count
		if n == 0 || rightCount[i+1] == 0 {
			continue
		}
		cost := acc.SurfaceArea()*float32(n) + rightArea[i+1]*float32(rightCount[i+1])
		if bestSplit < 0 || cost < bestCost {
			bestCost = cost
			bestSplit = i
		}
	}

	area := bounds.SurfaceArea()
	if bestSplit < 0 {
		return start + count/2, b.sortAlong(axis, start, end)
	}

	// Relative SAH: traversal step cost 1 against one intersection per primitive.
	if area > 0 && count <= maxLeafSize && 1+bestCost/area >= float32(count) {
		return 0, false
	}

	mid := start
	for i := start; i < end; i++ {
		if binOf(b.ids[i]) <= bestSplit {
			b.ids[i], b.ids[mid] = b.ids[mid], b.ids[i]
			mid++
		}
	}
	if mid == start || mid == end {
		return start + count/2, b.sortAlong(axis, start, end)
	}
	return mid, true
}

func (b *builder) sortAlong(axis, start, end int) bool {
	slices.SortFunc(b.ids[start:end], func(x, y uint32) int {
		cx, cy := b.cents[x].Index(axis), b.cents[y].Index(axis)
		switch {
		case cx < cy:
			return -1
		case cx > cy:
			return 1
		default:
			return 0
		}
	})
	return true
}

// Len returns the number of primitives.
func (t *Tree) Len() int { return t.n }

// Bounds returns the box of all primitives; empty for an empty tree.
func (t *Tree) Bounds() geom.AABB {
	if len(t.nodes) == 0 {
		return geom.EmptyAABB()
	}
	return t.nodes[0].bounds
}

// MemoryFootprint returns the bytes held by the tree.
func (t *Tree) MemoryFootprint() int64 {
	return int64(cap(t.nodes))*nodeSize + int64(cap(t.prims))*4
}

// Stats describes the shape of a tree.
type Stats struct {
	Nodes    int
	Leaves   int
	MaxDepth int
	MaxLeaf  int
}

// Stats walks the tree.
func (t *Tree) Stats() Stats {
	var s Stats
	if len(t.nodes) == 0 {
		return s
	}
	type entry struct {
		idx   uint32
		depth int
	}
	stack := []entry{{0, 1}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s.Nodes++
		s.MaxDepth = max(s.MaxDepth, e.depth)
		nd := &t.nodes[e.idx]
		if nd.count > 0 {
			s.Leaves++
			s.MaxLeaf = max(s.MaxLeaf, int(nd.count))
			continue
		}
		stack = append(stack, entry{e.idx + 1, e.depth + 1}, entry{nd.right, e.depth + 1})
	}
	return s
}
