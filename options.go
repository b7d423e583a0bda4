package pma

// Partitioner selects the strategy used to distribute cardinalities across
// the segments of a rebalance window (Design Notes §9: "partitioner
// (uniform vs adaptive)").
type Partitioner int

const (
	// UniformPartitioner splits a window into equally sized segments and
	// ignores the predictor. Mirrors the historical BH07v2 variant,
	// which also does not support Remove (spec.md §9 open question 1).
	UniformPartitioner Partitioner = iota

	// AdaptivePartitioner runs the APMA binary-recursion search (§4.8),
	// biasing free space towards recently hammered keys.
	AdaptivePartitioner
)

// SpreadExecutor selects how a planned rebalance is carried out (Design
// Notes §9: "spread executor (local vs rewiring)").
type SpreadExecutor int

const (
	// AutoSpread picks the local gather/scatter executor for windows
	// smaller than one extent and the rewiring executor otherwise, per
	// §4.7.3/§4.7.4.
	AutoSpread SpreadExecutor = iota

	// LocalSpreadOnly always uses the in-place gather/scatter executor,
	// never acquiring scratch extents. Useful for heap-mode storage,
	// which has no rewired substrate to stream through.
	LocalSpreadOnly
)

// PredictorKind selects the predictor/detector variant (§4.9) a store
// uses to bias the adaptive partitioner towards recently hammered
// regions.
type PredictorKind int

const (
	// MRUPredictorKind tracks recently hammered keys via a circular,
	// saturating-count MRU queue (§4.9 "MRU queue variant").
	MRUPredictorKind PredictorKind = iota

	// SegmentPredictorKind tracks recently hammered segments via a
	// fixed, segment-indexed tally array (§4.9 "Segment-indexed
	// variant"), the variant actually usable as adaptive-partitioner
	// input without an extra key-to-window-position lookup.
	SegmentPredictorKind
)

// IndexKind selects the separator index implementation (Design Notes §9:
// "index (static vs dynamic)").
type IndexKind int

const (
	// StaticIndexKind selects the complete (a,b)-tree rebuilt wholesale on
	// every resize (§4.4, implemented by StaticIndex). This is the
	// default: segment count only changes on resize, so a static tree
	// amortizes rebuild cost against many lookups between resizes.
	StaticIndexKind IndexKind = iota

	// DynamicIndexKind selects the online-mutable (a,b)-tree (§4.5,
	// implemented by DynamicIndex), used by variants where segments are
	// created/destroyed outside of a global resize.
	DynamicIndexKind
)

// Options bundles every construction-time tunable named in spec.md §6.
// Passing an explicit struct instead of reading process-global
// configuration satisfies Design Notes §9 ("Global mutable
// configuration"); DefaultOptions reproduces the historical behaviour.
type Options struct {
	// BlockSize is the separator-index fanout parameter named in spec.md
	// §6's constructor signature ("new(block_size, segment_capacity,
	// pages_per_extent, ...)"), distinct from SegmentCapacity: it sizes
	// the static index's B-ary nodes (B = hyperceil(BlockSize), §4.4) and
	// the dynamic index's (inode_b, leaf_b) fanout (§4.5).
	BlockSize int

	// SegmentCapacity is C: a power of two, 32 <= C <= 2^16-1, and
	// PageSize mod (C*8) == 0 (§3, §6).
	SegmentCapacity int

	// PagesPerExtent is the number of OS pages per rewiring extent (§3).
	PagesPerExtent int

	// PageSize is the OS (or huge) page size backing PagesPerExtent.
	PageSize int

	// HugePages toggles huge-page-backed extents; when true, PageSize
	// must equal HugePageSize (§6).
	HugePages bool

	// MaxMemory bounds the rewired substrate's virtual reservation in
	// bytes (§4.1). Zero means "unbounded" (heap-mode storage only).
	MaxMemory int64

	// InitialSegments is the number of segments the store starts with.
	InitialSegments int

	// PredictorScale multiplies calibrator height to size the predictor
	// (§6): capacity = max(DefaultPredictorMinCapacity, height*scale).
	PredictorScale int

	// Density holds the user-configurable (rho_0, rho_h, theta_h,
	// theta_0) endpoints used below the primary cutoff (§3).
	Density DensityBounds

	// Partitioner selects the partitioning strategy (above).
	Partitioner Partitioner

	// Spread selects the spread executor (above).
	Spread SpreadExecutor

	// Index selects the separator index kind (above).
	Index IndexKind

	// Predictor selects the predictor/detector variant (above).
	Predictor PredictorKind
}

// DefaultOptions returns an Options value matching the historical default
// behaviour of the source system: adaptive partitioning, automatic spread
// executor selection, and a static separator index.
func DefaultOptions() *Options {
	return &Options{
		BlockSize:       64,
		SegmentCapacity: 64,
		PagesPerExtent:  DefaultPagesPerExtent,
		PageSize:        DefaultPageSize,
		HugePages:       false,
		MaxMemory:       1 << 34, // 16 GiB virtual reservation
		InitialSegments: 1,
		PredictorScale:  DefaultPredictorScale,
		Density:         DefaultUserDensity,
		Partitioner:     AdaptivePartitioner,
		Spread:          AutoSpread,
		Index:           StaticIndexKind,
		Predictor:       MRUPredictorKind,
	}
}

// Validate checks the §3/§6 constraints on an Options value.
func (o *Options) Validate() error {
	if o.BlockSize <= 0 {
		return invalidArgument("block_size must be positive")
	}
	if o.SegmentCapacity < MinSegmentCapacity || o.SegmentCapacity > MaxSegmentCapacity {
		return invalidArgument("segment_capacity out of [32, 2^16-1] range")
	}
	if o.SegmentCapacity&(o.SegmentCapacity-1) != 0 {
		return invalidArgument("segment_capacity must be a power of two")
	}
	if o.PageSize <= 0 || o.PagesPerExtent <= 0 {
		return invalidArgument("page_size and pages_per_extent must be positive")
	}
	if o.PageSize%(o.SegmentCapacity*8) != 0 {
		return invalidArgument("page_size must be a multiple of segment_capacity*8")
	}
	if o.HugePages && o.PageSize != HugePageSize {
		return invalidArgument("huge pages require page_size == HugePageSize")
	}
	if o.InitialSegments <= 0 {
		return invalidArgument("initial_segments must be positive")
	}
	if o.PredictorScale <= 0 {
		return invalidArgument("predictor_scale must be positive")
	}
	return o.Density.Validate()
}

// extentSize returns pages_per_extent * page_size in bytes.
func (o *Options) extentSize() int64 {
	return int64(o.PagesPerExtent) * int64(o.PageSize)
}

// segmentsPerExtent returns how many segments tile one extent's worth of
// slots; used by the primary density cutoff (§3, §9 open question 4).
func (o *Options) segmentsPerExtent() int {
	slotsPerExtent := o.extentSize() / 8
	return int(slotsPerExtent) / o.SegmentCapacity
}
