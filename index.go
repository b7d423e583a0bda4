package pma

// SeparatorIndex is the common surface the static (§4.4) and dynamic
// (§4.5) separator index variants expose to the rebalancer and store, so
// the rest of the package can be written against one interface and
// selected at construction time via Options.Index.
type SeparatorIndex interface {
	Rebuild(n int)
	Clear()
	SetSeparatorKey(s int, key int64)
	Find(key int64) int
	FindFirst(key int64) int
	FindLast(key int64) int
	NumSegments() int
}

var (
	_ SeparatorIndex = (*StaticIndex)(nil)
	_ SeparatorIndex = (*DynamicIndex)(nil)
)

// newSeparatorIndex builds the separator index variant selected by
// opts.Index.
func newSeparatorIndex(opts *Options) SeparatorIndex {
	switch opts.Index {
	case DynamicIndexKind:
		return NewDynamicIndex(opts.BlockSize)
	default:
		return NewStaticIndex(opts.BlockSize)
	}
}
