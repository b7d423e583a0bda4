// Package pma implements a Packed Memory Array: a dense, gap-tolerant
// sorted array of (key, value) pairs that supports amortized O(log^2 n)
// insert/delete alongside O(log n) point lookup and cache-efficient,
// branch-free range scans.
//
// Key features:
//   - Segmented storage with density-driven rebalancing via a calibrator
//     tree, so inserts and deletes stay local to a small window instead
//     of shifting the whole array
//   - Doubling/halving resizes carried out by re-mapping virtual memory
//     over the existing physical pages rather than copying them
//   - A separator index (static or dynamic (a,b)-tree) mapping keys to
//     their owning segment
//   - Pluggable partitioning (uniform or adaptive) and a predictor that
//     biases the adaptive partitioner towards recently hammered regions
//
// Basic usage:
//
//	store, err := pma.New(pma.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.Insert(42, 100); err != nil {
//	    log.Fatal(err)
//	}
//
//	value := store.Find(42)
//	if value == pma.NotFound {
//	    log.Fatal("missing key")
//	}
//
//	it, err := store.FindRange(0, 1000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for {
//	    k, v, ok := it.Next()
//	    if !ok {
//	        break
//	    }
//	    fmt.Println(k, v)
//	}
package pma
