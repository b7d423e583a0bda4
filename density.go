package pma

// densityLevel holds the interpolated (rho, theta) bounds for one level of
// the calibrator tree (§3 "Calibrator tree", §4.6).
type densityLevel struct {
	rho   float64
	theta float64
}

// densityCalculator is the calibrator tree's density-bound cache (§4.6):
// stateless apart from a cache of per-level bounds valid until the tree
// height changes, grounded on original_source/pma/density_bounds.hpp's
// "recompute only when height changes, otherwise O(1) lookup" contract
// (spec.md doesn't name the caching scheme explicitly; original_source does,
// per the instruction to resolve ambiguity that way).
type densityCalculator struct {
	bounds DensityBounds
	cutoff int // segments-per-extent count above which primary bounds apply

	height    int
	primary   bool // which bound set produced the cached levels
	levels    []densityLevel // levels[0] unused; levels[l] is level l, l in [1,height]
}

// newDensityCalculator builds a calculator for the given user bounds and
// primary-cutoff threshold (in segments). The cache is populated lazily by
// the first call to Thresholds.
func newDensityCalculator(bounds DensityBounds, cutoffSegments int) *densityCalculator {
	return &densityCalculator{bounds: bounds, cutoff: cutoffSegments}
}

// boundsFor returns the (rho_0, rho_h, theta_h, theta_0) set active for a
// tree spanning numSegments segments: the primary set above the cutoff,
// else the user-configured set (§3 "primary bound set", §9 open question 4).
func (d *densityCalculator) boundsFor(numSegments int) DensityBounds {
	if numSegments > d.cutoff {
		return DefaultFallbackDensity
	}
	return d.bounds
}

// rebuild recomputes the per-level bounds for a calibrator tree of the
// given height, per the linear interpolation of §3:
//
//	rho_l   = rho_0 + (rho_h - rho_0) * (l-1)/(h-1)
//	theta_l = theta_0 - (theta_0 - theta_h) * (l-1)/(h-1)
func (d *densityCalculator) rebuild(height int, numSegments int) {
	b := d.boundsFor(numSegments)
	levels := make([]densityLevel, height+1)
	if height <= 1 {
		levels[height] = densityLevel{rho: b.RhoH, theta: b.ThetaH}
	} else {
		for l := 1; l <= height; l++ {
			frac := float64(l-1) / float64(height-1)
			levels[l] = densityLevel{
				rho:   b.Rho0 + (b.RhoH-b.Rho0)*frac,
				theta: b.Theta0 - (b.Theta0-b.ThetaH)*frac,
			}
		}
	}
	d.height = height
	d.levels = levels
	d.primary = numSegments > d.cutoff
}

// Thresholds returns the (rho_l, theta_l) bounds for calibrator level l of
// a tree with the given height and segment count, rebuilding the cache only
// when the height, or which bound set is active (user vs. primary, which
// depends on numSegments relative to the cutoff), has changed.
func (d *densityCalculator) Thresholds(level, height, numSegments int) (rho, theta float64) {
	if d.levels == nil || d.height != height || d.primary != (numSegments > d.cutoff) {
		d.rebuild(height, numSegments)
	}
	if level < 1 {
		level = 1
	}
	if level > d.height {
		level = d.height
	}
	lv := d.levels[level]
	return lv.rho, lv.theta
}

// calibratorHeight computes h = ceil(log2(numSegments)) + 1 (§3 "Calibrator
// tree"): level 1 is a single segment, level h is the whole array.
func calibratorHeight(numSegments int) int {
	if numSegments <= 1 {
		return 1
	}
	h := 1
	for (1 << uint(h-1)) < numSegments {
		h++
	}
	return h
}
