package pma

// Version constants.
const (
	// Major is the major version number.
	Major = 0

	// Minor is the minor version number.
	Minor = 1

	// Patch is the patch version number.
	Patch = 0
)

// Version returns the version string of this package.
func Version() string {
	return "pma 0.1.0 (packed memory array)"
}
