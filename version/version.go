// Package version holds build-time information about the isoserved binary.
package version

// Default build-time variables. These values are overridden via ldflags,
// for example:
//
//	-ldflags "-X github.com/moby/isoserve/version.Version=v0.1.0"
var (
	GitCommit = "library-import"
	Version   = "library-import"
	BuildTime = "library-import"

	// PlatformName is the name of the product.
	PlatformName = "isoserve"
)
