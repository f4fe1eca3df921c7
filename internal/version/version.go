// ABOUTME: Version information for pcmenc
// ABOUTME: Version is overridden at build time with -ldflags
package version

import "fmt"

// Version is set with -ldflags "-X .../internal/version.Version=v1.2.3"
var Version = "dev"

const (
	Product      = "pcmenc"
	Manufacturer = "Resonate"
)

// String returns the product and version for display
func String() string {
	return fmt.Sprintf("%s %s", Product, Version)
}
