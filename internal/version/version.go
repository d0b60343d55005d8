// ABOUTME: Product and version constants
// ABOUTME: Reported by the CLI and in device logs
package version

import "fmt"

// Version is overridden at build time with -ldflags
var Version = "0.3.0"

const (
	Product      = "streamout"
	Manufacturer = "Resonate"
)

// String returns the product banner shown by --version
func String() string {
	return fmt.Sprintf("%s %s (%s)", Product, Version, Manufacturer)
}
