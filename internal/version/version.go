// Package version holds the embedded build version, matching the teacher's
// own internal/version package. It is consulted by `zwasm version`; the
// compilation cache's key is the hash of the module bytes alone and does not
// include it.
package version

// Current is overridden at link time via -ldflags
// "-X github.com/zwasm/zwasm/internal/version.Current=...";
// "dev" is the default for a source checkout.
var Current = "dev"
