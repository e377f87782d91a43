//go:build race

package testutil

import "time"

// DefaultTimeout bounds every wait in this package. The race detector slows
// scheduling, so it is longer here.
var DefaultTimeout = 20 * time.Second
