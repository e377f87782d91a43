//go:build !race

package testutil

import "time"

// DefaultTimeout bounds every wait in this package.
var DefaultTimeout = 5 * time.Second
