package checks

import (
	"time"

	"github.com/aecdata/pipeline/internal/monitoring"
)

// Storage confirms the upload bucket exists and is reachable.
func Storage(store Pinger, timeout time.Duration) monitoring.Check {
	return ping("storage", store, timeout)
}
