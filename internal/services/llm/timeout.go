package llm

import (
	"time"
)

const (
	// largePageThreshold and largeFileSizeBytes gate the large timeout
	// tier. BOTH must hold: a 60-page 1MB document and a 49-page 15MB
	// document are each medium-tier. The conjunction is intentional and
	// covered by edge-case tests; do not relax it to either-or.
	largePageThreshold = 50
	largeFileSizeBytes = int64(10_000_000)
)

// DocumentTimeout returns the call timeout for a document. The large tier
// applies only when the page count and file size thresholds are both met.
func DocumentTimeout(pageCount int, fileSize int64, medium, large time.Duration) time.Duration {
	if pageCount >= largePageThreshold && fileSize >= largeFileSizeBytes {
		return large
	}
	return medium
}
