package ftpx

import (
	"context"
	"time"
)

// ProgressFunc receives the byte count observed at the transfer target.
// Values never decrease across calls for one transfer.
type ProgressFunc func(bytes int64)

// pollSize polls SIZE for path on c every interval and reports growth to fn.
// Polling is best effort: a failed poll is skipped (many servers refuse SIZE
// on a file that is still being written), and values are filtered so fn only
// ever sees the count move forward. Returns when ctx is done.
func pollSize(ctx context.Context, c *Client, path string, interval time.Duration, fn ProgressFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := int64(-1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			size, err := c.Size(ctx, path)
			if err != nil {
				continue
			}
			if size > last {
				last = size
				fn(size)
			}
		}
	}
}
