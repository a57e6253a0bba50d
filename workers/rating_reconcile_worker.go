package workers

import (
	"context"
	"log"
	"time"

	"match-orchestration-system/services"
)

// PollPendingRatings retries parked rating-ledger commits on a fixed tick.
// A ranked match whose ledger write kept failing at conclusion time sits on
// the rating service's pending queue until a retry lands; participants
// already saw their result, so this loop is what brings the ledger back in
// line with what was displayed.
func PollPendingRatings(ctx context.Context, ratings *services.RatingService, pollInterval time.Duration) {
	log.Println("Starting rating reconciliation worker...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Rating reconciliation worker stopped.")
			return
		case <-ticker.C:
			pending := ratings.PendingCount()
			if pending == 0 {
				continue
			}
			log.Printf("[RECONCILE] Retrying %d pending rating update(s)...", pending)
			ratings.RetryPending()
		}
	}
}
