// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartScheduler runs the periodic safety nets: a slow heartbeat re-scan of
// every active partition (event triggers do the real-time work), retention
// of concluded sessions, and connection expiry. Partitions with an empty
// queue cost nothing — ActivePartitions skips them.
func (o *Orchestrator) StartScheduler(scanInterval time.Duration) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("[Scheduler] Failed to create scheduler: %v", err)
		return
	}
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(scanInterval),
		gocron.NewTask(func() {
			o.HeartbeatScan()
		}),
	)

	_, _ = sched.NewJob(
		gocron.DurationJob(30*time.Second),
		gocron.NewTask(func() {
			o.SweepConnections()
			o.RetireExpired()
		}),
	)
}
