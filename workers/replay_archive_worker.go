package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"match-orchestration-system/models"
	"match-orchestration-system/services"
	"match-orchestration-system/utils"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ArchiveReplays drains the orchestrator's concluded-session feed and
// uploads each move log to R2, then stamps the match record with the replay
// URL. Archive failures are logged and dropped; the match record simply
// stays without a replay link.
func ArchiveReplays(ctx context.Context, db *gorm.DB, jobs <-chan services.ReplayJob) {
	log.Println("Starting replay archive worker...")

	for {
		select {
		case <-ctx.Done():
			log.Println("Replay archive worker stopped.")
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			archiveOne(db, job)
		}
	}
}

func archiveOne(db *gorm.DB, job services.ReplayJob) {
	replay := struct {
		SessionID string           `json:"session_id"`
		GameType  string           `json:"game_type"`
		MatchType models.MatchType `json:"match_type"`
		Result    models.Result    `json:"result"`
		Moves     []models.Move    `json:"moves"`
	}{
		SessionID: job.SessionID,
		GameType:  job.GameType,
		MatchType: job.MatchType,
		Result:    job.Result,
		Moves:     job.Moves,
	}

	payload, err := json.Marshal(replay)
	if err != nil {
		log.Printf("[REPLAY] Failed to marshal replay for session %s: %v", job.SessionID, err)
		return
	}

	key := fmt.Sprintf("replays/%s/%s/%s.json",
		slug.Make(job.GameType),
		time.Now().UTC().Format("2006-01-02"),
		job.SessionID,
	)

	url, err := utils.UploadReplayToR2(key, payload)
	if err != nil {
		log.Printf("[REPLAY] Upload failed for session %s: %v", job.SessionID, err)
		return
	}

	if err := db.Model(&models.MatchRecord{}).
		Where("id = ?", job.SessionID).
		Update("replay_url", url).Error; err != nil {
		log.Printf("[REPLAY] Failed to stamp replay URL for session %s: %v", job.SessionID, err)
		return
	}
	log.Printf("[REPLAY] Archived session %s → %s", job.SessionID, url)
}
