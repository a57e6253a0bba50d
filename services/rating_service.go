package services

import (
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"match-orchestration-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// KFactor is the Elo K applied to every ranked update.
	KFactor = 32
	// RatingFloor is the hard lower bound on any computed rating.
	RatingFloor = 500
	// DefaultRating is assigned to participants with no ledger record yet.
	DefaultRating = 1000
)

// PlayerOutcome is one participant's side of a concluded ranked match.
type PlayerOutcome struct {
	ParticipantID string
	DisplayName   string
	PriorRating   int
	Score         float64 // 1 win, 0.5 draw, 0 loss/forfeit/timeout/disconnect
	Outcome       models.Outcome
}

// NewRating is the computed rating transition for one participant.
type NewRating struct {
	ParticipantID string
	DisplayName   string
	Before        int
	After         int
	Change        int
	Outcome       models.Outcome
	Score         float64
}

type pendingUpdate struct {
	sessionID string
	ratings   []NewRating
	parkedAt  time.Time
}

// RatingService computes and persists skill-rating deltas. Ledger commits
// are atomic across all participants of one session; a commit that keeps
// failing is parked for the reconciliation worker instead of being dropped.
type RatingService struct {
	DB *gorm.DB

	RetryAttempts int
	RetryBackoff  time.Duration

	mu      sync.Mutex
	pending []pendingUpdate
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{
		DB:            db,
		RetryAttempts: 3,
		RetryBackoff:  100 * time.Millisecond,
	}
}

func expectedScore(ratingA, ratingB int) float64 {
	return 1 / (1 + math.Pow(10, float64(ratingB-ratingA)/400))
}

func clampFloor(rating int) int {
	if rating < RatingFloor {
		return RatingFloor
	}
	return rating
}

// CalculateNewRatings applies the Elo update. Two participants use the
// standard formula. With more, each participant's change is the average of
// pairwise Elo deltas against every opponent, derived from the relative
// ordering of the per-participant scores.
func (rs *RatingService) CalculateNewRatings(outcomes []PlayerOutcome) []NewRating {
	n := len(outcomes)
	ratings := make([]NewRating, n)

	for i, po := range outcomes {
		var delta float64
		for j, opp := range outcomes {
			if j == i {
				continue
			}
			actual := pairwiseScore(po.Score, opp.Score)
			delta += KFactor * (actual - expectedScore(po.PriorRating, opp.PriorRating))
		}
		if n > 2 {
			delta /= float64(n - 1)
		}

		after := clampFloor(po.PriorRating + int(math.Round(delta)))
		ratings[i] = NewRating{
			ParticipantID: po.ParticipantID,
			DisplayName:   po.DisplayName,
			Before:        po.PriorRating,
			After:         after,
			Change:        after - po.PriorRating,
			Outcome:       po.Outcome,
			Score:         po.Score,
		}
	}
	return ratings
}

// pairwiseScore reduces two overall scores to a head-to-head result.
func pairwiseScore(mine, theirs float64) float64 {
	switch {
	case mine > theirs:
		return 1
	case mine < theirs:
		return 0
	default:
		return 0.5
	}
}

// Persist commits the rating transitions for one session in a single
// transaction: RatingRecord updates, RatingHistory rows, and the match
// record's rating_applied flag all land together or not at all.
func (rs *RatingService) Persist(sessionID string, ratings []NewRating) error {
	return rs.DB.Transaction(func(tx *gorm.DB) error {
		for _, r := range ratings {
			var record models.RatingRecord
			err := tx.Where("participant_id = ?", r.ParticipantID).First(&record).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				record = models.RatingRecord{
					ID:            uuid.NewString(),
					ParticipantID: r.ParticipantID,
					DisplayName:   r.DisplayName,
					Rating:        r.Before,
					PeakRating:    r.Before,
				}
				if err := tx.Create(&record).Error; err != nil {
					return err
				}
			} else if err != nil {
				return err
			}

			record.Rating = r.After
			if r.After > record.PeakRating {
				record.PeakRating = r.After
			}
			record.GamesPlayed++
			switch r.Score {
			case 1:
				record.Wins++
			case 0:
				record.Losses++
			default:
				record.Draws++
			}
			if r.DisplayName != "" {
				record.DisplayName = r.DisplayName
			}
			if err := tx.Save(&record).Error; err != nil {
				return err
			}

			history := models.RatingHistory{
				ID:            uuid.NewString(),
				ParticipantID: r.ParticipantID,
				SessionID:     sessionID,
				RatingBefore:  r.Before,
				RatingAfter:   r.After,
				Change:        r.Change,
				Outcome:       string(r.Outcome),
			}
			if err := tx.Create(&history).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.MatchRecord{}).
			Where("id = ?", sessionID).
			Update("rating_applied", true).Error
	})
}

// PersistWithRetry retries the ledger commit with bounded backoff. When
// retries exhaust, the update is parked for the reconciliation worker and
// the error is returned — the displayed result is still delivered, but the
// ledger marks the update pending rather than silently diverging.
func (rs *RatingService) PersistWithRetry(sessionID string, ratings []NewRating) error {
	backoff := rs.RetryBackoff
	var err error
	for attempt := 1; attempt <= rs.RetryAttempts; attempt++ {
		if err = rs.Persist(sessionID, ratings); err == nil {
			return nil
		}
		log.Printf("[RATING] Ledger commit failed for session %s (attempt %d/%d): %v",
			sessionID, attempt, rs.RetryAttempts, err)
		if attempt < rs.RetryAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	rs.mu.Lock()
	rs.pending = append(rs.pending, pendingUpdate{sessionID: sessionID, ratings: ratings, parkedAt: time.Now()})
	rs.mu.Unlock()
	log.Printf("[RATING] Parked rating update for session %s pending reconciliation", sessionID)
	return ErrLedgerUnavailable
}

// PendingCount reports how many rating updates await reconciliation.
func (rs *RatingService) PendingCount() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.pending)
}

// RetryPending re-attempts every parked commit once. Called by the
// reconciliation worker on its tick.
func (rs *RatingService) RetryPending() {
	rs.mu.Lock()
	parked := rs.pending
	rs.pending = nil
	rs.mu.Unlock()

	for _, p := range parked {
		if err := rs.Persist(p.sessionID, p.ratings); err != nil {
			log.Printf("[RATING] Reconciliation retry failed for session %s: %v", p.sessionID, err)
			rs.mu.Lock()
			rs.pending = append(rs.pending, p)
			rs.mu.Unlock()
			continue
		}
		log.Printf("[RATING] Reconciled pending rating update for session %s", p.sessionID)
	}
}

// CurrentRating resolves the participant's rating from the ledger,
// defaulting when no record exists yet.
func (rs *RatingService) CurrentRating(participantID string) int {
	var record models.RatingRecord
	err := rs.DB.Where("participant_id = ?", participantID).First(&record).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[RATING] Ledger read failed for %s, using default: %v", participantID, err)
		}
		return DefaultRating
	}
	return record.Rating
}

// Record returns the participant's ledger record.
func (rs *RatingService) Record(participantID string) (models.RatingRecord, error) {
	var record models.RatingRecord
	err := rs.DB.Where("participant_id = ?", participantID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return record, ErrRatingNotFound
	}
	return record, err
}

// History returns the participant's rating ledger rows, newest first.
func (rs *RatingService) History(participantID string, limit int) ([]models.RatingHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.RatingHistory
	err := rs.DB.Where("participant_id = ?", participantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
