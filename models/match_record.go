package models

// MatchRecord records a single concluded session. RatingApplied stays false
// until the rating ledger commit succeeds, so a displayed outcome can never
// silently diverge from the ledger — unapplied ranked records are picked up
// by the reconciliation worker.
type MatchRecord struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"` // session ID
	GameType  string    `gorm:"index;not null" json:"game_type"`
	MatchType MatchType `gorm:"index;type:varchar(16);not null" json:"match_type"`

	Outcome      Outcome `json:"outcome" gorm:"type:varchar(16);check:outcome IN ('win','draw','forfeit','timeout','disconnect')"`
	WinnerID     *string `gorm:"index" json:"winner_id,omitempty"`
	AverageSkill int     `json:"average_skill" gorm:"default:0"`
	MoveCount    int     `json:"move_count" gorm:"default:0"`
	DurationSec  int     `json:"duration_sec" gorm:"default:0"`

	RatingApplied bool    `json:"rating_applied" gorm:"default:false;index"`
	ReplayURL     *string `json:"replay_url,omitempty"`

	Timestamps
}
