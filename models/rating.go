package models

// RatingRecord is the persisted skill rating for one participant.
// Mutated only by the rating engine at match conclusion; rating never
// drops below the 500 floor.
type RatingRecord struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	ParticipantID string `gorm:"uniqueIndex;not null" json:"participant_id"`
	DisplayName   string `gorm:"index" json:"display_name"`
	Rating        int    `gorm:"not null;default:1000" json:"rating"`
	PeakRating    int    `gorm:"not null;default:1000" json:"peak_rating"`

	GamesPlayed int64 `json:"games_played" gorm:"default:0"`
	Wins        int64 `json:"wins" gorm:"default:0"`
	Losses      int64 `json:"losses" gorm:"default:0"`
	Draws       int64 `json:"draws" gorm:"default:0"`

	Timestamps
}

// RatingHistory is an append-only ledger row recording one participant's
// rating change for one concluded session.
type RatingHistory struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	ParticipantID string `gorm:"index;not null" json:"participant_id"`
	SessionID     string `gorm:"index;not null" json:"session_id"`
	RatingBefore  int    `gorm:"not null" json:"rating_before"`
	RatingAfter   int    `gorm:"not null" json:"rating_after"`
	Change        int    `gorm:"not null" json:"change"`
	Outcome       string `gorm:"type:varchar(16)" json:"outcome"`

	Timestamps
}
