package models

import "time"

// MatchType decides whether skill compatibility is enforced at pairing time.
type MatchType string

const (
	MatchTypeCasual MatchType = "casual"
	MatchTypeRanked MatchType = "ranked"
)

// Entrant is a participant waiting in a matchmaking queue for one
// (game_type, match_type) partition. A participant holds at most one live
// Entrant per game type — a new join displaces the old one.
type Entrant struct {
	ParticipantID    string            `json:"participant_id"`
	DisplayName      string            `json:"display_name"`
	GameType         string            `json:"game_type"`
	MatchType        MatchType         `json:"match_type"`
	SkillRating      int               `json:"skill_rating"`
	JoinedAt         time.Time         `json:"joined_at"`
	Preferences      map[string]string `json:"preferences,omitempty"`
	Region           string            `json:"region,omitempty"`
	LivenessDeadline time.Time         `json:"-"`
}

// MatchGroup is a committed, exact-size set of entrants about to become a
// session. It is produced atomically by a pairing scan and consumed
// immediately; it never outlives the scan that made it.
type MatchGroup struct {
	GameType  string    `json:"game_type"`
	MatchType MatchType `json:"match_type"`
	Entrants  []Entrant `json:"entrants"`
}
