package models

import (
	"encoding/json"
	"time"
)

type SessionStatus string

const (
	SessionWaiting   SessionStatus = "waiting"
	SessionRunning   SessionStatus = "running"
	SessionPaused    SessionStatus = "paused"
	SessionConcluded SessionStatus = "concluded"
)

type Outcome string

const (
	OutcomeWin        Outcome = "win"
	OutcomeDraw       Outcome = "draw"
	OutcomeForfeit    Outcome = "forfeit"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeDisconnect Outcome = "disconnect"
)

// Participant is the resolved identity handed in by the gateway, plus the
// rating snapshot taken when the session was created.
type Participant struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	SkillRating   int    `json:"skill_rating"`
}

// Move is immutable once appended. Sequence numbers are assigned by the
// engine, strictly increasing per session with no gaps — client-claimed
// ordering is never trusted.
type Move struct {
	ParticipantID  string          `json:"participant_id"`
	Payload        json.RawMessage `json:"payload"`
	SequenceNumber int             `json:"sequence_number"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Result is produced exactly once per session and is immutable thereafter.
// Scores are 0, 0.5 or 1 per participant.
type Result struct {
	Outcome         Outcome            `json:"outcome"`
	WinnerID        string             `json:"winner_id,omitempty"`
	Scores          map[string]float64 `json:"scores"`
	DurationSeconds int                `json:"duration_seconds"`
	MoveCount       int                `json:"move_count"`
}

// SessionSnapshot is the externally visible view of a live or retained
// session. BoardView is whatever the game variant's PublicView returns.
type SessionSnapshot struct {
	SessionID    string        `json:"session_id"`
	GameType     string        `json:"game_type"`
	MatchType    MatchType     `json:"match_type"`
	Participants []Participant `json:"participants"`
	AverageSkill int           `json:"average_skill"`
	Status       SessionStatus `json:"status"`
	TurnHolderID string        `json:"turn_holder_id,omitempty"`
	MoveCount    int           `json:"move_count"`
	BoardView    interface{}   `json:"board_view,omitempty"`
	Result       *Result       `json:"result,omitempty"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	ConcludedAt  *time.Time    `json:"concluded_at,omitempty"`
}
