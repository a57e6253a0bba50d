package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"match-orchestration-system/games"
	"match-orchestration-system/models"
)

// SessionConfig carries the timer durations for one session. A zero
// MaxDuration disables the total-duration timer.
type SessionConfig struct {
	MoveTimeout time.Duration
	GraceWindow time.Duration
	MaxDuration time.Duration
}

// Session is the authoritative state machine for one live match. Every
// mutation — move, forfeit, disconnect, timer fire — runs under one mutex,
// so exactly one mutating operation executes at a time. Once concluded,
// every further transition is a silent no-op or a state-conflict rejection;
// a result is reported exactly once.
type Session struct {
	ID           string
	GameType     string
	MatchType    models.MatchType
	AverageSkill int

	mu           sync.Mutex
	participants []models.Participant
	seats        map[string]int // participant ID → rotation index
	status       models.SessionStatus
	turnIndex    int
	state        games.State
	rules        games.Rules
	moves        []models.Move
	reachable    map[string]bool
	result       *models.Result
	startedAt    time.Time
	concludedAt  time.Time

	cfg SessionConfig

	// Timer generations guard against stale fires: a timer that goes off
	// after its guarded event already happened sees a bumped generation and
	// does nothing.
	moveTimer     *time.Timer
	moveTimerGen  int
	graceTimer    *time.Timer
	graceTimerGen int
	durationTimer *time.Timer

	onMove     func(*Session, models.Move)
	onConclude func(*Session, models.Result)
}

// NewSession builds a session in the waiting state from an ordered
// participant list. Seat order follows the list order.
func NewSession(id string, group models.MatchGroup, rules games.Rules, cfg SessionConfig,
	onMove func(*Session, models.Move), onConclude func(*Session, models.Result)) (*Session, error) {

	var config map[string]string
	if len(group.Entrants) > 0 {
		config = group.Entrants[0].Preferences
	}
	state, err := rules.CreateInitialState(config)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:         id,
		GameType:   group.GameType,
		MatchType:  group.MatchType,
		seats:      make(map[string]int, len(group.Entrants)),
		status:     models.SessionWaiting,
		state:      state,
		rules:      rules,
		reachable:  make(map[string]bool, len(group.Entrants)),
		cfg:        cfg,
		onMove:     onMove,
		onConclude: onConclude,
	}

	skillSum := 0
	for i, e := range group.Entrants {
		s.participants = append(s.participants, models.Participant{
			ParticipantID: e.ParticipantID,
			DisplayName:   e.DisplayName,
			SkillRating:   e.SkillRating,
		})
		s.seats[e.ParticipantID] = i
		s.reachable[e.ParticipantID] = true
		skillSum += e.SkillRating
	}
	s.AverageSkill = skillSum / len(group.Entrants)
	return s, nil
}

// Start moves the session from waiting to running and arms the timers.
func (s *Session) Start() error {
	s.mu.Lock()

	if s.status != models.SessionWaiting {
		s.mu.Unlock()
		if s.status == models.SessionConcluded {
			return ErrSessionConcluded
		}
		return ErrSessionNotRunning
	}
	s.status = models.SessionRunning
	s.startedAt = time.Now()
	s.armMoveTimerLocked()
	if s.cfg.MaxDuration > 0 {
		s.durationTimer = time.AfterFunc(s.cfg.MaxDuration, s.durationExpired)
	}

	s.mu.Unlock()
	return nil
}

// SubmitMove applies one move for the turn holder. It cancels the armed move
// timer, appends the move with the next sequence number, applies it through
// the game rules, and either concludes or rotates the turn.
func (s *Session) SubmitMove(participantID string, payload json.RawMessage) error {
	s.mu.Lock()

	switch s.status {
	case models.SessionConcluded:
		s.mu.Unlock()
		return ErrSessionConcluded
	case models.SessionPaused:
		s.mu.Unlock()
		return ErrSessionPaused
	case models.SessionRunning:
	default:
		s.mu.Unlock()
		return ErrSessionNotRunning
	}

	seat, ok := s.seats[participantID]
	if !ok {
		s.mu.Unlock()
		return ErrNotParticipant
	}
	if seat != s.turnIndex {
		s.mu.Unlock()
		return ErrNotYourTurn
	}
	if err := s.rules.IsLegal(s.state, seat, payload); err != nil {
		s.mu.Unlock()
		return ErrIllegalMove
	}

	next, err := s.rules.Apply(s.state, seat, payload)
	if err != nil {
		s.mu.Unlock()
		return ErrIllegalMove
	}

	s.cancelMoveTimerLocked()
	s.state = next
	move := models.Move{
		ParticipantID:  participantID,
		Payload:        payload,
		SequenceNumber: len(s.moves) + 1,
		Timestamp:      time.Now(),
	}
	s.moves = append(s.moves, move)

	var fire func()
	if verdict := s.rules.CheckEnd(s.state); verdict != nil {
		fire = s.concludeLocked(s.resultFromVerdict(verdict))
	} else {
		s.turnIndex = (s.turnIndex + 1) % len(s.participants)
		s.armMoveTimerLocked()
	}

	onMove := s.onMove
	s.mu.Unlock()

	if onMove != nil {
		onMove(s, move)
	}
	if fire != nil {
		fire()
	}
	return nil
}

// Forfeit is an explicit voluntary concession by a participant.
func (s *Session) Forfeit(participantID string) error {
	s.mu.Lock()

	if _, ok := s.seats[participantID]; !ok {
		s.mu.Unlock()
		return ErrNotParticipant
	}
	if s.status == models.SessionConcluded {
		s.mu.Unlock()
		return ErrSessionConcluded
	}

	fire := s.concludeLocked(s.walkoverResultLocked(models.OutcomeForfeit, participantID))
	s.mu.Unlock()

	if fire != nil {
		fire()
	}
	return nil
}

// Disconnect marks the participant unreachable. A running session pauses and
// arms the reconnection grace timer rather than concluding immediately.
func (s *Session) Disconnect(participantID string) {
	s.mu.Lock()

	if _, ok := s.seats[participantID]; !ok || s.status == models.SessionConcluded {
		s.mu.Unlock()
		return
	}
	s.reachable[participantID] = false

	if s.status == models.SessionRunning {
		s.status = models.SessionPaused
		s.cancelMoveTimerLocked()
		s.graceTimerGen++
		gen := s.graceTimerGen
		s.graceTimer = time.AfterFunc(s.cfg.GraceWindow, func() { s.graceExpired(gen) })
		log.Printf("[SESSION %s] %s disconnected, grace window %s armed", s.ID, participantID, s.cfg.GraceWindow)
	}

	s.mu.Unlock()
}

// Reconnect marks the participant reachable again. If everyone is back
// inside the grace window the session resumes with no penalty.
func (s *Session) Reconnect(participantID string) {
	s.mu.Lock()

	if _, ok := s.seats[participantID]; !ok || s.status == models.SessionConcluded {
		s.mu.Unlock()
		return
	}
	s.reachable[participantID] = true

	if s.status == models.SessionPaused && s.allReachableLocked() {
		s.cancelGraceTimerLocked()
		s.status = models.SessionRunning
		s.armMoveTimerLocked()
		log.Printf("[SESSION %s] %s reconnected, session resumed", s.ID, participantID)
	}

	s.mu.Unlock()
}

// Snapshot returns the externally visible view of the session.
func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := models.SessionSnapshot{
		SessionID:    s.ID,
		GameType:     s.GameType,
		MatchType:    s.MatchType,
		Participants: append([]models.Participant(nil), s.participants...),
		AverageSkill: s.AverageSkill,
		Status:       s.status,
		MoveCount:    len(s.moves),
		BoardView:    s.rules.PublicView(s.state),
		Result:       s.result,
	}
	if s.status == models.SessionRunning || s.status == models.SessionPaused {
		snap.TurnHolderID = s.participants[s.turnIndex].ParticipantID
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		snap.StartedAt = &t
	}
	if !s.concludedAt.IsZero() {
		t := s.concludedAt
		snap.ConcludedAt = &t
	}
	return snap
}

// Moves returns a copy of the move log.
func (s *Session) Moves() []models.Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Move(nil), s.moves...)
}

// Status returns the current lifecycle state.
func (s *Session) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Result returns the session result once concluded.
func (s *Session) Result() *models.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// ParticipantIDs returns the ordered participant IDs.
func (s *Session) ParticipantIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.participants))
	for i, p := range s.participants {
		ids[i] = p.ParticipantID
	}
	return ids
}

// Participants returns the ordered participant list.
func (s *Session) Participants() []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Participant(nil), s.participants...)
}

// ConcludedAt reports when the session concluded, zero while open.
func (s *Session) ConcludedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.concludedAt
}

func (s *Session) armMoveTimerLocked() {
	if s.cfg.MoveTimeout <= 0 {
		return
	}
	s.moveTimerGen++
	gen := s.moveTimerGen
	s.moveTimer = time.AfterFunc(s.cfg.MoveTimeout, func() { s.moveExpired(gen) })
}

func (s *Session) cancelMoveTimerLocked() {
	s.moveTimerGen++
	if s.moveTimer != nil {
		s.moveTimer.Stop()
		s.moveTimer = nil
	}
}

func (s *Session) cancelGraceTimerLocked() {
	s.graceTimerGen++
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

// moveExpired fires when the turn holder let the move timer run out. The
// turn holder forfeits by timeout.
func (s *Session) moveExpired(gen int) {
	s.mu.Lock()

	if s.status != models.SessionRunning || gen != s.moveTimerGen {
		s.mu.Unlock()
		return
	}
	offender := s.participants[s.turnIndex].ParticipantID
	log.Printf("[SESSION %s] Move timer expired for %s", s.ID, offender)
	fire := s.concludeLocked(s.walkoverResultLocked(models.OutcomeTimeout, offender))
	s.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// graceExpired fires when the reconnection window ran out with someone still
// unreachable.
func (s *Session) graceExpired(gen int) {
	s.mu.Lock()

	if s.status != models.SessionPaused || gen != s.graceTimerGen {
		s.mu.Unlock()
		return
	}

	var offender string
	reachableCount := 0
	for id, ok := range s.reachable {
		if ok {
			reachableCount++
		} else {
			offender = id
		}
	}
	if offender == "" {
		// Everyone came back; nothing to decide here.
		s.mu.Unlock()
		return
	}

	var fire func()
	if reachableCount == 0 {
		// Nobody returned: the match ends undecided with no winner so the
		// members are released rather than wedged in paused.
		log.Printf("[SESSION %s] Grace window expired with no participant reachable", s.ID)
		scores := make(map[string]float64, len(s.participants))
		for _, p := range s.participants {
			scores[p.ParticipantID] = 0
		}
		fire = s.concludeLocked(models.Result{Outcome: models.OutcomeDisconnect, Scores: scores})
	} else {
		log.Printf("[SESSION %s] Grace window expired, %s still unreachable", s.ID, offender)
		fire = s.concludeLocked(s.walkoverResultLocked(models.OutcomeDisconnect, offender))
	}
	s.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// durationExpired fires when the optional total-duration timer runs out. The
// match ends undecided: every participant scores a draw.
func (s *Session) durationExpired() {
	s.mu.Lock()

	if s.status == models.SessionConcluded {
		s.mu.Unlock()
		return
	}
	scores := make(map[string]float64, len(s.participants))
	for _, p := range s.participants {
		scores[p.ParticipantID] = 0.5
	}
	fire := s.concludeLocked(models.Result{Outcome: models.OutcomeTimeout, Scores: scores})
	s.mu.Unlock()

	if fire != nil {
		fire()
	}
}

func (s *Session) allReachableLocked() bool {
	for _, ok := range s.reachable {
		if !ok {
			return false
		}
	}
	return true
}

// walkoverResultLocked builds the result for a forfeit, timeout, or
// disconnect by the offender. With two participants the opponent wins;
// with more, the match ends with no single winner: the offender scores 0
// and everyone else scores 0.5.
func (s *Session) walkoverResultLocked(outcome models.Outcome, offender string) models.Result {
	scores := make(map[string]float64, len(s.participants))
	result := models.Result{Outcome: outcome, Scores: scores}

	if len(s.participants) == 2 {
		for _, p := range s.participants {
			if p.ParticipantID == offender {
				scores[p.ParticipantID] = 0
			} else {
				scores[p.ParticipantID] = 1
				result.WinnerID = p.ParticipantID
			}
		}
		return result
	}

	for _, p := range s.participants {
		if p.ParticipantID == offender {
			scores[p.ParticipantID] = 0
		} else {
			scores[p.ParticipantID] = 0.5
		}
	}
	return result
}

func (s *Session) resultFromVerdict(v *games.Verdict) models.Result {
	scores := make(map[string]float64, len(s.participants))
	result := models.Result{Scores: scores}

	if v.Draw || v.WinnerSeat < 0 {
		result.Outcome = models.OutcomeDraw
		for _, p := range s.participants {
			scores[p.ParticipantID] = 0.5
		}
		return result
	}

	result.Outcome = models.OutcomeWin
	for i, p := range s.participants {
		if i == v.WinnerSeat {
			scores[p.ParticipantID] = 1
			result.WinnerID = p.ParticipantID
		} else {
			scores[p.ParticipantID] = 0
		}
	}
	return result
}

// concludeLocked transitions to the terminal state exactly once, cancels
// every armed timer, and returns the conclusion callback to run after the
// lock is released. Returns nil if the session already concluded.
func (s *Session) concludeLocked(result models.Result) func() {
	if s.status == models.SessionConcluded {
		return nil
	}

	s.cancelMoveTimerLocked()
	s.cancelGraceTimerLocked()
	if s.durationTimer != nil {
		s.durationTimer.Stop()
		s.durationTimer = nil
	}

	s.status = models.SessionConcluded
	s.concludedAt = time.Now()
	if !s.startedAt.IsZero() {
		result.DurationSeconds = int(s.concludedAt.Sub(s.startedAt).Seconds())
	}
	result.MoveCount = len(s.moves)
	s.result = &result

	onConclude := s.onConclude
	if onConclude == nil {
		return func() {}
	}
	final := result
	return func() { onConclude(s, final) }
}
