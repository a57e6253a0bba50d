package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"match-orchestration-system/games"
	"match-orchestration-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrchestratorConfig bundles the tunables for the whole pipeline.
type OrchestratorConfig struct {
	Session         SessionConfig
	RetentionWindow time.Duration
	Debounce        time.Duration
	TriggerIdle     time.Duration
}

// ReplayJob carries everything the archive worker needs for one concluded
// session.
type ReplayJob struct {
	SessionID string
	GameType  string
	MatchType models.MatchType
	Moves     []models.Move
	Result    models.Result
}

// Orchestrator drives queue → pairing → session creation → notification →
// rating → retention. One instance owns every open and retained session.
type Orchestrator struct {
	DB *gorm.DB

	queue    *QueueService
	pairing  *PairingService
	ratings  *RatingService
	registry *games.Registry
	notifier *Notifier
	conns    *ConnectionRegistry
	cfg      OrchestratorConfig

	mu             sync.RWMutex
	sessions       map[string]*Session // open and retained
	openByMember   map[string]string   // participant → open session ID
	triggerMu      sync.Mutex
	triggers       map[PartitionKey]chan struct{}
	replayCh       chan ReplayJob
}

func NewOrchestrator(db *gorm.DB, queue *QueueService, pairing *PairingService,
	ratings *RatingService, registry *games.Registry, conns *ConnectionRegistry,
	cfg OrchestratorConfig) *Orchestrator {

	if cfg.TriggerIdle <= 0 {
		cfg.TriggerIdle = time.Minute
	}
	return &Orchestrator{
		DB:           db,
		queue:        queue,
		pairing:      pairing,
		ratings:      ratings,
		registry:     registry,
		notifier:     NewNotifier(conns),
		conns:        conns,
		cfg:          cfg,
		sessions:     make(map[string]*Session),
		openByMember: make(map[string]string),
		triggers:     make(map[PartitionKey]chan struct{}),
		replayCh:     make(chan ReplayJob, 64),
	}
}

// ReplayJobs exposes the concluded-session feed for the archive worker.
func (o *Orchestrator) ReplayJobs() <-chan ReplayJob {
	return o.replayCh
}

// JoinQueue admits a resolved participant into a partition. A participant
// already in an open session is rejected with a conflict; a prior queue
// entry for the same game type is displaced.
func (o *Orchestrator) JoinQueue(p models.Participant, gameType string, matchType models.MatchType,
	preferences map[string]string, region string) (models.Entrant, error) {

	if p.ParticipantID == "" || gameType == "" {
		return models.Entrant{}, ErrInvalidRequest
	}
	if matchType != models.MatchTypeCasual && matchType != models.MatchTypeRanked {
		return models.Entrant{}, ErrInvalidRequest
	}
	if _, err := o.registry.Get(gameType); err != nil {
		return models.Entrant{}, ErrUnknownGame
	}

	o.mu.RLock()
	_, inSession := o.openByMember[p.ParticipantID]
	o.mu.RUnlock()
	if inSession {
		return models.Entrant{}, ErrAlreadyInSession
	}

	entrant := o.queue.Join(models.Entrant{
		ParticipantID: p.ParticipantID,
		DisplayName:   p.DisplayName,
		GameType:      gameType,
		MatchType:     matchType,
		SkillRating:   o.ratings.CurrentRating(p.ParticipantID),
		Preferences:   preferences,
		Region:        region,
	})

	position := o.queue.Position(p.ParticipantID, gameType, matchType)
	o.notifier.QueueJoined(entrant, position)
	o.nudge(PartitionKey{GameType: gameType, MatchType: matchType})
	return entrant, nil
}

// LeaveQueue removes the participant's queue entry. No-op if absent.
func (o *Orchestrator) LeaveQueue(participantID, gameType string) {
	o.queue.Leave(participantID, gameType)
}

// QueueHeartbeat refreshes the participant's liveness deadline.
func (o *Orchestrator) QueueHeartbeat(participantID string) {
	o.queue.Heartbeat(participantID)
}

// QueueStatus reports where the participant currently stands.
func (o *Orchestrator) QueueStatus(participantID string) (models.Entrant, int, int, bool) {
	entrant, ok := o.queue.Find(participantID)
	if !ok {
		return models.Entrant{}, 0, 0, false
	}
	position := o.queue.Position(participantID, entrant.GameType, entrant.MatchType)
	size := o.queue.Size(entrant.GameType, entrant.MatchType)
	return entrant, position, size, true
}

// nudge wakes the partition's trigger goroutine, starting it on demand. The
// buffered channel coalesces bursts of queue mutations into one scan after a
// short debounce; the goroutine retires itself once the partition goes idle.
func (o *Orchestrator) nudge(key PartitionKey) {
	o.triggerMu.Lock()
	ch, ok := o.triggers[key]
	if !ok {
		ch = make(chan struct{}, 1)
		o.triggers[key] = ch
		go o.runTrigger(key, ch)
	}
	o.triggerMu.Unlock()

	select {
	case ch <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) runTrigger(key PartitionKey, ch chan struct{}) {
	idle := time.NewTimer(o.cfg.TriggerIdle)
	defer idle.Stop()

	for {
		select {
		case <-ch:
			if o.cfg.Debounce > 0 {
				time.Sleep(o.cfg.Debounce)
			}
			// Coalesce anything that arrived during the debounce.
			select {
			case <-ch:
			default:
			}
			o.ScanPartition(key.GameType, key.MatchType)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(o.cfg.TriggerIdle)

		case <-idle.C:
			if o.queue.Size(key.GameType, key.MatchType) > 0 {
				idle.Reset(o.cfg.TriggerIdle)
				continue
			}
			o.triggerMu.Lock()
			delete(o.triggers, key)
			o.triggerMu.Unlock()
			return
		}
	}
}

// ScanPartition runs one pairing pass over a partition. Safe to call
// concurrently: claims are atomic, so a group that raced with a leave or a
// competing scan is simply skipped. A failed iteration never halts the
// orchestrator; it defers to the next trigger.
func (o *Orchestrator) ScanPartition(gameType string, matchType models.MatchType) {
	rules, err := o.registry.Get(gameType)
	if err != nil {
		log.Printf("[ORCH] Scan skipped for unknown game type %s", gameType)
		return
	}
	required := rules.RequiredPlayers()
	if o.queue.Size(gameType, matchType) < required {
		return
	}

	snapshot := o.queue.Snapshot(gameType, matchType)
	groups := o.pairing.FindGroups(snapshot, required, time.Now())

	committed := 0
	for _, group := range groups {
		ids := make([]string, len(group.Entrants))
		for i, e := range group.Entrants {
			ids[i] = e.ParticipantID
		}
		if !o.queue.Claim(gameType, matchType, ids) {
			continue
		}
		if err := o.createSession(group, rules); err != nil {
			log.Printf("[ORCH] Failed to create session for %s/%s: %v", gameType, matchType, err)
			// Give the claimed entrants their spots back, except anyone a
			// competing scan already placed into a session.
			for _, e := range group.Entrants {
				if _, open := o.OpenSessionFor(e.ParticipantID); !open {
					o.queue.Join(e)
				}
			}
			continue
		}
		committed++
	}

	// Committed groups shift everyone behind them; push the new positions
	// to the entrants still waiting.
	if committed > 0 {
		remaining := o.queue.Snapshot(gameType, matchType)
		for i, e := range remaining {
			o.notifier.QueueStatus(e.ParticipantID, e, i+1, len(remaining))
		}
	}
}

func (o *Orchestrator) createSession(group models.MatchGroup, rules games.Rules) error {
	sessionID := uuid.NewString()
	session, err := NewSession(sessionID, group, rules, o.cfg.Session, o.handleMove, o.handleConclusion)
	if err != nil {
		return err
	}

	// Registration is the single point deciding session membership: a group
	// member a competing partition scan already placed into a session fails
	// the whole group here, so nobody ever holds two open sessions.
	o.mu.Lock()
	for _, e := range group.Entrants {
		if _, open := o.openByMember[e.ParticipantID]; open {
			o.mu.Unlock()
			return ErrAlreadyInSession
		}
	}
	o.sessions[sessionID] = session
	for _, e := range group.Entrants {
		o.openByMember[e.ParticipantID] = sessionID
	}
	o.mu.Unlock()

	// Entrants are consumed on pairing: drop any queue entries the members
	// still hold in other partitions.
	for _, e := range group.Entrants {
		o.queue.Leave(e.ParticipantID, "")
	}

	log.Printf("[ORCH] Session %s created: %s/%s with %d players (avg skill %d)",
		sessionID, group.GameType, group.MatchType, len(group.Entrants), session.AverageSkill)

	o.notifier.MatchFound(session.Snapshot())
	if err := session.Start(); err != nil {
		log.Printf("[ORCH] Session %s failed to start: %v", sessionID, err)
	}
	o.notifier.GameStarted(session.Snapshot())
	return nil
}

func (o *Orchestrator) handleMove(s *Session, move models.Move) {
	o.notifier.MoveApplied(s.Snapshot(), move)
}

// handleConclusion runs exactly once per session, after its terminal
// transition. The outcome is delivered to participants regardless of ledger
// health; a failed ranked commit leaves the match record unapplied for the
// reconciliation worker.
func (o *Orchestrator) handleConclusion(s *Session, result models.Result) {
	o.mu.Lock()
	for _, p := range s.Participants() {
		if o.openByMember[p.ParticipantID] == s.ID {
			delete(o.openByMember, p.ParticipantID)
		}
	}
	o.mu.Unlock()

	record := models.MatchRecord{
		ID:            s.ID,
		GameType:      s.GameType,
		MatchType:     s.MatchType,
		Outcome:       result.Outcome,
		AverageSkill:  s.AverageSkill,
		MoveCount:     result.MoveCount,
		DurationSec:   result.DurationSeconds,
		RatingApplied: s.MatchType != models.MatchTypeRanked,
	}
	if result.WinnerID != "" {
		winner := result.WinnerID
		record.WinnerID = &winner
	}
	if err := o.DB.Create(&record).Error; err != nil {
		log.Printf("[ORCH] Failed to record match %s: %v", s.ID, err)
	}

	o.notifier.GameEnded(s.Snapshot())

	if s.MatchType == models.MatchTypeRanked {
		outcomes := make([]PlayerOutcome, 0, len(result.Scores))
		for _, p := range s.Participants() {
			outcomes = append(outcomes, PlayerOutcome{
				ParticipantID: p.ParticipantID,
				DisplayName:   p.DisplayName,
				PriorRating:   p.SkillRating,
				Score:         result.Scores[p.ParticipantID],
				Outcome:       result.Outcome,
			})
		}
		newRatings := o.ratings.CalculateNewRatings(outcomes)
		if err := o.ratings.PersistWithRetry(s.ID, newRatings); err != nil {
			log.Printf("[ORCH] Rating update for session %s pending reconciliation: %v", s.ID, err)
		}
	}

	select {
	case o.replayCh <- ReplayJob{
		SessionID: s.ID,
		GameType:  s.GameType,
		MatchType: s.MatchType,
		Moves:     s.Moves(),
		Result:    result,
	}:
	default:
		log.Printf("[ORCH] Replay queue full, skipping archive for session %s", s.ID)
	}
}

// GetSession returns a snapshot of an open or retained session.
func (o *Orchestrator) GetSession(sessionID string) (models.SessionSnapshot, error) {
	o.mu.RLock()
	session, ok := o.sessions[sessionID]
	o.mu.RUnlock()
	if !ok {
		return models.SessionSnapshot{}, ErrSessionNotFound
	}
	return session.Snapshot(), nil
}

// SubmitMove routes a move into the right session.
func (o *Orchestrator) SubmitMove(sessionID, participantID string, payload json.RawMessage) error {
	o.mu.RLock()
	session, ok := o.sessions[sessionID]
	o.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	return session.SubmitMove(participantID, payload)
}

// Forfeit routes an explicit concession into the right session.
func (o *Orchestrator) Forfeit(sessionID, participantID string) error {
	o.mu.RLock()
	session, ok := o.sessions[sessionID]
	o.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	return session.Forfeit(participantID)
}

// ConnectionEstablished registers the participant's delivery channel and
// resumes any session paused on their account.
func (o *Orchestrator) ConnectionEstablished(participantID string) *Connection {
	conn := o.conns.Register(participantID)

	o.mu.RLock()
	sessionID, ok := o.openByMember[participantID]
	session := o.sessions[sessionID]
	o.mu.RUnlock()
	if ok && session != nil {
		session.Reconnect(participantID)
	}
	return conn
}

// ConnectionLost unregisters the delivery channel and pauses the
// participant's open session behind the grace window.
func (o *Orchestrator) ConnectionLost(conn *Connection) {
	if !o.conns.Unregister(conn) {
		// A newer connection displaced this one; the participant is still
		// reachable.
		return
	}
	o.participantUnreachable(conn.ParticipantID)
}

func (o *Orchestrator) participantUnreachable(participantID string) {
	o.mu.RLock()
	sessionID, ok := o.openByMember[participantID]
	session := o.sessions[sessionID]
	o.mu.RUnlock()
	if ok && session != nil {
		session.Disconnect(participantID)
	}
}

// SweepConnections expires stale connections and feeds the results through
// the same path as an explicit connection loss.
func (o *Orchestrator) SweepConnections() {
	for _, participantID := range o.conns.SweepExpired() {
		o.participantUnreachable(participantID)
	}
}

// RetireExpired discards concluded sessions whose retention window has
// passed. Open sessions are never touched.
func (o *Orchestrator) RetireExpired() {
	cutoff := time.Now().Add(-o.cfg.RetentionWindow)

	o.mu.Lock()
	for id, session := range o.sessions {
		concludedAt := session.ConcludedAt()
		if !concludedAt.IsZero() && concludedAt.Before(cutoff) {
			delete(o.sessions, id)
			log.Printf("[ORCH] Retired session %s", id)
		}
	}
	o.mu.Unlock()
}

// HeartbeatScan is the slow safety net: it re-scans every active partition
// in case an event trigger was missed.
func (o *Orchestrator) HeartbeatScan() {
	for _, key := range o.queue.ActivePartitions() {
		o.ScanPartition(key.GameType, key.MatchType)
	}
}

// OpenSessionFor reports the participant's open session, if any.
func (o *Orchestrator) OpenSessionFor(participantID string) (models.SessionSnapshot, bool) {
	o.mu.RLock()
	sessionID, ok := o.openByMember[participantID]
	session := o.sessions[sessionID]
	o.mu.RUnlock()
	if !ok || session == nil {
		return models.SessionSnapshot{}, false
	}
	return session.Snapshot(), true
}

// Games lists the registered game variants.
func (o *Orchestrator) Games() []games.GameInfo {
	return o.registry.List()
}
