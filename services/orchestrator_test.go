package services

import (
	"testing"
	"time"

	"match-orchestration-system/games"
	"match-orchestration-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()

	db := ratingTestDB(t)
	registry := games.NewRegistry()
	registry.Register(games.NewTicTacToe())
	registry.Register(games.NewConnectFour())

	cfg := OrchestratorConfig{
		Session: SessionConfig{
			MoveTimeout: time.Minute,
			GraceWindow: time.Minute,
		},
		RetentionWindow: 5 * time.Minute,
		// A long debounce keeps the event-driven triggers from racing the
		// tests; scans are driven explicitly.
		Debounce: 10 * time.Second,
	}

	queue := NewQueueService(time.Minute)
	pairing := NewPairingService(PairingConfig{
		BaseThreshold:     100,
		ExpansionInterval: 30 * time.Second,
		ExpansionStep:     50,
	})
	ratings := NewRatingService(db)
	ratings.RetryBackoff = time.Millisecond
	conns := NewConnectionRegistry(time.Minute)

	return NewOrchestrator(db, queue, pairing, ratings, registry, conns, cfg)
}

func joinRanked(t *testing.T, o *Orchestrator, id string) models.Entrant {
	t.Helper()
	entrant, err := o.JoinQueue(models.Participant{ParticipantID: id, DisplayName: id},
		"tictactoe", models.MatchTypeRanked, nil, "")
	require.NoError(t, err)
	return entrant
}

func openSessionID(t *testing.T, o *Orchestrator, participantID string) string {
	t.Helper()
	snap, ok := o.OpenSessionFor(participantID)
	require.True(t, ok, "no open session for %s", participantID)
	return snap.SessionID
}

func TestJoinQueueValidation(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.JoinQueue(models.Participant{}, "tictactoe", models.MatchTypeRanked, nil, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = o.JoinQueue(models.Participant{ParticipantID: "alice"}, "tictactoe", "blitz", nil, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = o.JoinQueue(models.Participant{ParticipantID: "alice"}, "chess", models.MatchTypeRanked, nil, "")
	assert.ErrorIs(t, err, ErrUnknownGame)
}

func TestJoinQueueAssignsDefaultRating(t *testing.T) {
	o := newTestOrchestrator(t)

	entrant := joinRanked(t, o, "alice")
	assert.Equal(t, DefaultRating, entrant.SkillRating)
}

func TestMatchPipelineEndToEnd(t *testing.T) {
	o := newTestOrchestrator(t)

	joinRanked(t, o, "alice")
	joinRanked(t, o, "bob")
	o.ScanPartition("tictactoe", models.MatchTypeRanked)

	// Both entrants are consumed and share one session.
	_, _, _, queued := o.QueueStatus("alice")
	assert.False(t, queued)
	sessionID := openSessionID(t, o, "alice")
	assert.Equal(t, sessionID, openSessionID(t, o, "bob"))

	snap, err := o.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionRunning, snap.Status)
	require.Len(t, snap.Participants, 2)
	turnHolder := snap.TurnHolderID
	other := "alice"
	if turnHolder == "alice" {
		other = "bob"
	}

	// Play until the turn holder takes the top row.
	moves := []struct {
		who string
		pos int
	}{{turnHolder, 0}, {other, 4}, {turnHolder, 1}, {other, 5}, {turnHolder, 2}}
	for _, m := range moves {
		require.NoError(t, o.SubmitMove(sessionID, m.who, ttPayload(m.pos)))
	}

	snap, err = o.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionConcluded, snap.Status)
	require.NotNil(t, snap.Result)
	assert.Equal(t, turnHolder, snap.Result.WinnerID)

	// Members are released for re-queueing.
	_, ok := o.OpenSessionFor("alice")
	assert.False(t, ok)

	// The match record and ranked rating updates are committed.
	var record models.MatchRecord
	require.NoError(t, o.DB.First(&record, "id = ?", sessionID).Error)
	assert.Equal(t, models.OutcomeWin, record.Outcome)
	assert.True(t, record.RatingApplied)
	require.NotNil(t, record.WinnerID)
	assert.Equal(t, turnHolder, *record.WinnerID)

	winner, err := NewRatingService(o.DB).Record(turnHolder)
	require.NoError(t, err)
	assert.Equal(t, 1016, winner.Rating)

	// The replay feed carries the full move log.
	select {
	case job := <-o.ReplayJobs():
		assert.Equal(t, sessionID, job.SessionID)
		assert.Len(t, job.Moves, 5)
	default:
		t.Fatal("expected a replay job for the concluded session")
	}
}

func TestPairingConsumesEntriesInOtherGameTypes(t *testing.T) {
	o := newTestOrchestrator(t)

	// Alice waits in two game types at once; each has a willing opponent.
	joinRanked(t, o, "alice")
	_, err := o.JoinQueue(models.Participant{ParticipantID: "alice", DisplayName: "alice"},
		"connectfour", models.MatchTypeRanked, nil, "")
	require.NoError(t, err)
	joinRanked(t, o, "bob")
	_, err = o.JoinQueue(models.Participant{ParticipantID: "carol", DisplayName: "carol"},
		"connectfour", models.MatchTypeRanked, nil, "")
	require.NoError(t, err)

	o.ScanPartition("tictactoe", models.MatchTypeRanked)
	o.ScanPartition("connectfour", models.MatchTypeRanked)

	// Alice holds exactly one open session; her connectfour entry was
	// consumed by the tictactoe pairing.
	snap, ok := o.OpenSessionFor("alice")
	require.True(t, ok)
	assert.Equal(t, "tictactoe", snap.GameType)
	for _, p := range snap.Participants {
		assert.NotEqual(t, "carol", p.ParticipantID)
	}

	// Carol stays queued with nobody left to pair against.
	_, position, size, queued := o.QueueStatus("carol")
	assert.True(t, queued)
	assert.Equal(t, 1, position)
	assert.Equal(t, 1, size)
	_, ok = o.OpenSessionFor("carol")
	assert.False(t, ok)
}

func TestCreateSessionRejectsMemberWithOpenSession(t *testing.T) {
	o := newTestOrchestrator(t)

	joinRanked(t, o, "alice")
	joinRanked(t, o, "bob")
	o.ScanPartition("tictactoe", models.MatchTypeRanked)
	sessionID := openSessionID(t, o, "alice")

	// A stale group holding alice must fail wholesale and requeue only the
	// free member.
	rules, err := o.registry.Get("tictactoe")
	require.NoError(t, err)
	group := models.MatchGroup{
		GameType:  "tictactoe",
		MatchType: models.MatchTypeRanked,
		Entrants: []models.Entrant{
			{ParticipantID: "alice", DisplayName: "alice", GameType: "tictactoe", MatchType: models.MatchTypeRanked},
			{ParticipantID: "dave", DisplayName: "dave", GameType: "tictactoe", MatchType: models.MatchTypeRanked},
		},
	}
	assert.ErrorIs(t, o.createSession(group, rules), ErrAlreadyInSession)

	assert.Equal(t, sessionID, openSessionID(t, o, "alice"))
	_, ok := o.OpenSessionFor("dave")
	assert.False(t, ok)
}

func TestScanPushesQueueStatusToRemaining(t *testing.T) {
	o := newTestOrchestrator(t)

	joinRanked(t, o, "alice")
	joinRanked(t, o, "bob")
	joinRanked(t, o, "carol")
	conn := o.ConnectionEstablished("carol")

	o.ScanPartition("tictactoe", models.MatchTypeRanked)
	require.NotEmpty(t, openSessionID(t, o, "alice"))

	var event Event
	select {
	case event = <-conn.Events:
	default:
		t.Fatal("expected a queue-status push for the remaining entrant")
	}
	require.Equal(t, EventQueueStatus, event.Type)
	data, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1, data["position"])
	assert.Equal(t, 1, data["queue_size"])
}

func TestJoinQueueRejectsOpenSessionMember(t *testing.T) {
	o := newTestOrchestrator(t)

	joinRanked(t, o, "alice")
	joinRanked(t, o, "bob")
	o.ScanPartition("tictactoe", models.MatchTypeRanked)
	require.NotEmpty(t, openSessionID(t, o, "alice"))

	_, err := o.JoinQueue(models.Participant{ParticipantID: "alice", DisplayName: "alice"},
		"tictactoe", models.MatchTypeRanked, nil, "")
	assert.ErrorIs(t, err, ErrAlreadyInSession)
}

func TestScanLeavesUnpairableEntrants(t *testing.T) {
	o := newTestOrchestrator(t)

	joinRanked(t, o, "alice")
	o.ScanPartition("tictactoe", models.MatchTypeRanked)

	_, position, size, queued := o.QueueStatus("alice")
	assert.True(t, queued)
	assert.Equal(t, 1, position)
	assert.Equal(t, 1, size)
	_, ok := o.OpenSessionFor("alice")
	assert.False(t, ok)
}

func TestCasualMatchSkipsRatings(t *testing.T) {
	o := newTestOrchestrator(t)

	for _, id := range []string{"alice", "bob"} {
		_, err := o.JoinQueue(models.Participant{ParticipantID: id, DisplayName: id},
			"tictactoe", models.MatchTypeCasual, nil, "")
		require.NoError(t, err)
	}
	o.ScanPartition("tictactoe", models.MatchTypeCasual)

	sessionID := openSessionID(t, o, "alice")
	require.NoError(t, o.Forfeit(sessionID, "alice"))

	var record models.MatchRecord
	require.NoError(t, o.DB.First(&record, "id = ?", sessionID).Error)
	assert.Equal(t, models.OutcomeForfeit, record.Outcome)
	// Casual matches never enter the rating ledger.
	assert.True(t, record.RatingApplied)
	_, err := NewRatingService(o.DB).Record("alice")
	assert.ErrorIs(t, err, ErrRatingNotFound)
}

func TestForfeitRoutesThroughOrchestrator(t *testing.T) {
	o := newTestOrchestrator(t)

	joinRanked(t, o, "alice")
	joinRanked(t, o, "bob")
	o.ScanPartition("tictactoe", models.MatchTypeRanked)
	sessionID := openSessionID(t, o, "alice")

	assert.ErrorIs(t, o.Forfeit("missing", "alice"), ErrSessionNotFound)
	require.NoError(t, o.Forfeit(sessionID, "alice"))

	snap, err := o.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeForfeit, snap.Result.Outcome)
	assert.Equal(t, "bob", snap.Result.WinnerID)
}

func TestDisconnectPausesViaConnectionLoss(t *testing.T) {
	o := newTestOrchestrator(t)

	joinRanked(t, o, "alice")
	joinRanked(t, o, "bob")
	o.ScanPartition("tictactoe", models.MatchTypeRanked)
	sessionID := openSessionID(t, o, "alice")

	aliceConn := o.ConnectionEstablished("alice")
	o.ConnectionLost(aliceConn)

	snap, err := o.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPaused, snap.Status)

	// Coming back resumes play.
	o.ConnectionEstablished("alice")
	snap, err = o.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionRunning, snap.Status)
}

func TestConnectionLossIgnoredWhenDisplaced(t *testing.T) {
	o := newTestOrchestrator(t)

	joinRanked(t, o, "alice")
	joinRanked(t, o, "bob")
	o.ScanPartition("tictactoe", models.MatchTypeRanked)
	sessionID := openSessionID(t, o, "alice")

	stale := o.ConnectionEstablished("alice")
	o.ConnectionEstablished("alice") // displaces the first connection
	o.ConnectionLost(stale)

	snap, err := o.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionRunning, snap.Status)
}

func TestRetireExpiredKeepsRecentAndOpenSessions(t *testing.T) {
	o := newTestOrchestrator(t)
	o.cfg.RetentionWindow = 20 * time.Millisecond

	joinRanked(t, o, "alice")
	joinRanked(t, o, "bob")
	o.ScanPartition("tictactoe", models.MatchTypeRanked)
	concludedID := openSessionID(t, o, "alice")
	require.NoError(t, o.Forfeit(concludedID, "alice"))

	joinRanked(t, o, "carol")
	joinRanked(t, o, "dave")
	o.ScanPartition("tictactoe", models.MatchTypeRanked)
	openID := openSessionID(t, o, "carol")

	// Still inside the retention window.
	o.RetireExpired()
	_, err := o.GetSession(concludedID)
	assert.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	o.RetireExpired()
	_, err = o.GetSession(concludedID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = o.GetSession(openID)
	assert.NoError(t, err)
}

func TestHeartbeatScanCoversActivePartitions(t *testing.T) {
	o := newTestOrchestrator(t)

	joinRanked(t, o, "alice")
	joinRanked(t, o, "bob")
	o.HeartbeatScan()

	assert.NotEmpty(t, openSessionID(t, o, "alice"))
}
