package services

import (
	"log"
	"sort"
	"sync"
	"time"

	"match-orchestration-system/models"
)

// knownMatchTypes fixes the lock acquisition order for cross-match-type
// displacement on join.
var knownMatchTypes = []models.MatchType{models.MatchTypeCasual, models.MatchTypeRanked}

type PartitionKey struct {
	GameType  string
	MatchType models.MatchType
}

type partition struct {
	mu       sync.Mutex
	entrants map[string]*models.Entrant // keyed by participant ID
}

// QueueService holds pending entrants per (game_type, match_type) partition.
// Each partition is guarded by its own mutex; different partitions never
// coordinate.
type QueueService struct {
	mu          sync.RWMutex
	partitions  map[PartitionKey]*partition
	livenessTTL time.Duration
}

func NewQueueService(livenessTTL time.Duration) *QueueService {
	return &QueueService{
		partitions:  make(map[PartitionKey]*partition),
		livenessTTL: livenessTTL,
	}
}

func (s *QueueService) partition(key PartitionKey) *partition {
	s.mu.RLock()
	p, ok := s.partitions[key]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok = s.partitions[key]; ok {
		return p
	}
	p = &partition{entrants: make(map[string]*models.Entrant)}
	s.partitions[key] = p
	return p
}

// Join inserts a fresh entrant, displacing any prior entrant the participant
// holds for the same game type across all match types. Always succeeds for
// valid input.
func (s *QueueService) Join(e models.Entrant) models.Entrant {
	e.JoinedAt = time.Now()
	e.LivenessDeadline = e.JoinedAt.Add(s.livenessTTL)

	// Lock every partition of this game type in fixed order so concurrent
	// joins cannot deadlock.
	parts := make([]*partition, 0, len(knownMatchTypes))
	for _, mt := range knownMatchTypes {
		parts = append(parts, s.partition(PartitionKey{GameType: e.GameType, MatchType: mt}))
	}
	for _, p := range parts {
		p.mu.Lock()
	}
	defer func() {
		for i := len(parts) - 1; i >= 0; i-- {
			parts[i].mu.Unlock()
		}
	}()

	for _, p := range parts {
		delete(p.entrants, e.ParticipantID)
	}
	target := s.partition(PartitionKey{GameType: e.GameType, MatchType: e.MatchType})
	copied := e
	target.entrants[e.ParticipantID] = &copied
	return e
}

// Leave removes matching entrants. An empty gameType removes the participant
// from every partition. No-op if absent.
func (s *QueueService) Leave(participantID, gameType string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for key, p := range s.partitions {
		if gameType != "" && key.GameType != gameType {
			continue
		}
		p.mu.Lock()
		delete(p.entrants, participantID)
		p.mu.Unlock()
	}
}

// Heartbeat pushes the participant's liveness deadline forward wherever they
// are queued.
func (s *QueueService) Heartbeat(participantID string) {
	deadline := time.Now().Add(s.livenessTTL)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.partitions {
		p.mu.Lock()
		if e, ok := p.entrants[participantID]; ok {
			e.LivenessDeadline = deadline
		}
		p.mu.Unlock()
	}
}

// Snapshot returns the partition's live entrants sorted by join time
// ascending. Entrants whose liveness deadline has passed are evicted as
// implicit leaves.
func (s *QueueService) Snapshot(gameType string, matchType models.MatchType) []models.Entrant {
	p := s.partition(PartitionKey{GameType: gameType, MatchType: matchType})
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.Entrant, 0, len(p.entrants))
	for id, e := range p.entrants {
		if now.After(e.LivenessDeadline) {
			log.Printf("[QUEUE] Evicting expired entrant %s from %s/%s", id, gameType, matchType)
			delete(p.entrants, id)
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

// Claim atomically verifies every listed participant is still queued and
// removes them. If any has left since the snapshot was taken, nothing is
// removed and Claim reports false.
func (s *QueueService) Claim(gameType string, matchType models.MatchType, participantIDs []string) bool {
	p := s.partition(PartitionKey{GameType: gameType, MatchType: matchType})

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, id := range participantIDs {
		if _, ok := p.entrants[id]; !ok {
			return false
		}
	}
	for _, id := range participantIDs {
		delete(p.entrants, id)
	}
	return true
}

// Size reports the partition's current queue length.
func (s *QueueService) Size(gameType string, matchType models.MatchType) int {
	p := s.partition(PartitionKey{GameType: gameType, MatchType: matchType})
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entrants)
}

// Position reports the participant's 1-based place in the partition by join
// time, or 0 when not queued.
func (s *QueueService) Position(participantID, gameType string, matchType models.MatchType) int {
	for i, e := range s.Snapshot(gameType, matchType) {
		if e.ParticipantID == participantID {
			return i + 1
		}
	}
	return 0
}

// Find returns the participant's live entrant, if any.
func (s *QueueService) Find(participantID string) (models.Entrant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.partitions {
		p.mu.Lock()
		if e, ok := p.entrants[participantID]; ok {
			copied := *e
			p.mu.Unlock()
			return copied, true
		}
		p.mu.Unlock()
	}
	return models.Entrant{}, false
}

// ActivePartitions lists every partition with at least one entrant. Drives
// the heartbeat scan so idle partitions cost nothing.
func (s *QueueService) ActivePartitions() []PartitionKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []PartitionKey
	for key, p := range s.partitions {
		p.mu.Lock()
		if len(p.entrants) > 0 {
			keys = append(keys, key)
		}
		p.mu.Unlock()
	}
	return keys
}
