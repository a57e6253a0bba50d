package services

import (
	"testing"
	"time"

	"match-orchestration-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairingTestConfig() PairingConfig {
	return PairingConfig{
		BaseThreshold:     100,
		ExpansionInterval: 30 * time.Second,
		ExpansionStep:     50,
	}
}

func rankedEntrant(id string, rating int, joinedAgo time.Duration, now time.Time) models.Entrant {
	return models.Entrant{
		ParticipantID: id,
		DisplayName:   id,
		GameType:      "tictactoe",
		MatchType:     models.MatchTypeRanked,
		SkillRating:   rating,
		JoinedAt:      now.Add(-joinedAgo),
	}
}

func TestThresholdExpandsWithWait(t *testing.T) {
	ps := NewPairingService(pairingTestConfig())
	now := time.Now()

	cases := []struct {
		wait time.Duration
		want int
	}{
		{0, 100},
		{29 * time.Second, 100},
		{30 * time.Second, 150},
		{65 * time.Second, 200},
		{5 * time.Minute, 600},
	}
	for _, tc := range cases {
		anchor := rankedEntrant("a", 1000, tc.wait, now)
		assert.Equal(t, tc.want, ps.Threshold(anchor, now), "wait %s", tc.wait)
	}
}

func TestEqualRatingsPairImmediately(t *testing.T) {
	ps := NewPairingService(pairingTestConfig())
	now := time.Now()

	entrants := []models.Entrant{
		rankedEntrant("a", 1000, time.Second, now),
		rankedEntrant("b", 1000, 0, now),
	}
	groups := ps.FindGroups(entrants, 2, now)
	require.Len(t, groups, 1)
	assert.Equal(t, models.MatchTypeRanked, groups[0].MatchType)
	assert.Len(t, groups[0].Entrants, 2)
}

func TestWideGapPairsAfterExpansion(t *testing.T) {
	ps := NewPairingService(pairingTestConfig())
	now := time.Now()

	// 200-point gap: incompatible at the base threshold, compatible once the
	// older entrant has waited past the second expansion interval.
	early := []models.Entrant{
		rankedEntrant("a", 1000, 10*time.Second, now),
		rankedEntrant("c", 1200, 0, now),
	}
	assert.Empty(t, ps.FindGroups(early, 2, now))

	late := []models.Entrant{
		rankedEntrant("a", 1000, 65*time.Second, now),
		rankedEntrant("c", 1200, 0, now),
	}
	groups := ps.FindGroups(late, 2, now)
	require.Len(t, groups, 1)
	assert.Equal(t, "a", groups[0].Entrants[0].ParticipantID)
	assert.Equal(t, "c", groups[0].Entrants[1].ParticipantID)
}

func TestCasualIgnoresSkill(t *testing.T) {
	ps := NewPairingService(pairingTestConfig())
	now := time.Now()

	entrants := []models.Entrant{
		{ParticipantID: "a", GameType: "tictactoe", MatchType: models.MatchTypeCasual, SkillRating: 400, JoinedAt: now},
		{ParticipantID: "b", GameType: "tictactoe", MatchType: models.MatchTypeCasual, SkillRating: 2400, JoinedAt: now},
	}
	groups := ps.FindGroups(entrants, 2, now)
	require.Len(t, groups, 1)
}

func TestGroupsAreDisjointAndExactSize(t *testing.T) {
	ps := NewPairingService(pairingTestConfig())
	now := time.Now()

	entrants := []models.Entrant{
		rankedEntrant("a", 1000, 5*time.Second, now),
		rankedEntrant("b", 1010, 4*time.Second, now),
		rankedEntrant("c", 1020, 3*time.Second, now),
		rankedEntrant("d", 1030, 2*time.Second, now),
		rankedEntrant("e", 1040, time.Second, now),
	}

	groups := ps.FindGroups(entrants, 2, now)
	require.Len(t, groups, 2)

	seen := make(map[string]bool)
	for _, g := range groups {
		require.Len(t, g.Entrants, 2)
		for _, e := range g.Entrants {
			assert.False(t, seen[e.ParticipantID], "entrant %s in two groups", e.ParticipantID)
			seen[e.ParticipantID] = true
		}
	}
	assert.False(t, seen["e"], "odd entrant must stay queued")
}

func TestPartialGroupsAreReleased(t *testing.T) {
	ps := NewPairingService(pairingTestConfig())
	now := time.Now()

	// The anchor finds only one compatible partner for a three-player game;
	// neither may be consumed.
	entrants := []models.Entrant{
		rankedEntrant("a", 1000, time.Second, now),
		rankedEntrant("b", 1050, time.Second, now),
		rankedEntrant("c", 1900, time.Second, now),
	}
	assert.Empty(t, ps.FindGroups(entrants, 3, now))
}

func TestFindGroupsIsDeterministic(t *testing.T) {
	ps := NewPairingService(pairingTestConfig())
	now := time.Now()

	entrants := []models.Entrant{
		rankedEntrant("a", 1000, 4*time.Second, now),
		rankedEntrant("b", 1080, 3*time.Second, now),
		rankedEntrant("c", 1005, 2*time.Second, now),
		rankedEntrant("d", 1090, time.Second, now),
	}

	first := ps.FindGroups(entrants, 2, now)
	for i := 0; i < 10; i++ {
		again := ps.FindGroups(entrants, 2, now)
		assert.Equal(t, first, again)
	}

	// Oldest entrant anchors the first group.
	require.NotEmpty(t, first)
	assert.Equal(t, "a", first[0].Entrants[0].ParticipantID)
}

func TestFindGroupsTooFewEntrants(t *testing.T) {
	ps := NewPairingService(pairingTestConfig())
	now := time.Now()

	assert.Empty(t, ps.FindGroups(nil, 2, now))
	assert.Empty(t, ps.FindGroups([]models.Entrant{rankedEntrant("a", 1000, 0, now)}, 2, now))
}
