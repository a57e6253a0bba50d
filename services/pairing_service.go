package services

import (
	"time"

	"match-orchestration-system/models"
)

// PairingConfig controls how far apart two ranked entrants' skills may be.
// The allowed gap widens with the anchor's wait time so worst-case wait
// stays bounded.
type PairingConfig struct {
	BaseThreshold     int
	ExpansionInterval time.Duration
	ExpansionStep     int
}

// PairingService turns one partition snapshot into disjoint exact-size match
// groups. Output is a pure function of (entrant list, timestamps, thresholds);
// there is no randomness.
type PairingService struct {
	cfg PairingConfig
}

func NewPairingService(cfg PairingConfig) *PairingService {
	return &PairingService{cfg: cfg}
}

// Threshold returns the anchor's allowed skill gap at the given time.
func (ps *PairingService) Threshold(anchor models.Entrant, now time.Time) int {
	wait := now.Sub(anchor.JoinedAt)
	if wait < 0 {
		wait = 0
	}
	steps := int(wait / ps.cfg.ExpansionInterval)
	return ps.cfg.BaseThreshold + steps*ps.cfg.ExpansionStep
}

// Compatible reports whether the candidate may join the anchor's group.
// Casual queues accept anyone; ranked queues bound the skill gap by the
// anchor's current threshold.
func (ps *PairingService) Compatible(anchor, candidate models.Entrant, now time.Time) bool {
	if anchor.MatchType != models.MatchTypeRanked {
		return true
	}
	gap := anchor.SkillRating - candidate.SkillRating
	if gap < 0 {
		gap = -gap
	}
	return gap <= ps.Threshold(anchor, now)
}

// FindGroups runs the deterministic oldest-first greedy pass over a snapshot
// (already sorted by join time ascending) and returns zero or more disjoint
// groups of exactly requiredPlayers entrants. Partial groups are never
// emitted; their tentative claims are released back to the pool.
func (ps *PairingService) FindGroups(entrants []models.Entrant, requiredPlayers int, now time.Time) []models.MatchGroup {
	if requiredPlayers < 2 || len(entrants) < requiredPlayers {
		return nil
	}

	claimed := make([]bool, len(entrants))
	var groups []models.MatchGroup

	for i := range entrants {
		if claimed[i] {
			continue
		}
		anchor := entrants[i]
		members := []int{i}

		for j := range entrants {
			if len(members) == requiredPlayers {
				break
			}
			if j == i || claimed[j] {
				continue
			}
			if ps.Compatible(anchor, entrants[j], now) {
				members = append(members, j)
			}
		}

		if len(members) < requiredPlayers {
			continue
		}

		group := models.MatchGroup{
			GameType:  anchor.GameType,
			MatchType: anchor.MatchType,
			Entrants:  make([]models.Entrant, 0, requiredPlayers),
		}
		for _, idx := range members {
			claimed[idx] = true
			group.Entrants = append(group.Entrants, entrants[idx])
		}
		groups = append(groups, group)
	}

	return groups
}
