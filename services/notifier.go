package services

import (
	"match-orchestration-system/models"
)

// Notifier shapes the milestone notifications and pushes them through the
// connection registry. Unreachable participants are skipped; the transport
// retries nothing.
type Notifier struct {
	conns *ConnectionRegistry
}

func NewNotifier(conns *ConnectionRegistry) *Notifier {
	return &Notifier{conns: conns}
}

func (n *Notifier) QueueJoined(e models.Entrant, position int) {
	n.conns.Send(e.ParticipantID, Event{Type: EventQueueJoined, Data: map[string]interface{}{
		"game_type":  e.GameType,
		"match_type": e.MatchType,
		"position":   position,
		"joined_at":  e.JoinedAt,
	}})
}

func (n *Notifier) QueueStatus(participantID string, e models.Entrant, position, queueSize int) {
	n.conns.Send(participantID, Event{Type: EventQueueStatus, Data: map[string]interface{}{
		"game_type":  e.GameType,
		"match_type": e.MatchType,
		"position":   position,
		"queue_size": queueSize,
	}})
}

func (n *Notifier) MatchFound(snapshot models.SessionSnapshot) {
	n.broadcast(snapshot, EventMatchFound)
}

func (n *Notifier) GameStarted(snapshot models.SessionSnapshot) {
	n.broadcast(snapshot, EventGameStarted)
}

func (n *Notifier) MoveApplied(snapshot models.SessionSnapshot, move models.Move) {
	for _, p := range snapshot.Participants {
		n.conns.Send(p.ParticipantID, Event{Type: EventMoveApplied, Data: map[string]interface{}{
			"session": snapshot,
			"move":    move,
		}})
	}
}

func (n *Notifier) GameEnded(snapshot models.SessionSnapshot) {
	n.broadcast(snapshot, EventGameEnded)
}

func (n *Notifier) broadcast(snapshot models.SessionSnapshot, eventType string) {
	for _, p := range snapshot.Participants {
		n.conns.Send(p.ParticipantID, Event{Type: eventType, Data: snapshot})
	}
}
