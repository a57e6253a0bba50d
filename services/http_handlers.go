package services

import (
	"encoding/json"
	"errors"
	"log"

	"match-orchestration-system/models"

	"github.com/gofiber/fiber/v2"
)

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnknownGame), errors.Is(err, ErrIllegalMove):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrRatingNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrNotYourTurn), errors.Is(err, ErrSessionConcluded),
		errors.Is(err, ErrSessionPaused), errors.Is(err, ErrSessionNotRunning),
		errors.Is(err, ErrAlreadyInSession), errors.Is(err, ErrNotParticipant):
		return fiber.StatusConflict
	case errors.Is(err, ErrLedgerUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
}

func participantFromCtx(c *fiber.Ctx) models.Participant {
	return models.Participant{
		ParticipantID: c.Locals("user_id").(string),
		DisplayName:   c.Locals("user_name").(string),
	}
}

// JoinQueueHandler admits the authenticated participant into a queue.
func (o *Orchestrator) JoinQueueHandler(c *fiber.Ctx) error {
	var req struct {
		GameType    string            `json:"game_type"`
		MatchType   string            `json:"match_type"`
		Preferences map[string]string `json:"preferences"`
		Region      string            `json:"region"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.MatchType == "" {
		req.MatchType = string(models.MatchTypeCasual)
	}

	p := participantFromCtx(c)
	entrant, err := o.JoinQueue(p, req.GameType, models.MatchType(req.MatchType), req.Preferences, req.Region)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":     "queued",
		"game_type":  entrant.GameType,
		"match_type": entrant.MatchType,
		"rating":     entrant.SkillRating,
		"joined_at":  entrant.JoinedAt,
	})
}

// LeaveQueueHandler removes the participant's queue entry.
func (o *Orchestrator) LeaveQueueHandler(c *fiber.Ctx) error {
	var req struct {
		GameType string `json:"game_type"`
	}
	// Body is optional: no game type means leave everything.
	_ = c.BodyParser(&req)

	o.LeaveQueue(c.Locals("user_id").(string), req.GameType)
	return c.JSON(fiber.Map{"status": "left"})
}

// HeartbeatHandler refreshes the participant's queue liveness.
func (o *Orchestrator) HeartbeatHandler(c *fiber.Ctx) error {
	o.QueueHeartbeat(c.Locals("user_id").(string))
	return c.JSON(fiber.Map{"status": "ok"})
}

// QueueStatusHandler reports queue position, or the open session if the
// participant was already matched.
func (o *Orchestrator) QueueStatusHandler(c *fiber.Ctx) error {
	participantID := c.Locals("user_id").(string)

	if snapshot, ok := o.OpenSessionFor(participantID); ok {
		return c.JSON(fiber.Map{"status": "in_session", "session": snapshot})
	}

	entrant, position, size, ok := o.QueueStatus(participantID)
	if !ok {
		return c.JSON(fiber.Map{"status": "idle"})
	}
	return c.JSON(fiber.Map{
		"status":     "queued",
		"game_type":  entrant.GameType,
		"match_type": entrant.MatchType,
		"position":   position,
		"queue_size": size,
		"joined_at":  entrant.JoinedAt,
	})
}

// SubmitMoveHandler routes a move into the participant's session.
func (o *Orchestrator) SubmitMoveHandler(c *fiber.Ctx) error {
	var req struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if len(req.Payload) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "payload is required"})
	}

	sessionID := c.Params("session_id")
	participantID := c.Locals("user_id").(string)
	if err := o.SubmitMove(sessionID, participantID, req.Payload); err != nil {
		log.Printf("[HTTP] Move rejected for %s on session %s: %v", participantID, sessionID, err)
		return errorJSON(c, err)
	}

	snapshot, err := o.GetSession(sessionID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(snapshot)
}

// ForfeitHandler concedes the participant's session.
func (o *Orchestrator) ForfeitHandler(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	participantID := c.Locals("user_id").(string)
	if err := o.Forfeit(sessionID, participantID); err != nil {
		return errorJSON(c, err)
	}

	snapshot, err := o.GetSession(sessionID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(snapshot)
}

// GetSessionHandler returns an open or retained session snapshot.
func (o *Orchestrator) GetSessionHandler(c *fiber.Ctx) error {
	snapshot, err := o.GetSession(c.Params("session_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(snapshot)
}

// ListGamesHandler lists the registered game variants.
func (o *Orchestrator) ListGamesHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"games": o.Games()})
}

// GetRatingHandler returns one participant's ledger record.
func (rs *RatingService) GetRatingHandler(c *fiber.Ctx) error {
	record, err := rs.Record(c.Params("participant_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(record)
}

// GetRatingHistoryHandler returns one participant's rating changes, newest
// first.
func (rs *RatingService) GetRatingHistoryHandler(c *fiber.Ctx) error {
	rows, err := rs.History(c.Params("participant_id"), c.QueryInt("limit"))
	if err != nil {
		log.Printf("[HTTP] Rating history query failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{
		"participant_id": c.Params("participant_id"),
		"history":        rows,
		"count":          len(rows),
	})
}
