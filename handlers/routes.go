// handlers/routes.go
package handlers

import (
	"match-orchestration-system/middleware"
	"match-orchestration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchmakingRoutes(app *fiber.App, orchestrator *services.Orchestrator) {
	// 🔓 Public routes — *no user context*, but **still require Gateway auth**
	app.Get("/games", orchestrator.ListGamesHandler)
	app.Get("/sessions/:session_id", orchestrator.GetSessionHandler)

	// 🔐 Secured routes — require resolved participant identity from the Gateway
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/queue/join", orchestrator.JoinQueueHandler)
	secured.Post("/queue/leave", orchestrator.LeaveQueueHandler)
	secured.Post("/queue/heartbeat", orchestrator.HeartbeatHandler)
	secured.Get("/queue/status", orchestrator.QueueStatusHandler)

	secured.Post("/sessions/:session_id/moves", orchestrator.SubmitMoveHandler)
	secured.Post("/sessions/:session_id/forfeit", orchestrator.ForfeitHandler)

	// SSE notification stream; doubles as the connectivity signal.
	secured.Get("/events", orchestrator.StreamEventsSSE)
}

func SetupRatingRoutes(app *fiber.App, ratings *services.RatingService) {
	app.Get("/ratings/:participant_id", ratings.GetRatingHandler)
	app.Get("/ratings/:participant_id/history", ratings.GetRatingHistoryHandler)
}
