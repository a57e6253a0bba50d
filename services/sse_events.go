package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StreamEventsSSE is the participant's notification stream and, at the same
// time, their connectivity signal: opening the stream is
// connection-established, the stream closing is connection-lost. A paused
// session resumes the moment the stream reopens inside the grace window.
func (o *Orchestrator) StreamEventsSSE(c *fiber.Ctx) error {
	participantID := c.Locals("user_id").(string)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	conn := o.ConnectionEstablished(participantID)
	ttl := o.conns.ttl

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer o.ConnectionLost(conn)

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case event, ok := <-conn.Events:
				if !ok {
					// Displaced by a newer connection.
					return
				}
				payload, err := json.Marshal(event.Data)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
				conn.Touch(ttl)

			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
				conn.Touch(ttl)

			case <-c.Context().Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
