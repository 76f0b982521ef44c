package server

import (
	"encoding/json"
	"errors"

	"postapp/internal/middleware"
	"postapp/internal/models"
	"postapp/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// requireUpgrade answers plain HTTP requests to the feed endpoint with 426.
func (s *Server) requireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		c.Set(fiber.HeaderUpgrade, "websocket")
		return models.RespondWithError(c, fiber.NewError(fiber.StatusUpgradeRequired, "WebSocket upgrade required"), false)
	}
	return c.Next()
}

// FeedWebSocketHandler streams realtime post and comment events. Anonymous
// viewers receive broadcasts only; signed-in users also get events about
// their own unpublished posts.
// @Summary Realtime feed
// @Tags realtime
// @Param token query string false "Bearer token for clients that cannot set headers"
// @Success 101
// @Failure 426 {object} models.ErrorResponse
// @Router /ws [get]
func (s *Server) FeedWebSocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, _ := conn.Locals(middleware.LocalUserID).(uint)

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			if !errors.Is(err, notifications.ErrHubClosed) {
				middleware.Logger.Warn("websocket registration refused", "user_id", uid, "error", err)
			}
			msg, _ := json.Marshal(fiber.Map{"type": "error", "payload": fiber.Map{"message": err.Error()}})
			_ = conn.WriteMessage(websocket.TextMessage, msg)
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		hello, _ := json.Marshal(feedEvent{
			Type: "connected",
			Payload: map[string]any{
				"user_id":   uid,
				"anonymous": uid == 0,
			},
		})
		client.TrySend(hello)

		client.Run()
	})
}
