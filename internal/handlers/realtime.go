package handlers

import (
	"net/http"

	"kanban-board/internal/middleware"
	"kanban-board/internal/realtime"
	"kanban-board/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type RealtimeHandler struct {
	parser   middleware.TokenParser
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

func NewRealtimeHandler(parser middleware.TokenParser, hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{
		parser: parser,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe upgrades to a websocket that receives board_changed events for the
// caller. Browsers cannot set headers on websocket requests, so the token may
// also come from ?token=.
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		c.Error(services.ErrInvalidToken)
		return
	}

	claims, err := h.parser.ParseToken(c.Request.Context(), token)
	if err != nil {
		c.Error(err)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		c.Error(err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	log.WithField("user_id", userID).Debug("realtime client connected")
	h.hub.Attach(userID, conn)
}
