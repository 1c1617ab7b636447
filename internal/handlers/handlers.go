package handlers

import (
	"errors"
	"strconv"

	"kanban-board/internal/middleware"
	"kanban-board/internal/services"

	"github.com/gin-gonic/gin"
)

// ClientIDHeader lets a client recognise realtime events caused by its own writes.
const ClientIDHeader = "X-Client-ID"

var errInvalidID = errors.New("id must be a positive integer")

// BoardNotifier is told about every successful board write.
type BoardNotifier interface {
	BoardChanged(userID uint, origin string)
}

type noopNotifier struct{}

func (noopNotifier) BoardChanged(uint, string) {}

func notifierOrNoop(n BoardNotifier) BoardNotifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.Error(errInvalidID).SetType(gin.ErrorTypeBind)
		return 0, false
	}
	return uint(id), true
}

func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(services.ErrInvalidToken)
		return 0, false
	}
	return userID, true
}
