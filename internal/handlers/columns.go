package handlers

import (
	"net/http"

	"kanban-board/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ColumnHandler struct {
	db       *gorm.DB
	columns  services.ColumnService
	notifier BoardNotifier
}

func NewColumnHandler(db *gorm.DB, columns services.ColumnService, notifier BoardNotifier) *ColumnHandler {
	return &ColumnHandler{db: db, columns: columns, notifier: notifierOrNoop(notifier)}
}

// GetBoard returns the caller's columns, each with its cards, in board order.
func (h *ColumnHandler) GetBoard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	board, err := h.columns.GetBoard(h.db, userID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (h *ColumnHandler) CreateColumn(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	column, err := h.columns.CreateColumn(h.db, userID, req)
	if err != nil {
		c.Error(err)
		return
	}

	h.notifier.BoardChanged(userID, c.GetHeader(ClientIDHeader))
	c.JSON(http.StatusCreated, column)
}

func (h *ColumnHandler) UpdateColumn(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req services.UpdateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	column, err := h.columns.UpdateColumn(h.db, userID, id, req.Update())
	if err != nil {
		c.Error(err)
		return
	}

	h.notifier.BoardChanged(userID, c.GetHeader(ClientIDHeader))
	c.JSON(http.StatusOK, column)
}

func (h *ColumnHandler) DeleteColumn(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	column, err := h.columns.DeleteColumn(h.db, userID, id)
	if err != nil {
		c.Error(err)
		return
	}

	h.notifier.BoardChanged(userID, c.GetHeader(ClientIDHeader))
	c.JSON(http.StatusOK, column)
}
