package handlers

import (
	"net/http"

	"kanban-board/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CardHandler struct {
	db       *gorm.DB
	cards    services.CardService
	notifier BoardNotifier
}

func NewCardHandler(db *gorm.DB, cards services.CardService, notifier BoardNotifier) *CardHandler {
	return &CardHandler{db: db, cards: cards, notifier: notifierOrNoop(notifier)}
}

// SearchCards matches ?q= against card titles and content.
func (h *CardHandler) SearchCards(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	cards, err := h.cards.SearchCards(h.db, userID, services.NormalizeSearch(c.Query("q")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *CardHandler) CreateCard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	card, err := h.cards.CreateCard(h.db, userID, req)
	if err != nil {
		c.Error(err)
		return
	}

	h.notifier.BoardChanged(userID, c.GetHeader(ClientIDHeader))
	c.JSON(http.StatusCreated, card)
}

// UpdateCard edits fields and, when columnId is present, moves the card.
func (h *CardHandler) UpdateCard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req services.UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	card, err := h.cards.UpdateCard(h.db, userID, id, req.Update())
	if err != nil {
		c.Error(err)
		return
	}

	h.notifier.BoardChanged(userID, c.GetHeader(ClientIDHeader))
	c.JSON(http.StatusOK, card)
}

func (h *CardHandler) DeleteCard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	card, err := h.cards.DeleteCard(h.db, userID, id)
	if err != nil {
		c.Error(err)
		return
	}

	h.notifier.BoardChanged(userID, c.GetHeader(ClientIDHeader))
	c.JSON(http.StatusOK, card)
}
