package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kanban-board/internal/cache"
	"kanban-board/internal/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultBoardTTL = 5 * time.Minute

// ErrStaleBoard is returned by a warmup whose board was written while it
// loaded.
var ErrStaleBoard = errors.New("board changed while loading")

// BoardCache holds each user's board projection. Any column or card write
// for a user drops that user's entry.
//
// Every invalidation bumps the user's generation. A board loaded under an
// older generation is never stored, so a read racing a write cannot
// resurrect the pre-write board.
type BoardCache struct {
	cache cache.Cache
	ttl   time.Duration

	mu  sync.Mutex
	gen map[uint]uint64
}

func NewBoardCache(c cache.Cache, ttl time.Duration) *BoardCache {
	if ttl <= 0 {
		ttl = defaultBoardTTL
	}
	return &BoardCache{cache: c, ttl: ttl, gen: make(map[uint]uint64)}
}

func boardKey(userID uint) string {
	return fmt.Sprintf("board:%d", userID)
}

func (b *BoardCache) get(userID uint) ([]models.Column, bool) {
	var columns []models.Column
	if err := b.cache.Get(context.Background(), boardKey(userID), &columns); err != nil {
		return nil, false
	}
	return columns, true
}

func (b *BoardCache) generation(userID uint) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen[userID]
}

func (b *BoardCache) store(ctx context.Context, userID uint, gen uint64, columns []models.Column) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen[userID] != gen {
		return ErrStaleBoard
	}
	return b.cache.Set(ctx, boardKey(userID), columns, b.ttl)
}

func (b *BoardCache) put(userID uint, gen uint64, columns []models.Column) {
	err := b.store(context.Background(), userID, gen, columns)
	if err != nil && !errors.Is(err, ErrStaleBoard) {
		log.WithFields(log.Fields{"user_id": userID, "error": err.Error()}).Warn("failed to cache board")
	}
}

func (b *BoardCache) Invalidate(userID uint) {
	b.mu.Lock()
	b.gen[userID]++
	b.mu.Unlock()

	if err := b.cache.Delete(context.Background(), boardKey(userID)); err != nil {
		log.WithFields(log.Fields{"user_id": userID, "error": err.Error()}).Warn("failed to invalidate board cache")
	}
}

// WarmJob loads userID's board through source and stores it under the board
// key. Jobs for the same user collapse while queued.
func (b *BoardCache) WarmJob(db *gorm.DB, source ColumnService, userID uint) cache.WarmupJob {
	var gen uint64
	return cache.WarmupJob{
		Key:      boardKey(userID),
		TTL:      b.ttl,
		Priority: 1,
		Load: func(ctx context.Context) (interface{}, error) {
			gen = b.generation(userID)
			return source.GetBoard(db.WithContext(ctx), userID)
		},
		Store: func(ctx context.Context, value interface{}) error {
			return b.store(ctx, userID, gen, value.([]models.Column))
		},
	}
}

func (b *BoardCache) Stats() map[string]interface{} {
	return b.cache.Stats(context.Background())
}

// CachedColumnService serves GetBoard from the board cache.
type CachedColumnService struct {
	ColumnService
	board *BoardCache
}

func NewCachedColumnService(inner ColumnService, board *BoardCache) *CachedColumnService {
	return &CachedColumnService{ColumnService: inner, board: board}
}

func (s *CachedColumnService) GetBoard(db *gorm.DB, userID uint) ([]models.Column, error) {
	if columns, ok := s.board.get(userID); ok {
		return columns, nil
	}

	gen := s.board.generation(userID)
	columns, err := s.ColumnService.GetBoard(db, userID)
	if err != nil {
		return nil, err
	}
	s.board.put(userID, gen, columns)
	return columns, nil
}

func (s *CachedColumnService) CreateColumn(db *gorm.DB, userID uint, req CreateColumnRequest) (*models.Column, error) {
	column, err := s.ColumnService.CreateColumn(db, userID, req)
	if err == nil {
		s.board.Invalidate(userID)
	}
	return column, err
}

func (s *CachedColumnService) UpdateColumn(db *gorm.DB, userID, id uint, update models.ColumnUpdate) (*models.Column, error) {
	column, err := s.ColumnService.UpdateColumn(db, userID, id, update)
	if err == nil {
		s.board.Invalidate(userID)
	}
	return column, err
}

func (s *CachedColumnService) DeleteColumn(db *gorm.DB, userID, id uint) (*models.Column, error) {
	column, err := s.ColumnService.DeleteColumn(db, userID, id)
	if err == nil {
		s.board.Invalidate(userID)
	}
	return column, err
}

// CachedCardService drops the owner's board entry after every card write.
// Searches always hit the database.
type CachedCardService struct {
	CardService
	board *BoardCache
}

func NewCachedCardService(inner CardService, board *BoardCache) *CachedCardService {
	return &CachedCardService{CardService: inner, board: board}
}

func (s *CachedCardService) CreateCard(db *gorm.DB, userID uint, req CreateCardRequest) (*models.Card, error) {
	card, err := s.CardService.CreateCard(db, userID, req)
	if err == nil {
		s.board.Invalidate(userID)
	}
	return card, err
}

func (s *CachedCardService) UpdateCard(db *gorm.DB, userID, id uint, update models.CardUpdate) (*models.Card, error) {
	card, err := s.CardService.UpdateCard(db, userID, id, update)
	if err == nil {
		s.board.Invalidate(userID)
	}
	return card, err
}

func (s *CachedCardService) DeleteCard(db *gorm.DB, userID, id uint) (*models.Card, error) {
	card, err := s.CardService.DeleteCard(db, userID, id)
	if err == nil {
		s.board.Invalidate(userID)
	}
	return card, err
}
