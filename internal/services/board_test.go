package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"kanban-board/internal/cache"
	"kanban-board/internal/models"
	"kanban-board/internal/services"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func float(v float64) *float64 { return &v }
func str(v string) *string     { return &v }
func id(v uint) *uint          { return &v }

type BoardServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	columns services.ColumnService
	cards   services.CardService

	alice models.User
	bob   models.User
}

func (s *BoardServiceTestSuite) SetupTest() {
	s.db = openTestDB(s.T())
	s.columns = services.NewColumnService()
	s.cards = services.NewCardService()

	s.alice = models.User{Email: "alice@example.com", Password: "x"}
	s.bob = models.User{Email: "bob@example.com", Password: "x"}
	s.Require().NoError(s.db.Create(&s.alice).Error)
	s.Require().NoError(s.db.Create(&s.bob).Error)
}

func (s *BoardServiceTestSuite) column(owner models.User, title string, order float64) *models.Column {
	col, err := s.columns.CreateColumn(s.db, owner.ID, services.CreateColumnRequest{Title: title, Order: float(order)})
	s.Require().NoError(err)
	return col
}

func (s *BoardServiceTestSuite) card(owner models.User, columnID uint, title string, order float64) *models.Card {
	card, err := s.cards.CreateCard(s.db, owner.ID, services.CreateCardRequest{
		Title:    title,
		ColumnID: columnID,
		Order:    float(order),
	})
	s.Require().NoError(err)
	return card
}

func (s *BoardServiceTestSuite) TestGetBoard_OrdersColumnsAndCards() {
	done := s.column(s.alice, "Done", 2)
	todo := s.column(s.alice, "Todo", 0)
	s.column(s.bob, "Bob's", 0)

	s.card(s.alice, todo.ID, "second", 1)
	s.card(s.alice, todo.ID, "first", 0)
	s.card(s.alice, todo.ID, "tie", 1)

	board, err := s.columns.GetBoard(s.db, s.alice.ID)
	s.Require().NoError(err)
	s.Require().Len(board, 2)

	s.Equal("Todo", board[0].Title)
	s.Equal(done.ID, board[1].ID)
	s.NotNil(board[1].Cards, "empty columns still carry an empty card list")

	titles := []string{}
	for _, c := range board[0].Cards {
		titles = append(titles, c.Title)
	}
	s.Equal([]string{"first", "second", "tie"}, titles)
}

func (s *BoardServiceTestSuite) TestCreateColumn_RoundTripsThroughBoard() {
	created := s.column(s.alice, "Backlog", 0)
	s.NotZero(created.ID)

	board, err := s.columns.GetBoard(s.db, s.alice.ID)
	s.Require().NoError(err)
	s.Require().Len(board, 1)
	s.Equal(created.ID, board[0].ID)
	s.Equal("Backlog", board[0].Title)
}

func (s *BoardServiceTestSuite) TestUpdateColumn() {
	col := s.column(s.alice, "Todo", 0)

	updated, err := s.columns.UpdateColumn(s.db, s.alice.ID, col.ID, models.ColumnUpdate{Title: str("Doing"), Order: float(3)})
	s.Require().NoError(err)
	s.Equal("Doing", updated.Title)
	s.Equal(3.0, updated.Order)

	_, err = s.columns.UpdateColumn(s.db, s.bob.ID, col.ID, models.ColumnUpdate{Title: str("mine")})
	s.ErrorIs(err, services.ErrForbidden)
	s.Equal("You do not own this column", err.Error())

	_, err = s.columns.UpdateColumn(s.db, s.alice.ID, 9999, models.ColumnUpdate{Title: str("x")})
	s.ErrorIs(err, services.ErrNotFound)
	s.Equal("Column with ID 9999 not found", err.Error())
}

func (s *BoardServiceTestSuite) TestDeleteColumn_CascadesCards() {
	col := s.column(s.alice, "Todo", 0)
	other := s.column(s.alice, "Done", 1)
	s.card(s.alice, col.ID, "a", 0)
	s.card(s.alice, col.ID, "b", 1)
	kept := s.card(s.alice, other.ID, "c", 0)

	_, err := s.columns.DeleteColumn(s.db, s.bob.ID, col.ID)
	s.ErrorIs(err, services.ErrForbidden)

	deleted, err := s.columns.DeleteColumn(s.db, s.alice.ID, col.ID)
	s.Require().NoError(err)
	s.Equal(col.ID, deleted.ID)

	var count int64
	s.db.Model(&models.Card{}).Where("column_id = ?", col.ID).Count(&count)
	s.Zero(count)

	s.db.Model(&models.Card{}).Where("id = ?", kept.ID).Count(&count)
	s.Equal(int64(1), count)
}

func (s *BoardServiceTestSuite) TestCreateCard_ChecksColumn() {
	bobs := s.column(s.bob, "Bob", 0)

	_, err := s.cards.CreateCard(s.db, s.alice.ID, services.CreateCardRequest{Title: "t", ColumnID: bobs.ID, Order: float(0)})
	s.ErrorIs(err, services.ErrForbidden)

	_, err = s.cards.CreateCard(s.db, s.alice.ID, services.CreateCardRequest{Title: "t", ColumnID: 4242, Order: float(0)})
	s.ErrorIs(err, services.ErrNotFound)
}

func (s *BoardServiceTestSuite) TestUpdateCard_MoveAcrossColumns() {
	a := s.column(s.alice, "A", 0)
	b := s.column(s.alice, "B", 1)
	t1 := s.card(s.alice, a.ID, "T1", 0)

	moved, err := s.cards.UpdateCard(s.db, s.alice.ID, t1.ID, models.CardUpdate{ColumnID: id(b.ID), Order: float(0)})
	s.Require().NoError(err)
	s.Equal(b.ID, moved.ColumnID)
	s.Equal(0.0, moved.Order)
	s.Equal("T1", moved.Title)
}

func (s *BoardServiceTestSuite) TestUpdateCard_CrossUserMoveForbidden() {
	a := s.column(s.alice, "A", 0)
	bobs := s.column(s.bob, "Bob", 0)
	t1 := s.card(s.alice, a.ID, "T1", 0)

	_, err := s.cards.UpdateCard(s.db, s.alice.ID, t1.ID, models.CardUpdate{ColumnID: id(bobs.ID)})
	s.ErrorIs(err, services.ErrForbidden)
	s.Equal("You do not own the target column", err.Error())

	_, err = s.cards.UpdateCard(s.db, s.bob.ID, t1.ID, models.CardUpdate{Title: str("stolen")})
	s.ErrorIs(err, services.ErrForbidden)

	_, err = s.cards.UpdateCard(s.db, s.alice.ID, t1.ID, models.CardUpdate{ColumnID: id(777)})
	s.ErrorIs(err, services.ErrNotFound)
}

func (s *BoardServiceTestSuite) cardTitles(columnID uint) []string {
	board, err := s.columns.GetBoard(s.db, s.alice.ID)
	s.Require().NoError(err)
	titles := []string{}
	for _, col := range board {
		if col.ID != columnID {
			continue
		}
		for _, c := range col.Cards {
			titles = append(titles, c.Title)
		}
	}
	return titles
}

func (s *BoardServiceTestSuite) TestUpdateCard_OrderRenumbersDestination() {
	a := s.column(s.alice, "A", 0)
	b := s.column(s.alice, "B", 1)
	s.card(s.alice, a.ID, "T1", 0)
	s.card(s.alice, a.ID, "T2", 1)
	t3 := s.card(s.alice, a.ID, "T3", 2)

	moved, err := s.cards.UpdateCard(s.db, s.alice.ID, t3.ID, models.CardUpdate{Order: float(0)})
	s.Require().NoError(err)
	s.Equal(0.0, moved.Order)
	s.Equal([]string{"T3", "T1", "T2"}, s.cardTitles(a.ID))

	s.card(s.alice, b.ID, "U1", 0)
	_, err = s.cards.UpdateCard(s.db, s.alice.ID, t3.ID, models.CardUpdate{ColumnID: id(b.ID), Order: float(1)})
	s.Require().NoError(err)
	s.Equal([]string{"U1", "T3"}, s.cardTitles(b.ID))
	s.Equal([]string{"T1", "T2"}, s.cardTitles(a.ID))

	// ranks past the end land last
	last, err := s.cards.UpdateCard(s.db, s.alice.ID, t3.ID, models.CardUpdate{ColumnID: id(a.ID), Order: float(40)})
	s.Require().NoError(err)
	s.Equal(2.0, last.Order)
	s.Equal([]string{"T1", "T2", "T3"}, s.cardTitles(a.ID))
}

func (s *BoardServiceTestSuite) TestUpdateCard_PartialFields() {
	a := s.column(s.alice, "A", 0)
	t1 := s.card(s.alice, a.ID, "T1", 4)

	updated, err := s.cards.UpdateCard(s.db, s.alice.ID, t1.ID, models.CardUpdate{Content: str("details")})
	s.Require().NoError(err)
	s.Equal("T1", updated.Title)
	s.Equal("details", updated.Content)
	s.Equal(4.0, updated.Order)
}

func (s *BoardServiceTestSuite) TestDeleteCard() {
	a := s.column(s.alice, "A", 0)
	t1 := s.card(s.alice, a.ID, "T1", 0)

	_, err := s.cards.DeleteCard(s.db, s.bob.ID, t1.ID)
	s.ErrorIs(err, services.ErrForbidden)

	deleted, err := s.cards.DeleteCard(s.db, s.alice.ID, t1.ID)
	s.Require().NoError(err)
	s.Equal(t1.ID, deleted.ID)

	_, err = s.cards.DeleteCard(s.db, s.alice.ID, t1.ID)
	s.ErrorIs(err, services.ErrNotFound)
}

func (s *BoardServiceTestSuite) TestSearchCards() {
	a := s.column(s.alice, "A", 0)
	bobs := s.column(s.bob, "B", 0)
	s.card(s.alice, a.ID, "Fix login bug", 0)
	withContent, err := s.cards.CreateCard(s.db, s.alice.ID, services.CreateCardRequest{
		Title: "Other", Content: "the login page", ColumnID: a.ID, Order: float(1),
	})
	s.Require().NoError(err)
	s.card(s.alice, a.ID, "Unrelated", 2)
	s.card(s.bob, bobs.ID, "login for bob", 0)

	found, err := s.cards.SearchCards(s.db, s.alice.ID, "  login  ")
	s.Require().NoError(err)
	s.Len(found, 2)
	s.Equal(withContent.ID, found[1].ID)

	all, err := s.cards.SearchCards(s.db, s.alice.ID, "")
	s.Require().NoError(err)
	s.Len(all, 3)

	none, err := s.cards.SearchCards(s.db, s.alice.ID, "100%")
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *BoardServiceTestSuite) TestCachedColumnService_InvalidatesOnWrite() {
	board := services.NewBoardCache(cache.NewMultiLevelCache(nil, nil), time.Minute)
	cols := services.NewCachedColumnService(s.columns, board)
	cards := services.NewCachedCardService(s.cards, board)

	a := s.column(s.alice, "A", 0)

	first, err := cols.GetBoard(s.db, s.alice.ID)
	s.Require().NoError(err)
	s.Empty(first[0].Cards)

	// bypass the cached service so the stale entry is observable
	s.card(s.alice, a.ID, "direct", 0)
	stale, err := cols.GetBoard(s.db, s.alice.ID)
	s.Require().NoError(err)
	s.Empty(stale[0].Cards)

	_, err = cards.CreateCard(s.db, s.alice.ID, services.CreateCardRequest{Title: "cached", ColumnID: a.ID, Order: float(1)})
	s.Require().NoError(err)

	fresh, err := cols.GetBoard(s.db, s.alice.ID)
	s.Require().NoError(err)
	s.Len(fresh[0].Cards, 2)

	_, err = cols.UpdateColumn(s.db, s.alice.ID, a.ID, models.ColumnUpdate{Title: str("Renamed")})
	s.Require().NoError(err)
	renamed, err := cols.GetBoard(s.db, s.alice.ID)
	s.Require().NoError(err)
	s.Equal("Renamed", renamed[0].Title)
}

func (s *BoardServiceTestSuite) TestBoardCache_WarmJob() {
	ctx := context.Background()
	board := services.NewBoardCache(cache.NewMultiLevelCache(nil, nil), time.Minute)
	cols := services.NewCachedColumnService(s.columns, board)
	a := s.column(s.alice, "A", 0)

	job := board.WarmJob(s.db, s.columns, s.alice.ID)
	s.Equal(fmt.Sprintf("board:%d", s.alice.ID), job.Key)
	value, err := job.Load(ctx)
	s.Require().NoError(err)
	s.Require().NoError(job.Store(ctx, value))

	// served from the warmed entry, so a direct insert stays invisible
	s.card(s.alice, a.ID, "direct", 0)
	warmed, err := cols.GetBoard(s.db, s.alice.ID)
	s.Require().NoError(err)
	s.Require().Len(warmed, 1)
	s.Empty(warmed[0].Cards)
}

func (s *BoardServiceTestSuite) TestBoardCache_WarmJobRacingWriteIsDiscarded() {
	ctx := context.Background()
	board := services.NewBoardCache(cache.NewMultiLevelCache(nil, nil), time.Minute)
	cols := services.NewCachedColumnService(s.columns, board)
	s.column(s.alice, "A", 0)

	job := board.WarmJob(s.db, s.columns, s.alice.ID)
	stale, err := job.Load(ctx)
	s.Require().NoError(err)

	_, err = cols.CreateColumn(s.db, s.alice.ID, services.CreateColumnRequest{Title: "B", Order: float(1)})
	s.Require().NoError(err)

	s.ErrorIs(job.Store(ctx, stale), services.ErrStaleBoard)

	fresh, err := cols.GetBoard(s.db, s.alice.ID)
	s.Require().NoError(err)
	s.Len(fresh, 2)
}

func TestNormalizeSearch(t *testing.T) {
	long := ""
	for i := 0; i < 150; i++ {
		long += "x"
	}
	if got := services.NormalizeSearch("  " + long + "  "); len(got) != 100 {
		t.Errorf("Expected query capped at 100 characters, got %d", len(got))
	}
	if got := services.NormalizeSearch("   "); got != "" {
		t.Errorf("Expected blank query to normalize to empty, got %q", got)
	}
}

func TestBoardServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BoardServiceTestSuite))
}
