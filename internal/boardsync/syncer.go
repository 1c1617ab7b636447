// Package boardsync keeps the local board store and the server in step. Every
// write is applied locally first and rolled back or resynced when the server
// rejects it.
package boardsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kanban-board/internal/apiclient"
	"kanban-board/internal/board"
	"kanban-board/internal/debounce"
	"kanban-board/internal/realtime"
	"kanban-board/internal/session"

	log "github.com/sirupsen/logrus"
)

const (
	NoticeCreateColumnFailed = "Failed to create column"
	NoticeUpdateColumnFailed = "Failed to update column"
	NoticeDeleteColumnFailed = "Failed to delete column"
	NoticeCreateCardFailed   = "Failed to create task"
	NoticeUpdateCardFailed   = "Failed to update task"
	NoticeDeleteCardFailed   = "Failed to delete task"
	NoticeMoveCardFailed     = "Failed to move task"
	NoticeLoadFailed         = "Failed to load board data"
)

var ErrNotOnBoard = errors.New("not on the board")

// ErrSessionExpired ends Watch when the server rejects the session.
var ErrSessionExpired = errors.New("session expired")

type API interface {
	Login(ctx context.Context, creds apiclient.Credentials) (string, error)
	Register(ctx context.Context, reg apiclient.Registration) (string, error)
	Logout(ctx context.Context) error
	GetBoard(ctx context.Context) ([]board.BoardColumn, error)
	SearchCards(ctx context.Context, query string) ([]board.Card, error)
	CreateColumn(ctx context.Context, col apiclient.NewColumn) (board.Column, error)
	UpdateColumn(ctx context.Context, id uint, patch board.ColumnPatch) (board.Column, error)
	DeleteColumn(ctx context.Context, id uint) error
	CreateCard(ctx context.Context, card apiclient.NewCard) (board.Card, error)
	UpdateCard(ctx context.Context, id uint, patch board.CardPatch) (board.Card, error)
	DeleteCard(ctx context.Context, id uint) error
	Subscribe(ctx context.Context, fn func(realtime.Event)) error
	ClientID() string
}

type Session interface {
	SetToken(token string) error
	Logout() error
	Notify(level session.Level, message string) session.Notice
	LoggedOut() <-chan struct{}
}

type Syncer struct {
	api     API
	store   *board.Store
	session Session
	edits   *debounce.Debouncer
}

type options struct {
	delay time.Duration
	clock debounce.Clock
}

type Option func(*options)

// WithEditDelay sets the quiet period before a text edit is persisted.
func WithEditDelay(d time.Duration) Option {
	return func(o *options) { o.delay = d }
}

func WithClock(c debounce.Clock) Option {
	return func(o *options) { o.clock = c }
}

func New(api API, store *board.Store, sess Session, opts ...Option) *Syncer {
	o := options{delay: debounce.DefaultDelay}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Syncer{api: api, store: store, session: sess}
	var dopts []debounce.Option
	if o.clock != nil {
		dopts = append(dopts, debounce.WithClock(o.clock))
	}
	s.edits = debounce.New(o.delay, s.persistEdit, dopts...)
	return s
}

func (s *Syncer) Store() *board.Store {
	return s.store
}

func (s *Syncer) fail(message string, err error) {
	log.WithError(err).Warn(message)
	s.session.Notify(session.LevelError, message)
}

// Login checks the form locally before asking the server for a token.
func (s *Syncer) Login(ctx context.Context, email, password string) error {
	creds := apiclient.Credentials{Email: strings.TrimSpace(email), Password: password}
	if err := board.Validate(creds); err != nil {
		return err
	}
	token, err := s.api.Login(ctx, creds)
	if err != nil {
		return err
	}
	return s.session.SetToken(token)
}

func (s *Syncer) Register(ctx context.Context, email, password, name string) error {
	reg := apiclient.Registration{Email: strings.TrimSpace(email), Password: password, Name: strings.TrimSpace(name)}
	if err := board.Validate(reg); err != nil {
		return err
	}
	token, err := s.api.Register(ctx, reg)
	if err != nil {
		return err
	}
	return s.session.SetToken(token)
}

// Logout drops unsaved edits, revokes the token server-side when possible and
// clears local state either way.
func (s *Syncer) Logout(ctx context.Context) error {
	s.edits.Stop()
	if err := s.api.Logout(ctx); err != nil {
		log.WithError(err).Warn("server logout failed, clearing local session anyway")
	}
	s.store.ReplaceAll(nil, nil)
	return s.session.Logout()
}

// Load replaces local state with the server's board.
func (s *Syncer) Load(ctx context.Context) error {
	if err := s.resync(ctx); err != nil {
		s.fail(NoticeLoadFailed, err)
		return err
	}
	return nil
}

func (s *Syncer) resync(ctx context.Context) error {
	columns, err := s.api.GetBoard(ctx)
	if err != nil {
		return err
	}
	cols, cards := board.Flatten(columns)
	s.store.ReplaceAll(cols, cards)
	for _, col := range cols {
		s.edits.SetKnown(columnKey(col.ID, fieldTitle), col.Title)
	}
	for _, card := range cards {
		s.edits.SetKnown(cardKey(card.ID, fieldTitle), card.Title)
		s.edits.SetKnown(cardKey(card.ID, fieldContent), card.Content)
	}
	// the server has not seen these yet; keep showing what was typed
	for key, value := range s.edits.Unsettled() {
		if m, err := editMutation(key, value); err == nil {
			s.store.ApplyLocal(m)
		}
	}
	return nil
}

// resyncAfter reloads the board after a failed write. The caller raises the
// only notice; a failed reload is just logged.
func (s *Syncer) resyncAfter(ctx context.Context, message string, cause error) {
	if err := s.resync(ctx); err != nil {
		log.WithError(err).Warn("resync after failure did not complete")
	}
	s.fail(message, cause)
}

func (s *Syncer) Search(ctx context.Context, query string) ([]board.Card, error) {
	return s.api.SearchCards(ctx, query)
}

// CreateColumn appends a column once the server has assigned its id.
func (s *Syncer) CreateColumn(ctx context.Context, title string) (board.Column, error) {
	req := apiclient.NewColumn{Title: strings.TrimSpace(title), Order: float64(len(s.store.Columns()))}
	if err := board.Validate(req); err != nil {
		return board.Column{}, err
	}

	col, err := s.api.CreateColumn(ctx, req)
	if err != nil {
		s.fail(NoticeCreateColumnFailed, err)
		return board.Column{}, err
	}
	s.store.ApplyLocal(board.InsertColumn(col))
	s.edits.SetKnown(columnKey(col.ID, fieldTitle), col.Title)
	return col, nil
}

// CreateCard appends a card to the end of its column once the server has
// assigned its id.
func (s *Syncer) CreateCard(ctx context.Context, columnID uint, title, content string) (board.Card, error) {
	if _, ok := s.store.Column(columnID); !ok {
		return board.Card{}, fmt.Errorf("column %d: %w", columnID, ErrNotOnBoard)
	}
	req := apiclient.NewCard{
		ColumnID: columnID,
		Title:    strings.TrimSpace(title),
		Content:  content,
		Order:    float64(len(s.store.CardsIn(columnID))),
	}
	if err := board.Validate(req); err != nil {
		return board.Card{}, err
	}

	card, err := s.api.CreateCard(ctx, req)
	if err != nil {
		s.fail(NoticeCreateCardFailed, err)
		return board.Card{}, err
	}
	s.store.ApplyLocal(board.InsertCard(card))
	s.edits.SetKnown(cardKey(card.ID, fieldTitle), card.Title)
	s.edits.SetKnown(cardKey(card.ID, fieldContent), card.Content)
	return card, nil
}

func (s *Syncer) UpdateColumn(ctx context.Context, id uint, patch board.ColumnPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if _, ok := s.store.Column(id); !ok {
		return fmt.Errorf("column %d: %w", id, ErrNotOnBoard)
	}

	snap := s.store.ApplyLocal(board.UpdateColumn(id, patch))
	if _, err := s.api.UpdateColumn(ctx, id, patch); err != nil {
		s.store.Restore(snap)
		s.fail(NoticeUpdateColumnFailed, err)
		return err
	}
	if patch.Title != nil {
		s.edits.SetKnown(columnKey(id, fieldTitle), *patch.Title)
	}
	return nil
}

func (s *Syncer) UpdateCard(ctx context.Context, id uint, patch board.CardPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if _, ok := s.store.Card(id); !ok {
		return fmt.Errorf("card %d: %w", id, ErrNotOnBoard)
	}

	snap := s.store.ApplyLocal(board.UpdateCard(id, patch))
	if _, err := s.api.UpdateCard(ctx, id, patch); err != nil {
		s.store.Restore(snap)
		s.fail(NoticeUpdateCardFailed, err)
		return err
	}
	if patch.Title != nil {
		s.edits.SetKnown(cardKey(id, fieldTitle), *patch.Title)
	}
	if patch.Content != nil {
		s.edits.SetKnown(cardKey(id, fieldContent), *patch.Content)
	}
	return nil
}

// DeleteColumn removes the column and its cards locally, then on the server.
func (s *Syncer) DeleteColumn(ctx context.Context, id uint) error {
	if _, ok := s.store.Column(id); !ok {
		return fmt.Errorf("column %d: %w", id, ErrNotOnBoard)
	}

	snap := s.store.ApplyLocal(board.RemoveColumn(id))
	if err := s.api.DeleteColumn(ctx, id); err != nil {
		s.store.Restore(snap)
		s.fail(NoticeDeleteColumnFailed, err)
		return err
	}
	return nil
}

func (s *Syncer) DeleteCard(ctx context.Context, id uint) error {
	if _, ok := s.store.Card(id); !ok {
		return fmt.Errorf("card %d: %w", id, ErrNotOnBoard)
	}

	snap := s.store.ApplyLocal(board.RemoveCard(id))
	if err := s.api.DeleteCard(ctx, id); err != nil {
		s.store.Restore(snap)
		s.fail(NoticeDeleteCardFailed, err)
		return err
	}
	return nil
}

// MoveCard persists a drop. The store already shows the card in place, so a
// rejection reloads the whole board instead of rolling back. The server
// renumbers the destination column and the store follows.
func (s *Syncer) MoveCard(ctx context.Context, cardID, columnID uint, rank int) error {
	order := float64(rank)
	card, err := s.api.UpdateCard(ctx, cardID, board.CardPatch{ColumnID: &columnID, Order: &order})
	if err != nil {
		s.resyncAfter(ctx, NoticeMoveCardFailed, err)
		return err
	}
	s.store.ApplyLocal(board.RenumberCards(card.ColumnID))
	return nil
}

// PersistColumnOrder writes each column's position as its order, touching
// only the columns whose order changed.
func (s *Syncer) PersistColumnOrder(ctx context.Context) error {
	for i, col := range s.store.Columns() {
		order := float64(i)
		if col.Order == order {
			continue
		}
		patch := board.ColumnPatch{Order: &order}
		if _, err := s.api.UpdateColumn(ctx, col.ID, patch); err != nil {
			s.resyncAfter(ctx, NoticeUpdateColumnFailed, err)
			return err
		}
		s.store.ApplyLocal(board.UpdateColumn(col.ID, patch))
	}
	return nil
}

// ApplyRemoteEvent reloads the board when another client changed it. It
// reports whether a reload happened.
func (s *Syncer) ApplyRemoteEvent(ctx context.Context, event realtime.Event) bool {
	if event.Type != realtime.EventBoardChanged || event.Origin == s.api.ClientID() {
		return false
	}
	if err := s.resync(ctx); err != nil {
		log.WithError(err).Warn("remote change resync failed")
		return false
	}
	return true
}

// Watch applies realtime events until ctx is done or the session is forced
// out, in which case it returns ErrSessionExpired.
func (s *Syncer) Watch(ctx context.Context, onChange func()) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	expired := false
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-s.session.LoggedOut():
			expired = true
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.api.Subscribe(ctx, func(event realtime.Event) {
		if s.ApplyRemoteEvent(ctx, event) && onChange != nil {
			onChange()
		}
	})
	cancel()
	<-done

	if !expired {
		select {
		case <-s.session.LoggedOut():
			expired = true
		default:
		}
	}
	if expired {
		s.store.ReplaceAll(nil, nil)
		return ErrSessionExpired
	}
	return err
}

const (
	kindCard     = "card"
	kindColumn   = "column"
	fieldTitle   = "title"
	fieldContent = "content"
)

func cardKey(id uint, field string) string {
	return fmt.Sprintf("%s:%d:%s", kindCard, id, field)
}

func columnKey(id uint, field string) string {
	return fmt.Sprintf("%s:%d:%s", kindColumn, id, field)
}

func parseKey(key string) (kind string, id uint, field string, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 {
		return "", 0, "", fmt.Errorf("malformed edit key %q", key)
	}
	n, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return "", 0, "", fmt.Errorf("malformed edit key %q: %w", key, err)
	}
	return parts[0], uint(n), parts[2], nil
}

// EditCardTitle shows the new title immediately and persists it once typing
// settles.
func (s *Syncer) EditCardTitle(id uint, title string) error {
	patch := board.CardPatch{Title: &title}
	if err := patch.Validate(); err != nil {
		return err
	}
	return s.editCard(id, fieldTitle, title, patch)
}

func (s *Syncer) EditCardContent(id uint, content string) error {
	return s.editCard(id, fieldContent, content, board.CardPatch{Content: &content})
}

func (s *Syncer) editCard(id uint, field, value string, patch board.CardPatch) error {
	if _, ok := s.store.Card(id); !ok {
		return fmt.Errorf("card %d: %w", id, ErrNotOnBoard)
	}
	s.store.ApplyLocal(board.UpdateCard(id, patch))
	s.edits.Push(cardKey(id, field), value)
	return nil
}

func (s *Syncer) EditColumnTitle(id uint, title string) error {
	patch := board.ColumnPatch{Title: &title}
	if err := patch.Validate(); err != nil {
		return err
	}
	if _, ok := s.store.Column(id); !ok {
		return fmt.Errorf("column %d: %w", id, ErrNotOnBoard)
	}
	s.store.ApplyLocal(board.UpdateColumn(id, patch))
	s.edits.Push(columnKey(id, fieldTitle), title)
	return nil
}

// FlushEdits persists every edit still waiting for its quiet period.
func (s *Syncer) FlushEdits() {
	s.edits.Flush()
}

func (s *Syncer) PendingEdits() int {
	return s.edits.Pending()
}

func (s *Syncer) Close() {
	s.edits.Stop()
}

// persistEdit runs when an edit settles. On failure the field goes back to
// the last value the server accepted, unless the user has typed again.
func (s *Syncer) persistEdit(key, value string) error {
	kind, id, field, err := parseKey(key)
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch kind {
	case kindCard:
		var patch board.CardPatch
		if field == fieldTitle {
			patch.Title = &value
		} else {
			patch.Content = &value
		}
		if _, err := s.api.UpdateCard(ctx, id, patch); err != nil {
			s.revertEdit(key)
			s.fail(NoticeUpdateCardFailed, err)
			return err
		}
	case kindColumn:
		if _, err := s.api.UpdateColumn(ctx, id, board.ColumnPatch{Title: &value}); err != nil {
			s.revertEdit(key)
			s.fail(NoticeUpdateColumnFailed, err)
			return err
		}
	default:
		return fmt.Errorf("unknown edit kind %q", kind)
	}
	return nil
}

// revertEdit puts back the last server value unless the user has typed again.
func (s *Syncer) revertEdit(key string) {
	if s.edits.Waiting(key) {
		return
	}
	known, ok := s.edits.Known(key)
	if !ok {
		return
	}
	if m, err := editMutation(key, known); err == nil {
		s.store.ApplyLocal(m)
	}
}

// editMutation shows value in the field named by key.
func editMutation(key, value string) (board.Mutation, error) {
	kind, id, field, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	switch {
	case kind == kindCard && field == fieldTitle:
		return board.UpdateCard(id, board.CardPatch{Title: &value}), nil
	case kind == kindCard && field == fieldContent:
		return board.UpdateCard(id, board.CardPatch{Content: &value}), nil
	case kind == kindColumn && field == fieldTitle:
		return board.UpdateColumn(id, board.ColumnPatch{Title: &value}), nil
	}
	return nil, fmt.Errorf("unknown edit key %q", key)
}
