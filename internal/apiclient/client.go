// Package apiclient talks to the board REST API on behalf of a signed-in
// user.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kanban-board/internal/board"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTimeout = 10 * time.Second
	ClientIDHeader = "X-Client-ID"
)

// TokenSource supplies the bearer token and is told when the server has
// rejected it.
type TokenSource interface {
	Token() string
	ForceLogout(reason string)
}

// APIError is the uniform error body the server returns.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	ErrorLabel string `json:"error"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// StatusOf returns the HTTP status carried by err, or 0 for transport errors.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type Client struct {
	baseURL  string
	http     *http.Client
	tokens   TokenSource
	clientID string
	timeout  time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithClientID fixes the id sent in X-Client-ID. Realtime events carry it back
// so a client can ignore its own writes.
func WithClientID(id string) Option {
	return func(c *Client) { c.clientID = id }
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tokens:  tokens,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clientID == "" {
		c.clientID = uuid.Must(uuid.NewV4()).String()
	}
	return c
}

func (c *Client) ClientID() string {
	return c.clientID
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(ClientIDHeader, c.clientID)
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := decodeError(resp)
		if resp.StatusCode == http.StatusUnauthorized && !strings.HasPrefix(path, "/auth/") && c.tokens != nil {
			c.tokens.ForceLogout(fmt.Sprintf("%s %s returned 401", method, path))
		}
		log.WithFields(log.Fields{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
		}).Debug("api request failed")
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	apiErr.StatusCode = resp.StatusCode
	if apiErr.ErrorLabel == "" {
		apiErr.ErrorLabel = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Registration struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=50"`
	Name     string `json:"name,omitempty" validate:"omitempty,max=100"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Login returns the access token for the credentials.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (c *Client) Register(ctx context.Context, reg Registration) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", reg, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Logout revokes the current token on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) GetBoard(ctx context.Context) ([]board.BoardColumn, error) {
	var out []board.BoardColumn
	if err := c.do(ctx, http.MethodGet, "/columns", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SearchCards(ctx context.Context, query string) ([]board.Card, error) {
	path := "/cards"
	if q := strings.TrimSpace(query); q != "" {
		path += "?" + url.Values{"q": {q}}.Encode()
	}
	var out []board.Card
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type NewColumn struct {
	Title string  `json:"title" validate:"required,max=100"`
	Order float64 `json:"order" validate:"min=0"`
}

type NewCard struct {
	ColumnID uint    `json:"columnId" validate:"required"`
	Title    string  `json:"title" validate:"required,max=200"`
	Content  string  `json:"content"`
	Order    float64 `json:"order" validate:"min=0"`
}

func (c *Client) CreateColumn(ctx context.Context, col NewColumn) (board.Column, error) {
	var out board.Column
	err := c.do(ctx, http.MethodPost, "/columns", col, &out)
	return out, err
}

func (c *Client) UpdateColumn(ctx context.Context, id uint, patch board.ColumnPatch) (board.Column, error) {
	var out board.Column
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/columns/%d", id), patch, &out)
	return out, err
}

func (c *Client) DeleteColumn(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/columns/%d", id), nil, nil)
}

func (c *Client) CreateCard(ctx context.Context, card NewCard) (board.Card, error) {
	var out board.Card
	err := c.do(ctx, http.MethodPost, "/cards", card, &out)
	return out, err
}

func (c *Client) UpdateCard(ctx context.Context, id uint, patch board.CardPatch) (board.Card, error) {
	var out board.Card
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/cards/%d", id), patch, &out)
	return out, err
}

func (c *Client) DeleteCard(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/cards/%d", id), nil, nil)
}
