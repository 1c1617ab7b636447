package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"kanban-board/internal/realtime"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", c.token())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe streams realtime events to fn until ctx is done or the server
// closes the connection. It returns nil when ctx ends the stream.
func (c *Client) Subscribe(ctx context.Context, fn func(realtime.Event)) error {
	target, err := c.websocketURL()
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set(ClientIDHeader, c.clientID)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			apiErr := decodeError(resp)
			if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
				c.tokens.ForceLogout("websocket subscription returned 401")
			}
			return apiErr
		}
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		var event realtime.Event
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				log.WithField("code", closeErr.Code).Debug("realtime stream closed")
			}
			return err
		}
		fn(event)
	}
}
