package robot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bingo-room/internal/comm"
)

// Client plays games against a running game service.
type Client struct {
	BaseURL string // e.g. http://localhost:8080
	Token   string
	HTTP    *http.Client
}

type joinResponse struct {
	Data struct {
		RoomId string `json:"room_id"`
		WsPath string `json:"ws_path"`
	} `json:"data"`
	Error string `json:"error"`
}

// Join asks the service for a seat and returns the room id and socket path.
func (c *Client) Join(ctx context.Context) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/games/join_game", nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	var jr joinResponse
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return "", "", fmt.Errorf("decode join response (%s): %w", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("join_game: %s: %s", resp.Status, jr.Error)
	}
	return jr.Data.RoomId, jr.Data.WsPath, nil
}

// Play joins a room and plays it to the end. It reports whether p won.
func (c *Client) Play(ctx context.Context, p *Player) (bool, error) {
	roomId, wsPath, err := c.Join(ctx)
	if err != nil {
		return false, err
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return false, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = wsPath
	u.RawQuery = url.Values{"jwt": {c.Token}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return false, fmt.Errorf("dial room %s: %w", roomId, err)
	}
	defer conn.Close()

	playCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-playCtx.Done()
		conn.Close()
	}()

	log.Infof("robot %s playing in room %s", p.UserID, roomId)
	for !p.Done() {
		msg := &comm.WSMessage{}
		if err := conn.ReadJSON(msg); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return p.Won(), fmt.Errorf("read room %s: %w", roomId, err)
		}
		for _, action := range p.Handle(msg) {
			if err := conn.WriteJSON(action); err != nil {
				return false, fmt.Errorf("write room %s: %w", roomId, err)
			}
		}
	}
	return p.Won(), nil
}
