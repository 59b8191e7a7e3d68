package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/willson5127/holocardserver/auth"
	"github.com/willson5127/holocardserver/game"
	"github.com/willson5127/holocardserver/matcherrors"
	"github.com/willson5127/holocardserver/matchmaking"
	"github.com/willson5127/holocardserver/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 65536
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub           *Hub
	Conn          *websocket.Conn
	Send          chan []byte
	PlayerID      string
	Name          string
	Authenticated bool
}

// ReadPump pumps messages from the websocket connection to the hub.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "tag", "ws", "err", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket
// connection. It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("invalid_message", "Invalid JSON message.")
		return
	}

	// Auth gates everything but join_server when the server has a JWKS
	// URL configured; without one, auth is skipped entirely.
	authRequired := c.Hub.Config.AuthJWKSURL != ""
	allowedWithoutAuth := envelope.MessageType == "auth" || envelope.MessageType == "join_server"
	if authRequired && !c.Authenticated && !allowedWithoutAuth {
		c.sendError("invalid_message", "Authentication required. Send an auth message first.")
		return
	}

	switch envelope.MessageType {
	case "join_server":
		c.sendServerInfo()
	case "auth":
		c.handleAuth(envelope.Raw)
	case "join_matchmaking_queue":
		c.handleJoinQueue(envelope.Raw)
	case "leave_matchmaking_queue":
		c.Hub.Matchmaker.LeaveQueue(c.PlayerID)
		c.broadcastServerInfo()
	case "leave_game":
		c.handleLeaveGame()
	case "game_action":
		c.handleGameAction(envelope.Raw)
	default:
		c.sendError("invalid_message", "Unknown message type: "+envelope.MessageType)
	}
}

func (c *Client) handleAuth(raw json.RawMessage) {
	if c.Hub.Config.AuthJWKSURL == "" {
		c.sendError("invalid_message", "Server auth not configured.")
		return
	}
	if c.Authenticated {
		c.sendError("invalid_message", "Already authenticated.")
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Token == "" {
		c.sendError("invalid_message", "Invalid auth message.")
		return
	}
	claims, err := auth.ValidateToken(c.Hub.Config.AuthJWKSURL, msg.Token)
	if err != nil {
		slog.Warn("token validation failed", "tag", "ws", "err", err)
		c.sendError("invalid_message", "Invalid or expired token.")
		return
	}
	if name := auth.NameFromClaims(claims); name != "" {
		c.Name = name
	}
	c.Authenticated = true
}

func (c *Client) handleJoinQueue(raw json.RawMessage) {
	var msg JoinMatchmakingQueueMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid_message", "Invalid join_matchmaking_queue message.")
		return
	}
	if name := strings.TrimSpace(msg.PlayerName); name != "" && len(name) <= c.Hub.Config.MaxNameLength {
		c.Name = name
	}

	player := &matchmaking.RoomPlayer{
		PlayerID: c.PlayerID,
		Name:     c.Name,
		Send:     c.Send,
		Deck: game.PlayerConfig{
			PlayerID:  c.PlayerID,
			Name:      c.Name,
			OshiID:    msg.OshiID,
			Deck:      msg.Deck,
			CheerDeck: msg.CheerDeck,
		},
	}

	_, err := c.Hub.Matchmaker.JoinQueue(player, msg.QueueName, msg.CustomGame, msg.GameType)
	switch {
	case errors.Is(err, matcherrors.ErrAlreadyInMatch):
		c.sendError("joinmatch_invalid_alreadyinmatch", "Already in a match.")
	case errors.Is(err, matcherrors.ErrAlreadyQueued):
		c.sendError("joinmatch_invalid_alreadyinmatch", "Already in a queue.")
	case errors.Is(err, matcherrors.ErrInvalidGameType):
		c.sendError("joinmatch_invalid_gametype", "Invalid game type.")
	case errors.Is(err, matcherrors.ErrInvalidDeck):
		c.sendError("joinmatch_invaliddeck", "Invalid deck list.")
	case err != nil:
		c.sendError("invalid_message", err.Error())
	default:
		c.broadcastServerInfo()
	}
}

func (c *Client) handleLeaveGame() {
	if err := c.Hub.Matchmaker.LeaveGame(c.PlayerID); err != nil {
		c.sendError("not_in_room", "Not in a game room to leave.")
		return
	}
	c.broadcastServerInfo()
}

func (c *Client) handleGameAction(raw json.RawMessage) {
	var msg GameActionMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("invalid_game_message", "Invalid game_action message.")
		return
	}
	room := c.Hub.Matchmaker.RoomFor(c.PlayerID)
	if room == nil {
		c.sendError("not_in_room", "Not in a game room to send a game message.")
		return
	}
	if !room.SubmitGameAction(c.PlayerID, msg.ActionType, msg.ActionData) {
		c.sendError("invalid_game_message", "Game is busy. Try again.")
	}
}

func (c *Client) sendServerInfo() {
	msg := ServerInfoMsg{
		MessageType: "server_info",
		QueueInfo:   c.Hub.Matchmaker.QueueSummaries(),
	}
	data, _ := json.Marshal(msg)
	wsutil.SafeSend(c.Send, data)
}

// broadcastServerInfo pushes fresh queue summaries to every connected
// client (queue membership changed).
func (c *Client) broadcastServerInfo() {
	msg := ServerInfoMsg{
		MessageType: "server_info",
		QueueInfo:   c.Hub.Matchmaker.QueueSummaries(),
	}
	data, _ := json.Marshal(msg)
	select {
	case c.Hub.Broadcast <- data:
	default:
	}
}

func (c *Client) sendError(errorID, message string) {
	msg := ErrorMsg{MessageType: "error", ErrorID: errorID, ErrorMessage: message}
	data, _ := json.Marshal(msg)
	wsutil.SafeSend(c.Send, data)
}
