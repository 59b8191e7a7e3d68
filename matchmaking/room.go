package matchmaking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/willson5127/holocardserver/config"
	"github.com/willson5127/holocardserver/game"
	"github.com/willson5127/holocardserver/storage"
	"github.com/willson5127/holocardserver/wsutil"
)

// RoomPlayer is one participant's connection-facing half inside a Room.
type RoomPlayer struct {
	PlayerID string
	Name     string
	Send     chan []byte
	Deck     game.PlayerConfig
}

// roomActionKind discriminates the Room's inbound action channel.
type roomActionKind int

const (
	actionGame roomActionKind = iota
	actionLeave
	actionDisconnect
	actionGraceExpired
)

// RoomAction is one unit of work for the Room's loop. All engine access
// is serialized through this channel; actions apply in arrival order.
type RoomAction struct {
	kind       roomActionKind
	PlayerID   string
	ActionType string
	ActionData map[string]any
}

// Room owns one GameEngine and the two participants playing on it.
type Room struct {
	ID        string
	QueueName string
	GameType  string

	engine  *game.GameEngine
	players [2]*RoomPlayer
	cfg     *config.Config
	store   *storage.Store

	graceCancel chan struct{}
	onCleanup   func(*Room)

	Actions chan RoomAction
	Done    chan struct{}
}

// NewRoom wraps an already-built engine for two validated players.
// store may be nil to disable match-log persistence.
func NewRoom(id, queueName, gameType string, cfg *config.Config, p0, p1 *RoomPlayer, eng *game.GameEngine, store *storage.Store, onCleanup func(*Room)) *Room {
	return &Room{
		ID:        id,
		QueueName: queueName,
		GameType:  gameType,
		engine:    eng,
		players:   [2]*RoomPlayer{p0, p1},
		cfg:       cfg,
		store:     store,
		onCleanup: onCleanup,
		Actions:   make(chan RoomAction, 16),
		Done:      make(chan struct{}),
	}
}

// Engine exposes the engine for tests.
func (r *Room) Engine() *game.GameEngine {
	return r.engine
}

// Submit queues an action without blocking; a full channel reports false.
func (r *Room) Submit(a RoomAction) bool {
	select {
	case <-r.Done:
		return false
	default:
	}
	select {
	case r.Actions <- a:
		return true
	default:
		return false
	}
}

// SubmitGameAction queues a validated-later game action from a player.
func (r *Room) SubmitGameAction(playerID, actionType string, actionData map[string]any) bool {
	return r.Submit(RoomAction{kind: actionGame, PlayerID: playerID, ActionType: actionType, ActionData: actionData})
}

// SubmitLeave queues a concession.
func (r *Room) SubmitLeave(playerID string) bool {
	return r.Submit(RoomAction{kind: actionLeave, PlayerID: playerID})
}

// SubmitDisconnect starts the disconnect grace window for a player.
func (r *Room) SubmitDisconnect(playerID string) bool {
	return r.Submit(RoomAction{kind: actionDisconnect, PlayerID: playerID})
}

// Run is the room's main loop: start the match, then process actions
// serially until game over. Should be run as a goroutine.
func (r *Room) Run() {
	defer r.finish()

	r.engine.Begin()
	r.broadcastEvents()

	for {
		action, ok := <-r.Actions
		if !ok {
			return
		}
		switch action.kind {
		case actionGame:
			r.engine.HandleGameMessage(action.PlayerID, action.ActionType, action.ActionData)
		case actionLeave:
			r.engine.Concede(action.PlayerID, game.ReasonConcede)
		case actionDisconnect:
			r.startGraceTimer(action.PlayerID)
		case actionGraceExpired:
			r.engine.Concede(action.PlayerID, game.ReasonDisconnect)
		}
		r.broadcastEvents()
		if r.engine.IsGameOver() {
			return
		}
	}
}

// startGraceTimer schedules a forfeit unless the room ends first.
func (r *Room) startGraceTimer(playerID string) {
	if r.graceCancel != nil {
		return
	}
	grace := time.Duration(r.cfg.ReconnectGraceSec) * time.Second
	if grace <= 0 {
		grace = time.Second
	}
	r.graceCancel = make(chan struct{})
	cancel := r.graceCancel
	go func() {
		select {
		case <-time.After(grace):
			select {
			case r.Actions <- RoomAction{kind: actionGraceExpired, PlayerID: playerID}:
			case <-r.Done:
			}
		case <-cancel:
		case <-r.Done:
		}
	}()
}

// broadcastEvents flushes each player's pending event batch.
func (r *Room) broadcastEvents() {
	for _, p := range r.players {
		events := r.engine.GrabEvents(p.PlayerID)
		if len(events) == 0 {
			continue
		}
		data, err := json.Marshal(events)
		if err != nil {
			slog.Error("marshal event batch", "tag", "room", "room_id", r.ID, "err", err)
			continue
		}
		if p.Send != nil {
			wsutil.SafeSend(p.Send, data)
		}
	}
}

// finish records the match log, releases the players, and marks the room
// ready for cleanup.
func (r *Room) finish() {
	if r.graceCancel != nil {
		close(r.graceCancel)
		r.graceCancel = nil
	}
	if r.store != nil {
		logRow := storage.MatchLog{
			RoomID:     r.ID,
			QueueName:  r.QueueName,
			GameType:   r.GameType,
			Player0ID:  r.players[0].PlayerID,
			Player1ID:  r.players[1].PlayerID,
			Player0Name: r.players[0].Name,
			Player1Name: r.players[1].Name,
			Oshi0:      r.players[0].Deck.OshiID,
			Oshi1:      r.players[1].Deck.OshiID,
			WinnerID:   r.engine.WinnerID,
			Reason:     r.engine.GameOverReason,
			TurnCount:  r.engine.TurnNumber,
			EventCount: r.engine.EventCount(),
		}
		if err := r.store.InsertMatchLog(context.Background(), logRow); err != nil {
			slog.Error("insert match log", "tag", "room", "room_id", r.ID, "err", err)
		}
	}
	close(r.Done)
	if r.onCleanup != nil {
		r.onCleanup(r)
	}
}
