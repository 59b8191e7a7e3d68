package matchmaking

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/willson5127/holocardserver/cards"
	"github.com/willson5127/holocardserver/config"
	"github.com/willson5127/holocardserver/game"
	"github.com/willson5127/holocardserver/matcherrors"
	"github.com/willson5127/holocardserver/storage"
)

// roomCounter provides unique room IDs.
var roomCounter uint64

// QueueInfo is one queue's summary for server_info messages.
type QueueInfo struct {
	QueueName   string `json:"queue_name"`
	GameType    string `json:"game_type"`
	PlayersCount int   `json:"players_count"`
}

type queueEntry struct {
	player *RoomPlayer
}

type queue struct {
	name     string
	gameType string
	custom   bool
	waiting  []*queueEntry // FIFO: index 0 pops first
}

// Matchmaker pairs players from named queues and tracks active rooms.
// All state is guarded by one mutex; critical sections are brief
// (enqueue, dequeue, pair), with room work happening in room goroutines.
type Matchmaker struct {
	cfg   *config.Config
	db    *cards.Database
	store *storage.Store

	mu         sync.Mutex
	queues     map[string]*queue
	inQueue    map[string]string // playerID -> queue key
	rooms      map[string]*Room
	playerRoom map[string]*Room
}

// NewMatchmaker creates a Matchmaker. store may be nil to disable
// match-log persistence.
func NewMatchmaker(cfg *config.Config, db *cards.Database, store *storage.Store) *Matchmaker {
	return &Matchmaker{
		cfg:        cfg,
		db:         db,
		store:      store,
		queues:     make(map[string]*queue),
		inQueue:    make(map[string]string),
		rooms:      make(map[string]*Room),
		playerRoom: make(map[string]*Room),
	}
}

// IsGameTypeValid checks a requested game type against configuration.
func (m *Matchmaker) IsGameTypeValid(gameType string) bool {
	for _, gt := range m.cfg.GameTypes {
		if gt == gameType {
			return true
		}
	}
	return false
}

// queueKey: custom queues match only within their name; public queues
// share one pool per game type.
func queueKey(queueName string, custom bool, gameType string) string {
	if custom {
		return "custom:" + queueName
	}
	return "public:" + gameType
}

// JoinQueue validates and enqueues a player. When a partner is already
// waiting, the pair is popped FIFO and a Room is created and started;
// the new Room is returned (nil when the player is left waiting).
func (m *Matchmaker) JoinQueue(player *RoomPlayer, queueName string, custom bool, gameType string) (*Room, error) {
	if !m.IsGameTypeValid(gameType) {
		return nil, matcherrors.ErrInvalidGameType
	}
	if !m.db.ValidateDeck(player.Deck.OshiID, player.Deck.Deck, player.Deck.CheerDeck) {
		return nil, matcherrors.ErrInvalidDeck
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.playerRoom[player.PlayerID]; ok {
		return nil, matcherrors.ErrAlreadyInMatch
	}
	if _, ok := m.inQueue[player.PlayerID]; ok {
		return nil, matcherrors.ErrAlreadyQueued
	}

	key := queueKey(queueName, custom, gameType)
	q, ok := m.queues[key]
	if !ok {
		q = &queue{name: queueName, gameType: gameType, custom: custom}
		m.queues[key] = q
	}

	if len(q.waiting) > 0 {
		partner := q.waiting[0].player
		q.waiting = q.waiting[1:]
		delete(m.inQueue, partner.PlayerID)
		if len(q.waiting) == 0 && q.custom {
			delete(m.queues, key)
		}
		return m.createRoomLocked(key, gameType, partner, player), nil
	}

	q.waiting = append(q.waiting, &queueEntry{player: player})
	m.inQueue[player.PlayerID] = key
	return nil, nil
}

// createRoomLocked pairs two players into a running room. Caller holds mu.
func (m *Matchmaker) createRoomLocked(queueName, gameType string, p0, p1 *RoomPlayer) *Room {
	roomID := fmt.Sprintf("room-%d", atomic.AddUint64(&roomCounter, 1))

	eng, err := game.NewGameEngine(m.db, game.NewMatchRand(), p0.Deck, p1.Deck)
	if err != nil {
		// Decks were validated on join; a failure here is a server bug.
		slog.Error("engine creation failed", "tag", "matchmaking", "room_id", roomID, "err", err)
		return nil
	}

	room := NewRoom(roomID, queueName, gameType, m.cfg, p0, p1, eng, m.store, m.removeRoom)
	m.rooms[roomID] = room
	m.playerRoom[p0.PlayerID] = room
	m.playerRoom[p1.PlayerID] = room

	slog.Info("match created", "tag", "matchmaking", "room_id", roomID, "p0", p0.Name, "p1", p1.Name)
	go room.Run()
	return room
}

// LeaveQueue removes a player from any queue. Idempotent.
func (m *Matchmaker) LeaveQueue(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.inQueue[playerID]
	if !ok {
		return
	}
	delete(m.inQueue, playerID)
	q := m.queues[key]
	if q == nil {
		return
	}
	for i, entry := range q.waiting {
		if entry.player.PlayerID == playerID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			break
		}
	}
	if len(q.waiting) == 0 && q.custom {
		delete(m.queues, key)
	}
}

// RoomFor returns the active room for a player, or nil.
func (m *Matchmaker) RoomFor(playerID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerRoom[playerID]
}

// LeaveGame concedes the player's current match.
func (m *Matchmaker) LeaveGame(playerID string) error {
	room := m.RoomFor(playerID)
	if room == nil {
		return matcherrors.ErrNotInRoom
	}
	room.SubmitLeave(playerID)
	return nil
}

// HandleDisconnect removes the player from queues and, if in a room,
// starts the disconnect grace window.
func (m *Matchmaker) HandleDisconnect(playerID string) {
	m.LeaveQueue(playerID)
	if room := m.RoomFor(playerID); room != nil {
		room.SubmitDisconnect(playerID)
	}
}

// removeRoom releases a finished room's players back to the lobby.
func (m *Matchmaker) removeRoom(room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, room.ID)
	for _, p := range room.players {
		if m.playerRoom[p.PlayerID] == room {
			delete(m.playerRoom, p.PlayerID)
		}
	}
}

// QueueSummaries reports the waiting counts for server_info.
func (m *Matchmaker) QueueSummaries() []QueueInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QueueInfo, 0, len(m.queues))
	for _, q := range m.queues {
		out = append(out, QueueInfo{
			QueueName:   q.name,
			GameType:    q.gameType,
			PlayersCount: len(q.waiting),
		})
	}
	return out
}
