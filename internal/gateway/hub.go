package gateway

import (
	"encoding/json"
	"sync"

	"github.com/proctorly/proctor-backend/internal/model"
	"github.com/rs/zerolog"
)

// Client is one connected socket. Send is a buffered channel drained by
// the connection's write pump; messages are dropped when it fills so one
// slow client cannot stall a room.
type Client struct {
	TestID string
	Send   chan []byte
}

// NewClient creates a client not yet joined to any room.
func NewClient() *Client {
	return &Client{Send: make(chan []byte, 32)}
}

// Hub tracks room membership for one gateway process and fans incoming
// session states out to the matching room. Membership is process-local;
// the approximate headcount a room sees is the count on this process.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	log   zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		log:   log.With().Str("component", "gateway_hub").Logger(),
	}
}

// Join adds a client to a test's room, leaving any previous room first,
// and broadcasts the fresh headcount to the whole room.
func (h *Hub) Join(c *Client, testID string) {
	h.Leave(c)

	h.mu.Lock()
	room, ok := h.rooms[testID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[testID] = room
	}
	room[c] = struct{}{}
	c.TestID = testID
	count := len(room)
	h.mu.Unlock()

	h.log.Debug().Str("test_id", testID).Int("count", count).Msg("Client joined room")
	h.broadcastHeadcount(testID, count)
}

// Leave removes a client from its room, if any, and updates the room's
// headcount.
func (h *Hub) Leave(c *Client) {
	if c.TestID == "" {
		return
	}

	h.mu.Lock()
	testID := c.TestID
	c.TestID = ""
	room, ok := h.rooms[testID]
	if ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, testID)
		}
	}
	count := len(room)
	h.mu.Unlock()

	if ok && count > 0 {
		h.broadcastHeadcount(testID, count)
	}
}

// RoomSize returns the connected-client count for a test on this process.
func (h *Hub) RoomSize(testID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[testID])
}

// BroadcastState re-emits a session state delta to every socket in that
// test's room.
func (h *Hub) BroadcastState(state model.SessionState) {
	data, err := json.Marshal(StateEvent{Event: EventState, Data: state})
	if err != nil {
		return
	}
	h.broadcastRaw(state.TestID, data)
}

func (h *Hub) broadcastHeadcount(testID string, count int) {
	evt := HeadcountEvent{Event: EventHeadcount}
	evt.Data.Count = count
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	h.broadcastRaw(testID, data)
}

func (h *Hub) broadcastRaw(testID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[testID] {
		select {
		case c.Send <- data:
		default:
			// Buffer full: drop. The next delta carries full state.
		}
	}
}
