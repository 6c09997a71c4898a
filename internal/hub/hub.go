package hub

import (
	"errors"
	"sort"
	"sync"

	"github.com/yourcaryourway/support-chat/internal/domain"
	"github.com/yourcaryourway/support-chat/pkg/log"
)

// ErrClientGone is returned when sending to a client that is no longer registered.
var ErrClientGone = errors.New("client not registered")

// Hub owns connected clients and the session → members map. Membership
// lives only in memory.
type Hub struct {
	clients map[string]*Client
	rooms   map[string]map[string]*Client  // sessionID -> clientID -> client
	joined  map[string]map[string]struct{} // clientID -> sessionIDs
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		joined:  make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldClientID, c.ID).Msg("client registered")
}

// Unregister drops c from every room and closes its send buffer. It returns
// the sessions whose room became empty.
func (h *Hub) Unregister(c *Client) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[c.ID]; !ok || cur != c {
		return nil
	}

	var emptied []string
	for sessionID := range h.joined[c.ID] {
		if h.removeLocked(c.ID, sessionID) {
			emptied = append(emptied, sessionID)
		}
	}
	delete(h.joined, c.ID)
	delete(h.clients, c.ID)
	close(c.send)

	sort.Strings(emptied)
	l := log.L()
	l.Debug().Str(log.FieldClientID, c.ID).Int("emptied_rooms", len(emptied)).Msg("client unregistered")
	return emptied
}

// Join adds c to the room of sessionID. It reports whether the room was
// created by this call.
func (h *Hub) Join(c *Client, sessionID string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[c.ID]; !ok || cur != c {
		return false, ErrClientGone
	}

	members, ok := h.rooms[sessionID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[sessionID] = members
	}
	members[c.ID] = c

	if h.joined[c.ID] == nil {
		h.joined[c.ID] = make(map[string]struct{})
	}
	h.joined[c.ID][sessionID] = struct{}{}

	l := log.L()
	l.Debug().Str(log.FieldClientID, c.ID).Str(log.FieldSessionID, sessionID).Int("members", len(members)).Msg("client joined room")
	return !ok, nil
}

// Leave removes c from the room of sessionID and reports whether the room
// is now empty.
func (h *Hub) Leave(c *Client, sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set := h.joined[c.ID]; set != nil {
		delete(set, sessionID)
	}
	return h.removeLocked(c.ID, sessionID)
}

func (h *Hub) removeLocked(clientID, sessionID string) bool {
	members, ok := h.rooms[sessionID]
	if !ok {
		return false
	}
	delete(members, clientID)
	if len(members) == 0 {
		delete(h.rooms, sessionID)
		return true
	}
	return false
}

// IsMember reports whether c is in the room of sessionID.
func (h *Hub) IsMember(c *Client, sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[sessionID][c.ID]
	return ok
}

// Members returns the sorted client ids in the room of sessionID.
func (h *Hub) Members(sessionID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.rooms[sessionID]))
	for id := range h.rooms[sessionID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoomCount returns the number of non-empty rooms.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendTo encodes an event and queues it for c alone.
func (h *Hub) SendTo(c *Client, event string, data interface{}) error {
	frame, err := domain.Encode(event, data)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if cur, ok := h.clients[c.ID]; !ok || cur != c {
		return ErrClientGone
	}
	h.enqueueLocked(c, frame)
	return nil
}

// Broadcast queues an event for every member of the room except excludeID
// and returns how many members it was queued for.
func (h *Hub) Broadcast(sessionID, event string, data interface{}, excludeID string) (int, error) {
	frame, err := domain.Encode(event, data)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for id, c := range h.rooms[sessionID] {
		if id == excludeID {
			continue
		}
		h.enqueueLocked(c, frame)
		n++
	}
	return n, nil
}

// enqueueLocked never blocks. A client whose buffer is full is disconnected;
// its read pump then reports the disconnect.
func (h *Hub) enqueueLocked(c *Client, frame []byte) {
	select {
	case c.send <- frame:
	default:
		l := log.L()
		l.Warn().Str(log.FieldClientID, c.ID).Msg("send buffer full, closing client")
		go c.Close()
	}
}
