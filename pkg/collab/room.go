package collab

import (
	"encoding/json"
	"log"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"draftpad/pkg/store"
)

// Client represents one connected editing session in a room.
type Client struct {
	ID          string          `json:"-"` // connection id, unique per socket
	UserID      string          `json:"userId"`
	DisplayName string          `json:"displayName"`
	Conn        *websocket.Conn `json:"-"`
	Room        *Room           `json:"-"`
	Send        chan []byte     `json:"-"`
	JoinedAt    time.Time       `json:"-"`
}

// Room is the realtime channel for one document: it tracks presence,
// relays content-change and cursor events, and holds the canonical
// in-memory content between persists.
type Room struct {
	ID       string
	Document *store.Document

	Clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan []byte

	presence map[string]*Presence // keyed by userId
	mutex    sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
	onEmpty  func() // set by the manager; closes the room
}

// RoomManager hands out one room instance per open document.
type RoomManager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
	store store.IDocumentStore
}

// NewRoomManager creates a room manager over the injected document store.
func NewRoomManager(docs store.IDocumentStore) *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*Room),
		store: docs,
	}
}

// GetOrCreateRoom returns the room for a document, loading the document
// and starting the room loop on first access.
func (rm *RoomManager) GetOrCreateRoom(documentID string) (*Room, error) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	if room, ok := rm.rooms[documentID]; ok {
		return room, nil
	}

	document, err := rm.store.Get(documentID)
	if err != nil {
		return nil, err
	}

	room := &Room{
		ID:         documentID,
		Document:   document,
		Clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan []byte, 256),
		presence:   make(map[string]*Presence),
		done:       make(chan struct{}),
	}
	room.onEmpty = func() { rm.CloseRoom(documentID) }
	rm.rooms[documentID] = room

	go room.run()

	return room, nil
}

// Lookup returns an already open room without creating one.
func (rm *RoomManager) Lookup(documentID string) (*Room, bool) {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()
	room, ok := rm.rooms[documentID]
	return room, ok
}

// CloseRoom drops a room and stops its loop. Called when the last
// client leaves or the document is deleted.
func (rm *RoomManager) CloseRoom(documentID string) {
	rm.mutex.Lock()
	room, ok := rm.rooms[documentID]
	delete(rm.rooms, documentID)
	rm.mutex.Unlock()

	if ok {
		room.stop()
	}
}

// run drains the room's channels until the room is closed. All roster
// mutation happens here or under the room mutex.
func (r *Room) run() {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("panic in room.run: %v\n%s", rec, debug.Stack())
		}
	}()

	for {
		select {
		case client := <-r.Register:
			r.mutex.Lock()
			r.Clients[client.ID] = client
			r.presence[client.UserID] = &Presence{
				UserID:      client.UserID,
				DisplayName: client.DisplayName,
				LastSeen:    client.JoinedAt,
			}
			r.recomputeColorsLocked()
			r.mutex.Unlock()

			r.sendSnapshot(client)
			r.publishPresence()
			log.Printf("client %s (%s) joined room %s", client.ID, client.UserID, r.ID)

		case client := <-r.Unregister:
			r.mutex.Lock()
			if _, ok := r.Clients[client.ID]; ok {
				delete(r.Clients, client.ID)
				close(client.Send)
			}
			// Drop presence only when no other connection carries
			// the same user (e.g. two tabs).
			if !r.userStillConnectedLocked(client.UserID) {
				delete(r.presence, client.UserID)
			}
			r.recomputeColorsLocked()
			empty := len(r.Clients) == 0
			r.mutex.Unlock()

			r.publishPresence()
			log.Printf("client %s (%s) left room %s", client.ID, client.UserID, r.ID)

			if empty && r.onEmpty != nil {
				r.onEmpty()
			}

		case message := <-r.Broadcast:
			r.sendToAll(message, "")

		case <-r.done:
			return
		}
	}
}

// Join registers a client, reporting false when the room has already
// been closed (the caller should fetch a fresh room and retry).
func (r *Room) Join(c *Client) bool {
	select {
	case r.Register <- c:
		return true
	case <-r.done:
		return false
	}
}

// Done is closed once the room loop has been told to stop.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

// BroadcastContentChange relays a sequence-tagged content change to all
// clients except the sender. Receivers drop any payload whose origin
// sequence they already applied, which is what prevents echo loops.
func (r *Room) BroadcastContentChange(content, fromUserID string, seq uint64, excludeClientID string) {
	r.mutex.Lock()
	if r.Document != nil {
		r.Document.Content = content
	}
	r.mutex.Unlock()

	data, _ := json.Marshal(Envelope{
		Type:      MsgContentChange,
		Content:   content,
		UserID:    fromUserID,
		Seq:       seq,
		Timestamp: time.Now().UnixMilli(),
	})
	r.sendToAll(data, excludeClientID)
}

// BroadcastDocumentUpdated fans out a store-level change notification
// (the fallback path when an update lands via persistence rather than
// the realtime channel). It goes through the room loop so it serializes
// with roster changes.
func (r *Room) BroadcastDocumentUpdated(content string) {
	data, _ := json.Marshal(Envelope{
		Type:      MsgDocumentUpdated,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	})
	select {
	case r.Broadcast <- data:
	case <-r.done:
	}
}

// UpdateCursor moves one user's caret and republishes presence.
func (r *Room) UpdateCursor(userID string, line, col int) {
	r.mutex.Lock()
	if p, ok := r.presence[userID]; ok {
		p.Cursor = &CursorPos{Line: line, Col: col}
	}
	r.mutex.Unlock()

	r.publishPresence()
}

// Roster returns a snapshot of all present users, join order first.
func (r *Room) Roster() []Presence {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.rosterLocked()
}

// RosterExcluding returns the roster without the given user, which is
// what sessions show as their collaborator list.
func (r *Room) RosterExcluding(userID string) []Presence {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	all := r.rosterLocked()
	others := make([]Presence, 0, len(all))
	for _, p := range all {
		if p.UserID != userID {
			others = append(others, p)
		}
	}
	return others
}

// Content returns the room's canonical in-memory content.
func (r *Room) Content() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.Document == nil {
		return ""
	}
	return r.Document.Content
}

// SetContent replaces the canonical content (version restore, AI edit).
func (r *Room) SetContent(content string) {
	r.mutex.Lock()
	if r.Document != nil {
		r.Document.Content = content
	}
	r.mutex.Unlock()
}

// Empty reports whether the room has no clients left.
func (r *Room) Empty() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.Clients) == 0
}

func (r *Room) sendSnapshot(c *Client) {
	r.mutex.RLock()
	data, _ := json.Marshal(Envelope{
		Type:       MsgSnapshot,
		DocumentID: r.ID,
		Content:    r.Document.Content,
		Title:      r.Document.Title,
		Users:      r.rosterLocked(),
	})
	r.mutex.RUnlock()

	select {
	case c.Send <- data:
	default:
	}
}

// publishPresence replaces every client's observed roster snapshot.
func (r *Room) publishPresence() {
	r.mutex.RLock()
	data, _ := json.Marshal(Envelope{
		Type:  MsgPresenceSync,
		Users: r.rosterLocked(),
	})
	r.mutex.RUnlock()

	r.sendToAll(data, "")
}

func (r *Room) sendToAll(message []byte, excludeClientID string) {
	r.mutex.Lock()
	for id, client := range r.Clients {
		if id == excludeClientID {
			continue
		}
		select {
		case client.Send <- message:
		default:
			// Slow client: drop it rather than block the room.
			close(client.Send)
			delete(r.Clients, id)
		}
	}
	r.mutex.Unlock()
}

func (r *Room) rosterLocked() []Presence {
	roster := make([]*Presence, 0, len(r.presence))
	for _, p := range r.presence {
		roster = append(roster, p)
	}
	AssignColors(roster)
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].LastSeen.Equal(roster[j].LastSeen) {
			return roster[i].UserID < roster[j].UserID
		}
		return roster[i].LastSeen.Before(roster[j].LastSeen)
	})

	out := make([]Presence, len(roster))
	for i, p := range roster {
		out[i] = *p
	}
	return out
}

func (r *Room) recomputeColorsLocked() {
	roster := make([]*Presence, 0, len(r.presence))
	for _, p := range r.presence {
		roster = append(roster, p)
	}
	AssignColors(roster)
}

func (r *Room) userStillConnectedLocked(userID string) bool {
	for _, c := range r.Clients {
		if c.UserID == userID {
			return true
		}
	}
	return false
}
