package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"draftpad/pkg/aitools"
	"draftpad/pkg/collab"
	"draftpad/pkg/session"
	"draftpad/pkg/share"
	"draftpad/pkg/store"
	"draftpad/pkg/version"
)

// Handlers contains all HTTP and WebSocket handlers.
type Handlers struct {
	roomManager *collab.RoomManager
	docs        store.IDocumentStore
	versions    *version.Store
	shares      *share.Repo
	ai          aitools.EditService // nil when no provider is configured

	// Server-side edit sessions, one per connected socket, keyed by
	// room id then connection id.
	sessionsMu sync.Mutex
	sessions   map[string]map[string]*session.Session
}

// NewHandlers creates a new handlers instance. All collaborators are
// injected; nothing here reaches for a global.
func NewHandlers(roomManager *collab.RoomManager, docs store.IDocumentStore, versions *version.Store, shares *share.Repo, ai aitools.EditService) *Handlers {
	return &Handlers{
		roomManager: roomManager,
		docs:        docs,
		versions:    versions,
		shares:      shares,
		ai:          ai,
		sessions:    make(map[string]map[string]*session.Session),
	}
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// roomChannel binds a server-side session to its room: outgoing
// broadcasts go to every other socket, and to every other socket's
// session so their histories stay coherent.
type roomChannel struct {
	h      *Handlers
	room   *collab.Room
	client *collab.Client
}

func (rc *roomChannel) BroadcastContentChange(content string, seq uint64) {
	rc.room.BroadcastContentChange(content, rc.client.UserID, seq, rc.client.ID)
	rc.h.applyToPeerSessions(rc.room.ID, rc.client.ID, content, rc.client.UserID, seq)
}

func (rc *roomChannel) UpdateCursor(line, col int) {
	rc.room.UpdateCursor(rc.client.UserID, line, col)
}

// Close is a no-op: room lifetime belongs to the manager, not to any
// one session.
func (rc *roomChannel) Close() {}

var _ session.Channel = (*roomChannel)(nil)

// HandleWebSocket handles WebSocket connections for real-time collaboration.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	vars := mux.Vars(r)
	documentID := vars["documentId"]

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = uuid.New().String()
	}
	displayName := r.URL.Query().Get("displayName")
	if displayName == "" {
		displayName = "Anonymous"
	}

	client := &collab.Client{
		ID:          uuid.New().String(),
		UserID:      userID,
		DisplayName: displayName,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		JoinedAt:    time.Now(),
	}

	// A room can close between lookup and join (its last client just
	// left), so retry against a fresh instance.
	var room *collab.Room
	for {
		var err error
		room, err = h.roomManager.GetOrCreateRoom(documentID)
		if err != nil {
			log.Printf("Error opening room %s: %v", documentID, err)
			conn.Close()
			return
		}
		if room.Join(client) {
			break
		}
	}
	client.Room = room

	sess := h.openSession(room, client)

	go h.writePump(client)
	go h.readPump(client, sess)
}

// openSession builds the server-side orchestrator for one socket: its
// broadcasts relay through the room, and when the user owns the
// document the autosave and autosnapshot controllers persist for them.
func (h *Handlers) openSession(room *collab.Room, client *collab.Client) *session.Session {
	isOwner := client.UserID == room.Document.OwnerID

	sess := session.New(client.UserID, client.DisplayName)
	autosave := session.NewAutosave(session.DocumentSaver{Docs: h.docs}, room.ID, room.Content(), isOwner)

	var autosnap *session.Autosnapshot
	if isOwner {
		autosnap = session.NewAutosnapshot(h.versions, room.ID, client.UserID, sess.Content)
	}

	sess.OpenDocument(room.ID, room.Content(), isOwner, &roomChannel{h: h, room: room, client: client}, autosave, autosnap)

	h.sessionsMu.Lock()
	if h.sessions[room.ID] == nil {
		h.sessions[room.ID] = make(map[string]*session.Session)
	}
	h.sessions[room.ID][client.ID] = sess
	h.sessionsMu.Unlock()

	return sess
}

func (h *Handlers) closeSession(room *collab.Room, clientID string, sess *session.Session) {
	h.sessionsMu.Lock()
	if peers, ok := h.sessions[room.ID]; ok {
		delete(peers, clientID)
		if len(peers) == 0 {
			delete(h.sessions, room.ID)
		}
	}
	h.sessionsMu.Unlock()
	sess.Close()
}

// applyToPeerSessions feeds a broadcast payload into every other
// session in the room. Sequence tagging inside ApplyRemote drops
// duplicates and self-echo.
func (h *Handlers) applyToPeerSessions(roomID, fromClientID, content, fromUserID string, seq uint64) {
	h.sessionsMu.Lock()
	peers := make([]*session.Session, 0, len(h.sessions[roomID]))
	for clientID, sess := range h.sessions[roomID] {
		if clientID != fromClientID {
			peers = append(peers, sess)
		}
	}
	h.sessionsMu.Unlock()

	for _, sess := range peers {
		sess.ApplyRemote(content, fromUserID, seq)
	}
}

// readPump handles reading messages from the WebSocket.
func (h *Handlers) readPump(c *collab.Client, sess *session.Session) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("panic in readPump for %s: %v\n%s", c.ID, rec, debug.Stack())
		}
		// signal the room to unregister this client (non-blocking attempt)
		select {
		case c.Room.Unregister <- c:
		default:
		}
		h.closeSession(c.Room, c.ID, sess)
		// close connection only here — do NOT close c.Send here
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(1 << 20)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket unexpected close for %s: %v", c.ID, err)
			}
			break
		}

		var env collab.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("Error parsing message from %s: %v", c.ID, err)
			continue
		}

		switch env.Type {
		case collab.MsgInit:
			if env.DisplayName != "" {
				c.DisplayName = env.DisplayName
			}

		case collab.MsgEdit:
			sess.ApplyLocalEdit(env.Content)

		case collab.MsgAIEdit:
			sess.ApplyAIEdit(env.Content)

		case collab.MsgUndo:
			if content, ok := sess.Undo(); ok {
				h.sendSnapshot(c, content)
			}

		case collab.MsgRedo:
			if content, ok := sess.Redo(); ok {
				h.sendSnapshot(c, content)
			}

		case collab.MsgCursor:
			if env.Cursor != nil {
				sess.UpdateCursor(env.Cursor.Line, env.Cursor.Col)
			}

		case collab.MsgPing:
			c.Send <- []byte(`{"type":"pong"}`)

		default:
			log.Printf("Unknown message type from %s: %q", c.ID, env.Type)
		}
	}
}

// sendSnapshot pushes authoritative content back to the socket that
// asked for it (undo/redo responses). Peers learn about the change
// through the session's own broadcast.
func (h *Handlers) sendSnapshot(c *collab.Client, content string) {
	payload, err := json.Marshal(collab.Envelope{
		Type:      collab.MsgSnapshot,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	select {
	case c.Send <- payload:
	default:
	}
}

// writePump handles writing messages to the WebSocket.
func (h *Handlers) writePump(c *collab.Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		// Ensure the client is unregistered and that the connection is closed
		select {
		case c.Room.Unregister <- c:
		default:
		}
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// channel closed: send close and return
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error for %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// GetRoomUsers returns the presence roster of an open document. A
// document nobody has open simply has an empty roster; no room is
// created for asking.
func (h *Handlers) GetRoomUsers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	documentID := vars["documentId"]

	if _, err := h.docs.Get(documentID); err != nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	users := []collab.Presence{}
	if room, ok := h.roomManager.Lookup(documentID); ok {
		users = room.Roster()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"documentId": documentID,
		"users":      users,
	})
}
