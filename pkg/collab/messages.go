package collab

// Wire message types exchanged over a document channel.
const (
	MsgInit            = "init"             // client -> server: announce identity
	MsgSnapshot        = "snapshot"         // server -> client: initial document state
	MsgEdit            = "edit"             // client -> server: local typing
	MsgAIEdit          = "ai_edit"          // client -> server: AI tool-call result
	MsgUndo            = "undo"             // client -> server
	MsgRedo            = "redo"             // client -> server
	MsgCursor          = "cursor"           // client -> server: caret moved
	MsgContentChange   = "content_change"   // server -> clients: peer edit
	MsgPresenceSync    = "presence_sync"    // server -> clients: full roster
	MsgDocumentUpdated = "document_updated" // server -> clients: store-level change notification
	MsgPing            = "ping"
	MsgPong            = "pong"
)

// Envelope carries any channel message; unused fields stay zero. A
// single struct keeps decoding one-pass on the hot path.
type Envelope struct {
	Type        string     `json:"type"`
	Content     string     `json:"content,omitempty"`
	UserID      string     `json:"userId,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	Seq         uint64     `json:"seq,omitempty"`
	Timestamp   int64      `json:"timestamp,omitempty"`
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Users       []Presence `json:"users,omitempty"`
	Title       string     `json:"title,omitempty"`
	DocumentID  string     `json:"documentId,omitempty"`
}
