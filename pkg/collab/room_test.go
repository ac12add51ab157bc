package collab_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftpad/pkg/collab"
	"draftpad/pkg/store"
)

func newTestRoom(t *testing.T) (*collab.RoomManager, *collab.Room, string) {
	t.Helper()

	docs := store.NewMemoryStore()
	doc, err := docs.Create("owner-1", "Test Doc")
	require.NoError(t, err)

	rm := collab.NewRoomManager(docs)
	room, err := rm.GetOrCreateRoom(doc.ID)
	require.NoError(t, err)

	return rm, room, doc.ID
}

func joinClient(t *testing.T, room *collab.Room, id, userID string) *collab.Client {
	t.Helper()

	client := &collab.Client{
		ID:          id,
		UserID:      userID,
		DisplayName: userID,
		Room:        room,
		Send:        make(chan []byte, 16),
		JoinedAt:    time.Now(),
	}
	require.True(t, room.Join(client))

	// First message on join is the document snapshot.
	env := recvEnvelope(t, client)
	require.Equal(t, collab.MsgSnapshot, env.Type)
	return client
}

func recvEnvelope(t *testing.T, c *collab.Client) collab.Envelope {
	t.Helper()
	select {
	case data := <-c.Send:
		var env collab.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return collab.Envelope{}
	}
}

func drainUntil(t *testing.T, c *collab.Client, msgType string) collab.Envelope {
	t.Helper()
	for i := 0; i < 10; i++ {
		env := recvEnvelope(t, c)
		if env.Type == msgType {
			return env
		}
	}
	t.Fatalf("no %s message received", msgType)
	return collab.Envelope{}
}

func TestRoomUnknownDocument(t *testing.T) {
	rm := collab.NewRoomManager(store.NewMemoryStore())
	_, err := rm.GetOrCreateRoom("missing")
	assert.Error(t, err)
}

func TestRoomSnapshotOnJoin(t *testing.T) {
	_, room, docID := newTestRoom(t)

	client := &collab.Client{
		ID: "c1", UserID: "u1", DisplayName: "Alice",
		Room: room, Send: make(chan []byte, 16), JoinedAt: time.Now(),
	}
	room.Register <- client

	env := recvEnvelope(t, client)
	assert.Equal(t, collab.MsgSnapshot, env.Type)
	assert.Equal(t, docID, env.DocumentID)
	assert.Equal(t, "Test Doc", env.Title)
}

func TestRoomContentChangeExcludesSender(t *testing.T) {
	_, room, _ := newTestRoom(t)

	alice := joinClient(t, room, "c1", "u-alice")
	bob := joinClient(t, room, "c2", "u-bob")

	// Swallow the presence churn from joins.
	drainUntil(t, alice, collab.MsgPresenceSync)
	drainUntil(t, bob, collab.MsgPresenceSync)

	room.BroadcastContentChange("new content", "u-alice", 7, "c1")

	env := drainUntil(t, bob, collab.MsgContentChange)
	assert.Equal(t, "new content", env.Content)
	assert.Equal(t, "u-alice", env.UserID)
	assert.Equal(t, uint64(7), env.Seq)

	// The sender must not receive its own broadcast.
	select {
	case data := <-alice.Send:
		var got collab.Envelope
		require.NoError(t, json.Unmarshal(data, &got))
		assert.NotEqual(t, collab.MsgContentChange, got.Type)
	default:
	}

	assert.Equal(t, "new content", room.Content())
}

func TestRoomPresenceRosterAndColors(t *testing.T) {
	_, room, _ := newTestRoom(t)

	alice := joinClient(t, room, "c1", "u-alice")
	time.Sleep(5 * time.Millisecond) // distinct join times
	joinClient(t, room, "c2", "u-bob")

	env := drainUntil(t, alice, collab.MsgPresenceSync)
	for env.Users == nil || len(env.Users) < 2 {
		env = drainUntil(t, alice, collab.MsgPresenceSync)
	}

	require.Len(t, env.Users, 2)
	assert.Equal(t, "u-alice", env.Users[0].UserID)
	assert.Equal(t, collab.Palette[0], env.Users[0].Color)
	assert.Equal(t, "u-bob", env.Users[1].UserID)
	assert.Equal(t, collab.Palette[1], env.Users[1].Color)
}

func TestRoomRosterExcluding(t *testing.T) {
	_, room, _ := newTestRoom(t)

	joinClient(t, room, "c1", "u-alice")
	joinClient(t, room, "c2", "u-bob")

	others := room.RosterExcluding("u-alice")
	require.Len(t, others, 1)
	assert.Equal(t, "u-bob", others[0].UserID)
}

func TestRoomCursorUpdate(t *testing.T) {
	_, room, _ := newTestRoom(t)

	alice := joinClient(t, room, "c1", "u-alice")
	room.UpdateCursor("u-alice", 3, 14)

	env := drainUntil(t, alice, collab.MsgPresenceSync)
	for env.Users[0].Cursor == nil {
		env = drainUntil(t, alice, collab.MsgPresenceSync)
	}
	assert.Equal(t, 3, env.Users[0].Cursor.Line)
	assert.Equal(t, 14, env.Users[0].Cursor.Col)
}

func TestRoomUnregisterClearsPresence(t *testing.T) {
	_, room, _ := newTestRoom(t)

	alice := joinClient(t, room, "c1", "u-alice")
	bob := joinClient(t, room, "c2", "u-bob")
	drainUntil(t, alice, collab.MsgPresenceSync)

	room.Unregister <- bob

	// Wait for the roster to shrink.
	deadline := time.Now().Add(time.Second)
	for len(room.Roster()) > 1 {
		if time.Now().After(deadline) {
			t.Fatal("presence was not cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}

	roster := room.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, "u-alice", roster[0].UserID)
}

func TestRoomDocumentUpdatedBroadcast(t *testing.T) {
	_, room, _ := newTestRoom(t)

	alice := joinClient(t, room, "c1", "u-alice")
	room.BroadcastDocumentUpdated("restored content")

	env := drainUntil(t, alice, collab.MsgDocumentUpdated)
	assert.Equal(t, "restored content", env.Content)
}

func TestRoomClosesWhenLastClientLeaves(t *testing.T) {
	rm, room, docID := newTestRoom(t)

	alice := joinClient(t, room, "c1", "u-alice")
	room.Unregister <- alice

	select {
	case <-room.Done():
	case <-time.After(time.Second):
		t.Fatal("room loop kept running after the last client left")
	}

	_, ok := rm.Lookup(docID)
	assert.False(t, ok)

	// A join against the dead instance fails instead of hanging; the
	// caller is expected to fetch a fresh room.
	late := &collab.Client{ID: "c2", UserID: "u-bob", Send: make(chan []byte, 16), JoinedAt: time.Now()}
	assert.False(t, room.Join(late))

	fresh, err := rm.GetOrCreateRoom(docID)
	require.NoError(t, err)
	assert.True(t, fresh.Join(late))
}

func TestCloseRoomStopsLoop(t *testing.T) {
	rm, room, docID := newTestRoom(t)

	rm.CloseRoom(docID)

	select {
	case <-room.Done():
	case <-time.After(time.Second):
		t.Fatal("room loop kept running after CloseRoom")
	}
	_, ok := rm.Lookup(docID)
	assert.False(t, ok)
}

func TestBackoffBounded(t *testing.T) {
	b := collab.Backoff{Min: 100 * time.Millisecond, Max: time.Second}

	assert.Equal(t, 100*time.Millisecond, b.Next())
	assert.Equal(t, 200*time.Millisecond, b.Next())
	assert.Equal(t, 400*time.Millisecond, b.Next())
	assert.Equal(t, 800*time.Millisecond, b.Next())
	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, time.Second, b.Next())

	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.Next())
}
