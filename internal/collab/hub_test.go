package collab

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teeforge/customizer/internal/document"
	"github.com/teeforge/customizer/internal/geometry"
	"github.com/teeforge/customizer/internal/printarea"
	"github.com/teeforge/customizer/internal/typeid"
)

func testLoader(context.Context, string) (*document.Design, printarea.Resolver, error) {
	d := &document.Design{
		Canvas: document.CanvasInfo{Width: 600, Height: 600},
		Objects: []*document.Object{
			document.NewObject("shirt", document.KindBase, 0, 0, 600, 600),
			document.NewObject("logo", document.KindImage, 200, 200, 100, 100),
		},
	}
	return d, printarea.StaticResolver(roomArea), nil
}

func newTestHub() *Hub {
	return NewHub(testLoader, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func join(h *Hub, userID, clientID string) *Client {
	c := NewClient(h, nil, userID, userID, "room1", clientID)
	h.addClient(c)
	return c
}

// drain returns every queued message.
func drain(t *testing.T, c *Client) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var m Message
			require.NoError(t, json.Unmarshal(data, &m))
			out = append(out, m)
		default:
			return out
		}
	}
}

func types(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func submit(t *testing.T, h *Hub, c *Client, op Operation) {
	t.Helper()
	payload, err := json.Marshal(OperationSubmitPayload{Operation: op})
	require.NoError(t, err)
	h.handleMessage(c, &Message{Type: TypeOpSubmit, Payload: payload})
}

func TestHub_JoinSendsWelcomeAndSync(t *testing.T) {
	h := newTestHub()

	a := join(h, "alice", "c1")
	msgs := drain(t, a)
	require.Equal(t, []string{TypeWelcome, TypeDesignSync, TypePresenceState}, types(msgs))

	var sync DesignSyncPayload
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &sync))
	assert.Equal(t, roomArea, sync.PrintArea)
	assert.Len(t, sync.Design.Objects, 2)

	b := join(h, "bob", "c2")
	drain(t, b)
	assert.Equal(t, []string{TypePresenceJoin}, types(drain(t, a)))
}

func TestHub_OpSubmitAcksCorrectedAndBroadcasts(t *testing.T) {
	h := newTestHub()
	a := join(h, "alice", "c1")
	b := join(h, "bob", "c2")
	drain(t, a)
	drain(t, b)

	submit(t, h, a, transformOp("op1", "logo", `{"left":-300,"top":250}`))

	ackMsgs := drain(t, a)
	require.Equal(t, []string{TypeOpAck}, types(ackMsgs))
	var ack OperationAckPayload
	require.NoError(t, json.Unmarshal(ackMsgs[0].Payload, &ack))
	assert.Equal(t, "op1", ack.OperationID)
	assert.Equal(t, int64(1), ack.ServerSeq)
	assert.True(t, ack.Corrected)
	require.NotNil(t, ack.Transform)
	assert.Equal(t, 100.0, ack.Transform.Left)

	bMsgs := drain(t, b)
	require.Equal(t, []string{TypeOpBroadcast}, types(bMsgs))
	var bc OperationBroadcastPayload
	require.NoError(t, json.Unmarshal(bMsgs[0].Payload, &bc))
	assert.Equal(t, "alice", bc.UserID)
	assert.JSONEq(t, `{"left":100,"top":250,"scaleX":1,"scaleY":1,"angle":0}`, string(bc.Operation.Transform))
}

func TestHub_OpSubmitAssignsMissingID(t *testing.T) {
	h := newTestHub()
	a := join(h, "alice", "c1")
	b := join(h, "bob", "c2")
	drain(t, a)
	drain(t, b)

	submit(t, h, a, transformOp("", "logo", `{"left":150}`))

	msgs := drain(t, a)
	require.Equal(t, []string{TypeOpAck}, types(msgs))
	var ack OperationAckPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &ack))
	assert.NoError(t, typeid.Validate(ack.OperationID, typeid.PrefixOp))

	bMsgs := drain(t, b)
	require.Len(t, bMsgs, 1)
	var bc OperationBroadcastPayload
	require.NoError(t, json.Unmarshal(bMsgs[0].Payload, &bc))
	assert.Equal(t, ack.OperationID, bc.Operation.ID)
}

func TestHub_OpSubmitNacksBaseProduct(t *testing.T) {
	h := newTestHub()
	a := join(h, "alice", "c1")
	b := join(h, "bob", "c2")
	drain(t, a)
	drain(t, b)

	submit(t, h, a, transformOp("op1", "shirt", `{"left":10}`))

	msgs := drain(t, a)
	require.Equal(t, []string{TypeOpNack}, types(msgs))
	var nack OperationNackPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &nack))
	assert.Equal(t, "object is not editable", nack.Reason)
	assert.Empty(t, drain(t, b))
}

func TestHub_DeletePrunesSelections(t *testing.T) {
	h := newTestHub()
	a := join(h, "alice", "c1")
	b := join(h, "bob", "c2")

	presence, _ := json.Marshal(PresencePayload{Selection: []string{"logo"}})
	h.handleMessage(b, &Message{Type: TypePresenceUpdate, Payload: presence})
	drain(t, a)
	drain(t, b)

	submit(t, h, a, Operation{ID: "op1", Type: OpObjectDelete, ObjectID: "logo"})

	aMsgs := drain(t, a)
	assert.Equal(t, []string{TypeOpAck, TypePresenceUpdate}, types(aMsgs))
	var p PresencePayload
	require.NoError(t, json.Unmarshal(aMsgs[1].Payload, &p))
	assert.Empty(t, p.Selection)
	assert.Equal(t, "bob", aMsgs[1].UserID)
}

func TestHub_LeaveRemovesEmptyRoom(t *testing.T) {
	h := newTestHub()
	a := join(h, "alice", "c1")
	b := join(h, "bob", "c2")
	drain(t, b)

	h.removeClient(a)
	h.removeClient(a)
	assert.Equal(t, []string{TypePresenceLeave}, types(drain(t, b)))

	h.removeClient(b)
	_, ok := h.Room("room1")
	assert.False(t, ok)

	// Sending after leaving is a no-op rather than a panic.
	b.Send(&Message{Type: TypeError})
}

func TestHub_LoadFailure(t *testing.T) {
	h := NewHub(func(context.Context, string) (*document.Design, printarea.Resolver, error) {
		return nil, nil, errors.New("db down")
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	c := join(h, "alice", "c1")

	assert.Equal(t, []string{TypeError}, types(drain(t, c)))
	_, ok := h.Room("room1")
	assert.False(t, ok)
}

func TestHub_Stop(t *testing.T) {
	h := newTestHub()
	c := join(h, "alice", "c1")
	drain(t, c)

	h.Stop()
	h.Stop()

	_, open := <-c.send
	assert.False(t, open)
	h.Register(NewClient(h, nil, "late", "late", "room1", "c9"))
}

func TestPresenceManager_DropObject(t *testing.T) {
	pm := NewPresenceManager()
	pm.Update("a", &PresencePayload{Selection: []string{"x", "y"}})
	pm.Update("b", &PresencePayload{Selection: []string{"y"}})
	pm.Update("c", &PresencePayload{})

	changed := pm.DropObject("y")

	assert.Equal(t, []string{"a", "b"}, changed)
	got, _ := pm.Get("a")
	assert.Equal(t, []string{"x"}, got.Selection)
	assert.Nil(t, pm.DropObject("zzz"))
}

func TestHub_SlowLoadDoesNotBlockOtherRooms(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := NewHub(func(ctx context.Context, roomID string) (*document.Design, printarea.Resolver, error) {
		if roomID == "slow" {
			close(started)
			<-release
		}
		return testLoader(ctx, roomID)
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	a := join(h, "alice", "c1")
	drain(t, a)

	joined := make(chan struct{})
	go func() {
		h.addClient(NewClient(h, nil, "bob", "bob", "slow", "c2"))
		close(joined)
	}()
	<-started

	done := make(chan struct{})
	go func() {
		h.broadcastToRoom("room1", &Message{Type: TypePresenceLeave}, "")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast waited on another room's load")
	}
	assert.Equal(t, []string{TypePresenceLeave}, types(drain(t, a)))

	close(release)
	<-joined
	_, ok := h.Room("slow")
	assert.True(t, ok)
}

func TestHub_UpdatePrintAreaResyncsRoom(t *testing.T) {
	h := newTestHub()
	a := join(h, "alice", "c1")
	b := join(h, "bob", "c2")
	drain(t, a)
	drain(t, b)

	area := geometry.Rect{X: 300, Y: 300, Width: 150, Height: 150}
	assert.True(t, h.UpdatePrintArea("room1", &area, nil))
	assert.False(t, h.UpdatePrintArea("elsewhere", &area, nil))

	for _, c := range []*Client{a, b} {
		msgs := drain(t, c)
		require.Equal(t, []string{TypeDesignSync}, types(msgs))
		var sync DesignSyncPayload
		require.NoError(t, json.Unmarshal(msgs[0].Payload, &sync))
		assert.Equal(t, area, sync.PrintArea)
		require.NotNil(t, sync.Design.PrintArea)
		assert.Equal(t, area, *sync.Design.PrintArea)
	}

	room, ok := h.Room("room1")
	require.True(t, ok)
	logo, ok := room.state.Object("logo")
	require.True(t, ok)
	assert.Equal(t, 300.0, logo.Left)
	assert.Equal(t, 300.0, logo.Top)

	// Later operations are held to the new area.
	submit(t, h, a, transformOp("op1", "logo", `{"left":100}`))
	var ack OperationAckPayload
	msgs := drain(t, a)
	require.Equal(t, []string{TypeOpAck}, types(msgs))
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &ack))
	assert.True(t, ack.Corrected)
	assert.Equal(t, 300.0, ack.Transform.Left)
}
