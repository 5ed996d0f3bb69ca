package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teeforge/customizer/internal/document"
	"github.com/teeforge/customizer/internal/geometry"
	"github.com/teeforge/customizer/internal/printarea"
	"github.com/teeforge/customizer/internal/typeid"
)

const loadTimeout = 5 * time.Second

// Loader fetches the design and print area policy for a room the first
// time someone joins it.
type Loader func(ctx context.Context, roomID string) (*document.Design, printarea.Resolver, error)

// SampleLoader serves every room the built-in sample design under the
// default fractions.
func SampleLoader(context.Context, string) (*document.Design, printarea.Resolver, error) {
	return document.NewSampleDesign(), printarea.DefaultFractions, nil
}

type Room struct {
	id       string
	clients  map[string]*Client // clientID -> client
	presence *PresenceManager
	state    *DesignState
}

func NewRoom(id string, state *DesignState) *Room {
	return &Room{
		id:       id,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
		state:    state,
	}
}

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // roomID -> room
	load       Loader
	logger     *slog.Logger
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHub(load Loader, logger *slog.Logger) *Hub {
	if load == nil {
		load = SampleLoader
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]*Room),
		load:       load,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.done:
			return
		}
	}
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()
		for id, room := range h.rooms {
			for _, c := range room.clients {
				c.closeSend()
			}
			delete(h.rooms, id)
		}
	})
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.closeSend()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Room returns the live room, if anyone is in it.
func (h *Hub) Room(roomID string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[roomID]
	return room, ok
}

func (h *Hub) addClient(client *Client) {
	room, ok := h.Room(client.RoomID)
	if !ok {
		// Load without the hub lock so other rooms keep broadcasting.
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		state, err := h.loadState(ctx, client.RoomID)
		cancel()
		if err != nil {
			h.logger.Error("load room", "room", client.RoomID, "error", err)
			client.Send(errorMessage("could not load design"))
			client.closeSend()
			return
		}
		room = NewRoom(client.RoomID, state)
	}

	h.mu.Lock()
	if existing, ok := h.rooms[client.RoomID]; ok {
		room = existing
	} else {
		h.rooms[client.RoomID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	welcome, _ := json.Marshal(WelcomePayload{ClientID: client.ClientID, UserID: client.UserID})
	client.Send(&Message{Type: TypeWelcome, Payload: welcome})

	snapshot := room.state.Sync()
	syncPayload, _ := json.Marshal(snapshot)
	client.Send(&Message{Type: TypeDesignSync, Seq: snapshot.ServerSeq, Payload: syncPayload})

	// Send current presence state to new client
	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	// Broadcast join to other clients
	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	h.broadcastToRoom(client.RoomID, &Message{
		Type:    TypePresenceJoin,
		UserID:  client.UserID,
		Payload: joinPayload,
	}, client.ClientID)

	h.logger.Info("client joined", "user", client.UserID, "room", client.RoomID)
}

func (h *Hub) loadState(ctx context.Context, roomID string) (*DesignState, error) {
	d, resolver, err := h.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return NewDesignState(d, resolver)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.RoomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room.clients[client.ClientID]; !ok {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.closeSend()
	room.presence.Remove(client.UserID)

	if len(room.clients) == 0 {
		delete(h.rooms, client.RoomID)
	}
	h.mu.Unlock()

	// Broadcast leave to remaining clients
	leavePayload, _ := json.Marshal(PresenceLeavePayload{UserID: client.UserID})
	h.broadcastToRoom(client.RoomID, &Message{
		Type:    TypePresenceLeave,
		UserID:  client.UserID,
		Payload: leavePayload,
	}, "")

	h.logger.Info("client left", "user", client.UserID, "room", client.RoomID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case TypeOpSubmit:
		h.handleOpSubmit(sender, msg)
	default:
		h.logger.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		h.logger.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName

	room, ok := h.Room(sender.RoomID)
	if !ok {
		return
	}

	room.presence.Update(sender.UserID, &presence)

	// Broadcast to other clients in room
	outPayload, _ := json.Marshal(presence)
	h.broadcastToRoom(sender.RoomID, &Message{
		Type:    TypePresenceUpdate,
		UserID:  sender.UserID,
		Payload: outPayload,
	}, sender.ClientID)
}

func (h *Hub) handleOpSubmit(sender *Client, msg *Message) {
	var submit OperationSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		h.logger.Warn("invalid op payload", "error", err, "user", sender.UserID)
		sender.Send(errorMessage("invalid operation payload"))
		return
	}
	op := submit.Operation
	if op.ID == "" {
		op.ID = typeid.NewOpID()
	}

	room, ok := h.Room(sender.RoomID)
	if !ok {
		return
	}

	res, err := room.state.ApplyOperation(op)
	if err != nil {
		h.logger.Debug("operation rejected", "op", op.ID, "type", op.Type, "error", err)
		nack, _ := json.Marshal(OperationNackPayload{OperationID: op.ID, Reason: nackReason(err)})
		sender.Send(&Message{Type: TypeOpNack, Payload: nack})
		return
	}

	if res.Corrected {
		h.logger.Debug("operation corrected to print area", "op", op.ID, "object", res.Applied.ObjectID)
	}

	ack, _ := json.Marshal(OperationAckPayload{
		OperationID:     op.ID,
		ServerSeq:       res.ServerSeq,
		ServerTimestamp: GetServerTimestamp(),
		Transform:       res.Transform,
		Corrected:       res.Corrected,
	})
	sender.Send(&Message{Type: TypeOpAck, Seq: res.ServerSeq, Payload: ack})

	broadcast, _ := json.Marshal(OperationBroadcastPayload{
		Operation: res.Applied,
		UserID:    sender.UserID,
		ServerSeq: res.ServerSeq,
	})
	h.broadcastToRoom(sender.RoomID, &Message{
		Type:    TypeOpBroadcast,
		UserID:  sender.UserID,
		Seq:     res.ServerSeq,
		Payload: broadcast,
	}, sender.ClientID)

	if op.Type == OpObjectDelete {
		h.pruneSelections(room, op.ObjectID)
	}
}

// UpdatePrintArea moves an open room onto a new print area and resyncs
// everyone in it. It reports whether the room was open.
func (h *Hub) UpdatePrintArea(roomID string, explicit *geometry.Rect, resolver printarea.Resolver) bool {
	room, ok := h.Room(roomID)
	if !ok {
		return false
	}

	snapshot := room.state.SetPrintArea(explicit, resolver)
	payload, _ := json.Marshal(snapshot)
	h.broadcastToRoom(roomID, &Message{Type: TypeDesignSync, Seq: snapshot.ServerSeq, Payload: payload}, "")

	h.logger.Info("room print area changed", "room", roomID, "area", snapshot.PrintArea)
	return true
}

// pruneSelections tells the room about selections that lost a deleted
// object.
func (h *Hub) pruneSelections(room *Room, objectID string) {
	for _, userID := range room.presence.DropObject(objectID) {
		p, ok := room.presence.Get(userID)
		if !ok {
			continue
		}
		payload, _ := json.Marshal(p)
		h.broadcastToRoom(room.id, &Message{
			Type:    TypePresenceUpdate,
			UserID:  userID,
			Payload: payload,
		}, "")
	}
}

func nackReason(err error) string {
	switch {
	case errors.Is(err, document.ErrObjectNotFound):
		return "object not found"
	case errors.Is(err, ErrNotEditable):
		return "object is not editable"
	case errors.Is(err, document.ErrDuplicateObject):
		return "object already exists"
	case errors.Is(err, ErrUnknownOperation):
		return "unknown operation"
	default:
		return "invalid operation"
	}
}

func errorMessage(reason string) *Message {
	payload, _ := json.Marshal(map[string]string{"error": reason})
	return &Message{Type: TypeError, Payload: payload}
}

func (h *Hub) broadcastToRoom(roomID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}
