package collab

import (
	"encoding/json"

	"github.com/teeforge/customizer/internal/document"
	"github.com/teeforge/customizer/internal/geometry"
)

type Message struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Selection   []string   `json:"selection,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

// WelcomePayload tells a new client who it is.
type WelcomePayload struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
}

// DesignSyncPayload carries the room's current design and the print area
// the server enforces.
type DesignSyncPayload struct {
	Design    *document.Design `json:"design"`
	PrintArea geometry.Rect    `json:"printArea"`
	ServerSeq int64            `json:"serverSeq"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Design sync
	TypeDesignSync = "design.sync"

	// Operation message types
	TypeOpSubmit    = "op.submit"
	TypeOpAck       = "op.ack"
	TypeOpNack      = "op.nack"
	TypeOpBroadcast = "op.broadcast"
)

// Operation kinds
const (
	OpObjectTransform = "object.transform"
	OpObjectCreate    = "object.create"
	OpObjectDelete    = "object.delete"
)

// Operation is one client edit to the room's design.
type Operation struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	ClientSeq int64  `json:"clientSeq"`
	ObjectID  string `json:"objectId,omitempty"`

	// For object.transform: any of left, top, scaleX, scaleY, angle.
	Transform json.RawMessage `json:"transform,omitempty"`
	Previous  json.RawMessage `json:"previous,omitempty"`

	// For object.create
	Object json.RawMessage `json:"object,omitempty"`

	// For object.delete
	PreviousObject json.RawMessage `json:"previousObject,omitempty"`
}

type OperationSubmitPayload struct {
	Operation Operation `json:"operation"`
}

// OperationAckPayload confirms an operation. For transforms and creates,
// Transform is the state the server settled on and Corrected tells the
// sender whether it differs from what was submitted.
type OperationAckPayload struct {
	OperationID     string              `json:"operationId"`
	ServerSeq       int64               `json:"serverSeq"`
	ServerTimestamp int64               `json:"serverTimestamp"`
	Transform       *document.Transform `json:"transform,omitempty"`
	Corrected       bool                `json:"corrected,omitempty"`
}

type OperationNackPayload struct {
	OperationID string `json:"operationId"`
	Reason      string `json:"reason"`
}

// OperationBroadcastPayload relays an accepted operation. For transforms
// the operation's Transform holds the corrected values.
type OperationBroadcastPayload struct {
	Operation Operation `json:"operation"`
	UserID    string    `json:"userId"`
	ServerSeq int64     `json:"serverSeq"`
}
