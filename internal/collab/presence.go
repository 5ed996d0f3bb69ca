package collab

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
)

// PresenceManager tracks each user's cursor and selection in a room.
type PresenceManager struct {
	mu        sync.RWMutex
	presences map[string]*PresencePayload // userID -> presence
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

func (pm *PresenceManager) Update(userID string, p *PresencePayload) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.presences[userID] = p
}

func (pm *PresenceManager) Remove(userID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.presences, userID)
}

// DropObject removes a deleted object from every user's selection and
// returns the users whose selection changed.
func (pm *PresenceManager) DropObject(objectID string) []string {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var changed []string
	for userID, p := range pm.presences {
		if !slices.Contains(p.Selection, objectID) {
			continue
		}
		next := *p
		next.Selection = slices.DeleteFunc(slices.Clone(p.Selection), func(id string) bool { return id == objectID })
		pm.presences[userID] = &next
		changed = append(changed, userID)
	}
	slices.Sort(changed)
	return changed
}

func (pm *PresenceManager) Get(userID string) (*PresencePayload, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.presences[userID]
	return p, ok
}

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	result := make(map[string]*PresencePayload, len(pm.presences))
	for k, v := range pm.presences {
		result[k] = v
	}
	return result
}

func (pm *PresenceManager) StateMessage() *Message {
	payload, err := json.Marshal(PresenceStatePayload{Presences: pm.GetAll()})
	if err != nil {
		slog.Error("marshal presence state", "error", err)
		return nil
	}
	return &Message{
		Type:    TypePresenceState,
		Payload: payload,
	}
}
