package realtime

import (
	"encoding/json"
	"sync"

	"task-board-sync/internal/models"
)

// Event types pushed to subscribers.
const (
	EventTaskCreated         = "task_created"
	EventTaskUpdated         = "task_updated"
	EventTaskDeleted         = "task_deleted"
	EventNotificationCreated = "notification_created"
)

// Event is one message on the wire.
type Event struct {
	Type         string               `json:"type"`
	TaskID       string               `json:"taskId,omitempty"`
	ProjectID    string               `json:"projectId,omitempty"`
	ActorUserID  string               `json:"actorUserId,omitempty"`
	Task         *models.Task         `json:"task,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
	Version      int                  `json:"version"`
}

// ProjectTopic carries every task change of a project.
func ProjectTopic(projectID string) string { return "project:" + projectID }

// UserTopic carries the notifications of one recipient.
func UserTopic(userID string) string { return "user:" + userID }

// Client represents a single websocket client connection.
// The network conn itself is managed in the ws handler.
type Client interface {
	Send(message []byte) bool
	Close()
}

// Hub maintains active connections per topic and broadcasts events to them.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[Client]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[Client]struct{})}
}

var hubInstance *Hub
var once sync.Once

// GetHub returns the process-wide hub.
func GetHub() *Hub {
	once.Do(func() {
		hubInstance = NewHub()
	})
	return hubInstance
}

// Register adds a client under every topic given.
func (h *Hub) Register(client Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		if _, ok := h.topics[topic]; !ok {
			h.topics[topic] = make(map[Client]struct{})
		}
		h.topics[topic][client] = struct{}{}
	}
}

// Unregister removes a client from every topic; empty topics are dropped.
func (h *Hub) Unregister(client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, clients := range h.topics {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Subscribers is the number of clients on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Broadcast sends a raw message to all clients of a topic and returns how
// many accepted it. Failed clients are cleaned up by their handler.
func (h *Hub) Broadcast(topic string, message []byte) int {
	h.mu.RLock()
	clients := make([]Client, 0, len(h.topics[topic]))
	for c := range h.topics[topic] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.Send(message) {
			sent++
		}
	}
	return sent
}

// Publish encodes ev and broadcasts it on topic.
func (h *Hub) Publish(topic string, ev Event) error {
	if ev.Version == 0 {
		ev.Version = 1
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.Broadcast(topic, data)
	return nil
}
