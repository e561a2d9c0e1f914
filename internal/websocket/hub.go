package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event types pushed to connected devices.
const (
	EventLoadCreated   = "LOAD_CREATED"
	EventBankClosed    = "BANK_CLOSED"
	EventLoadClosed    = "LOAD_CLOSED"
	EventSyncCompleted = "SYNC_COMPLETED"
)

// Event is the envelope of every pushed message.
type Event struct {
	Type string      `json:"type"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data,omitempty"`
}

// Hub maintains the set of connected devices and fans events out to them.
// Yard dashboards subscribe to see loads move in real time; field devices
// learn that a sync they pushed has been processed.
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu sync.RWMutex
}

// NewHub creates a hub; call Run on its own goroutine.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[string]*Client),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if client.DeviceID != "" {
				// A reconnecting device replaces its stale session
				if old, ok := h.clients[client.DeviceID]; ok {
					close(old.send)
					delete(h.clients, client.DeviceID)
				}
				h.clients[client.DeviceID] = client
				log.Printf("Device connected: %s", client.DeviceID)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if client.DeviceID != "" {
				if _, ok := h.clients[client.DeviceID]; ok {
					delete(h.clients, client.DeviceID)
					close(client.send)
					log.Printf("Device disconnected: %s", client.DeviceID)
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop the message for it
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast pushes an event to every connected client. Marshal errors are
// logged and the event dropped; lifecycle operations never fail on push
// problems.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	msg, err := json.Marshal(Event{Type: eventType, At: time.Now(), Data: data})
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", eventType, err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("Broadcast queue full, dropping %s event", eventType)
	}
}

// SendToDevice sends a message to one device. Returns false when the device
// is not connected or its buffer is full.
func (h *Hub) SendToDevice(deviceID string, message interface{}) bool {
	h.mu.RLock()
	client, ok := h.clients[deviceID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return false
	}

	select {
	case client.send <- jsonMsg:
		return true
	default:
		return false
	}
}
