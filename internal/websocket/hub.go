// Package websocket delivers live inbox updates to subscribed clients.
// The hub is the fire-and-forget broadcast channel the messaging core
// publishes to; nothing in routing or counting waits on it.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeUnreadCount MessageType = "unread_count"
	MessageTypeNewMessage  MessageType = "new_message"
	MessageTypeMessageRead MessageType = "message_read"
	MessageTypeError       MessageType = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    MessageType `json:"type"`
	InboxID uint        `json:"inbox_id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// UnreadCountPayload carries a changed unread counter
type UnreadCountPayload struct {
	InboxID uint  `json:"inbox_id"`
	Count   int64 `json:"count"`
}

// MessagePayload carries a per-message display update
type MessagePayload struct {
	MessageID uint   `json:"message_id"`
	InboxID   uint   `json:"inbox_id"`
	Kind      string `json:"kind"`
}

// Hub maintains the set of active clients and broadcasts inbox updates
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Inbox subscriptions: inboxID -> set of clients
	subscriptions map[uint]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Subscribe to inbox
	subscribe chan *subscriptionRequest

	// Unsubscribe from inbox
	unsubscribeInbox chan *subscriptionRequest

	// Broadcast to inbox subscribers
	broadcast chan *broadcastMessage

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger
}

type subscriptionRequest struct {
	client  *Client
	inboxID uint
}

type broadcastMessage struct {
	inboxID uint
	message []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:          make(map[*Client]bool),
		subscriptions:    make(map[uint]map[*Client]bool),
		register:         make(chan *Client),
		unregister:       make(chan *Client),
		subscribe:        make(chan *subscriptionRequest),
		unsubscribeInbox: make(chan *subscriptionRequest),
		broadcast:        make(chan *broadcastMessage, 256),
		logger:           logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client registered")
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				// Remove from all subscriptions
				for inboxID, subscribers := range h.subscriptions {
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.subscriptions, inboxID)
					}
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unregistered")
			}

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.subscriptions[req.inboxID] == nil {
				h.subscriptions[req.inboxID] = make(map[*Client]bool)
			}
			h.subscriptions[req.inboxID][req.client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client subscribed to inbox", slog.Uint64("inbox_id", uint64(req.inboxID)))
			}

		case req := <-h.unsubscribeInbox:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.inboxID]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.inboxID)
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unsubscribed from inbox", slog.Uint64("inbox_id", uint64(req.inboxID)))
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			subscribers := h.subscriptions[msg.inboxID]
			for client := range subscribers {
				select {
				case client.send <- msg.message:
				default:
					// Client buffer full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe subscribes a client to an inbox
func (h *Hub) Subscribe(client *Client, inboxID uint) {
	h.subscribe <- &subscriptionRequest{client: client, inboxID: inboxID}
}

// Unsubscribe unsubscribes a client from an inbox
func (h *Hub) Unsubscribe(client *Client, inboxID uint) {
	h.unsubscribeInbox <- &subscriptionRequest{client: client, inboxID: inboxID}
}

// BroadcastUnreadCount publishes a changed unread count to inbox subscribers
func (h *Hub) BroadcastUnreadCount(inboxID uint, count int64) {
	h.publish(inboxID, WSMessage{
		Type:    MessageTypeUnreadCount,
		InboxID: inboxID,
		Payload: &UnreadCountPayload{InboxID: inboxID, Count: count},
	})
}

// BroadcastMessageEvent publishes a per-message display update. kind is
// "new" for arrivals and "read" for read-state changes.
func (h *Hub) BroadcastMessageEvent(inboxID, messageID uint, kind string) {
	msgType := MessageTypeNewMessage
	if kind == "read" {
		msgType = MessageTypeMessageRead
	}
	h.publish(inboxID, WSMessage{
		Type:    msgType,
		InboxID: inboxID,
		Payload: &MessagePayload{MessageID: messageID, InboxID: inboxID, Kind: kind},
	})
}

func (h *Hub) publish(inboxID uint, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		}
		return
	}

	h.broadcast <- &broadcastMessage{
		inboxID: inboxID,
		message: data,
	}
}
