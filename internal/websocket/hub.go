package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"contract-ledger/internal/event"
)

// SnapshotFunc returns the payload a newly connected view receives first.
type SnapshotFunc func() any

type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Event bus to listen for events
	bus event.Bus

	snapshot SnapshotFunc

	// closed when Run returns
	done chan struct{}
}

func NewHub(bus event.Bus, snapshot SnapshotFunc) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		bus:        bus,
		snapshot:   snapshot,
		done:       make(chan struct{}),
	}
}

// Run fans bus events out to every client until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)

	defer func() {
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
			h.sendSnapshot(client)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			message, err := json.Marshal(e)
			if err != nil {
				slog.Error("failed to marshal event", "component", "hub", "error", err)
				continue
			}
			for client := range h.clients {
				h.deliver(client, message)
			}
		}
	}
}

func (h *Hub) sendSnapshot(client *Client) {
	if h.snapshot == nil {
		return
	}

	message, err := json.Marshal(event.Event{
		ID:        uuid.NewString(),
		Type:      TypeSnapshot,
		Payload:   h.snapshot(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		slog.Error("failed to marshal snapshot", "component", "hub", "error", err)
		return
	}
	h.deliver(client, message)
}

// deliver drops a client whose buffer is full rather than stall the hub.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		close(client.send)
		delete(h.clients, client)
	}
}
