package websocket

import "sync"

// Hub tracks the connections open on this process so they can be counted
// and closed together on shutdown. Fan-out itself is the event bus's job.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*WSClient
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*WSClient)}
}

func (h *Hub) register(cl *WSClient) {
	h.mu.Lock()
	h.clients[cl.ID] = cl
	h.mu.Unlock()
	incConnections(cl.Kind)
}

func (h *Hub) unregister(cl *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[cl.ID]
	delete(h.clients, cl.ID)
	h.mu.Unlock()
	if ok {
		decConnections(cl.Kind)
	}
}

// Count returns the open connections of kind, or of every kind when kind is empty.
func (h *Hub) Count(kind Kind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if kind == "" {
		return len(h.clients)
	}
	n := 0
	for _, cl := range h.clients {
		if cl.Kind == kind {
			n++
		}
	}
	return n
}

// CloseAll disconnects every client. Each client's own cleanup unregisters it.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*WSClient, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	for _, cl := range clients {
		cl.close()
	}
}
