package gateway

import "sync"

// Hub tracks live connections and the accounts behind them. Lookups by
// account never scan the full connection set.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	accounts map[int64]map[*Client]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		accounts: make(map[int64]map[*Client]struct{}),
	}
}

// Register adds a connection
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
	if client.AccountID() == 0 {
		return
	}
	connections := h.accounts[client.AccountID()]
	if connections == nil {
		connections = make(map[*Client]struct{})
		h.accounts[client.AccountID()] = connections
	}
	connections[client] = struct{}{}
}

// Unregister removes a connection. It reports whether the connection was
// registered.
func (h *Hub) Unregister(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)

	if connections := h.accounts[client.AccountID()]; connections != nil {
		delete(connections, client)
		if len(connections) == 0 {
			delete(h.accounts, client.AccountID())
		}
	}
	return true
}

// Broadcast queues a message on every connection
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.Enqueue(msg)
	}
}

// SendToAccount queues a message on every connection of an account
func (h *Hub) SendToAccount(accountID int64, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.accounts[accountID] {
		client.Enqueue(msg)
	}
}

// OnlineCount is the number of distinct authenticated accounts connected
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.accounts)
}

// ConnectionCount is the number of open connections, guests included
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
