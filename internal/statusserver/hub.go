package statusserver

import "github.com/ct-watchtower/watchtower/internal/model"

// Hub fans match records out to every connected websocket client, mirroring
// the certstream broadcast-channel idiom this project's pipeline is built on.
type Hub struct {
	Broadcast  chan model.MatchRecord
	register   chan *client
	unregister chan *client
	clients    map[*client]struct{}
}

// NewHub creates a Hub. Call Run in its own goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan model.MatchRecord, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]struct{}),
	}
}

// Run drains registrations and broadcasts until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case rec := <-h.Broadcast:
			for c := range h.clients {
				select {
				case c.send <- rec:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
		case <-stop:
			return
		}
	}
}

type client struct {
	send chan model.MatchRecord
}
