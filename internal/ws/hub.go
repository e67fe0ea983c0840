// Package ws implements the real-time fan-out channel: a hub that owns the
// process-local subscriber state and per-connection clients that pump frames
// in and out. Subscriptions live only as long as the connection; clients must
// rejoin after a reconnect.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	sl "tripchat/internal/lib/logger"
	"tripchat/internal/models"
)

type joinRequest struct {
	client  *Client
	groupID string
}

type publication struct {
	groupID string
	payload []byte
}

// Hub owns the client set and the per-group rooms. All mutations flow through
// the Run loop as discrete events on channels; the mutex only guards the
// map reads done by concurrent senders.
type Hub struct {
	log        *slog.Logger
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	publish    chan publication
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewHub(log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		publish:    make(chan publication),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a new connection to the hub, which starts its pumps.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister drops the connection from the client set and from every room.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Join subscribes the client to the group's room.
func (h *Hub) Join(client *Client, groupID string) {
	select {
	case h.join <- joinRequest{client: client, groupID: groupID}:
	case <-h.ctx.Done():
	}
}

// PublishNewMessage delivers a stored message to every socket currently in
// the group's room. Best-effort, at-most-once: there is no ack and no replay
// for sockets that join later.
func (h *Hub) PublishNewMessage(groupID string, msg models.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to encode message event", sl.Err(err))
		return
	}

	payload, err := json.Marshal(Event{
		Name:    EventNewMessage,
		GroupID: groupID,
		Data:    data,
	})
	if err != nil {
		h.log.Error("failed to encode event frame", sl.Err(err))
		return
	}

	select {
	case h.publish <- publication{groupID: groupID, payload: payload}:
	case <-h.ctx.Done():
	}
}

// Run is the hub's event loop. It must run in its own goroutine; every
// subscription change and publication is serialized through it.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				continue
			}
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case req := <-h.join:
			h.handleJoin(req)

		case pub := <-h.publish:
			h.handlePublish(pub)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.log.Info("socket connected",
		slog.String("addr", client.addr),
		slog.Int("total", clientCount),
	)

	if client.conn == nil {
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}

	delete(h.clients, client)
	client.closed = true

	for groupID, room := range h.rooms {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, groupID)
		}
	}

	clientCount := len(h.clients)
	h.mutex.Unlock()

	close(client.send)

	h.log.Info("socket disconnected",
		slog.String("addr", client.addr),
		slog.Int("total", clientCount),
	)
}

func (h *Hub) handleJoin(req joinRequest) {
	h.mutex.Lock()
	if _, ok := h.clients[req.client]; !ok {
		h.mutex.Unlock()
		return
	}

	room, ok := h.rooms[req.groupID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[req.groupID] = room
	}
	room[req.client] = true
	h.mutex.Unlock()

	h.log.Debug("socket joined group",
		slog.String("addr", req.client.addr),
		slog.String("group_id", req.groupID),
	)
}

func (h *Hub) handlePublish(pub publication) {
	subscribers := h.roomSnapshot(pub.groupID)
	if len(subscribers) == 0 {
		return
	}

	var failed []*Client
	for _, client := range subscribers {
		if !h.safeSend(client, pub.payload) {
			failed = append(failed, client)
		}
	}

	h.dropFailedClients(failed)
}

// roomSnapshot returns the current subscribers of a group's room.
func (h *Hub) roomSnapshot(groupID string) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	room := h.rooms[groupID]
	subscribers := make([]*Client, 0, len(room))
	for client := range room {
		subscribers = append(subscribers, client)
	}
	return subscribers
}

func (h *Hub) safeSend(client *Client, payload []byte) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, ok := h.clients[client]; !ok || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		// Send buffer full: the client is too slow to keep.
		return false
	}
}

func (h *Hub) dropFailedClients(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range failed {
		if _, ok := h.clients[client]; !ok {
			continue
		}

		delete(h.clients, client)
		client.closed = true

		for groupID, room := range h.rooms {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, groupID)
			}
		}

		channelsToClose = append(channelsToClose, client.send)
		h.log.Warn("dropping slow socket", slog.String("addr", client.addr))
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

func (h *Hub) shutdownClients() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				h.log.Debug("error closing client connection", sl.Err(err))
			}
		}
	}

	h.log.Info("closed client connections", slog.Int("count", len(clients)))
}

// Shutdown stops the event loop and waits for client goroutines to finish,
// up to the given timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
