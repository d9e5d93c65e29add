// Package session implements the persistent, framed bidirectional
// connections clients hold open against the server (C9): a topic registry
// for fan-out, and a per-connection read/write pump pair.
package session

import (
	"log"
	"sync"
	"time"
)

// staleTimeout is how long a session may go without a client-originated
// message or pong before the reaper drops it.
const staleTimeout = 5 * time.Minute

// reapInterval is how often the reaper scans for stale sessions.
const reapInterval = 30 * time.Second

type broadcastMessage struct {
	Topic   string
	Message []byte
	Sender  *Session
}

// Registry tracks which sessions are joined to which topic and fans
// broadcasts out to them. Register, unregister and broadcast are handled
// on the single loop goroutine started by Start, but the reaper and
// Shutdown also mutate the topic map from their own goroutines, so every
// mutation takes the write lock and every snapshot the read lock.
type Registry struct {
	topics map[string]map[*Session]struct{}
	mu     sync.RWMutex

	register   chan *Session
	unregister chan *Session
	broadcast  chan *broadcastMessage
	done       chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		topics:     make(map[string]map[*Session]struct{}),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		broadcast:  make(chan *broadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Start launches the registry's event loop and stale-session reaper.
func (r *Registry) Start() {
	go func() {
		for {
			select {
			case <-r.done:
				return
			case s := <-r.register:
				r.join(s)
			case s := <-r.unregister:
				r.drop(s)
			case msg := <-r.broadcast:
				r.handleBroadcast(msg)
			}
		}
	}()
	go r.reapLoop()
}

// Broadcast queues message for fan-out to every session on topic other
// than sender. Non-blocking to the caller as long as the broadcast
// channel has room; the channel is deep enough that a slow registry loop
// does not stall message handlers under ordinary load.
func (r *Registry) Broadcast(topic string, message []byte, sender *Session) {
	r.broadcast <- &broadcastMessage{Topic: topic, Message: message, Sender: sender}
}

func (r *Registry) join(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.topics[s.Topic] == nil {
		r.topics[s.Topic] = make(map[*Session]struct{})
	}
	r.topics[s.Topic][s] = struct{}{}
}

// drop removes s from its topic and closes its Send channel, which
// unblocks WritePump. Safe to call more than once for the same session.
func (r *Registry) drop(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessions, ok := r.topics[s.Topic]
	if !ok {
		return
	}
	if _, ok := sessions[s]; !ok {
		return
	}
	delete(sessions, s)
	close(s.Send)
	if len(sessions) == 0 {
		delete(r.topics, s.Topic)
	}
}

func (r *Registry) handleBroadcast(msg *broadcastMessage) {
	r.mu.RLock()
	sessions := r.topics[msg.Topic]
	targets := make([]*Session, 0, len(sessions))
	for s := range sessions {
		if msg.Sender != nil && s == msg.Sender {
			continue
		}
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.Send <- msg.Message:
		default:
			log.Printf("session %s buffer full, disconnecting", s.ID)
			r.drop(s)
		}
	}
}

func (r *Registry) reapLoop() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.reap()
		}
	}
}

func (r *Registry) reap() {
	now := time.Now()
	r.mu.RLock()
	var stale []*Session
	for _, sessions := range r.topics {
		for s := range sessions {
			if now.Sub(s.lastActive()) > staleTimeout {
				stale = append(stale, s)
			}
		}
	}
	r.mu.RUnlock()

	for _, s := range stale {
		log.Printf("reaping inactive session %s", s.ID)
		r.drop(s)
		s.Conn.Close()
	}
}

// Shutdown stops the event loop and drops every session, closing their
// underlying connections.
func (r *Registry) Shutdown() {
	close(r.done)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sessions := range r.topics {
		for s := range sessions {
			close(s.Send)
			s.Conn.Close()
		}
	}
	r.topics = make(map[string]map[*Session]struct{})
}
