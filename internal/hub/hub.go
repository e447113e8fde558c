// Package hub fans job lifecycle events out to the live subscribers of a
// session. Delivery is best-effort: there is no history, no replay, and a
// session without subscribers simply drops its events.
package hub

import (
	"context"

	"github.com/rs/zerolog"

	"mediagrab/internal/domain"
)

// Conn is one live subscriber connection. The hub only ever pushes to it;
// it never assumes the connection outlives the session.
type Conn interface {
	WriteJSON(v any) error
}

type envelope struct {
	sessionID string
	event     domain.Event
}

// Hub maps session ids to subscriber sets. Publishes flow through a bounded
// channel drained by a single dispatcher goroutine, so a burst of progress
// ticks applies backpressure instead of spawning unbounded work.
type Hub struct {
	subs   chan func(map[string][]Conn)
	events chan envelope
	done   chan struct{}
	logger zerolog.Logger
}

// New creates a hub whose publish channel holds up to buffer events.
func New(buffer int, logger zerolog.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(chan func(map[string][]Conn)),
		events: make(chan envelope, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run owns the subscriber map and drains the event channel until ctx is
// done. All map mutation happens here; Subscribe, Unsubscribe and Publish
// only hand work to this loop, and once Run returns they become no-ops
// instead of blocking senders that outlive the dispatcher.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	registry := make(map[string][]Conn)
	for {
		select {
		case <-ctx.Done():
			return
		case mutate := <-h.subs:
			mutate(registry)
		case env := <-h.events:
			h.broadcast(registry, env)
		}
	}
}

// Subscribe registers conn under sessionID.
func (h *Hub) Subscribe(sessionID string, conn Conn) {
	select {
	case h.subs <- func(registry map[string][]Conn) {
		registry[sessionID] = append(registry[sessionID], conn)
	}:
	case <-h.done:
	}
}

// Unsubscribe removes conn from sessionID's subscriber set. Unknown
// connections are ignored.
func (h *Hub) Unsubscribe(sessionID string, conn Conn) {
	select {
	case h.subs <- func(registry map[string][]Conn) {
		registry[sessionID] = removeConn(registry[sessionID], conn)
		if len(registry[sessionID]) == 0 {
			delete(registry, sessionID)
		}
	}:
	case <-h.done:
	}
}

// Publish queues an event for delivery to every subscriber of sessionID.
// It never reports delivery failures back to the caller.
func (h *Hub) Publish(sessionID string, event domain.Event) {
	select {
	case h.events <- envelope{sessionID: sessionID, event: event}:
	case <-h.done:
	}
}

func (h *Hub) broadcast(registry map[string][]Conn, env envelope) {
	conns := registry[env.sessionID]
	if len(conns) == 0 {
		return
	}
	alive := conns[:0]
	for _, conn := range conns {
		if err := conn.WriteJSON(env.event); err != nil {
			h.logger.Debug().Err(err).Str("session_id", env.sessionID).Msg("hub: pruning dead subscriber")
			continue
		}
		alive = append(alive, conn)
	}
	if len(alive) == 0 {
		delete(registry, env.sessionID)
		return
	}
	registry[env.sessionID] = alive
}

func removeConn(conns []Conn, target Conn) []Conn {
	for i, c := range conns {
		if c == target {
			return append(conns[:i], conns[i+1:]...)
		}
	}
	return conns
}
