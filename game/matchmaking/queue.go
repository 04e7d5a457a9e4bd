// Package matchmaking pairs identities into games through a single waiting
// slot, or resumes them into the game they already have in progress.
package matchmaking

import (
	"context"
	"log/slog"
	"sync"

	"github.com/wricardo/tictactoe-arena/game/service"
)

// Sessions is the part of the session store the queue needs
type Sessions interface {
	Resume(ctx context.Context, identityID string) (*service.Snapshot, error)
	CreateSession(ctx context.Context, x, o service.Participant) (*service.Game, error)
}

// Queue holds at most one waiting ticket. Join runs the resume check, the slot
// check and session creation as one critical section, so two joiners can never
// both consume the same waiting player.
type Queue struct {
	sessions Sessions
	logger   *slog.Logger

	mu      sync.Mutex
	waiting *service.Ticket
}

// NewQueue creates an empty queue
func NewQueue(sessions Sessions, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{sessions: sessions, logger: logger}
}

// Join resolves a ticket into a resume, a start or a wait directive
func (q *Queue) Join(ctx context.Context, t service.Ticket) (*service.Directive, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	snap, err := q.sessions.Resume(ctx, t.IdentityID)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		if q.waiting != nil && q.waiting.IdentityID == t.IdentityID {
			q.waiting = nil
		}
		return &service.Directive{Kind: service.DirectiveResume, Game: snap.Game, State: snap.State, Second: t}, nil
	}

	switch {
	case q.waiting == nil:
		q.waiting = &t
		q.logger.DebugContext(ctx, "player waiting", "player", t.Name, "conn", t.ConnectionID)
		return &service.Directive{Kind: service.DirectiveWait, First: t}, nil

	case q.waiting.IdentityID == t.IdentityID:
		// Same identity from another connection takes over the slot
		q.waiting = &t
		return &service.Directive{Kind: service.DirectiveWait, First: t}, nil
	}

	first := *q.waiting
	g, err := q.sessions.CreateSession(ctx, first.Participant, t.Participant)
	if err != nil {
		return nil, err
	}
	q.waiting = nil
	return &service.Directive{Kind: service.DirectiveStart, Game: g, First: first, Second: t}, nil
}

// Leave clears the waiting slot if connectionID holds it
func (q *Queue) Leave(connectionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.waiting == nil || q.waiting.ConnectionID != connectionID {
		return false
	}
	q.waiting = nil
	return true
}

// Waiting returns the ticket holding the slot, if any
func (q *Queue) Waiting() (service.Ticket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.waiting == nil {
		return service.Ticket{}, false
	}
	return *q.waiting, true
}
