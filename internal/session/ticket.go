package session

import (
	"context"
	"sync"

	"github.com/okian/presence/internal/domain/model"
)

// Ticket tracks one attempt started by Session.Attempt.
type Ticket struct {
	id   model.AttemptID
	done chan struct{}
	once sync.Once

	outcome    model.Outcome
	superseded bool
}

func newTicket(id model.AttemptID) *Ticket {
	return &Ticket{id: id, done: make(chan struct{})}
}

// ID returns the attempt id.
func (t *Ticket) ID() model.AttemptID { return t.id }

// Done is closed once the attempt has settled or been superseded.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the attempt finishes. It returns ErrSuperseded when the
// attempt's result was discarded.
func (t *Ticket) Wait(ctx context.Context) (model.Outcome, error) {
	select {
	case <-ctx.Done():
		return model.Outcome{}, ctx.Err()
	case <-t.done:
	}
	if t.superseded {
		return model.Outcome{}, ErrSuperseded
	}
	return t.outcome, nil
}

func (t *Ticket) resolve(o model.Outcome, superseded bool) {
	t.once.Do(func() {
		t.outcome = o
		t.superseded = superseded
		close(t.done)
	})
}
