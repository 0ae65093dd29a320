package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"

	"rwa-portfolio/internal/domain"
)

// maxTransitions bounds the transitions of one run:
// Validating, Approving, Submitting, Confirming and a terminal state.
const maxTransitions = 8

// Run is one invest or redeem lifecycle in flight.
type Run struct {
	intent      domain.TransactionIntent
	transitions chan Transition
	cancel      context.CancelFunc
	done        chan struct{}

	mu    sync.Mutex
	state State
	final Transition

	superseded atomic.Bool
}

func newRun(intent domain.TransactionIntent, cancel context.CancelFunc) *Run {
	return &Run{
		intent:      intent,
		transitions: make(chan Transition, maxTransitions),
		cancel:      cancel,
		done:        make(chan struct{}),
		state:       StateIdle,
	}
}

// ID returns the intent ID of the run.
func (r *Run) ID() string { return r.intent.ID }

// Intent returns the intent the run was started for.
func (r *Run) Intent() domain.TransactionIntent { return r.intent }

// Transitions streams state transitions. The channel is closed after the
// terminal transition. Reading it is optional.
func (r *Run) Transitions() <-chan Transition { return r.transitions }

// State returns the latest state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Cancel abandons the intent. A transaction already broadcast is not
// affected, but its outcome is no longer recorded by this run.
func (r *Run) Cancel() { r.cancel() }

// Done is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run ends and returns its terminal transition.
func (r *Run) Wait() Transition {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.final
}

func (r *Run) supersede() {
	r.superseded.Store(true)
	r.cancel()
}

func (r *Run) emit(t Transition) {
	r.mu.Lock()
	r.state = t.State
	r.mu.Unlock()
	r.transitions <- t
}

func (r *Run) finish(t Transition) {
	r.mu.Lock()
	r.state = t.State
	r.final = t
	r.mu.Unlock()
	r.transitions <- t
	close(r.transitions)
	close(r.done)
}
