package engine

import (
	"context"

	"github.com/myselfgus/vibe/internal/models"
)

// actor owns one session's state. All reads and writes run on its single
// goroutine, so there is no intra-session data race by construction and
// every update is an atomic read-modify-write.
type actor struct {
	id      string
	mailbox chan func()
	done    chan struct{}

	// Owned by the actor goroutine; never touched from outside.
	state     *models.SessionState
	running   bool
	cancelRun context.CancelFunc
	// runDone is closed after the run goroutine's cleanup has finished
	// posting to the mailbox. The mailbox must not close before that.
	runDone chan struct{}
}

func newActor(id string, state *models.SessionState) *actor {
	a := &actor{
		id:      id,
		mailbox: make(chan func(), 32),
		done:    make(chan struct{}),
		state:   state,
	}
	go a.loop()
	return a
}

func (a *actor) loop() {
	defer close(a.done)
	for fn := range a.mailbox {
		fn()
	}
}

// do runs fn on the actor goroutine and waits for it to finish.
func (a *actor) do(fn func()) {
	doneCh := make(chan struct{})
	a.mailbox <- func() {
		defer close(doneCh)
		fn()
	}
	<-doneCh
}

// snapshot returns a deep copy of the current state.
func (a *actor) snapshot() models.SessionState {
	var snap models.SessionState
	a.do(func() {
		snap = a.state.Clone()
	})
	return snap
}

func (a *actor) stop() {
	close(a.mailbox)
	<-a.done
}
