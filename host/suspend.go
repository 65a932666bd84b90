package host

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/chazu/dexvm/vm"
)

// Suspender implements the safepoint protocol. SuspendAll raises a flag
// that interpreters poll on backward branches; an interpreter that sees it
// parks in HonorSuspend until every SuspendAll has been matched by a
// ResumeAll.
type Suspender struct {
	requested atomic.Bool

	mu     sync.Mutex
	cond   *sync.Cond
	count  int
	parked int
}

// NewSuspender creates a suspender with no pending request.
func NewSuspender() *Suspender {
	s := &Suspender{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// SuspendAll asks every interpreter to park at its next safepoint. Calls
// nest.
func (s *Suspender) SuspendAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.requested.Store(true)
	log.Info("suspend requested")
}

// ResumeAll undoes one SuspendAll. Parked interpreters continue once the
// count drops to zero.
func (s *Suspender) ResumeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return
	}
	s.count--
	if s.count == 0 {
		s.requested.Store(false)
		log.Info("resumed")
		s.cond.Broadcast()
	}
}

// SuspendRequested is polled at safepoints.
func (s *Suspender) SuspendRequested(*vm.Interpreter) bool {
	return s.requested.Load()
}

// HonorSuspend parks the calling interpreter until resumed.
func (s *Suspender) HonorSuspend(in *vm.Interpreter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parked++
	s.cond.Broadcast()
	log.Debugf("[%s] parked", in.ID)
	for s.count > 0 {
		s.cond.Wait()
	}
	s.parked--
	log.Debugf("[%s] unparked", in.ID)
}

// Parked returns the number of interpreters currently parked.
func (s *Suspender) Parked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parked
}

// WaitParked blocks until at least n interpreters are parked or ctx is
// done.
func (s *Suspender) WaitParked(ctx context.Context, n int) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cond.Broadcast()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.parked < n {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cond.Wait()
	}
	return nil
}
