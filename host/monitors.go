package host

import (
	"sync"

	"github.com/chazu/dexvm/vm"
	"github.com/google/uuid"
)

// monitor is the lock word of one object.
type monitor struct {
	owner uuid.UUID
	count int
}

// Monitors implements re-entrant object locks keyed by interpreter ID.
type Monitors struct {
	mu   sync.Mutex
	cond *sync.Cond
	held map[vm.Ref]*monitor
}

// NewMonitors creates an empty monitor table.
func NewMonitors() *Monitors {
	m := &Monitors{held: make(map[vm.Ref]*monitor)}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Lock acquires r's monitor for in, blocking while another interpreter
// holds it.
func (m *Monitors) Lock(in *vm.Interpreter, r vm.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		mon, ok := m.held[r]
		if !ok {
			m.held[r] = &monitor{owner: in.ID, count: 1}
			return nil
		}
		if mon.owner == in.ID {
			mon.count++
			return nil
		}
		log.Debugf("[%s] waiting for monitor of ref(%d) held by %s", in.ID, r, mon.owner)
		m.cond.Wait()
	}
}

// Unlock releases one level of r's monitor. Releasing a monitor the
// interpreter does not own raises IllegalMonitorStateException.
func (m *Monitors) Unlock(in *vm.Interpreter, r vm.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mon, ok := m.held[r]
	if !ok || mon.owner != in.ID {
		return vm.NewFault(vm.FaultIllegalMonitorState, "ref(%d) not locked by this thread", r)
	}
	mon.count--
	if mon.count == 0 {
		delete(m.held, r)
		m.cond.Broadcast()
	}
	return nil
}

// HoldsLock reports whether in owns r's monitor.
func (m *Monitors) HoldsLock(in *vm.Interpreter, r vm.Ref) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mon, ok := m.held[r]
	return ok && mon.owner == in.ID
}
