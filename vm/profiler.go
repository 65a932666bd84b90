package vm

import (
	"sync"
	"sync/atomic"
)

// Profiler counts executed instructions per opcode and invocations per
// method. One profiler may be shared by interpreters running in parallel.

// MethodProfile holds profiling data for a single method.
type MethodProfile struct {
	InvocationCount uint64 // atomic
	hot             atomic.Bool
}

// IsHot reports whether the method crossed the profiler's threshold.
func (p *MethodProfile) IsHot() bool { return p.hot.Load() }

// Profiler manages profiling for all methods run by the interpreters it is
// attached to.
type Profiler struct {
	opcodes  [256]uint64 // atomic counters, by opcode
	profiles sync.Map    // *Method -> *MethodProfile

	// MethodHotThreshold is the invocation count at which a method is
	// reported hot.
	MethodHotThreshold uint64

	// OnHot is called once per method when it becomes hot.
	OnHot func(m *Method, profile *MethodProfile)

	hotMethodCount uint64
}

// NewProfiler creates a profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{MethodHotThreshold: 100}
}

// RecordOpcode counts one executed instruction.
func (p *Profiler) RecordOpcode(op Opcode) {
	atomic.AddUint64(&p.opcodes[op], 1)
}

// RecordInvocation increments the invocation count for a method. Returns
// true if this invocation made the method hot.
func (p *Profiler) RecordInvocation(m *Method) bool {
	if m == nil {
		return false
	}
	val, _ := p.profiles.LoadOrStore(m, &MethodProfile{})
	profile := val.(*MethodProfile)

	count := atomic.AddUint64(&profile.InvocationCount, 1)
	if count >= p.MethodHotThreshold && profile.hot.CompareAndSwap(false, true) {
		atomic.AddUint64(&p.hotMethodCount, 1)
		if p.OnHot != nil {
			p.OnHot(m, profile)
		}
		return true
	}
	return false
}

// OpcodeCount returns how many times op has executed.
func (p *Profiler) OpcodeCount(op Opcode) uint64 {
	return atomic.LoadUint64(&p.opcodes[op])
}

// MethodProfile returns the profile for a method, or nil if not tracked.
func (p *Profiler) MethodProfile(m *Method) *MethodProfile {
	if val, ok := p.profiles.Load(m); ok {
		return val.(*MethodProfile)
	}
	return nil
}

// HotMethods returns all methods that have crossed the hot threshold.
func (p *Profiler) HotMethods() []*Method {
	var hot []*Method
	p.profiles.Range(func(key, value any) bool {
		if value.(*MethodProfile).IsHot() {
			hot = append(hot, key.(*Method))
		}
		return true
	})
	return hot
}

// ProfilerStats holds aggregate profiling statistics.
type ProfilerStats struct {
	TotalMethods      int    // Number of methods profiled
	HotMethods        int    // Number of hot methods
	MethodInvocations uint64 // Total method invocations
	Instructions      uint64 // Total instructions executed
}

// Stats returns aggregate profiling statistics.
func (p *Profiler) Stats() ProfilerStats {
	var stats ProfilerStats
	p.profiles.Range(func(key, value any) bool {
		profile := value.(*MethodProfile)
		stats.TotalMethods++
		stats.MethodInvocations += atomic.LoadUint64(&profile.InvocationCount)
		if profile.IsHot() {
			stats.HotMethods++
		}
		return true
	})
	for i := range p.opcodes {
		stats.Instructions += atomic.LoadUint64(&p.opcodes[i])
	}
	return stats
}

// Snapshot is a point-in-time copy of the counters, keyed by opcode mnemonic
// and by method name, with zero counts omitted.
type Snapshot struct {
	Opcodes map[string]uint64
	Methods map[string]uint64
}

// Snapshot copies the current counters.
func (p *Profiler) Snapshot() Snapshot {
	s := Snapshot{Opcodes: map[string]uint64{}, Methods: map[string]uint64{}}
	for i := range p.opcodes {
		if n := atomic.LoadUint64(&p.opcodes[i]); n > 0 {
			s.Opcodes[Opcode(i).Name()] = n
		}
	}
	p.profiles.Range(func(key, value any) bool {
		n := atomic.LoadUint64(&value.(*MethodProfile).InvocationCount)
		s.Methods[key.(*Method).String()] += n
		return true
	})
	return s
}
