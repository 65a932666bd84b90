package vm

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// ErrArgumentCount is returned by Execute when the arguments do not fill the
// method's incoming registers exactly.
var ErrArgumentCount = errors.New("argument count mismatch")

// Interpreter executes methods on one logical thread. It owns its stack
// arena and frames; it is not safe for concurrent use. Several interpreters
// may share one Runtime.
type Interpreter struct {
	ID uuid.UUID

	rt      Runtime
	catcher CatchFinder
	inliner InlineOps

	stack  []uint32
	frames []Frame

	// Current frame, cached from the top of frames.
	method *Method
	insns  []uint16
	pc     int
	fp     int
	regs   Registers

	retval    Value
	exception Ref        // caught exception awaiting move-exception
	fault     *Fault     // pending throw
	call      invocation // pending invoke

	checkBranches bool
	trace         bool
	profiler      *Profiler
	log           commonlog.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithStackSize sets the arena size in 32-bit slots.
func WithStackSize(slots int) Option {
	return func(in *Interpreter) { in.stack = make([]uint32, slots) }
}

// WithBranchChecks enables bounds checks on branch and payload targets.
func WithBranchChecks(on bool) Option {
	return func(in *Interpreter) { in.checkBranches = on }
}

// WithTrace logs every instruction at debug level.
func WithTrace(on bool) Option {
	return func(in *Interpreter) { in.trace = on }
}

// WithProfiler attaches a profiler.
func WithProfiler(p *Profiler) Option {
	return func(in *Interpreter) { in.profiler = p }
}

// WithLogger replaces the package logger.
func WithLogger(l commonlog.Logger) Option {
	return func(in *Interpreter) { in.log = l }
}

// NewInterpreter creates an interpreter bound to a runtime.
func NewInterpreter(rt Runtime, opts ...Option) *Interpreter {
	in := &Interpreter{
		ID:            uuid.New(),
		rt:            rt,
		checkBranches: true,
		log:           log,
	}
	in.catcher, _ = rt.(CatchFinder)
	in.inliner, _ = rt.(InlineOps)
	for _, opt := range opts {
		opt(in)
	}
	if in.stack == nil {
		in.stack = make([]uint32, DefaultStackSize)
	}
	return in
}

// Runtime returns the runtime the interpreter is bound to.
func (in *Interpreter) Runtime() Runtime { return in.rt }

// Profiler returns the attached profiler, if any.
func (in *Interpreter) Profiler() *Profiler { return in.profiler }

// ---------------------------------------------------------------------------
// Entry point
// ---------------------------------------------------------------------------

// savedState is the current-frame cache of an outer Execute.
type savedState struct {
	method    *Method
	insns     []uint16
	pc, fp    int
	regs      Registers
	retval    Value
	exception Ref
}

// Execute runs m with the given receiver (ignored for static methods) and
// arguments, and returns its result. An exception that escapes m is
// returned as a *ThrownError. Execute may be called reentrantly, from a
// native method or class initializer running on this interpreter.
func (in *Interpreter) Execute(m *Method, this Ref, args ...Arg) (Value, error) {
	want := m.InsSize
	got := 0
	if !m.IsStatic() {
		got++
	}
	for _, a := range args {
		got += a.Slots()
	}
	if got != want {
		return Value{}, fmt.Errorf("%w: %s takes %d slots, got %d", ErrArgumentCount, m, want, got)
	}

	saved := savedState{in.method, in.insns, in.pc, in.fp, in.regs, in.retval, in.exception}
	defer func() {
		in.method, in.insns, in.pc, in.fp, in.regs = saved.method, saved.insns, saved.pc, saved.fp, saved.regs
		in.retval, in.exception = saved.retval, saved.exception
	}()

	base := len(in.frames)
	size := windowSize(m)
	fp := saveArea(in.stackTop()) - size
	if frameBottom(fp, m) < 0 {
		f := NewFault(FaultStackOverflow, "stack size %d slots, entering %s", len(in.stack), m)
		return Value{}, in.uncaughtAtEntry(f)
	}

	regs := Registers(in.stack[fp : fp+size])
	i := size - m.InsSize
	if !m.IsStatic() {
		regs.SetRef(i, this)
		i++
	}
	for _, a := range args {
		regs[i] = a.Lo
		i++
		if a.Kind == ArgWide {
			regs[i] = a.Hi
			i++
		}
	}

	in.pushFrame(Frame{FP: fp, PrevFP: -1, SavedPC: -1, Method: m})
	in.log.Debugf("[%s] execute %s", in.ID, m)

	if m.IsNative() {
		return in.executeNative(m, regs[size-m.InsSize:], base)
	}
	in.enterFrame()
	return in.run(base)
}

func (in *Interpreter) executeNative(m *Method, args Registers, base int) (Value, error) {
	if m.Native == nil {
		f := NewFault(FaultNoSuchMethod, "no native implementation for %s", m)
		return Value{}, in.unwind(f, base)
	}
	v, err := m.Native(in, args, m)
	if err != nil {
		return Value{}, in.unwind(faultFromError(err), base)
	}
	in.popFrame()
	return v, nil
}

// uncaughtAtEntry reports a fault raised before the entry frame exists.
func (in *Interpreter) uncaughtAtEntry(f *Fault) error {
	if ref, err := in.rt.NewThrowable(in, f); err == nil {
		f.Exception = ref
	}
	return &ThrownError{Fault: f, Exception: f.Exception}
}

// ---------------------------------------------------------------------------
// Dispatch loop
// ---------------------------------------------------------------------------

// signal is an opcode handler's request to the dispatch loop.
type signal uint8

const (
	sigNext   signal = iota // continue at Fetch; pc already advanced
	sigInvoke               // in.call holds a pending invocation
	sigReturn               // in.retval holds the result
	sigThrow                // in.fault holds the pending exception
)

type opHandler func(in *Interpreter, inst Inst) signal

// run executes until the frame at index base returns or an exception
// escapes it.
func (in *Interpreter) run(base int) (Value, error) {
	defer in.annotatePanic()

	for {
		inst := Inst(in.insns[in.pc])
		if in.trace {
			line, _ := DisassembleAt(in.insns, in.pc)
			in.log.Debugf("[%s] %s %s", in.ID, in.method, line)
		}
		if in.profiler != nil {
			in.profiler.RecordOpcode(inst.Op())
		}

		sig := dispatchTable[inst.Op()](in, inst)
		if sig == sigInvoke {
			sig = in.invoke()
		}
		switch sig {
		case sigReturn:
			if in.returnFromMethod(base) {
				return in.retval, nil
			}
		case sigThrow:
			if err := in.handleThrow(base); err != nil {
				return Value{}, err
			}
		}
	}
}

// annotatePanic turns runtime errors (an out-of-window register, a pc past
// the end of the code) into an AbortError naming the faulting instruction.
// Existing AbortErrors get the location filled in. Each abort is logged
// once, by the innermost run loop it passes through.
func (in *Interpreter) annotatePanic() {
	r := recover()
	if r == nil {
		return
	}
	var method string
	if in.method != nil {
		method = in.method.String()
	}
	switch e := r.(type) {
	case *AbortError:
		if e.Method == "" {
			e.Method, e.PC = method, in.pc
			in.log.Critical(e.Error())
		}
		panic(e)
	case runtime.Error:
		err := &AbortError{Message: e.Error(), Method: method, PC: in.pc}
		in.log.Critical(err.Error())
		panic(err)
	}
	panic(r)
}

// fetch returns code unit n of the current instruction.
func (in *Interpreter) fetch(n int) uint16 { return in.insns[in.pc+n] }

// fetch32 returns the 32-bit operand stored low unit first at units n, n+1.
func (in *Interpreter) fetch32(n int) uint32 {
	return uint32(in.insns[in.pc+n]) | uint32(in.insns[in.pc+n+1])<<16
}

// finish advances past an instruction of width n.
func (in *Interpreter) finish(n int) signal {
	in.pc += n
	return sigNext
}

// checkTarget aborts if pc+offset, plus n units of payload, leaves the
// method.
func (in *Interpreter) checkTarget(offset int32, n int) {
	if !in.checkBranches {
		return
	}
	target := in.pc + int(offset)
	if target < 0 || target+n > len(in.insns) {
		abortf("branch target %+d from %04x outside %s (%d units)", offset, in.pc, in.method, len(in.insns))
	}
}

// branch moves pc by a signed offset. Backward and self branches are
// safepoints.
func (in *Interpreter) branch(offset int32) signal {
	in.checkTarget(offset, 1)
	if offset <= 0 {
		in.exportPC()
		if in.rt.SuspendRequested(in) {
			in.log.Debugf("[%s] suspending at %s @%04x", in.ID, in.method, in.pc)
			in.rt.HonorSuspend(in)
		}
	}
	in.pc += int(offset)
	return sigNext
}

// payload returns the inline table at pc+offset.
func (in *Interpreter) payload(offset int32) []uint16 {
	in.checkTarget(offset, 2)
	return in.insns[in.pc+int(offset):]
}

// ---------------------------------------------------------------------------
// Control signals
// ---------------------------------------------------------------------------

// throw raises f at the current instruction.
func (in *Interpreter) throw(f *Fault) signal {
	in.exportPC()
	in.fault = f
	return sigThrow
}

// throwErr raises an error returned by the runtime or a native method.
func (in *Interpreter) throwErr(err error) signal {
	return in.throw(faultFromError(err))
}

func faultFromError(err error) *Fault {
	var thrown *ThrownError
	if errors.As(err, &thrown) {
		return &Fault{Kind: thrown.Fault.Kind, Message: thrown.Fault.Message, Exception: thrown.Exception}
	}
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return &Fault{Kind: FaultInternal, Message: err.Error()}
}

// returnFromMethod pops the current frame and resumes its caller after the
// invoke. It reports true when the popped frame was the entry frame.
func (in *Interpreter) returnFromMethod(base int) bool {
	f := in.popFrame()
	if len(in.frames) == base {
		return true
	}
	in.enterFrame()
	in.pc = f.SavedPC + 3
	return false
}

// handleThrow materializes the pending fault and searches for a handler
// from the current frame outward. It returns nil when a handler was found
// and execution can continue, or the ThrownError once the entry frame has
// been unwound.
func (in *Interpreter) handleThrow(base int) error {
	f := in.fault
	in.fault = nil
	if f.Exception == Null {
		ref, err := in.rt.NewThrowable(in, f)
		if err != nil {
			in.log.Warningf("[%s] cannot materialize %s: %s", in.ID, f, err)
		} else {
			f.Exception = ref
		}
	}

	trace := in.stackTrace(base)
	for {
		top := &in.frames[len(in.frames)-1]
		if in.catcher != nil && f.Exception != Null && !top.Method.IsNative() {
			if addr, ok := in.catcher.FindCatch(in, top.Method, top.PC, f.Exception); ok {
				in.log.Debugf("[%s] %s caught in %s @%04x", in.ID, f.Kind, top.Method, addr)
				top.PC = addr
				in.enterFrame()
				in.exception = f.Exception
				return nil
			}
		}
		if len(in.frames)-1 == base {
			in.popFrame()
			in.log.Debugf("[%s] uncaught %s", in.ID, f)
			return &ThrownError{Fault: f, Exception: f.Exception, Trace: trace}
		}
		in.popFrame()
	}
}

// unwind reports an exception raised while only the entry frame exists.
func (in *Interpreter) unwind(f *Fault, base int) error {
	in.fault = f
	return in.handleThrow(base)
}
