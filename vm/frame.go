package vm

// ---------------------------------------------------------------------------
// Stack arena and frames
// ---------------------------------------------------------------------------
//
// Frames live in one []uint32 arena per interpreter and grow toward index 0,
// which is the stack floor. A frame at FP owns registers
// stack[FP : FP+RegistersSize]. Below it sits a save area of SaveAreaSlots
// slots, and below that the frame's outs: the staging area where arguments
// for the next call are written. A callee's frame is placed so that its
// highest InsSize registers are exactly the caller's outs:
//
//	high  +------------------+
//	      | caller registers |  <- caller FP
//	      +------------------+
//	      | caller save area |
//	      +------------------+
//	      | callee registers |  <- callee FP = saveArea(caller FP) - callee.RegistersSize
//	      |   (ins = outs)   |
//	      +------------------+
//	      | callee save area |
//	      +------------------+
//	      | callee outs      |
//	low   +------------------+  must stay >= 0

// SaveAreaSlots is the arena footprint of a frame's save area. The frame's
// bookkeeping lives in Frame; the slots keep the arena layout and overflow
// arithmetic honest.
const SaveAreaSlots = 4

// DefaultStackSize is the default arena size in slots.
const DefaultStackSize = 16 * 1024

func saveArea(fp int) int { return fp - SaveAreaSlots }

// Frame is one activation record.
type Frame struct {
	FP      int     // base of the register window
	PrevFP  int     // caller's FP, or -1 for an entry frame
	SavedPC int     // caller's pc at the call
	PC      int     // this frame's exported pc
	Method  *Method // method executing in this frame
}

// frameBottom returns the lowest arena slot a frame for m at fp needs.
func frameBottom(fp int, m *Method) int {
	return saveArea(fp) - m.OutsSize
}

// windowSize returns the register count of a frame for m. Native methods
// may leave RegistersSize unset; their window is just the incoming args.
func windowSize(m *Method) int {
	if m.RegistersSize < m.InsSize {
		return m.InsSize
	}
	return m.RegistersSize
}

// stackTop returns the highest free slot below every live frame.
func (in *Interpreter) stackTop() int {
	if len(in.frames) == 0 {
		return len(in.stack)
	}
	f := &in.frames[len(in.frames)-1]
	return frameBottom(f.FP, f.Method)
}

func (in *Interpreter) pushFrame(f Frame) {
	in.frames = append(in.frames, f)
	if in.profiler != nil {
		in.profiler.RecordInvocation(f.Method)
	}
}

func (in *Interpreter) popFrame() Frame {
	f := in.frames[len(in.frames)-1]
	in.frames = in.frames[:len(in.frames)-1]
	return f
}

// enterFrame makes the top frame current.
func (in *Interpreter) enterFrame() {
	f := &in.frames[len(in.frames)-1]
	in.method = f.Method
	in.insns = f.Method.Insns
	in.fp = f.FP
	in.regs = Registers(in.stack[f.FP : f.FP+windowSize(f.Method)])
	in.pc = f.PC
}

// exportPC commits the current pc to the current frame so fault reports and
// stack traces see where execution stopped.
func (in *Interpreter) exportPC() {
	in.frames[len(in.frames)-1].PC = in.pc
}

// Depth returns the number of live frames.
func (in *Interpreter) Depth() int { return len(in.frames) }

// Frames returns a copy of the live frames, innermost last.
func (in *Interpreter) Frames() []Frame {
	return append([]Frame(nil), in.frames...)
}

// stackTrace describes frames[base:], innermost first.
func (in *Interpreter) stackTrace(base int) []StackElement {
	trace := make([]StackElement, 0, len(in.frames)-base)
	for i := len(in.frames) - 1; i >= base; i-- {
		f := &in.frames[i]
		el := StackElement{Method: f.Method.Name + f.Method.Signature, PC: f.PC}
		if f.Method.Class != nil {
			el.Class = f.Method.Class.Descriptor
		}
		trace = append(trace, el)
	}
	return trace
}
