package vm

import "fmt"

// ---------------------------------------------------------------------------
// CodeBuilder: helper for constructing method code
// ---------------------------------------------------------------------------

// CodeBuilder assembles an instruction stream in code units. Branches take
// labels and are patched when the code is finished; switch and array-data
// payloads are appended after the last instruction.
type CodeBuilder struct {
	units    []uint16
	fixups   []fixup
	payloads []payload
}

// Label is a branch target.
type Label struct {
	resolved bool
	position int
}

// fixup patches the offset of a branch or payload reference.
type fixup struct {
	at    int // unit holding the offset
	from  int // pc of the referencing instruction
	wide  bool
	label *Label
}

// payload is a table emitted after the code body.
type payload struct {
	units   []uint16
	from    int    // pc of the referencing instruction
	at      int    // unit holding the 32-bit payload offset
	targets []*Label
	base    int // index in units of the first target
}

// NewCodeBuilder creates an empty builder.
func NewCodeBuilder() *CodeBuilder {
	return &CodeBuilder{units: make([]uint16, 0, 32)}
}

// Units returns the pc of the next instruction.
func (b *CodeBuilder) Units() int { return len(b.units) }

func (b *CodeBuilder) emit(units ...uint16) int {
	pc := len(b.units)
	b.units = append(b.units, units...)
	return pc
}

// unit packs op with its high byte. Operands that do not fit their field
// panic rather than wrap into a different instruction.
func unit(op Opcode, hi int) uint16 {
	return uint16(op) | uint16(operand(op, hi, 0xff))<<8
}

func operand(op Opcode, v, limit int) int {
	if v < 0 || v > limit {
		panic(fmt.Sprintf("%s: operand %d outside [0, %d]", op, v, limit))
	}
	return v
}

func nibbles(op Opcode, a, b int) int {
	return operand(op, a, 0x0f) | operand(op, b, 0x0f)<<4
}

// Emit10x appends an instruction with no operands.
func (b *CodeBuilder) Emit10x(op Opcode) { b.emit(unit(op, 0)) }

// Emit12x appends "op vA, vB" with two 4-bit registers.
func (b *CodeBuilder) Emit12x(op Opcode, a, bReg int) {
	b.emit(unit(op, nibbles(op, a, bReg)))
}

// EmitConst4 appends const/4 with a literal in [-8, 7].
func (b *CodeBuilder) EmitConst4(a int, lit int8) {
	if lit < -8 || lit > 7 {
		panic(fmt.Sprintf("const/4: literal %d outside [-8, 7]", lit))
	}
	b.emit(unit(OpConst4, nibbles(OpConst4, a, int(lit)&0x0f)))
}

// Emit11x appends "op vAA".
func (b *CodeBuilder) Emit11x(op Opcode, aa int) { b.emit(unit(op, aa)) }

// Emit21 appends "op vAA, BBBB": the 21s, 21h, 21c, 22x and 20bc shapes.
func (b *CodeBuilder) Emit21(op Opcode, aa int, bbbb uint16) {
	b.emit(unit(op, aa), bbbb)
}

// Emit22 appends "op vA, vB, CCCC": the 22s, 22c and 22cs shapes.
func (b *CodeBuilder) Emit22(op Opcode, a, bReg int, cccc uint16) {
	b.emit(unit(op, nibbles(op, a, bReg)), cccc)
}

// Emit23x appends "op vAA, vBB, vCC".
func (b *CodeBuilder) Emit23x(op Opcode, aa, bb, cc int) {
	b.emit(unit(op, aa), uint16(operand(op, bb, 0xff))|uint16(operand(op, cc, 0xff))<<8)
}

// Emit22b appends "op vAA, vBB, #+CC".
func (b *CodeBuilder) Emit22b(op Opcode, aa, bb int, lit int8) {
	b.emit(unit(op, aa), uint16(operand(op, bb, 0xff))|uint16(uint8(lit))<<8)
}

// Emit32x appends "op vAAAA, vBBBB".
func (b *CodeBuilder) Emit32x(op Opcode, aaaa, bbbb uint16) {
	b.emit(unit(op, 0), aaaa, bbbb)
}

// Emit31 appends "op vAA, BBBBBBBB": the 31i and 31c shapes.
func (b *CodeBuilder) Emit31(op Opcode, aa int, v uint32) {
	b.emit(unit(op, aa), uint16(v), uint16(v>>16))
}

// EmitConstWide appends const-wide with a full 64-bit literal.
func (b *CodeBuilder) EmitConstWide(aa int, v uint64) {
	b.emit(unit(OpConstWide, aa), uint16(v), uint16(v>>16), uint16(v>>32), uint16(v>>48))
}

// Emit35c appends "op {regs}, ref" with up to five argument registers:
// the invoke, filled-new-array and execute-inline shapes.
func (b *CodeBuilder) Emit35c(op Opcode, ref uint16, regs ...int) {
	if len(regs) > 5 {
		panic(fmt.Sprintf("%s with %d registers", op, len(regs)))
	}
	var r [5]int
	copy(r[:], regs)
	args := uint16(nibbles(op, r[0], r[1])) | uint16(nibbles(op, r[2], r[3]))<<8
	b.emit(unit(op, nibbles(op, r[4], len(regs))), ref, args)
}

// Emit3rc appends "op {vFIRST .. vFIRST+count-1}, ref".
func (b *CodeBuilder) Emit3rc(op Opcode, ref uint16, first, count int) {
	b.emit(unit(op, count), ref, uint16(operand(op, first, 0xffff)))
}

// ---------------------------------------------------------------------------
// Labels and branches
// ---------------------------------------------------------------------------

// NewLabel creates an unresolved label.
func (b *CodeBuilder) NewLabel() *Label { return &Label{} }

// Mark resolves a label to the current position.
func (b *CodeBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.units)
}

// EmitGoto appends goto/16 to label.
func (b *CodeBuilder) EmitGoto(label *Label) {
	pc := b.emit(unit(OpGoto16, 0), 0)
	b.fixups = append(b.fixups, fixup{at: pc + 1, from: pc, label: label})
}

// EmitGoto32 appends goto/32 to label.
func (b *CodeBuilder) EmitGoto32(label *Label) {
	pc := b.emit(unit(OpGoto32, 0), 0, 0)
	b.fixups = append(b.fixups, fixup{at: pc + 1, from: pc, wide: true, label: label})
}

// EmitIf appends an if-test comparing vA and vB.
func (b *CodeBuilder) EmitIf(op Opcode, a, bReg int, label *Label) {
	pc := b.emit(unit(op, nibbles(op, a, bReg)), 0)
	b.fixups = append(b.fixups, fixup{at: pc + 1, from: pc, label: label})
}

// EmitIfz appends an if-testz comparing vAA with zero.
func (b *CodeBuilder) EmitIfz(op Opcode, aa int, label *Label) {
	pc := b.emit(unit(op, aa), 0)
	b.fixups = append(b.fixups, fixup{at: pc + 1, from: pc, label: label})
}

// ---------------------------------------------------------------------------
// Payload instructions
// ---------------------------------------------------------------------------

func (b *CodeBuilder) emitPayloadRef(op Opcode, aa int, p payload) {
	pc := b.emit(unit(op, aa), 0, 0)
	p.from, p.at = pc, pc+1
	b.payloads = append(b.payloads, p)
}

// EmitPackedSwitch appends packed-switch on vAA for consecutive keys
// starting at firstKey.
func (b *CodeBuilder) EmitPackedSwitch(aa int, firstKey int32, targets []*Label) {
	u := []uint16{PackedSwitchSignature, uint16(len(targets)), uint16(firstKey), uint16(uint32(firstKey) >> 16)}
	base := len(u)
	u = append(u, make([]uint16, 2*len(targets))...)
	b.emitPayloadRef(OpPackedSwitch, aa, payload{units: u, targets: targets, base: base})
}

// EmitSparseSwitch appends sparse-switch on vAA. keys must be ascending.
func (b *CodeBuilder) EmitSparseSwitch(aa int, keys []int32, targets []*Label) {
	if len(keys) != len(targets) {
		panic("sparse-switch keys and targets differ in length")
	}
	u := []uint16{SparseSwitchSignature, uint16(len(keys))}
	for _, k := range keys {
		u = append(u, uint16(k), uint16(uint32(k)>>16))
	}
	base := len(u)
	u = append(u, make([]uint16, 2*len(targets))...)
	b.emitPayloadRef(OpSparseSwitch, aa, payload{units: u, targets: targets, base: base})
}

// EmitFillArrayData appends fill-array-data on vAA. Each element keeps its
// low width bytes.
func (b *CodeBuilder) EmitFillArrayData(aa int, width int, elems []uint64) {
	raw := make([]byte, 0, width*len(elems)+1)
	for _, e := range elems {
		for i := 0; i < width; i++ {
			raw = append(raw, byte(e>>(8*i)))
		}
	}
	if len(raw)%2 == 1 {
		raw = append(raw, 0)
	}
	n := uint32(len(elems))
	u := []uint16{ArrayDataSignature, uint16(width), uint16(n), uint16(n >> 16)}
	for i := 0; i < len(raw); i += 2 {
		u = append(u, uint16(raw[i])|uint16(raw[i+1])<<8)
	}
	b.emitPayloadRef(OpFillArrayData, aa, payload{units: u})
}

// Code finishes the method: payloads are appended at even unit offsets and
// every branch and table is patched. It panics on an unresolved label.
func (b *CodeBuilder) Code() []uint16 {
	code := append([]uint16(nil), b.units...)
	for _, f := range b.fixups {
		off := target(f.label) - f.from
		code[f.at] = uint16(off)
		if f.wide {
			code[f.at+1] = uint16(uint32(int32(off)) >> 16)
		}
	}
	for _, p := range b.payloads {
		if len(code)%2 == 1 {
			code = append(code, uint16(OpNop))
		}
		start := len(code)
		code = append(code, p.units...)
		off := uint32(int32(start - p.from))
		code[p.at], code[p.at+1] = uint16(off), uint16(off>>16)
		for i, l := range p.targets {
			t := uint32(int32(target(l) - p.from))
			code[start+p.base+2*i] = uint16(t)
			code[start+p.base+2*i+1] = uint16(t >> 16)
		}
	}
	return code
}

func target(l *Label) int {
	if !l.resolved {
		panic("unresolved label")
	}
	return l.position
}
