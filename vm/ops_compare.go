package vm

// Branches, switches and comparisons.

func opGoto(in *Interpreter, inst Inst) signal {
	return in.branch(int32(int8(inst.AA())))
}

func opGoto16(in *Interpreter, inst Inst) signal {
	return in.branch(int32(int16(in.fetch(1))))
}

func opGoto32(in *Interpreter, inst Inst) signal {
	return in.branch(int32(in.fetch32(1)))
}

func opPackedSwitch(in *Interpreter, inst Inst) signal {
	table := in.payload(int32(in.fetch32(1)))
	return in.branch(PackedSwitch(table, in.regs.Int(inst.AA())))
}

func opSparseSwitch(in *Interpreter, inst Inst) signal {
	table := in.payload(int32(in.fetch32(1)))
	return in.branch(SparseSwitch(table, in.regs.Int(inst.AA())))
}

// operands23x decodes the vBB, vCC operand unit of a 23x instruction.
func (in *Interpreter) operands23x() (int, int) {
	u := in.fetch(1)
	return int(u & 0xff), int(u >> 8)
}

func opCmpFloat(in *Interpreter, inst Inst) signal {
	b, c := in.operands23x()
	nan := int32(-1)
	if inst.Op() == OpCmpgFloat {
		nan = 1
	}
	in.regs.SetInt(inst.AA(), CompareFloat32(in.regs.Float(b), in.regs.Float(c), nan))
	return in.finish(2)
}

func opCmpDouble(in *Interpreter, inst Inst) signal {
	b, c := in.operands23x()
	nan := int32(-1)
	if inst.Op() == OpCmpgDouble {
		nan = 1
	}
	in.regs.SetInt(inst.AA(), CompareFloat64(in.regs.Double(b), in.regs.Double(c), nan))
	return in.finish(2)
}

func opCmpLong(in *Interpreter, inst Inst) signal {
	b, c := in.operands23x()
	in.regs.SetInt(inst.AA(), CompareInt64(in.regs.Wide(b), in.regs.Wide(c)))
	return in.finish(2)
}

// test evaluates the condition of an if-test or if-testz opcode against a
// comparison of a with b.
func test(op Opcode, a, b int32) bool {
	switch op {
	case OpIfEq, OpIfEqz:
		return a == b
	case OpIfNe, OpIfNez:
		return a != b
	case OpIfLt, OpIfLtz:
		return a < b
	case OpIfGe, OpIfGez:
		return a >= b
	case OpIfGt, OpIfGtz:
		return a > b
	case OpIfLe, OpIfLez:
		return a <= b
	}
	abortf("bad conditional %s", op)
	return false
}

func opIf(in *Interpreter, inst Inst) signal {
	if test(inst.Op(), in.regs.Int(inst.A()), in.regs.Int(inst.B())) {
		return in.branch(int32(int16(in.fetch(1))))
	}
	return in.finish(2)
}

func opIfz(in *Interpreter, inst Inst) signal {
	if test(inst.Op(), in.regs.Int(inst.AA()), 0) {
		return in.branch(int32(int16(in.fetch(1))))
	}
	return in.finish(2)
}
