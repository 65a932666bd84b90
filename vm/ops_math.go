package vm

// Unary operations, conversions and the binop families.

func opUnary(in *Interpreter, inst Inst) signal {
	a, b := inst.A(), inst.B()
	r := in.regs
	switch inst.Op() {
	case OpNegInt:
		r.SetInt(a, -r.Int(b))
	case OpNotInt:
		r.SetInt(a, ^r.Int(b))
	case OpNegLong:
		r.SetWide(a, -r.Wide(b))
	case OpNotLong:
		r.SetWide(a, ^r.Wide(b))
	case OpNegFloat:
		r.SetFloat(a, -r.Float(b))
	case OpNegDouble:
		r.SetDouble(a, -r.Double(b))
	case OpIntToLong:
		r.SetWide(a, int64(r.Int(b)))
	case OpIntToFloat:
		r.SetFloat(a, float32(r.Int(b)))
	case OpIntToDouble:
		r.SetDouble(a, float64(r.Int(b)))
	case OpLongToInt:
		r.SetInt(a, int32(r.Wide(b)))
	case OpLongToFloat:
		r.SetFloat(a, float32(r.Wide(b)))
	case OpLongToDouble:
		r.SetDouble(a, float64(r.Wide(b)))
	case OpFloatToInt:
		r.SetInt(a, FloatToInt32(r.Float(b)))
	case OpFloatToLong:
		r.SetWide(a, FloatToInt64(r.Float(b)))
	case OpFloatToDouble:
		r.SetDouble(a, float64(r.Float(b)))
	case OpDoubleToInt:
		r.SetInt(a, DoubleToInt32(r.Double(b)))
	case OpDoubleToLong:
		r.SetWide(a, DoubleToInt64(r.Double(b)))
	case OpDoubleToFloat:
		r.SetFloat(a, float32(r.Double(b)))
	case OpIntToByte:
		r.SetInt(a, int32(int8(r.Int(b))))
	case OpIntToChar:
		r.SetInt(a, int32(uint16(r.Int(b))))
	case OpIntToShort:
		r.SetInt(a, int32(int16(r.Int(b))))
	default:
		abortf("bad unary op %s", inst.Op())
	}
	return in.finish(1)
}

// ---------------------------------------------------------------------------
// binop vAA, vBB, vCC
// ---------------------------------------------------------------------------

func opBinopInt(in *Interpreter, inst Inst) signal {
	b, c := in.operands23x()
	v, err := intALU(aluOp(inst.Op()-OpAddInt), in.regs.Int(b), in.regs.Int(c))
	if err != nil {
		return in.throwErr(err)
	}
	in.regs.SetInt(inst.AA(), v)
	return in.finish(2)
}

func opBinopLong(in *Interpreter, inst Inst) signal {
	b, c := in.operands23x()
	op := aluOp(inst.Op() - OpAddLong)
	v, err := longALU(op, in.regs.Wide(b), in.longOperand(op, c))
	if err != nil {
		return in.throwErr(err)
	}
	in.regs.SetWide(inst.AA(), v)
	return in.finish(2)
}

// longOperand reads the right operand of a long op. Shift distances live
// in a single int register.
func (in *Interpreter) longOperand(op aluOp, reg int) int64 {
	if op.isShift() {
		return int64(in.regs.Int(reg))
	}
	return in.regs.Wide(reg)
}

func opBinopFloat(in *Interpreter, inst Inst) signal {
	b, c := in.operands23x()
	in.regs.SetFloat(inst.AA(), floatALU(aluOp(inst.Op()-OpAddFloat), in.regs.Float(b), in.regs.Float(c)))
	return in.finish(2)
}

func opBinopDouble(in *Interpreter, inst Inst) signal {
	b, c := in.operands23x()
	in.regs.SetDouble(inst.AA(), doubleALU(aluOp(inst.Op()-OpAddDouble), in.regs.Double(b), in.regs.Double(c)))
	return in.finish(2)
}

// ---------------------------------------------------------------------------
// binop/2addr vA, vB
// ---------------------------------------------------------------------------

func opBinopInt2Addr(in *Interpreter, inst Inst) signal {
	a := inst.A()
	v, err := intALU(aluOp(inst.Op()-OpAddInt2Addr), in.regs.Int(a), in.regs.Int(inst.B()))
	if err != nil {
		return in.throwErr(err)
	}
	in.regs.SetInt(a, v)
	return in.finish(1)
}

func opBinopLong2Addr(in *Interpreter, inst Inst) signal {
	a := inst.A()
	op := aluOp(inst.Op() - OpAddLong2Addr)
	v, err := longALU(op, in.regs.Wide(a), in.longOperand(op, inst.B()))
	if err != nil {
		return in.throwErr(err)
	}
	in.regs.SetWide(a, v)
	return in.finish(1)
}

func opBinopFloat2Addr(in *Interpreter, inst Inst) signal {
	a := inst.A()
	in.regs.SetFloat(a, floatALU(aluOp(inst.Op()-OpAddFloat2Addr), in.regs.Float(a), in.regs.Float(inst.B())))
	return in.finish(1)
}

func opBinopDouble2Addr(in *Interpreter, inst Inst) signal {
	a := inst.A()
	in.regs.SetDouble(a, doubleALU(aluOp(inst.Op()-OpAddDouble2Addr), in.regs.Double(a), in.regs.Double(inst.B())))
	return in.finish(1)
}

// ---------------------------------------------------------------------------
// binop/lit16 and binop/lit8
// ---------------------------------------------------------------------------

// litOps maps the lit16 and lit8 families, in opcode order, to operations.
var litOps = [...]aluOp{aluAdd, aluRsub, aluMul, aluDiv, aluRem, aluAnd, aluOr, aluXor, aluShl, aluShr, aluUshr}

func opBinopLit16(in *Interpreter, inst Inst) signal {
	lit := int32(int16(in.fetch(1)))
	v, err := intALU(litOps[inst.Op()-OpAddIntLit16], in.regs.Int(inst.B()), lit)
	if err != nil {
		return in.throwErr(err)
	}
	in.regs.SetInt(inst.A(), v)
	return in.finish(2)
}

func opBinopLit8(in *Interpreter, inst Inst) signal {
	u := in.fetch(1)
	src, lit := int(u&0xff), int32(int8(u>>8))
	v, err := intALU(litOps[inst.Op()-OpAddIntLit8], in.regs.Int(src), lit)
	if err != nil {
		return in.throwErr(err)
	}
	in.regs.SetInt(inst.AA(), v)
	return in.finish(2)
}
