package vm

// Moves, results, returns and constants.

func opNop(in *Interpreter, inst Inst) signal { return in.finish(1) }

func opMove(in *Interpreter, inst Inst) signal {
	in.regs[inst.A()] = in.regs[inst.B()]
	return in.finish(1)
}

func opMoveFrom16(in *Interpreter, inst Inst) signal {
	in.regs[inst.AA()] = in.regs[in.fetch(1)]
	return in.finish(2)
}

func opMove16(in *Interpreter, inst Inst) signal {
	in.regs[in.fetch(1)] = in.regs[in.fetch(2)]
	return in.finish(3)
}

func opMoveWide(in *Interpreter, inst Inst) signal {
	StoreWide(in.regs, inst.A(), LoadWide(in.regs, inst.B()))
	return in.finish(1)
}

func opMoveWideFrom16(in *Interpreter, inst Inst) signal {
	StoreWide(in.regs, inst.AA(), LoadWide(in.regs, int(in.fetch(1))))
	return in.finish(2)
}

func opMoveWide16(in *Interpreter, inst Inst) signal {
	StoreWide(in.regs, int(in.fetch(1)), LoadWide(in.regs, int(in.fetch(2))))
	return in.finish(3)
}

func opMoveResult(in *Interpreter, inst Inst) signal {
	in.regs[inst.AA()] = in.retval.word()
	return in.finish(1)
}

func opMoveResultWide(in *Interpreter, inst Inst) signal {
	StoreWide(in.regs, inst.AA(), in.retval.Bits)
	return in.finish(1)
}

// opMoveException takes the exception delivered to a catch handler.
func opMoveException(in *Interpreter, inst Inst) signal {
	in.regs.SetRef(inst.AA(), in.exception)
	in.exception = Null
	return in.finish(1)
}

func opReturnVoid(in *Interpreter, inst Inst) signal {
	in.retval = Value{}
	return sigReturn
}

func opReturn(in *Interpreter, inst Inst) signal {
	in.retval = Value{Kind: KindInt, Bits: uint64(in.regs[inst.AA()])}
	return sigReturn
}

func opReturnWide(in *Interpreter, inst Inst) signal {
	in.retval = Value{Kind: KindWide, Bits: LoadWide(in.regs, inst.AA())}
	return sigReturn
}

func opReturnObject(in *Interpreter, inst Inst) signal {
	in.retval = ObjectValue(in.regs.Ref(inst.AA()))
	return sigReturn
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

func opConst4(in *Interpreter, inst Inst) signal {
	in.regs.SetInt(inst.A(), int32(int16(inst))>>12)
	return in.finish(1)
}

func opConst16(in *Interpreter, inst Inst) signal {
	in.regs.SetInt(inst.AA(), int32(int16(in.fetch(1))))
	return in.finish(2)
}

func opConst(in *Interpreter, inst Inst) signal {
	in.regs[inst.AA()] = in.fetch32(1)
	return in.finish(3)
}

func opConstHigh16(in *Interpreter, inst Inst) signal {
	in.regs[inst.AA()] = uint32(in.fetch(1)) << 16
	return in.finish(2)
}

func opConstWide16(in *Interpreter, inst Inst) signal {
	in.regs.SetWide(inst.AA(), int64(int16(in.fetch(1))))
	return in.finish(2)
}

func opConstWide32(in *Interpreter, inst Inst) signal {
	in.regs.SetWide(inst.AA(), int64(int32(in.fetch32(1))))
	return in.finish(3)
}

func opConstWide(in *Interpreter, inst Inst) signal {
	v := uint64(in.fetch32(1)) | uint64(in.fetch32(3))<<32
	StoreWide(in.regs, inst.AA(), v)
	return in.finish(5)
}

func opConstWideHigh16(in *Interpreter, inst Inst) signal {
	StoreWide(in.regs, inst.AA(), uint64(in.fetch(1))<<48)
	return in.finish(2)
}

func opConstString(in *Interpreter, inst Inst) signal {
	idx, width := uint32(in.fetch(1)), 2
	if inst.Op() == OpConstStringJumbo {
		idx, width = in.fetch32(1), 3
	}
	r, err := cachedAt(in.method, in.pc, func() (Ref, error) {
		return in.rt.ResolveString(in.method, idx)
	})
	if err != nil {
		return in.throwErr(err)
	}
	in.regs.SetRef(inst.AA(), r)
	return in.finish(width)
}

func opConstClass(in *Interpreter, inst Inst) signal {
	c, err := in.resolveClass(uint32(in.fetch(1)))
	if err != nil {
		return in.throwErr(err)
	}
	r, err := in.rt.ClassObject(c)
	if err != nil {
		return in.throwErr(err)
	}
	in.regs.SetRef(inst.AA(), r)
	return in.finish(2)
}

// resolveClass resolves a type index, caching the class on the call site.
func (in *Interpreter) resolveClass(idx uint32) (*Class, error) {
	return cachedAt(in.method, in.pc, func() (*Class, error) {
		return in.rt.ResolveClass(in.method, idx)
	})
}
