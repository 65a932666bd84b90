package vm

// Object creation, type checks, monitors and throws.

func opMonitorEnter(in *Interpreter, inst Inst) signal {
	r := in.regs.Ref(inst.AA())
	if r == Null {
		return in.throw(nullPointer("monitor-enter on null object"))
	}
	in.exportPC()
	if err := in.rt.Lock(in, r); err != nil {
		return in.throwErr(err)
	}
	return in.finish(1)
}

// opMonitorExit reports its faults at the following instruction, so a
// catch-all covering the monitor-exit itself does not loop on it.
func opMonitorExit(in *Interpreter, inst Inst) signal {
	r := in.regs.Ref(inst.AA())
	if r == Null {
		in.pc++
		return in.throw(nullPointer("monitor-exit on null object"))
	}
	if err := in.rt.Unlock(in, r); err != nil {
		in.pc++
		return in.throwErr(err)
	}
	return in.finish(1)
}

func opCheckCast(in *Interpreter, inst Inst) signal {
	r := in.regs.Ref(inst.AA())
	if r != Null {
		c, err := in.resolveClass(uint32(in.fetch(1)))
		if err != nil {
			return in.throwErr(err)
		}
		obj := in.rt.Object(r)
		if obj == nil || !in.rt.InstanceOf(obj, c) {
			var from string
			if obj != nil {
				from = obj.Class.Descriptor
			}
			return in.throw(NewFault(FaultClassCast, "%s cannot be cast to %s", from, c))
		}
	}
	return in.finish(2)
}

func opInstanceOf(in *Interpreter, inst Inst) signal {
	r := in.regs.Ref(inst.B())
	if r == Null {
		in.regs.SetInt(inst.A(), 0)
		return in.finish(2)
	}
	c, err := in.resolveClass(uint32(in.fetch(1)))
	if err != nil {
		return in.throwErr(err)
	}
	var v int32
	if obj := in.rt.Object(r); obj != nil && in.rt.InstanceOf(obj, c) {
		v = 1
	}
	in.regs.SetInt(inst.A(), v)
	return in.finish(2)
}

func opNewInstance(in *Interpreter, inst Inst) signal {
	in.exportPC()
	c, err := in.resolveClass(uint32(in.fetch(1)))
	if err != nil {
		return in.throwErr(err)
	}
	if err := in.rt.InitClass(in, c); err != nil {
		return in.throwErr(err)
	}
	if c.IsInterface() || c.IsAbstract() {
		return in.throw(NewFault(FaultInstantiation, "%s", c))
	}
	r, err := in.rt.AllocObject(c)
	if err != nil {
		return in.throwErr(err)
	}
	in.regs.SetRef(inst.AA(), r)
	return in.finish(2)
}

func opThrow(in *Interpreter, inst Inst) signal {
	r := in.regs.Ref(inst.AA())
	if r == Null {
		return in.throw(nullPointer("throw with null exception"))
	}
	return in.throw(&Fault{Kind: FaultThrown, Exception: r})
}

// verificationFaults maps the kind operand of throw-verification-error.
var verificationFaults = map[int]FaultKind{
	2: FaultNoClassDef,
	3: FaultNoSuchField,
	4: FaultNoSuchMethod,
}

func opThrowVerificationError(in *Interpreter, inst Inst) signal {
	// The top two bits of AA hold the reference type.
	kind, ok := verificationFaults[inst.AA()&0x3f]
	if !ok {
		kind = FaultVerification
	}
	return in.throw(NewFault(kind, "verification failed in %s, ref %d", in.method, in.fetch(1)))
}

func opBreakpoint(in *Interpreter, inst Inst) signal {
	abortf("breakpoint in %s @%04x", in.method, in.pc)
	return sigNext
}

func opUnused(in *Interpreter, inst Inst) signal {
	abortf("unused opcode 0x%02x in %s @%04x", uint8(inst.Op()), in.method, in.pc)
	return sigNext
}
