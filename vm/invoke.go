package vm

// ---------------------------------------------------------------------------
// Method invocation
// ---------------------------------------------------------------------------
//
// An invoke handler decodes its argument registers, selects the target
// method and leaves both in in.call. The dispatch loop then calls invoke,
// which copies the arguments into the caller's outs, links a frame for the
// callee and either enters it or runs the native bridge in place.

// invocation is a decoded invoke: its target and argument registers.
type invocation struct {
	method  *Method
	count   int
	isRange bool
	first   int    // range form: first argument register
	regs    [5]int // non-range form: argument registers in order
}

// reg returns the register holding argument i.
func (c *invocation) reg(i int) int {
	if c.isRange {
		return c.first + i
	}
	return c.regs[i]
}

// decodeArgs reads the argument list of a 35c/3rc-shaped instruction.
func (in *Interpreter) decodeArgs(inst Inst, isRange bool) invocation {
	if isRange {
		return invocation{count: inst.AA(), isRange: true, first: int(in.fetch(2))}
	}
	c := invocation{count: inst.B()}
	if c.count > 5 {
		abortf("invoke with %d arguments", c.count)
	}
	units := in.fetch(2)
	for i := 0; i < 4; i++ {
		c.regs[i] = int(units>>(4*i)) & 0x0f
	}
	c.regs[4] = inst.A()
	return c
}

// receiver returns the object in the first argument register, or nil with
// a pending NullPointerException.
func (in *Interpreter) receiver(c *invocation) *Object {
	if c.count == 0 {
		abortf("instance invoke without receiver")
	}
	obj := in.rt.Object(in.regs.Ref(c.reg(0)))
	if obj == nil {
		in.throw(nullPointer("invoke on null reference"))
	}
	return obj
}

// resolveMethod resolves the method index at unit 1, caching the result
// on the call site. Static targets get their class initialized, and are
// cached only once that initialization has completed.
func (in *Interpreter) resolveMethod(kind MethodKind) (*Method, error) {
	idx := uint32(in.fetch(1))
	return cachedWhen(in.method, in.pc, func() (*Method, bool, error) {
		m, err := in.rt.ResolveMethod(in.method, idx, kind)
		if err != nil {
			return nil, false, err
		}
		if kind != MethodStatic {
			return m, true, nil
		}
		if err := in.rt.InitClass(in, m.Class); err != nil {
			return nil, false, err
		}
		return m, m.Class.Initialized(), nil
	})
}

// vtableTarget selects slot idx of a vtable.
func (in *Interpreter) vtableTarget(vtable []*Method, idx int, base string) (*Method, *Fault) {
	if idx < 0 || idx >= len(vtable) || vtable[idx] == nil {
		return nil, NewFault(FaultNoSuchMethod, "vtable index %d out of range for %s", idx, base)
	}
	m := vtable[idx]
	if m.IsAbstract() {
		return nil, NewFault(FaultAbstractMethod, "%s", m)
	}
	return m, nil
}

func (in *Interpreter) prepare(c invocation, m *Method) signal {
	c.method = m
	in.call = c
	return sigInvoke
}

func opInvokeVirtual(in *Interpreter, inst Inst) signal {
	return in.invokeVirtual(inst, inst.Op() == OpInvokeVirtualRange)
}

func (in *Interpreter) invokeVirtual(inst Inst, isRange bool) signal {
	in.exportPC()
	c := in.decodeArgs(inst, isRange)
	base, err := in.resolveMethod(MethodVirtual)
	if err != nil {
		return in.throwErr(err)
	}
	obj := in.receiver(&c)
	if obj == nil {
		return sigThrow
	}
	m, f := in.vtableTarget(obj.Class.VTable, base.MethodIndex, base.String())
	if f != nil {
		return in.throw(f)
	}
	return in.prepare(c, m)
}

func opInvokeSuper(in *Interpreter, inst Inst) signal {
	in.exportPC()
	c := in.decodeArgs(inst, inst.Op() == OpInvokeSuperRange)
	base, err := in.resolveMethod(MethodSuper)
	if err != nil {
		return in.throwErr(err)
	}
	if in.receiver(&c) == nil {
		return sigThrow
	}
	super := in.method.Class.Super
	if super == nil {
		return in.throw(NewFault(FaultNoSuchMethod, "%s has no superclass", in.method.Class))
	}
	m, f := in.vtableTarget(super.VTable, base.MethodIndex, base.String())
	if f != nil {
		return in.throw(f)
	}
	return in.prepare(c, m)
}

func opInvokeDirect(in *Interpreter, inst Inst) signal {
	op := inst.Op()
	in.exportPC()
	c := in.decodeArgs(inst, op == OpInvokeDirectRange || op == OpInvokeObjectInitRange)
	m, err := in.resolveMethod(MethodDirect)
	if err != nil {
		return in.throwErr(err)
	}
	if in.receiver(&c) == nil {
		return sigThrow
	}
	return in.prepare(c, m)
}

func opInvokeStatic(in *Interpreter, inst Inst) signal {
	in.exportPC()
	c := in.decodeArgs(inst, inst.Op() == OpInvokeStaticRange)
	m, err := in.resolveMethod(MethodStatic)
	if err != nil {
		return in.throwErr(err)
	}
	return in.prepare(c, m)
}

func opInvokeInterface(in *Interpreter, inst Inst) signal {
	in.exportPC()
	c := in.decodeArgs(inst, inst.Op() == OpInvokeInterfaceRange)
	idx := uint32(in.fetch(1))
	site, err := cachedAt(in.method, in.pc, func() (*interfaceSite, error) {
		base, err := in.rt.ResolveMethod(in.method, idx, MethodInterface)
		if err != nil {
			return nil, err
		}
		return &interfaceSite{base: base}, nil
	})
	if err != nil {
		return in.throwErr(err)
	}
	obj := in.receiver(&c)
	if obj == nil {
		return sigThrow
	}

	m := site.ic.Lookup(obj.Class)
	if m == nil {
		m = obj.Class.FindVirtualMethod(site.base.Name, site.base.Signature)
		if m == nil {
			return in.throw(NewFault(FaultIncompatibleClassChange,
				"%s does not implement %s", obj.Class, site.base))
		}
		if m.IsAbstract() {
			return in.throw(NewFault(FaultAbstractMethod, "%s", m))
		}
		site.ic.Update(obj.Class, m)
	}
	return in.prepare(c, m)
}

func opInvokeVirtualQuick(in *Interpreter, inst Inst) signal {
	in.exportPC()
	c := in.decodeArgs(inst, inst.Op() == OpInvokeVirtualQuickRange)
	obj := in.receiver(&c)
	if obj == nil {
		return sigThrow
	}
	m, f := in.vtableTarget(obj.Class.VTable, int(in.fetch(1)), obj.Class.Descriptor)
	if f != nil {
		return in.throw(f)
	}
	return in.prepare(c, m)
}

func opInvokeSuperQuick(in *Interpreter, inst Inst) signal {
	in.exportPC()
	c := in.decodeArgs(inst, inst.Op() == OpInvokeSuperQuickRange)
	if in.receiver(&c) == nil {
		return sigThrow
	}
	super := in.method.Class.Super
	if super == nil {
		return in.throw(NewFault(FaultNoSuchMethod, "%s has no superclass", in.method.Class))
	}
	m, f := in.vtableTarget(super.VTable, int(in.fetch(1)), super.Descriptor)
	if f != nil {
		return in.throw(f)
	}
	return in.prepare(c, m)
}

// invoke performs the call staged in in.call.
func (in *Interpreter) invoke() signal {
	c := in.call
	in.call = invocation{}
	callee := c.method

	if c.count > in.method.OutsSize {
		abortf("invoke of %s passes %d args but %s has %d outs", callee, c.count, in.method, in.method.OutsSize)
	}
	if c.count != callee.InsSize {
		abortf("invoke of %s passes %d args, expected %d", callee, c.count, callee.InsSize)
	}

	outs := in.stack[saveArea(in.fp)-c.count : saveArea(in.fp)]
	for i := range outs {
		outs[i] = in.regs[c.reg(i)]
	}

	size := windowSize(callee)
	newFP := saveArea(in.fp) - size
	if frameBottom(newFP, callee) < 0 {
		return in.throw(NewFault(FaultStackOverflow, "stack size %d slots, calling %s", len(in.stack), callee))
	}

	in.exportPC()
	in.pushFrame(Frame{FP: newFP, PrevFP: in.fp, SavedPC: in.pc, Method: callee})

	if !callee.IsNative() {
		in.enterFrame()
		return sigNext
	}

	if callee.Native == nil {
		in.popFrame()
		return in.throw(NewFault(FaultNoSuchMethod, "no native implementation for %s", callee))
	}
	args := Registers(in.stack[newFP+size-callee.InsSize : newFP+size])
	v, err := callee.Native(in, args, callee)
	in.popFrame()
	if err != nil {
		return in.throwErr(err)
	}
	in.retval = v
	return in.finish(3)
}

// ---------------------------------------------------------------------------
// execute-inline
// ---------------------------------------------------------------------------

func opExecuteInline(in *Interpreter, inst Inst) signal {
	var args [4]uint32
	if inst.Op() == OpExecuteInlineRange {
		count, first := inst.AA(), int(in.fetch(2))
		if count > 4 {
			abortf("execute-inline/range with %d arguments", count)
		}
		for i := 0; i < count; i++ {
			args[i] = in.regs[first+i]
		}
	} else {
		count, units := inst.B(), in.fetch(2)
		if count > 4 {
			abortf("execute-inline with %d arguments", count)
		}
		for i := 0; i < count; i++ {
			args[i] = in.regs[int(units>>(4*i))&0x0f]
		}
	}

	if in.inliner == nil {
		abortf("execute-inline without inline operations")
	}
	in.exportPC()
	v, err := in.inliner.Inline(in, int(in.fetch(1)), args)
	if err != nil {
		return in.throwErr(err)
	}
	in.retval = v
	return in.finish(3)
}
