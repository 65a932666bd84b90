package vm

// Array creation and element access.

func opArrayLength(in *Interpreter, inst Inst) signal {
	arr := in.rt.Object(in.regs.Ref(inst.B()))
	if arr == nil {
		return in.throw(nullPointer("array-length on null array"))
	}
	in.regs.SetInt(inst.A(), int32(arr.Length))
	return in.finish(1)
}

func opNewArray(in *Interpreter, inst Inst) signal {
	length := in.regs.Int(inst.B())
	if length < 0 {
		return in.throw(NewFault(FaultNegativeArraySize, "%d", length))
	}
	in.exportPC()
	c, err := in.resolveClass(uint32(in.fetch(1)))
	if err != nil {
		return in.throwErr(err)
	}
	r, err := in.rt.AllocArray(c, int(length))
	if err != nil {
		return in.throwErr(err)
	}
	in.regs.SetRef(inst.A(), r)
	return in.finish(2)
}

// opFilledNewArray builds an int or reference array from its argument
// registers and leaves it in the result register.
func opFilledNewArray(in *Interpreter, inst Inst) signal {
	in.exportPC()
	c := in.decodeArgs(inst, inst.Op() == OpFilledNewArrayRange)
	class, err := in.resolveClass(uint32(in.fetch(1)))
	if err != nil {
		return in.throwErr(err)
	}
	if !class.IsArray() {
		abortf("filled-new-array of non-array %s", class)
	}
	switch comp := class.Descriptor[1]; comp {
	case 'J', 'D':
		return in.throw(NewFault(FaultRuntime, "bad filled array req"))
	case 'I', 'L', '[':
	default:
		return in.throw(NewFault(FaultInternal, "filled-new-array not implemented for %s", class))
	}

	r, err := in.rt.AllocArray(class, c.count)
	if err != nil {
		return in.throwErr(err)
	}
	arr := in.rt.Object(r)
	for i := 0; i < c.count; i++ {
		arr.SetElement(i, uint64(in.regs[c.reg(i)]))
	}
	in.retval = ObjectValue(r)
	return in.finish(3)
}

func opFillArrayData(in *Interpreter, inst Inst) signal {
	arr := in.rt.Object(in.regs.Ref(inst.AA()))
	if arr == nil {
		return in.throw(nullPointer("fill-array-data on null array"))
	}
	table := in.payload(int32(in.fetch32(1)))
	if err := FillArrayData(arr, table); err != nil {
		return in.throwErr(err)
	}
	return in.finish(3)
}

// element decodes the array and index operands of an aget/aput and checks
// them, raising a fault when the array is null or the index out of range.
func (in *Interpreter) element() (*Object, int, bool) {
	b, c := in.operands23x()
	arr := in.rt.Object(in.regs.Ref(b))
	if arr == nil {
		in.throw(nullPointer("array access on null array"))
		return nil, 0, false
	}
	idx := in.regs.Int(c)
	if uint32(idx) >= uint32(arr.Length) {
		in.throw(indexOutOfBounds(arr.Length, idx))
		return nil, 0, false
	}
	return arr, int(idx), true
}

// opAget covers every aget form; Element narrows and extends by the
// array's component type.
func opAget(in *Interpreter, inst Inst) signal {
	arr, i, ok := in.element()
	if !ok {
		return sigThrow
	}
	if inst.Op() == OpAgetWide {
		StoreWide(in.regs, inst.AA(), arr.Element(i))
	} else {
		in.regs[inst.AA()] = uint32(arr.Element(i))
	}
	return in.finish(2)
}

func opAput(in *Interpreter, inst Inst) signal {
	arr, i, ok := in.element()
	if !ok {
		return sigThrow
	}
	if inst.Op() == OpAputWide {
		arr.SetElement(i, LoadWide(in.regs, inst.AA()))
	} else {
		arr.SetElement(i, uint64(in.regs[inst.AA()]))
	}
	return in.finish(2)
}

func opAputObject(in *Interpreter, inst Inst) signal {
	arr, i, ok := in.element()
	if !ok {
		return sigThrow
	}
	r := in.regs.Ref(inst.AA())
	if r != Null {
		elem := in.rt.Object(r)
		if elem == nil || !in.rt.CanPutArrayElement(elem.Class, arr.Class) {
			var what string
			if elem != nil {
				what = elem.Class.Descriptor
			}
			return in.throw(NewFault(FaultArrayStore, "%s cannot be stored in an array of type %s", what, arr.Class))
		}
	}
	arr.SetRefElement(i, r)
	return in.finish(2)
}
