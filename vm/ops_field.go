package vm

// Instance and static field access, including the volatile and quick
// forms.

// fieldAccess describes what a field opcode moves.
type fieldAccess struct {
	typ      byte // 'I' for int, float and object words; 'J' for wide; Z B C S for narrow
	put      bool
	volatile bool
}

var fieldAccesses [256]fieldAccess

func init() {
	const kinds = "IJIZBCS"
	for i := 0; i < 14; i++ {
		acc := fieldAccess{typ: kinds[i%7], put: i >= 7}
		fieldAccesses[OpIget+Opcode(i)] = acc
		fieldAccesses[OpSget+Opcode(i)] = acc
	}
	for op, acc := range map[Opcode]fieldAccess{
		OpIgetVolatile:       {'I', false, true},
		OpIputVolatile:       {'I', true, true},
		OpSgetVolatile:       {'I', false, true},
		OpSputVolatile:       {'I', true, true},
		OpIgetObjectVolatile: {'I', false, true},
		OpIgetWideVolatile:   {'J', false, true},
		OpIputWideVolatile:   {'J', true, true},
		OpSgetWideVolatile:   {'J', false, true},
		OpSputWideVolatile:   {'J', true, true},
		OpIputObjectVolatile: {'I', true, true},
		OpSgetObjectVolatile: {'I', false, true},
		OpSputObjectVolatile: {'I', true, true},
		OpIgetQuick:          {'I', false, false},
		OpIgetWideQuick:      {'J', false, false},
		OpIgetObjectQuick:    {'I', false, false},
		OpIputQuick:          {'I', true, false},
		OpIputWideQuick:      {'J', true, false},
		OpIputObjectQuick:    {'I', true, false},
	} {
		fieldAccesses[op] = acc
	}
}

// narrow truncates a register word to a narrow field type and extends it
// back to register form.
func narrow(typ byte, v uint32) uint32 {
	switch typ {
	case 'Z':
		return uint32(uint8(v))
	case 'B':
		return uint32(int32(int8(v)))
	case 'C':
		return uint32(uint16(v))
	case 'S':
		return uint32(int32(int16(v)))
	}
	return v
}

// resolveField resolves the field index at unit 1, caching the result on
// the instruction. Static fields get their class initialized first and are
// cached only once that initialization has completed.
func (in *Interpreter) resolveField(static bool) (*Field, error) {
	idx := uint32(in.fetch(1))
	return cachedWhen(in.method, in.pc, func() (*Field, bool, error) {
		f, err := in.rt.ResolveField(in.method, idx, static)
		if err != nil {
			return nil, false, err
		}
		if !static {
			return f, true, nil
		}
		if err := in.rt.InitClass(in, f.Class); err != nil {
			return nil, false, err
		}
		return f, f.Class.Initialized(), nil
	})
}

func opInstanceField(in *Interpreter, inst Inst) signal {
	acc := fieldAccesses[inst.Op()]
	obj := in.rt.Object(in.regs.Ref(inst.B()))
	if obj == nil {
		return in.throw(nullPointer("field access on null object"))
	}

	var slot int
	switch inst.Op() {
	case OpIgetQuick, OpIgetWideQuick, OpIgetObjectQuick,
		OpIputQuick, OpIputWideQuick, OpIputObjectQuick:
		slot = int(in.fetch(1))
	default:
		f, err := in.resolveField(false)
		if err != nil {
			return in.throwErr(err)
		}
		slot = f.Slot
	}

	a := inst.A()
	switch {
	case acc.typ == 'J' && acc.put:
		v := LoadWide(in.regs, a)
		if acc.volatile {
			obj.SetWideVolatile(slot, v)
		} else {
			obj.SetWide(slot, v)
		}
	case acc.typ == 'J':
		var v uint64
		if acc.volatile {
			v = obj.WideVolatile(slot)
		} else {
			v = obj.Wide(slot)
		}
		StoreWide(in.regs, a, v)
	case acc.put:
		v := narrow(acc.typ, in.regs[a])
		if acc.volatile {
			obj.SetWordVolatile(slot, v)
		} else {
			obj.SetWord(slot, v)
		}
	default:
		var v uint32
		if acc.volatile {
			v = obj.WordVolatile(slot)
		} else {
			v = obj.Word(slot)
		}
		in.regs[a] = narrow(acc.typ, v)
	}
	return in.finish(2)
}

func opStaticField(in *Interpreter, inst Inst) signal {
	acc := fieldAccesses[inst.Op()]
	in.exportPC()
	f, err := in.resolveField(true)
	if err != nil {
		return in.throwErr(err)
	}

	a := inst.AA()
	switch {
	case acc.typ == 'J' && acc.put:
		f.SetStaticWide(LoadWide(in.regs, a))
	case acc.typ == 'J':
		StoreWide(in.regs, a, f.StaticWide())
	case acc.put:
		f.SetStaticWord(narrow(acc.typ, in.regs[a]))
	default:
		in.regs[a] = narrow(acc.typ, f.StaticWord())
	}
	return in.finish(2)
}
