package vm

import (
	"sync/atomic"
)

// fakeRuntime is a minimal in-memory Runtime for interpreter tests.
// Constant-pool indices are plain slice indices.
type fakeRuntime struct {
	objects []*Object
	classes map[string]*Class

	strings   []string
	types     []*Class
	fields    []*Field
	methods   []*Method
	classObjs map[*Class]Ref

	locks   map[Ref]int
	suspend atomic.Bool
	honored int
	inits   []*Class
}

func newFakeRuntime() *fakeRuntime {
	rt := &fakeRuntime{
		objects:   []*Object{nil},
		classes:   map[string]*Class{},
		classObjs: map[*Class]Ref{},
		locks:     map[Ref]int{},
	}
	obj := rt.class(ObjectDescriptor, nil)
	rt.class("Ljava/lang/Class;", obj)
	rt.class("Ljava/lang/String;", obj)
	rt.class("Ljava/lang/Throwable;", obj)
	return rt
}

// class returns the class for desc, defining it with the given super on
// first use. Array and exception classes are created on demand.
func (rt *fakeRuntime) class(desc string, super *Class) *Class {
	if c, ok := rt.classes[desc]; ok {
		return c
	}
	c := &Class{Descriptor: desc, Super: super, Linked: true}
	if len(desc) > 1 && desc[0] == '[' {
		c.Super = rt.classes[ObjectDescriptor]
		c.ComponentType = rt.class(desc[1:], nil)
	}
	rt.classes[desc] = c
	return c
}

func (rt *fakeRuntime) alloc(o *Object) Ref {
	rt.objects = append(rt.objects, o)
	return Ref(len(rt.objects) - 1)
}

func (rt *fakeRuntime) ResolveString(_ *Method, idx uint32) (Ref, error) {
	o := NewInstance(rt.classes["Ljava/lang/String;"])
	o.Payload = rt.strings[idx]
	return rt.alloc(o), nil
}

func (rt *fakeRuntime) ResolveClass(_ *Method, idx uint32) (*Class, error) {
	if int(idx) >= len(rt.types) {
		return nil, NewFault(FaultNoClassDef, "type@%d", idx)
	}
	return rt.types[idx], nil
}

func (rt *fakeRuntime) ResolveField(_ *Method, idx uint32, static bool) (*Field, error) {
	if int(idx) >= len(rt.fields) || rt.fields[idx].IsStatic() != static {
		return nil, NewFault(FaultNoSuchField, "field@%d", idx)
	}
	return rt.fields[idx], nil
}

func (rt *fakeRuntime) ResolveMethod(_ *Method, idx uint32, _ MethodKind) (*Method, error) {
	if int(idx) >= len(rt.methods) {
		return nil, NewFault(FaultNoSuchMethod, "method@%d", idx)
	}
	return rt.methods[idx], nil
}

func (rt *fakeRuntime) Object(r Ref) *Object {
	if int(r) >= len(rt.objects) {
		return nil
	}
	return rt.objects[r]
}

func (rt *fakeRuntime) AllocObject(c *Class) (Ref, error) { return rt.alloc(NewInstance(c)), nil }

func (rt *fakeRuntime) AllocArray(c *Class, n int) (Ref, error) {
	return rt.alloc(NewArray(c, n)), nil
}

func (rt *fakeRuntime) ClassObject(c *Class) (Ref, error) {
	if r, ok := rt.classObjs[c]; ok {
		return r, nil
	}
	o := NewInstance(rt.classes["Ljava/lang/Class;"])
	o.Payload = c
	r := rt.alloc(o)
	rt.classObjs[c] = r
	return r, nil
}

func (rt *fakeRuntime) InitClass(in *Interpreter, c *Class) error {
	if c.Initialized() {
		return nil
	}
	c.MarkInitialized()
	rt.inits = append(rt.inits, c)
	if clinit := c.FindDirectMethod("<clinit>", "()V"); clinit != nil {
		_, err := in.Execute(clinit, Null)
		return err
	}
	return nil
}

func (rt *fakeRuntime) Lock(_ *Interpreter, r Ref) error {
	rt.locks[r]++
	return nil
}

func (rt *fakeRuntime) Unlock(_ *Interpreter, r Ref) error {
	if rt.locks[r] == 0 {
		return NewFault(FaultIllegalMonitorState, "not owner")
	}
	rt.locks[r]--
	return nil
}

func (rt *fakeRuntime) InstanceOf(obj *Object, c *Class) bool { return obj.Class.AssignableTo(c) }

func (rt *fakeRuntime) CanPutArrayElement(elem, array *Class) bool {
	return elem.AssignableTo(array.ComponentType)
}

func (rt *fakeRuntime) NewThrowable(_ *Interpreter, f *Fault) (Ref, error) {
	c := rt.class(f.Kind.Descriptor(), rt.classes["Ljava/lang/Throwable;"])
	o := NewInstance(c)
	o.Payload = f.Message
	return rt.alloc(o), nil
}

func (rt *fakeRuntime) SuspendRequested(*Interpreter) bool { return rt.suspend.Load() }

func (rt *fakeRuntime) HonorSuspend(*Interpreter) {
	rt.honored++
	rt.suspend.Store(false)
}

func (rt *fakeRuntime) FindCatch(_ *Interpreter, m *Method, pc int, exc Ref) (int, bool) {
	ec := rt.Object(exc).Class
	for _, try := range m.Tries {
		if pc < try.Start || pc >= try.End {
			continue
		}
		for _, h := range try.Handlers {
			if h.Type == "" {
				return h.Addr, true
			}
			if c, ok := rt.classes[h.Type]; ok && ec.AssignableTo(c) {
				return h.Addr, true
			}
		}
	}
	return 0, false
}

// fakeInliner adds execute-inline support: index 0 is Math.abs(I)I.
type fakeInliner struct{ *fakeRuntime }

func (fakeInliner) Inline(_ *Interpreter, index int, args [4]uint32) (Value, error) {
	if index != 0 {
		return Value{}, NewFault(FaultInternal, "inline %d", index)
	}
	v := int32(args[0])
	if v < 0 {
		v = -v
	}
	return IntValue(v), nil
}

// staticMethod builds a static method from assembled code.
func staticMethod(name, sig string, regs, outs int, code []uint16) *Method {
	ins, err := ArgSlots(sig, true)
	if err != nil {
		panic(err)
	}
	return &Method{
		Class: &Class{Descriptor: "LTest;"}, Name: name, Signature: sig,
		AccessFlags: AccStatic, RegistersSize: regs, InsSize: ins, OutsSize: outs, Insns: code,
	}
}
