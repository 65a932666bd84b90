package vm

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tliron/commonlog"
)

func expectThrown(t *testing.T, err error, kind FaultKind) *ThrownError {
	t.Helper()
	var thrown *ThrownError
	if !errors.As(err, &thrown) {
		t.Fatalf("err = %v, want an uncaught %s", err, kind)
	}
	if thrown.Fault.Kind != kind {
		t.Fatalf("uncaught %s, want %s", thrown.Fault, kind)
	}
	return thrown
}

func expectAbort(t *testing.T, fn func()) *AbortError {
	t.Helper()
	var abort *AbortError
	func() {
		defer func() {
			abort, _ = recover().(*AbortError)
		}()
		fn()
	}()
	if abort == nil {
		t.Fatal("expected an AbortError panic")
	}
	return abort
}

func TestExecuteAddInt(t *testing.T) {
	b := NewCodeBuilder()
	b.Emit23x(OpAddInt, 0, 1, 2)
	b.Emit11x(OpReturn, 0)
	m := staticMethod("add", "(II)I", 3, 0, b.Code())

	in := NewInterpreter(newFakeRuntime())
	v, err := in.Execute(m, Null, IntArg(2), IntArg(40))
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 42 {
		t.Errorf("add = %d, want 42", v.Int())
	}
	if in.Depth() != 0 {
		t.Errorf("Depth = %d after return", in.Depth())
	}
}

func TestExecuteArgumentCount(t *testing.T) {
	m := staticMethod("add", "(II)I", 3, 0, []uint16{uint16(OpReturnVoid)})
	in := NewInterpreter(newFakeRuntime())
	_, err := in.Execute(m, Null, IntArg(1))
	if !errors.Is(err, ErrArgumentCount) {
		t.Errorf("err = %v, want ErrArgumentCount", err)
	}
	_, err = in.Execute(m, Null, IntArg(1), LongArg(2))
	if !errors.Is(err, ErrArgumentCount) {
		t.Errorf("wide arg: err = %v, want ErrArgumentCount", err)
	}
}

func TestBackwardBranchHonorsSuspend(t *testing.T) {
	b := NewCodeBuilder()
	loop, done := b.NewLabel(), b.NewLabel()
	b.EmitConst4(0, 0)
	b.Mark(loop)
	b.EmitIfz(OpIfLez, 1, done)
	b.Emit12x(OpAddInt2Addr, 0, 1)
	b.Emit22b(OpAddIntLit8, 1, 1, -1)
	b.EmitGoto(loop)
	b.Mark(done)
	b.Emit11x(OpReturn, 0)
	m := staticMethod("sum", "(I)I", 2, 0, b.Code())

	rt := newFakeRuntime()
	rt.suspend.Store(true)
	in := NewInterpreter(rt)
	v, err := in.Execute(m, Null, IntArg(10))
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 55 {
		t.Errorf("sum = %d, want 55", v.Int())
	}
	if rt.honored != 1 {
		t.Errorf("suspend honored %d times, want 1", rt.honored)
	}
}

func TestInvokeStaticWide(t *testing.T) {
	cb := NewCodeBuilder()
	cb.Emit23x(OpAddLong, 0, 0, 2)
	cb.Emit11x(OpReturnWide, 0)
	callee := staticMethod("addLong", "(JJ)J", 4, 0, cb.Code())

	b := NewCodeBuilder()
	b.Emit21(OpConstWide16, 0, 5)
	b.Emit21(OpConstWide16, 2, 7)
	b.Emit35c(OpInvokeStatic, 0, 0, 1, 2, 3)
	b.Emit11x(OpMoveResultWide, 0)
	b.Emit11x(OpReturnWide, 0)
	caller := staticMethod("main", "()J", 4, 4, b.Code())

	rt := newFakeRuntime()
	rt.methods = []*Method{callee}
	in := NewInterpreter(rt)
	v, err := in.Execute(caller, Null)
	if err != nil {
		t.Fatal(err)
	}
	if v.Long() != 12 {
		t.Errorf("result = %d, want 12", v.Long())
	}
	if len(rt.inits) != 1 || rt.inits[0] != callee.Class {
		t.Errorf("static invoke did not initialize the callee's class: %v", rt.inits)
	}
}

// hierarchy builds Base <- Derived with an overridden speak()I and a
// Speaker interface implemented by Derived.
type hierarchy struct {
	rt                *fakeRuntime
	base, derived     *Class
	iface             *Class
	baseSpeak, ifaceM *Method
	baseRef, derivRef Ref
	plainRef          Ref
}

func constMethod(c *Class, v int8) *Method {
	b := NewCodeBuilder()
	b.EmitConst4(0, v)
	b.Emit11x(OpReturn, 0)
	return &Method{Class: c, Name: "speak", Signature: "()I", RegistersSize: 2, InsSize: 1, Insns: b.Code()}
}

func newHierarchy() *hierarchy {
	h := &hierarchy{rt: newFakeRuntime()}
	obj := h.rt.classes[ObjectDescriptor]
	h.iface = h.rt.class("LSpeaker;", nil)
	h.iface.AccessFlags = AccInterface | AccAbstract
	h.ifaceM = &Method{Class: h.iface, Name: "speak", Signature: "()I", AccessFlags: AccAbstract, InsSize: 1}
	h.iface.VirtualMethods = []*Method{h.ifaceM}

	h.base = h.rt.class("LBase;", obj)
	h.baseSpeak = constMethod(h.base, 1)
	h.base.VirtualMethods = []*Method{h.baseSpeak}
	h.base.VTable = []*Method{h.baseSpeak}

	h.derived = h.rt.class("LDerived;", h.base)
	h.derived.Interfaces = []*Class{h.iface}
	derivedSpeak := constMethod(h.derived, 2)
	h.derived.VirtualMethods = []*Method{derivedSpeak}
	h.derived.VTable = []*Method{derivedSpeak}

	h.baseRef, _ = h.rt.AllocObject(h.base)
	h.derivRef, _ = h.rt.AllocObject(h.derived)
	h.plainRef, _ = h.rt.AllocObject(obj)
	h.rt.methods = []*Method{h.baseSpeak, h.ifaceM}
	return h
}

func callSpeak(op Opcode, ref uint16) *Method {
	b := NewCodeBuilder()
	b.Emit35c(op, ref, 0)
	b.Emit11x(OpMoveResult, 0)
	b.Emit11x(OpReturn, 0)
	return staticMethod("call", "(Ljava/lang/Object;)I", 1, 1, b.Code())
}

func TestInvokeVirtualDispatch(t *testing.T) {
	h := newHierarchy()
	m := callSpeak(OpInvokeVirtual, 0)
	in := NewInterpreter(h.rt)

	tests := []struct {
		name string
		recv Ref
		want int32
	}{
		{"base", h.baseRef, 1},
		{"override", h.derivRef, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := in.Execute(m, Null, RefArg(tt.recv))
			if err != nil {
				t.Fatal(err)
			}
			if v.Int() != tt.want {
				t.Errorf("speak = %d, want %d", v.Int(), tt.want)
			}
		})
	}
}

func TestInvokeVirtualQuickUsesVTableIndex(t *testing.T) {
	h := newHierarchy()
	in := NewInterpreter(h.rt)
	v, err := in.Execute(callSpeak(OpInvokeVirtualQuick, 0), Null, RefArg(h.derivRef))
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 2 {
		t.Errorf("speak = %d, want 2", v.Int())
	}

	_, err = in.Execute(callSpeak(OpInvokeVirtualQuick, 5), Null, RefArg(h.derivRef))
	expectThrown(t, err, FaultNoSuchMethod)
}

func TestInvokeOnNullReceiver(t *testing.T) {
	h := newHierarchy()
	in := NewInterpreter(h.rt)
	m := callSpeak(OpInvokeVirtual, 0)
	_, err := in.Execute(m, Null, RefArg(Null))
	thrown := expectThrown(t, err, FaultNullPointer)

	want := []StackElement{{Class: "LTest;", Method: "call(Ljava/lang/Object;)I", PC: 0}}
	if diff := cmp.Diff(want, thrown.Trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
	if h.rt.Object(thrown.Exception) == nil {
		t.Error("exception object was not materialized")
	}
}

func TestInvokeInterfaceCachesReceiver(t *testing.T) {
	h := newHierarchy()
	m := callSpeak(OpInvokeInterface, 1)
	in := NewInterpreter(h.rt)

	for i := 0; i < 3; i++ {
		v, err := in.Execute(m, Null, RefArg(h.derivRef))
		if err != nil {
			t.Fatal(err)
		}
		if v.Int() != 2 {
			t.Fatalf("speak = %d, want 2", v.Int())
		}
	}
	ic := InterfaceCache(m, 0)
	if ic == nil {
		t.Fatal("no inline cache at the call site")
	}
	if ic.State != CacheMonomorphic || ic.Hits != 2 || ic.Misses != 1 {
		t.Errorf("cache state=%v hits=%d misses=%d", ic.State, ic.Hits, ic.Misses)
	}

	_, err := in.Execute(m, Null, RefArg(h.plainRef))
	expectThrown(t, err, FaultIncompatibleClassChange)
}

func TestInvokeSuper(t *testing.T) {
	h := newHierarchy()
	b := NewCodeBuilder()
	b.Emit35c(OpInvokeSuper, 0, 0)
	b.Emit11x(OpMoveResult, 0)
	b.Emit11x(OpReturn, 0)
	m := &Method{Class: h.derived, Name: "callSuper", Signature: "()I", RegistersSize: 1, InsSize: 1, OutsSize: 1, Insns: b.Code()}

	v, err := NewInterpreter(h.rt).Execute(m, h.derivRef)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 1 {
		t.Errorf("super.speak = %d, want 1", v.Int())
	}
}

func TestStackOverflowIsCatchable(t *testing.T) {
	rb := NewCodeBuilder()
	rb.Emit35c(OpInvokeStatic, 0)
	rb.Emit10x(OpReturnVoid)
	recurse := staticMethod("recurse", "()V", 0, 0, rb.Code())

	b := NewCodeBuilder()
	b.Emit21(OpConst16, 0, 1234)
	b.Emit35c(OpInvokeStatic, 0)
	b.Emit11x(OpReturn, 0)
	b.Emit11x(OpMoveException, 1)
	b.Emit11x(OpReturn, 0)
	guard := staticMethod("guard", "()I", 2, 0, b.Code())
	guard.Tries = []TryBlock{{Start: 2, End: 5, Handlers: []CatchHandler{{Addr: 6}}}}

	rt := newFakeRuntime()
	rt.methods = []*Method{recurse}
	in := NewInterpreter(rt, WithStackSize(256))

	v, err := in.Execute(guard, Null)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 1234 {
		t.Errorf("caller register clobbered: got %d, want 1234", v.Int())
	}
	if in.Depth() != 0 {
		t.Errorf("Depth = %d after return", in.Depth())
	}

	_, err = in.Execute(recurse, Null)
	thrown := expectThrown(t, err, FaultStackOverflow)
	if len(thrown.Trace) < 10 {
		t.Errorf("trace has %d frames", len(thrown.Trace))
	}
	if in.Depth() != 0 {
		t.Errorf("Depth = %d after uncaught overflow", in.Depth())
	}
}

func TestEntryFrameOverflow(t *testing.T) {
	m := staticMethod("big", "()V", 100, 0, []uint16{uint16(OpReturnVoid)})
	_, err := NewInterpreter(newFakeRuntime(), WithStackSize(64)).Execute(m, Null)
	expectThrown(t, err, FaultStackOverflow)
}

func divMethod(handlerType string) *Method {
	b := NewCodeBuilder()
	b.EmitConst4(0, 1)
	b.Emit23x(OpDivInt, 0, 0, 2)
	b.Emit11x(OpReturn, 0)
	b.EmitConst4(0, -1)
	b.Emit11x(OpReturn, 0)
	m := staticMethod("div", "(I)I", 3, 0, b.Code())
	m.Tries = []TryBlock{{Start: 1, End: 3, Handlers: []CatchHandler{{Type: handlerType, Addr: 4}}}}
	return m
}

func TestCatchTypedHandler(t *testing.T) {
	in := NewInterpreter(newFakeRuntime())
	m := divMethod("Ljava/lang/ArithmeticException;")

	for _, tt := range []struct{ arg, want int32 }{{1, 1}, {0, -1}} {
		v, err := in.Execute(m, Null, IntArg(tt.arg))
		if err != nil {
			t.Fatal(err)
		}
		if v.Int() != tt.want {
			t.Errorf("div(%d) = %d, want %d", tt.arg, v.Int(), tt.want)
		}
	}

	_, err := in.Execute(divMethod("Ljava/lang/NullPointerException;"), Null, IntArg(0))
	thrown := expectThrown(t, err, FaultArithmetic)
	if thrown.Fault.Message != "divide by zero" {
		t.Errorf("message = %q", thrown.Fault.Message)
	}
	if thrown.Trace[0].PC != 1 {
		t.Errorf("fault reported at %04x, want 0001", thrown.Trace[0].PC)
	}
}

func TestThrowAndMoveException(t *testing.T) {
	rt := newFakeRuntime()
	exc := rt.class("LMyError;", rt.classes["Ljava/lang/Throwable;"])
	rt.types = []*Class{exc}

	b := NewCodeBuilder()
	b.Emit21(OpNewInstance, 0, 0)
	b.Emit11x(OpThrow, 0)
	b.Emit11x(OpMoveException, 1)
	b.Emit11x(OpReturnObject, 1)
	m := staticMethod("throwIt", "()Ljava/lang/Object;", 2, 0, b.Code())
	m.Tries = []TryBlock{{Start: 0, End: 3, Handlers: []CatchHandler{{Type: "LMyError;", Addr: 3}}}}

	in := NewInterpreter(rt)
	v, err := in.Execute(m, Null)
	if err != nil {
		t.Fatal(err)
	}
	if obj := rt.Object(v.Ref()); obj == nil || obj.Class != exc {
		t.Errorf("caught %v, want the thrown LMyError;", v)
	}

	_, err = in.Execute(staticMethod("throwNull", "()V", 1, 0, []uint16{uint16(OpConst4), uint16(OpThrow)}), Null)
	expectThrown(t, err, FaultNullPointer)
}

func TestNativeMethods(t *testing.T) {
	rt := newFakeRuntime()
	mul := &Method{
		Class: &Class{Descriptor: "LNative;"}, Name: "mul", Signature: "(II)I",
		AccessFlags: AccStatic | AccNative, InsSize: 2,
		Native: func(in *Interpreter, args Registers, m *Method) (Value, error) {
			return IntValue(args.Int(0) * args.Int(1)), nil
		},
	}
	fail := &Method{
		Class: &Class{Descriptor: "LNative;"}, Name: "fail", Signature: "()V",
		AccessFlags: AccStatic | AccNative,
		Native: func(*Interpreter, Registers, *Method) (Value, error) {
			return Value{}, NewFault(FaultIllegalMonitorState, "nope")
		},
	}
	rt.methods = []*Method{mul, fail}

	b := NewCodeBuilder()
	b.EmitConst4(0, 6)
	b.EmitConst4(1, 7)
	b.Emit35c(OpInvokeStatic, 0, 0, 1)
	b.Emit11x(OpMoveResult, 0)
	b.Emit11x(OpReturn, 0)
	caller := staticMethod("main", "()I", 2, 2, b.Code())

	in := NewInterpreter(rt)
	v, err := in.Execute(caller, Null)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 42 {
		t.Errorf("mul = %d, want 42", v.Int())
	}

	v, err = in.Execute(mul, Null, IntArg(3), IntArg(-3))
	if err != nil || v.Int() != -9 {
		t.Errorf("direct native call = %v, %v", v, err)
	}

	fb := NewCodeBuilder()
	fb.Emit35c(OpInvokeStatic, 1)
	fb.Emit10x(OpReturnVoid)
	_, err = in.Execute(staticMethod("callFail", "()V", 0, 0, fb.Code()), Null)
	thrown := expectThrown(t, err, FaultIllegalMonitorState)
	if thrown.Trace[0].Method != "callFail()V" {
		t.Errorf("fault raised in %s, want the caller", thrown.Trace[0].Method)
	}
}

func TestNativeReentersInterpreter(t *testing.T) {
	rt := newFakeRuntime()
	ab := NewCodeBuilder()
	ab.Emit22b(OpAddIntLit8, 0, 1, 1)
	ab.Emit11x(OpReturn, 0)
	addOne := staticMethod("addOne", "(I)I", 2, 0, ab.Code())

	twice := &Method{
		Class: &Class{Descriptor: "LNative;"}, Name: "twice", Signature: "(I)I",
		AccessFlags: AccStatic | AccNative, InsSize: 1,
		Native: func(in *Interpreter, args Registers, m *Method) (Value, error) {
			v, err := in.Execute(addOne, Null, IntArg(args.Int(0)))
			if err != nil {
				return Value{}, err
			}
			return in.Execute(addOne, Null, IntArg(v.Int()))
		},
	}
	rt.methods = []*Method{twice}

	b := NewCodeBuilder()
	b.EmitConst4(1, 5)
	b.Emit35c(OpInvokeStatic, 0, 1)
	b.Emit11x(OpMoveResult, 0)
	b.Emit23x(OpAddInt, 0, 0, 1)
	b.Emit11x(OpReturn, 0)
	caller := staticMethod("main", "()I", 2, 1, b.Code())

	v, err := NewInterpreter(rt).Execute(caller, Null)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 12 {
		t.Errorf("result = %d, want 12", v.Int())
	}
}

func TestInstanceFields(t *testing.T) {
	rt := newFakeRuntime()
	point := rt.class("LPoint;", rt.classes[ObjectDescriptor])
	point.InstanceSlots = 4
	x := &Field{Class: point, Name: "x", Type: "I", Slot: 0}
	w := &Field{Class: point, Name: "w", Type: "J", Slot: 1}
	bt := &Field{Class: point, Name: "b", Type: "B", Slot: 3}
	rt.fields = []*Field{x, w, bt}
	rt.types = []*Class{point}

	b := NewCodeBuilder()
	b.Emit21(OpNewInstance, 0, 0)
	b.EmitConst4(1, 7)
	b.Emit22(OpIput, 1, 0, 0)
	b.Emit22(OpIget, 2, 0, 0)
	b.Emit21(OpConstWide16, 3, 100)
	b.Emit22(OpIputWide, 3, 0, 1)
	b.Emit22(OpIgetWide, 3, 0, 1)
	b.Emit12x(OpIntToLong, 1, 2)
	b.Emit12x(OpAddLong2Addr, 1, 3)
	b.Emit11x(OpReturnWide, 1)
	m := staticMethod("fields", "()J", 5, 0, b.Code())

	in := NewInterpreter(rt)
	v, err := in.Execute(m, Null)
	if err != nil {
		t.Fatal(err)
	}
	if v.Long() != 107 {
		t.Errorf("result = %d, want 107", v.Long())
	}

	// iput-byte narrows, iget-byte sign-extends.
	nb := NewCodeBuilder()
	nb.Emit21(OpNewInstance, 0, 0)
	nb.Emit21(OpConst16, 1, 0x1ff)
	nb.Emit22(OpIputByte, 1, 0, 2)
	nb.Emit22(OpIgetByte, 1, 0, 2)
	nb.Emit11x(OpReturn, 1)
	v, err = in.Execute(staticMethod("narrow", "()I", 2, 0, nb.Code()), Null)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != -1 {
		t.Errorf("byte field = %d, want -1", v.Int())
	}

	qb := NewCodeBuilder()
	qb.Emit22(OpIgetQuick, 0, 0, 0)
	qb.Emit11x(OpReturn, 0)
	_, err = in.Execute(staticMethod("quick", "(LPoint;)I", 1, 0, qb.Code()), Null, RefArg(Null))
	expectThrown(t, err, FaultNullPointer)
}

func TestStaticFieldRunsClassInit(t *testing.T) {
	rt := newFakeRuntime()
	config := rt.class("LConfig;", rt.classes[ObjectDescriptor])
	counter := &Field{Class: config, Name: "counter", Type: "I", AccessFlags: AccStatic}
	config.StaticFields = []*Field{counter}
	rt.fields = []*Field{counter}

	cb := NewCodeBuilder()
	cb.Emit21(OpConst16, 0, 99)
	cb.Emit21(OpSput, 0, 0)
	cb.Emit10x(OpReturnVoid)
	clinit := &Method{Class: config, Name: "<clinit>", Signature: "()V", AccessFlags: AccStatic | AccConstructor, RegistersSize: 1, Insns: cb.Code()}
	config.DirectMethods = []*Method{clinit}

	b := NewCodeBuilder()
	b.Emit21(OpSget, 0, 0)
	b.Emit11x(OpReturn, 0)
	m := staticMethod("read", "()I", 1, 0, b.Code())

	v, err := NewInterpreter(rt).Execute(m, Null)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 99 {
		t.Errorf("counter = %d, want 99", v.Int())
	}
	if len(rt.inits) != 1 || rt.inits[0] != config {
		t.Errorf("inits = %v", rt.inits)
	}
}

func arrayMethod() *Method {
	b := NewCodeBuilder()
	b.EmitConst4(0, 3)
	b.Emit22(OpNewArray, 1, 0, 0)
	b.Emit21(OpConst16, 2, 9)
	b.Emit23x(OpAput, 2, 1, 3)
	b.Emit23x(OpAget, 0, 1, 3)
	b.Emit12x(OpArrayLength, 2, 1)
	b.Emit23x(OpAddInt, 0, 0, 2)
	b.Emit11x(OpReturn, 0)
	return staticMethod("arrays", "(I)I", 4, 0, b.Code())
}

func TestArrayAccess(t *testing.T) {
	rt := newFakeRuntime()
	rt.types = []*Class{rt.class("[I", nil)}
	in := NewInterpreter(rt)
	m := arrayMethod()

	v, err := in.Execute(m, Null, IntArg(1))
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 12 {
		t.Errorf("result = %d, want 12", v.Int())
	}

	for _, tt := range []struct {
		idx  int32
		want string
	}{
		{3, "length=3; index=3"},
		{-1, "length=3; index=-1"},
	} {
		_, err := in.Execute(m, Null, IntArg(tt.idx))
		thrown := expectThrown(t, err, FaultArrayIndex)
		if thrown.Fault.Message != tt.want {
			t.Errorf("message = %q, want %q", thrown.Fault.Message, tt.want)
		}
	}
}

func TestNegativeArraySize(t *testing.T) {
	rt := newFakeRuntime()
	rt.types = []*Class{rt.class("[I", nil)}
	b := NewCodeBuilder()
	b.EmitConst4(0, -1)
	b.Emit22(OpNewArray, 0, 0, 0)
	b.Emit10x(OpReturnVoid)
	_, err := NewInterpreter(rt).Execute(staticMethod("neg", "()V", 1, 0, b.Code()), Null)
	expectThrown(t, err, FaultNegativeArraySize)
}

func TestAputObjectStoreCheck(t *testing.T) {
	rt := newFakeRuntime()
	str := rt.classes["Ljava/lang/String;"]
	strArray := rt.class("[Ljava/lang/String;", nil)
	strArray.ComponentType = str
	rt.types = []*Class{strArray, rt.classes[ObjectDescriptor]}

	b := NewCodeBuilder()
	b.EmitConst4(0, 1)
	b.Emit22(OpNewArray, 1, 0, 0)
	b.Emit21(OpNewInstance, 2, 1)
	b.EmitConst4(0, 0)
	b.Emit23x(OpAputObject, 2, 1, 0)
	b.Emit10x(OpReturnVoid)
	_, err := NewInterpreter(rt).Execute(staticMethod("store", "()V", 3, 0, b.Code()), Null)
	thrown := expectThrown(t, err, FaultArrayStore)
	want := "Ljava/lang/Object; cannot be stored in an array of type [Ljava/lang/String;"
	if thrown.Fault.Message != want {
		t.Errorf("message = %q", thrown.Fault.Message)
	}
}

func TestFilledNewArray(t *testing.T) {
	rt := newFakeRuntime()
	rt.types = []*Class{rt.class("[I", nil), rt.class("[J", nil)}
	in := NewInterpreter(rt)

	b := NewCodeBuilder()
	b.EmitConst4(0, 4)
	b.EmitConst4(1, -5)
	b.Emit35c(OpFilledNewArray, 0, 0, 1)
	b.Emit11x(OpMoveResultObject, 0)
	b.Emit11x(OpReturnObject, 0)
	v, err := in.Execute(staticMethod("filled", "()[I", 2, 0, b.Code()), Null)
	if err != nil {
		t.Fatal(err)
	}
	arr := rt.Object(v.Ref())
	if arr.Length != 2 || int32(arr.Element(0)) != 4 || int32(arr.Element(1)) != -5 {
		t.Errorf("array = %v", arr.Data)
	}

	lb := NewCodeBuilder()
	lb.Emit35c(OpFilledNewArray, 1)
	lb.Emit10x(OpReturnVoid)
	_, err = in.Execute(staticMethod("filledLong", "()V", 0, 0, lb.Code()), Null)
	thrown := expectThrown(t, err, FaultRuntime)
	if thrown.Fault.Message != "bad filled array req" {
		t.Errorf("message = %q", thrown.Fault.Message)
	}
}

func TestFillArrayDataInstruction(t *testing.T) {
	rt := newFakeRuntime()
	rt.types = []*Class{rt.class("[S", nil)}
	b := NewCodeBuilder()
	b.EmitConst4(0, 3)
	b.Emit22(OpNewArray, 0, 0, 0)
	b.EmitFillArrayData(0, 2, []uint64{1, 0xffff, 300})
	b.Emit11x(OpReturnObject, 0)
	v, err := NewInterpreter(rt).Execute(staticMethod("fill", "()[S", 1, 0, b.Code()), Null)
	if err != nil {
		t.Fatal(err)
	}
	arr := rt.Object(v.Ref())
	got := []int32{int32(arr.Element(0)), int32(arr.Element(1)), int32(arr.Element(2))}
	if diff := cmp.Diff([]int32{1, -1, 300}, got); diff != "" {
		t.Errorf("elements mismatch (-want +got):\n%s", diff)
	}
}

func TestSwitches(t *testing.T) {
	build := func(emit func(b *CodeBuilder, targets []*Label)) *Method {
		b := NewCodeBuilder()
		l0, l1 := b.NewLabel(), b.NewLabel()
		emit(b, []*Label{l0, l1})
		b.EmitConst4(0, -1)
		b.Emit11x(OpReturn, 0)
		b.Mark(l0)
		b.EmitConst4(0, 0)
		b.Emit11x(OpReturn, 0)
		b.Mark(l1)
		b.EmitConst4(0, 1)
		b.Emit11x(OpReturn, 0)
		return staticMethod("switch", "(I)I", 2, 0, b.Code())
	}
	packed := build(func(b *CodeBuilder, l []*Label) { b.EmitPackedSwitch(1, 10, l) })
	sparse := build(func(b *CodeBuilder, l []*Label) { b.EmitSparseSwitch(1, []int32{-100, 5000}, l) })

	in := NewInterpreter(newFakeRuntime())
	tests := []struct {
		name string
		m    *Method
		arg  int32
		want int32
	}{
		{"packed first", packed, 10, 0},
		{"packed second", packed, 11, 1},
		{"packed miss", packed, 12, -1},
		{"sparse first", sparse, -100, 0},
		{"sparse second", sparse, 5000, 1},
		{"sparse miss", sparse, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := in.Execute(tt.m, Null, IntArg(tt.arg))
			if err != nil {
				t.Fatal(err)
			}
			if v.Int() != tt.want {
				t.Errorf("got %d, want %d", v.Int(), tt.want)
			}
		})
	}
}

func TestMonitors(t *testing.T) {
	rt := newFakeRuntime()
	rt.types = []*Class{rt.classes[ObjectDescriptor]}
	b := NewCodeBuilder()
	b.Emit21(OpNewInstance, 0, 0)
	b.Emit11x(OpMonitorEnter, 0)
	b.Emit11x(OpMonitorExit, 0)
	b.Emit11x(OpReturnObject, 0)
	in := NewInterpreter(rt)
	v, err := in.Execute(staticMethod("sync", "()Ljava/lang/Object;", 1, 0, b.Code()), Null)
	if err != nil {
		t.Fatal(err)
	}
	if rt.locks[v.Ref()] != 0 {
		t.Errorf("lock count = %d after exit", rt.locks[v.Ref()])
	}

	nb := NewCodeBuilder()
	nb.EmitConst4(0, 0)
	nb.Emit11x(OpMonitorExit, 0)
	nb.Emit10x(OpReturnVoid)
	_, err = in.Execute(staticMethod("exitNull", "()V", 1, 0, nb.Code()), Null)
	thrown := expectThrown(t, err, FaultNullPointer)
	if thrown.Trace[0].PC != 2 {
		t.Errorf("monitor-exit fault at %04x, want the next instruction 0002", thrown.Trace[0].PC)
	}
}

func TestTypeChecks(t *testing.T) {
	h := newHierarchy()
	h.rt.types = []*Class{h.base, h.derived}

	ib := NewCodeBuilder()
	ib.Emit22(OpInstanceOf, 0, 1, 1)
	ib.Emit11x(OpReturn, 0)
	instanceOf := staticMethod("isDerived", "(Ljava/lang/Object;)I", 2, 0, ib.Code())

	in := NewInterpreter(h.rt)
	for _, tt := range []struct {
		ref  Ref
		want int32
	}{{h.derivRef, 1}, {h.baseRef, 0}, {Null, 0}} {
		v, err := in.Execute(instanceOf, Null, RefArg(tt.ref))
		if err != nil {
			t.Fatal(err)
		}
		if v.Int() != tt.want {
			t.Errorf("instance-of(%d) = %d, want %d", tt.ref, v.Int(), tt.want)
		}
	}

	cb := NewCodeBuilder()
	cb.Emit21(OpCheckCast, 0, 1)
	cb.Emit10x(OpReturnVoid)
	checkCast := staticMethod("cast", "(Ljava/lang/Object;)V", 1, 0, cb.Code())
	if _, err := in.Execute(checkCast, Null, RefArg(Null)); err != nil {
		t.Errorf("check-cast of null: %v", err)
	}
	_, err := in.Execute(checkCast, Null, RefArg(h.baseRef))
	thrown := expectThrown(t, err, FaultClassCast)
	if thrown.Fault.Message != "LBase; cannot be cast to LDerived;" {
		t.Errorf("message = %q", thrown.Fault.Message)
	}
}

func TestNewInstanceOfAbstractClass(t *testing.T) {
	h := newHierarchy()
	h.rt.types = []*Class{h.iface}
	b := NewCodeBuilder()
	b.Emit21(OpNewInstance, 0, 0)
	b.Emit10x(OpReturnVoid)
	_, err := NewInterpreter(h.rt).Execute(staticMethod("make", "()V", 1, 0, b.Code()), Null)
	expectThrown(t, err, FaultInstantiation)
}

func TestConstStringAndClass(t *testing.T) {
	rt := newFakeRuntime()
	rt.strings = []string{"hi"}
	rt.types = []*Class{rt.classes["Ljava/lang/String;"]}

	b := NewCodeBuilder()
	b.Emit21(OpConstString, 0, 0)
	b.Emit11x(OpReturnObject, 0)
	m := staticMethod("str", "()Ljava/lang/String;", 1, 0, b.Code())
	in := NewInterpreter(rt)
	first, err := in.Execute(m, Null)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := in.Execute(m, Null)
	if first.Ref() != second.Ref() {
		t.Error("const-string resolved twice at the same site")
	}
	if got := rt.Object(first.Ref()).Payload; got != "hi" {
		t.Errorf("payload = %v", got)
	}

	cb := NewCodeBuilder()
	cb.Emit21(OpConstClass, 0, 0)
	cb.Emit11x(OpReturnObject, 0)
	v, err := in.Execute(staticMethod("cls", "()Ljava/lang/Class;", 1, 0, cb.Code()), Null)
	if err != nil {
		t.Fatal(err)
	}
	if got := rt.Object(v.Ref()).Payload; got != rt.classes["Ljava/lang/String;"] {
		t.Errorf("class object payload = %v", got)
	}
}

func TestConstants(t *testing.T) {
	tests := []struct {
		name string
		emit func(b *CodeBuilder)
		want uint64
	}{
		{"const/16", func(b *CodeBuilder) { b.Emit21(OpConst16, 0, 0xfffe) }, 0xfffffffffffffffe},
		{"const", func(b *CodeBuilder) { b.Emit31(OpConst, 0, 0x12345678) }, 0x12345678},
		{"const/high16", func(b *CodeBuilder) { b.Emit21(OpConstHigh16, 0, 0x4049) }, 0x40490000},
		{"const-wide/32", func(b *CodeBuilder) { b.Emit31(OpConstWide32, 0, 0x80000000) }, 0xffffffff80000000},
		{"const-wide", func(b *CodeBuilder) { b.EmitConstWide(0, 0x0123456789abcdef) }, 0x0123456789abcdef},
		{"const-wide/high16", func(b *CodeBuilder) { b.Emit21(OpConstWideHigh16, 0, 0x4000) }, 0x4000000000000000},
	}
	in := NewInterpreter(newFakeRuntime())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewCodeBuilder()
			tt.emit(b)
			if strings.HasPrefix(tt.name, "const-wide") {
				b.Emit11x(OpReturnWide, 0)
			} else {
				b.Emit12x(OpIntToLong, 0, 0)
				b.Emit11x(OpReturnWide, 0)
			}
			v, err := in.Execute(staticMethod("k", "()J", 2, 0, b.Code()), Null)
			if err != nil {
				t.Fatal(err)
			}
			if v.Bits != tt.want {
				t.Errorf("got %#x, want %#x", v.Bits, tt.want)
			}
		})
	}
}

func TestExecuteInline(t *testing.T) {
	b := NewCodeBuilder()
	b.Emit35c(OpExecuteInline, 0, 0)
	b.Emit11x(OpMoveResult, 0)
	b.Emit11x(OpReturn, 0)
	m := staticMethod("abs", "(I)I", 1, 0, b.Code())

	rt := newFakeRuntime()
	v, err := NewInterpreter(fakeInliner{rt}).Execute(m, Null, IntArg(-5))
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 5 {
		t.Errorf("abs = %d, want 5", v.Int())
	}

	expectAbort(t, func() { _, _ = NewInterpreter(rt).Execute(m, Null, IntArg(-5)) })
}

func TestUnusedOpcodeAborts(t *testing.T) {
	m := staticMethod("bad", "()V", 0, 0, []uint16{uint16(OpNop), 0x73})
	abort := expectAbort(t, func() { _, _ = NewInterpreter(newFakeRuntime()).Execute(m, Null) })
	if abort.Method != "LTest;.bad()V" || abort.PC != 1 {
		t.Errorf("abort at %s @%d", abort.Method, abort.PC)
	}
}

func TestBranchOutsideMethodAborts(t *testing.T) {
	m := staticMethod("wild", "()V", 0, 0, []uint16{uint16(OpGoto) | 0x20<<8})
	expectAbort(t, func() { _, _ = NewInterpreter(newFakeRuntime()).Execute(m, Null) })
}

type criticalLog struct {
	commonlog.Logger
	messages []string
}

func (l *criticalLog) Critical(message string, keysAndValues ...any) {
	l.messages = append(l.messages, message)
}

func TestAbortLogsOnceToInterpreterLogger(t *testing.T) {
	logger := &criticalLog{Logger: commonlog.GetLogger("dexvm.test")}
	m := staticMethod("wild", "()V", 0, 0, []uint16{uint16(OpGoto) | 0x20<<8})
	expectAbort(t, func() { _, _ = NewInterpreter(newFakeRuntime(), WithLogger(logger)).Execute(m, Null) })
	if len(logger.messages) != 1 || !strings.Contains(logger.messages[0], "branch target") {
		t.Errorf("critical messages = %q", logger.messages)
	}
}

func TestThrowVerificationError(t *testing.T) {
	kinds := map[int]FaultKind{
		2: FaultNoClassDef, 3: FaultNoSuchField, 4: FaultNoSuchMethod, 1: FaultVerification,
		// The reference type in the top two bits does not change the kind.
		0x42: FaultNoClassDef, 0x83: FaultNoSuchField, 0xc4: FaultNoSuchMethod, 0x41: FaultVerification,
	}
	for aa, kind := range kinds {
		b := NewCodeBuilder()
		b.Emit21(OpThrowVerificationError, aa, 0)
		_, err := NewInterpreter(newFakeRuntime()).Execute(staticMethod("verify", "()V", 0, 0, b.Code()), Null)
		expectThrown(t, err, kind)
	}
}

func TestProfilerCountsExecution(t *testing.T) {
	b := NewCodeBuilder()
	b.Emit23x(OpAddInt, 0, 1, 2)
	b.Emit11x(OpReturn, 0)
	m := staticMethod("add", "(II)I", 3, 0, b.Code())

	p := NewProfiler()
	in := NewInterpreter(newFakeRuntime(), WithProfiler(p))
	for i := 0; i < 3; i++ {
		if _, err := in.Execute(m, Null, IntArg(1), IntArg(2)); err != nil {
			t.Fatal(err)
		}
	}
	if got := p.OpcodeCount(OpAddInt); got != 3 {
		t.Errorf("add-int count = %d, want 3", got)
	}
	if got := p.MethodProfile(m).InvocationCount; got != 3 {
		t.Errorf("invocations = %d, want 3", got)
	}
}
