package host

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/chazu/dexvm/vm"
)

func expectThrown(t *testing.T, err error, kind vm.FaultKind) *vm.ThrownError {
	t.Helper()
	var thrown *vm.ThrownError
	if !errors.As(err, &thrown) {
		t.Fatalf("err = %v, want an uncaught %s", err, kind)
	}
	if thrown.Fault.Kind != kind {
		t.Fatalf("uncaught %s, want %s", thrown.Fault, kind)
	}
	return thrown
}

func TestStringLengthThroughPool(t *testing.T) {
	rt := New()
	dex := NewDex([]string{"héllo"}, nil, nil, []MethodRef{{StringDescriptor, "length", "()I"}})

	b := vm.NewCodeBuilder()
	b.Emit21(vm.OpConstString, 0, 0)
	b.Emit35c(vm.OpInvokeVirtual, 0, 0)
	b.Emit11x(vm.OpMoveResult, 0)
	b.Emit11x(vm.OpReturn, 0)
	main := &vm.Class{Descriptor: "LMain;", DirectMethods: []*vm.Method{staticMethod("len", "()I", 1, 1, b.Code())}}
	define(t, rt, dex, main)

	in := rt.NewInterpreter()
	for i := 0; i < 2; i++ {
		v, err := in.Execute(main.DirectMethods[0], vm.Null)
		if err != nil {
			t.Fatal(err)
		}
		if v.Int() != 5 {
			t.Errorf("length = %d, want 5", v.Int())
		}
	}
	if n := dex.Resolutions(); n != 2 {
		t.Errorf("Resolutions = %d, want 2", n)
	}
}

func TestCustomExceptionCaught(t *testing.T) {
	rt := New()
	dex := NewDex(
		[]string{"boom"},
		[]string{"LMyErr;"},
		nil,
		[]MethodRef{
			{"LMyErr;", "<init>", "(Ljava/lang/String;)V"},
			{RuntimeExceptionDescriptor, "<init>", "(Ljava/lang/String;)V"},
			{ThrowableDescriptor, "getMessage", "()Ljava/lang/String;"},
		},
	)

	ctor := vm.NewCodeBuilder()
	ctor.Emit35c(vm.OpInvokeDirect, 1, 0, 1)
	ctor.Emit10x(vm.OpReturnVoid)
	myErr := &vm.Class{
		Descriptor: "LMyErr;",
		DirectMethods: []*vm.Method{{
			Name: "<init>", Signature: "(Ljava/lang/String;)V", AccessFlags: vm.AccPublic | vm.AccConstructor,
			RegistersSize: 2, OutsSize: 2, Insns: ctor.Code(),
		}},
	}
	myErr.Super, _ = rt.FindClass(RuntimeExceptionDescriptor)

	b := vm.NewCodeBuilder()
	b.Emit21(vm.OpNewInstance, 0, 0)
	b.Emit21(vm.OpConstString, 1, 0)
	b.Emit35c(vm.OpInvokeDirect, 0, 0, 1)
	b.Emit11x(vm.OpThrow, 0)
	handler := b.Units()
	b.Emit11x(vm.OpMoveException, 0)
	b.Emit35c(vm.OpInvokeVirtual, 2, 0)
	b.Emit11x(vm.OpMoveResultObject, 0)
	b.Emit11x(vm.OpReturnObject, 0)
	run := staticMethod("run", "()Ljava/lang/String;", 2, 2, b.Code())
	run.Tries = []vm.TryBlock{{Start: 0, End: handler, Handlers: []vm.CatchHandler{{Type: RuntimeExceptionDescriptor, Addr: handler}}}}
	main := &vm.Class{Descriptor: "LMain;", DirectMethods: []*vm.Method{run}}
	define(t, rt, dex, myErr, main)

	v, err := rt.NewInterpreter().Execute(run, vm.Null)
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := rt.String(v.Ref()); s != "boom" {
		t.Errorf("getMessage = %q, want boom", s)
	}
}

func TestUncaughtFaultDescribe(t *testing.T) {
	rt := New()
	b := vm.NewCodeBuilder()
	b.EmitConst4(0, 1)
	b.Emit23x(vm.OpDivInt, 0, 0, 1)
	b.Emit11x(vm.OpReturn, 0)
	div := staticMethod("div", "(I)I", 2, 0, b.Code())
	define(t, rt, NewDex(nil, nil, nil, nil), &vm.Class{Descriptor: "LMain;", DirectMethods: []*vm.Method{div}})

	_, err := rt.NewInterpreter().Execute(div, vm.Null, vm.IntArg(0))
	thrown := expectThrown(t, err, vm.FaultArithmetic)
	if got := rt.Describe(thrown.Exception); got != "java.lang.ArithmeticException: divide by zero" {
		t.Errorf("Describe = %q", got)
	}
	if len(thrown.Trace) != 1 || thrown.Trace[0].Method != "div(I)I" {
		t.Errorf("trace = %v", thrown.Trace)
	}
}

func TestClassInitialization(t *testing.T) {
	rt := New()
	dex := NewDex(nil, nil,
		[]FieldRef{{"LCounter;", "value", "I"}, {"LBad;", "x", "I"}},
		nil,
	)

	clinit := vm.NewCodeBuilder()
	clinit.Emit21(vm.OpSget, 0, 0)
	clinit.Emit22b(vm.OpAddIntLit8, 0, 0, 7)
	clinit.Emit21(vm.OpSput, 0, 0)
	clinit.Emit10x(vm.OpReturnVoid)
	counter := &vm.Class{
		Descriptor:    "LCounter;",
		StaticFields:  []*vm.Field{{Name: "value", Type: "I"}},
		DirectMethods: []*vm.Method{staticMethod("<clinit>", "()V", 1, 0, clinit.Code())},
	}

	badInit := vm.NewCodeBuilder()
	badInit.EmitConst4(0, 0)
	badInit.Emit23x(vm.OpDivInt, 0, 0, 0)
	badInit.Emit10x(vm.OpReturnVoid)
	bad := &vm.Class{
		Descriptor:    "LBad;",
		StaticFields:  []*vm.Field{{Name: "x", Type: "I"}},
		DirectMethods: []*vm.Method{staticMethod("<clinit>", "()V", 1, 0, badInit.Code())},
	}

	get := func(name string, field uint16) *vm.Method {
		b := vm.NewCodeBuilder()
		b.Emit21(vm.OpSget, 0, field)
		b.Emit11x(vm.OpReturn, 0)
		return staticMethod(name, "()I", 1, 0, b.Code())
	}
	getValue, getX := get("getValue", 0), get("getX", 1)
	main := &vm.Class{Descriptor: "LMain;", DirectMethods: []*vm.Method{getValue, getX}}
	define(t, rt, dex, counter, bad, main)

	in := rt.NewInterpreter()
	for i := 0; i < 2; i++ {
		v, err := in.Execute(getValue, vm.Null)
		if err != nil {
			t.Fatal(err)
		}
		if v.Int() != 7 {
			t.Errorf("value = %d, want 7 (initializer run once)", v.Int())
		}
	}
	if !counter.Initialized() {
		t.Error("Counter not marked initialized")
	}
	if err := rt.InitClass(in, counter); err != nil {
		t.Errorf("InitClass of initialized class: %v", err)
	}

	_, err := in.Execute(getX, vm.Null)
	expectThrown(t, err, vm.FaultArithmetic)
	_, err = in.Execute(getX, vm.Null)
	expectThrown(t, err, vm.FaultNoClassDef)
	if bad.Initialized() {
		t.Error("Bad marked initialized after a failed initializer")
	}
}

func TestStaticSiteWaitsForClassInit(t *testing.T) {
	rt := New()
	dex := NewDex(nil, nil,
		[]FieldRef{{"LCounter;", "value", "I"}},
		[]MethodRef{{"LCounter;", "peek", "()I"}, {"LMain;", "getValue", "()I"}, {"LCounter;", "block", "()V"}},
	)

	peek := vm.NewCodeBuilder()
	peek.Emit21(vm.OpSget, 0, 0)
	peek.Emit11x(vm.OpReturn, 0)

	// The initializer reads the value through getValue before it is set,
	// then parks in block until the test releases it.
	clinit := vm.NewCodeBuilder()
	clinit.Emit35c(vm.OpInvokeStatic, 1)
	clinit.Emit11x(vm.OpMoveResult, 0)
	clinit.Emit35c(vm.OpInvokeStatic, 2)
	clinit.Emit21(vm.OpConst16, 0, 42)
	clinit.Emit21(vm.OpSput, 0, 0)
	clinit.Emit10x(vm.OpReturnVoid)

	entered, release := make(chan struct{}), make(chan struct{})
	block := &vm.Method{
		Name: "block", Signature: "()V", AccessFlags: vm.AccStatic | vm.AccNative,
		Native: func(*vm.Interpreter, vm.Registers, *vm.Method) (vm.Value, error) {
			close(entered)
			<-release
			return vm.Value{}, nil
		},
	}
	counter := &vm.Class{
		Descriptor:   "LCounter;",
		StaticFields: []*vm.Field{{Name: "value", Type: "I"}},
		DirectMethods: []*vm.Method{
			staticMethod("<clinit>", "()V", 1, 0, clinit.Code()),
			staticMethod("peek", "()I", 1, 0, peek.Code()),
			block,
		},
	}

	get := vm.NewCodeBuilder()
	get.Emit35c(vm.OpInvokeStatic, 0)
	get.Emit11x(vm.OpMoveResult, 0)
	get.Emit11x(vm.OpReturn, 0)
	getValue := staticMethod("getValue", "()I", 1, 0, get.Code())
	define(t, rt, dex, counter, &vm.Class{Descriptor: "LMain;", DirectMethods: []*vm.Method{getValue}})

	type outcome struct {
		v   vm.Value
		err error
	}
	call := func() <-chan outcome {
		ch := make(chan outcome, 1)
		go func() {
			v, err := rt.NewInterpreter().Execute(getValue, vm.Null)
			ch <- outcome{v, err}
		}()
		return ch
	}

	first := call()
	<-entered
	second := call()
	select {
	case o := <-second:
		close(release)
		t.Fatalf("second interpreter returned %d (err %v) while Counter was initializing", o.v.Int(), o.err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	for name, ch := range map[string]<-chan outcome{"first": first, "second": second} {
		o := <-ch
		if o.err != nil {
			t.Fatalf("%s: %v", name, o.err)
		}
		if o.v.Int() != 42 {
			t.Errorf("%s: value = %d, want 42", name, o.v.Int())
		}
	}
}

func TestInitializerSeesCallerPC(t *testing.T) {
	for _, op := range []vm.Opcode{vm.OpSget, vm.OpSput} {
		t.Run(op.String(), func(t *testing.T) {
			rt := New()
			dex := NewDex(nil, nil,
				[]FieldRef{{"LInit;", "x", "I"}},
				[]MethodRef{{"LInit;", "record", "()V"}},
			)

			var frames []vm.Frame
			record := &vm.Method{
				Name: "record", Signature: "()V", AccessFlags: vm.AccStatic | vm.AccNative,
				Native: func(in *vm.Interpreter, _ vm.Registers, _ *vm.Method) (vm.Value, error) {
					frames = in.Frames()
					return vm.Value{}, nil
				},
			}
			clinit := vm.NewCodeBuilder()
			clinit.Emit35c(vm.OpInvokeStatic, 0)
			clinit.Emit10x(vm.OpReturnVoid)
			initClass := &vm.Class{
				Descriptor:    "LInit;",
				StaticFields:  []*vm.Field{{Name: "x", Type: "I"}},
				DirectMethods: []*vm.Method{staticMethod("<clinit>", "()V", 0, 0, clinit.Code()), record},
			}

			b := vm.NewCodeBuilder()
			b.EmitConst4(0, 0)
			b.EmitConst4(1, 1)
			b.Emit21(op, 0, 0)
			b.Emit10x(vm.OpReturnVoid)
			access := staticMethod("access", "()V", 2, 0, b.Code())
			define(t, rt, dex, initClass, &vm.Class{Descriptor: "LMain;", DirectMethods: []*vm.Method{access}})

			if _, err := rt.NewInterpreter().Execute(access, vm.Null); err != nil {
				t.Fatal(err)
			}
			if len(frames) < 2 {
				t.Fatalf("frames = %+v", frames)
			}
			if frames[0].Method != access || frames[0].PC != 2 {
				t.Errorf("caller frame %s @%d, want access @2", frames[0].Method, frames[0].PC)
			}
		})
	}
}

func TestConsoleNatives(t *testing.T) {
	var out bytes.Buffer
	rt := New(WithOutput(&out))
	dex := NewDex([]string{"hi"}, nil, nil, []MethodRef{
		{ConsoleDescriptor, "println", "(Ljava/lang/String;)V"},
		{ConsoleDescriptor, "println", "(I)V"},
		{ConsoleDescriptor, "println", "(J)V"},
	})

	b := vm.NewCodeBuilder()
	b.Emit21(vm.OpConstString, 0, 0)
	b.Emit35c(vm.OpInvokeStatic, 0, 0)
	b.Emit21(vm.OpConst16, 0, 42)
	b.Emit35c(vm.OpInvokeStatic, 1, 0)
	b.Emit21(vm.OpConstWide16, 0, 0xffff)
	b.Emit35c(vm.OpInvokeStatic, 2, 0, 1)
	b.EmitConst4(0, 0)
	b.Emit35c(vm.OpInvokeStatic, 0, 0)
	b.Emit10x(vm.OpReturnVoid)
	hello := staticMethod("hello", "()V", 2, 2, b.Code())
	define(t, rt, dex, &vm.Class{Descriptor: "LMain;", DirectMethods: []*vm.Method{hello}})

	if _, err := rt.NewInterpreter().Execute(hello, vm.Null); err != nil {
		t.Fatal(err)
	}
	if got, want := out.String(), "hi\n42\n-1\nnull\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestExecuteInlineThroughHost(t *testing.T) {
	rt := New()
	b := vm.NewCodeBuilder()
	b.Emit35c(vm.OpExecuteInline, InlineMathMaxInt, 0, 1)
	b.Emit11x(vm.OpMoveResult, 0)
	b.Emit11x(vm.OpReturn, 0)
	m := staticMethod("max", "(II)I", 2, 0, b.Code())
	define(t, rt, NewDex(nil, nil, nil, nil), &vm.Class{Descriptor: "LMain;", DirectMethods: []*vm.Method{m}})

	v, err := rt.NewInterpreter().Execute(m, vm.Null, vm.IntArg(-4), vm.IntArg(9))
	if err != nil {
		t.Fatal(err)
	}
	if v.Int() != 9 {
		t.Errorf("max = %d, want 9", v.Int())
	}
}
