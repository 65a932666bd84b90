package host

import (
	"fmt"
	"strings"

	"github.com/chazu/dexvm/vm"
)

// Descriptors of the built-in classes.
const (
	ClassDescriptor            = "Ljava/lang/Class;"
	StringDescriptor           = "Ljava/lang/String;"
	ThrowableDescriptor        = "Ljava/lang/Throwable;"
	ExceptionDescriptor        = "Ljava/lang/Exception;"
	RuntimeExceptionDescriptor = "Ljava/lang/RuntimeException;"
	ErrorDescriptor            = "Ljava/lang/Error;"
	MathDescriptor             = "Ljava/lang/Math;"
	ConsoleDescriptor          = "Ldexvm/Console;"
)

// nativeDef declares a built-in native method.
type nativeDef struct {
	name  string
	sig   string
	flags uint32
	fn    vm.NativeFunc
}

func (rt *Runtime) bootstrap() {
	void := vm.Value{}
	rt.builtin(vm.ObjectDescriptor, "", 0, nil,
		nativeDef{"<init>", "()V", vm.AccConstructor, func(*vm.Interpreter, vm.Registers, *vm.Method) (vm.Value, error) {
			return void, nil
		}},
		nativeDef{"hashCode", "()I", 0, func(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
			return vm.IntValue(int32(args.Ref(0))), nil
		}},
		nativeDef{"equals", "(Ljava/lang/Object;)Z", 0, func(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
			return boolValue(args.Ref(0) == args.Ref(1)), nil
		}},
	)
	rt.builtin(ClassDescriptor, vm.ObjectDescriptor, vm.AccFinal, nil)
	rt.builtin(StringDescriptor, vm.ObjectDescriptor, vm.AccFinal, nil,
		nativeDef{"length", "()I", 0, rt.stringLength},
		nativeDef{"isEmpty", "()Z", 0, rt.stringIsEmpty},
		nativeDef{"equals", "(Ljava/lang/Object;)Z", 0, rt.stringEquals},
		nativeDef{"concat", "(Ljava/lang/String;)Ljava/lang/String;", 0, rt.stringConcat},
	)
	rt.builtin(ThrowableDescriptor, vm.ObjectDescriptor, 0,
		[]*vm.Field{{Name: "detailMessage", Type: StringDescriptor}},
		nativeDef{"<init>", "()V", vm.AccConstructor, func(*vm.Interpreter, vm.Registers, *vm.Method) (vm.Value, error) {
			return void, nil
		}},
		nativeDef{"<init>", "(Ljava/lang/String;)V", vm.AccConstructor, rt.throwableInit},
		nativeDef{"getMessage", "()Ljava/lang/String;", 0, rt.throwableMessage},
	)
	rt.throwableClass(ExceptionDescriptor, ThrowableDescriptor)
	rt.throwableClass(ErrorDescriptor, ThrowableDescriptor)
	rt.throwableClass(RuntimeExceptionDescriptor, ExceptionDescriptor)
	for k := vm.FaultNullPointer; k < vm.FaultThrown; k++ {
		desc := k.Descriptor()
		if _, ok := rt.FindClass(desc); ok {
			continue
		}
		super := RuntimeExceptionDescriptor
		if strings.HasSuffix(desc, "Error;") {
			super = ErrorDescriptor
		}
		rt.throwableClass(desc, super)
	}

	rt.builtin(MathDescriptor, vm.ObjectDescriptor, vm.AccFinal, nil,
		nativeDef{"abs", "(I)I", vm.AccStatic, func(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
			return vm.IntValue(absInt(args.Int(0))), nil
		}},
		nativeDef{"abs", "(J)J", vm.AccStatic, func(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
			return vm.LongValue(absLong(args.Wide(0))), nil
		}},
		nativeDef{"min", "(II)I", vm.AccStatic, func(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
			return vm.IntValue(min(args.Int(0), args.Int(1))), nil
		}},
		nativeDef{"max", "(II)I", vm.AccStatic, func(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
			return vm.IntValue(max(args.Int(0), args.Int(1))), nil
		}},
	)

	rt.builtin(ConsoleDescriptor, vm.ObjectDescriptor, vm.AccFinal, nil,
		nativeDef{"println", "(Ljava/lang/String;)V", vm.AccStatic, rt.printString},
		nativeDef{"println", "(I)V", vm.AccStatic, func(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
			_, err := fmt.Fprintln(rt.out, args.Int(0))
			return void, err
		}},
		nativeDef{"println", "(J)V", vm.AccStatic, func(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
			_, err := fmt.Fprintln(rt.out, args.Wide(0))
			return void, err
		}},
		nativeDef{"println", "(D)V", vm.AccStatic, func(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
			_, err := fmt.Fprintln(rt.out, args.Double(0))
			return void, err
		}},
	)
}

// builtin defines and links a class whose methods are all native.
// Constructors and static methods become direct methods.
func (rt *Runtime) builtin(desc, super string, flags uint32, fields []*vm.Field, natives ...nativeDef) *vm.Class {
	c := &vm.Class{Descriptor: desc, AccessFlags: vm.AccPublic | flags, Fields: fields}
	if super != "" {
		c.Super, _ = rt.FindClass(super)
	}
	for _, n := range natives {
		m := &vm.Method{Name: n.name, Signature: n.sig, AccessFlags: vm.AccPublic | vm.AccNative | n.flags, Native: n.fn}
		if n.flags&(vm.AccStatic|vm.AccConstructor) != 0 {
			c.DirectMethods = append(c.DirectMethods, m)
		} else {
			c.VirtualMethods = append(c.VirtualMethods, m)
		}
	}
	if err := rt.DefineClass(nil, c); err != nil {
		panic(err)
	}
	if err := rt.Link(c); err != nil {
		panic(err)
	}
	c.MarkInitialized()
	return c
}

// throwableClass defines a throwable subclass with the two standard
// constructors.
func (rt *Runtime) throwableClass(desc, super string) *vm.Class {
	return rt.builtin(desc, super, 0, nil,
		nativeDef{"<init>", "()V", vm.AccConstructor, func(*vm.Interpreter, vm.Registers, *vm.Method) (vm.Value, error) {
			return vm.Value{}, nil
		}},
		nativeDef{"<init>", "(Ljava/lang/String;)V", vm.AccConstructor, rt.throwableInit},
	)
}

func boolValue(b bool) vm.Value {
	if b {
		return vm.IntValue(1)
	}
	return vm.IntValue(0)
}

func absInt(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func absLong(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// ---------------------------------------------------------------------------
// String natives
// ---------------------------------------------------------------------------

func (rt *Runtime) stringLength(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
	s, err := rt.stringArg(args.Ref(0), "length")
	if err != nil {
		return vm.Value{}, err
	}
	return vm.IntValue(int32(utf16Len(s))), nil
}

func (rt *Runtime) stringIsEmpty(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
	s, err := rt.stringArg(args.Ref(0), "isEmpty")
	if err != nil {
		return vm.Value{}, err
	}
	return boolValue(s == ""), nil
}

func (rt *Runtime) stringEquals(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
	s, err := rt.stringArg(args.Ref(0), "equals")
	if err != nil {
		return vm.Value{}, err
	}
	other, ok := rt.String(args.Ref(1))
	return boolValue(ok && s == other), nil
}

func (rt *Runtime) stringConcat(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
	s, err := rt.stringArg(args.Ref(0), "concat")
	if err != nil {
		return vm.Value{}, err
	}
	other, err := rt.stringArg(args.Ref(1), "concat")
	if err != nil {
		return vm.Value{}, err
	}
	r, err := rt.NewString(s + other)
	if err != nil {
		return vm.Value{}, err
	}
	return vm.ObjectValue(r), nil
}

func (rt *Runtime) printString(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
	s := "null"
	if r := args.Ref(0); r != vm.Null {
		s, _ = rt.String(r)
	}
	_, err := fmt.Fprintln(rt.out, s)
	return vm.Value{}, err
}

// RegisterNative binds fn as the implementation of a method declared in a
// defined class.
func (rt *Runtime) RegisterNative(desc, name, signature string, fn vm.NativeFunc) error {
	m, err := rt.LookupMethod(desc, name, signature)
	if err != nil {
		return err
	}
	m.Native = fn
	m.AccessFlags |= vm.AccNative
	return nil
}
