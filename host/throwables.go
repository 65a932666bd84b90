package host

import (
	"github.com/chazu/dexvm/vm"
)

// NewThrowable allocates the exception object for a fault: an instance of
// the fault's class with detailMessage set.
func (rt *Runtime) NewThrowable(_ *vm.Interpreter, f *vm.Fault) (vm.Ref, error) {
	desc := f.Kind.Descriptor()
	c, ok := rt.FindClass(desc)
	if !ok {
		c, _ = rt.FindClass(ThrowableDescriptor)
	}
	r, err := rt.AllocObject(c)
	if err != nil {
		return vm.Null, err
	}
	if f.Message != "" {
		if err := rt.setDetailMessage(r, f.Message); err != nil {
			return vm.Null, err
		}
	}
	return r, nil
}

func (rt *Runtime) detailMessageField() *vm.Field {
	throwable, _ := rt.FindClass(ThrowableDescriptor)
	return throwable.FindField("detailMessage", StringDescriptor, false)
}

func (rt *Runtime) setDetailMessage(exc vm.Ref, msg string) error {
	s, err := rt.NewString(msg)
	if err != nil {
		return err
	}
	rt.Object(exc).SetWord(rt.detailMessageField().Slot, uint32(s))
	return nil
}

// Message returns the detail message of an exception object.
func (rt *Runtime) Message(exc vm.Ref) string {
	o := rt.Object(exc)
	throwable, _ := rt.FindClass(ThrowableDescriptor)
	if o == nil || !o.Class.IsSubclassOf(throwable) {
		return ""
	}
	s, _ := rt.String(vm.Ref(o.Word(rt.detailMessageField().Slot)))
	return s
}

// Describe formats an exception object as "pkg.Class: message".
func (rt *Runtime) Describe(exc vm.Ref) string {
	o := rt.Object(exc)
	if o == nil {
		return "null"
	}
	name := JavaName(o.Class.Descriptor)
	if msg := rt.Message(exc); msg != "" {
		return name + ": " + msg
	}
	return name
}

// JavaName converts "Ljava/lang/String;" into "java.lang.String". Other
// descriptors are returned unchanged.
func JavaName(desc string) string {
	if len(desc) < 3 || desc[0] != 'L' || desc[len(desc)-1] != ';' {
		return desc
	}
	b := []byte(desc[1 : len(desc)-1])
	for i, ch := range b {
		if ch == '/' {
			b[i] = '.'
		}
	}
	return string(b)
}

func (rt *Runtime) throwableInit(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
	this := rt.Object(args.Ref(0))
	this.SetWord(rt.detailMessageField().Slot, args[1])
	return vm.Value{}, nil
}

func (rt *Runtime) throwableMessage(_ *vm.Interpreter, args vm.Registers, _ *vm.Method) (vm.Value, error) {
	this := rt.Object(args.Ref(0))
	return vm.ObjectValue(vm.Ref(this.Word(rt.detailMessageField().Slot))), nil
}
