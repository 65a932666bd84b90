package host

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/chazu/dexvm/vm"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("dexvm.host")

var (
	// ErrDuplicateClass is returned when a descriptor is defined twice.
	ErrDuplicateClass = errors.New("class already defined")
	// ErrNoClass is returned when a class or method lookup by name fails.
	ErrNoClass = errors.New("class not found")
	// ErrNoMethod is returned by LookupMethod when no method matches.
	ErrNoMethod = errors.New("method not found")
)

// Runtime is the reference host for the interpreter: a handle heap, a class
// registry, the constant pools of the defined classes, monitors, the
// suspend protocol and the built-in classes. One Runtime may be shared by
// any number of interpreters.
type Runtime struct {
	mu        sync.RWMutex
	objects   []*vm.Object
	classes   map[string]*vm.Class
	dexes     map[*vm.Class]*Dex
	classObjs map[*vm.Class]vm.Ref
	interned  map[string]vm.Ref

	initMu sync.Mutex
	inits  map[*vm.Class]*initState

	*Monitors
	*Suspender

	out        io.Writer
	maxObjects int
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithOutput sets where the console natives write. The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(rt *Runtime) { rt.out = w }
}

// WithMaxObjects caps the number of live handles. Allocation past the cap
// raises OutOfMemoryError. Zero means no cap.
func WithMaxObjects(n int) Option {
	return func(rt *Runtime) { rt.maxObjects = n }
}

// New creates a runtime with the built-in classes defined and linked.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		objects:   []*vm.Object{nil},
		classes:   make(map[string]*vm.Class),
		dexes:     make(map[*vm.Class]*Dex),
		classObjs: make(map[*vm.Class]vm.Ref),
		interned:  make(map[string]vm.Ref),
		inits:     make(map[*vm.Class]*initState),
		Monitors:  NewMonitors(),
		Suspender: NewSuspender(),
		out:       os.Stdout,
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.bootstrap()
	return rt
}

// NewInterpreter creates an interpreter bound to rt.
func (rt *Runtime) NewInterpreter(opts ...vm.Option) *vm.Interpreter {
	return vm.NewInterpreter(rt, opts...)
}

// ---------------------------------------------------------------------------
// Class registry
// ---------------------------------------------------------------------------

// DefineClass registers c, whose code indexes into dex. The class is not
// usable until linked.
func (rt *Runtime) DefineClass(dex *Dex, c *vm.Class) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.classes[c.Descriptor]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateClass, c.Descriptor)
	}
	rt.classes[c.Descriptor] = c
	if dex != nil {
		rt.dexes[c] = dex
	}
	return nil
}

// FindClass returns the class for a descriptor. Primitive and array classes
// are created on first use.
func (rt *Runtime) FindClass(desc string) (*vm.Class, bool) {
	rt.mu.RLock()
	c, ok := rt.classes[desc]
	rt.mu.RUnlock()
	if ok {
		return c, true
	}

	switch {
	case len(desc) == 1 && isPrimitive(desc[0]):
		return rt.defineSynthetic(desc, func() *vm.Class {
			return &vm.Class{Descriptor: desc, AccessFlags: vm.AccPublic | vm.AccFinal | vm.AccAbstract, Linked: true}
		}), true
	case len(desc) > 1 && desc[0] == '[':
		comp, ok := rt.FindClass(desc[1:])
		if !ok || comp.Descriptor == "V" {
			return nil, false
		}
		object, _ := rt.FindClass(vm.ObjectDescriptor)
		return rt.defineSynthetic(desc, func() *vm.Class {
			return &vm.Class{
				Descriptor:    desc,
				AccessFlags:   vm.AccPublic | vm.AccFinal,
				Super:         object,
				VTable:        object.VTable,
				ComponentType: comp,
				Linked:        true,
			}
		}), true
	}
	return nil, false
}

// defineSynthetic registers a class built on demand. Concurrent callers
// get the same instance.
func (rt *Runtime) defineSynthetic(desc string, build func() *vm.Class) *vm.Class {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if c, ok := rt.classes[desc]; ok {
		return c
	}
	c := build()
	c.MarkInitialized()
	rt.classes[desc] = c
	return c
}

func isPrimitive(ch byte) bool {
	switch ch {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D', 'V':
		return true
	}
	return false
}

// Classes returns the classes defined with a constant pool, sorted by
// descriptor. Built-in and synthetic classes are not included.
func (rt *Runtime) Classes() []*vm.Class {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]*vm.Class, 0, len(rt.dexes))
	for c := range rt.dexes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Descriptor < out[j].Descriptor })
	return out
}

// DexOf returns the constant pool a class was defined with.
func (rt *Runtime) DexOf(c *vm.Class) *Dex {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.dexes[c]
}

// LookupMethod finds a method by class descriptor, name and signature,
// searching direct methods first. An empty signature matches the first
// method with the given name.
func (rt *Runtime) LookupMethod(desc, name, signature string) (*vm.Method, error) {
	c, ok := rt.FindClass(desc)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoClass, desc)
	}
	for _, list := range [][]*vm.Method{c.DirectMethods, c.VirtualMethods} {
		for _, m := range list {
			if m.Name == name && (signature == "" || m.Signature == signature) {
				return m, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s.%s%s", ErrNoMethod, desc, name, signature)
}

// ---------------------------------------------------------------------------
// Heap
// ---------------------------------------------------------------------------

func (rt *Runtime) alloc(o *vm.Object) (vm.Ref, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.maxObjects > 0 && len(rt.objects) > rt.maxObjects {
		return vm.Null, vm.NewFault(vm.FaultOutOfMemory, "heap limit of %d objects reached", rt.maxObjects)
	}
	rt.objects = append(rt.objects, o)
	return vm.Ref(len(rt.objects) - 1), nil
}

// Object returns the object behind a handle, or nil.
func (rt *Runtime) Object(r vm.Ref) *vm.Object {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if int(r) >= len(rt.objects) {
		return nil
	}
	return rt.objects[r]
}

// AllocObject allocates an instance of c.
func (rt *Runtime) AllocObject(c *vm.Class) (vm.Ref, error) {
	if !c.Linked {
		return vm.Null, vm.NewFault(vm.FaultNoClassDef, "%s is not linked", c)
	}
	return rt.alloc(vm.NewInstance(c))
}

// AllocArray allocates an array of the array class c.
func (rt *Runtime) AllocArray(c *vm.Class, length int) (vm.Ref, error) {
	if !c.IsArray() {
		return vm.Null, vm.NewFault(vm.FaultInternal, "%s is not an array class", c)
	}
	return rt.alloc(vm.NewArray(c, length))
}

// ClassObject returns the java.lang.Class instance for c, creating it once.
func (rt *Runtime) ClassObject(c *vm.Class) (vm.Ref, error) {
	rt.mu.RLock()
	r, ok := rt.classObjs[c]
	rt.mu.RUnlock()
	if ok {
		return r, nil
	}

	meta, _ := rt.FindClass(ClassDescriptor)
	o := vm.NewInstance(meta)
	o.Payload = c
	r, err := rt.alloc(o)
	if err != nil {
		return vm.Null, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if prev, ok := rt.classObjs[c]; ok {
		return prev, nil
	}
	rt.classObjs[c] = r
	return r, nil
}

// ObjectCount returns the number of handles allocated so far.
func (rt *Runtime) ObjectCount() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.objects) - 1
}

// ---------------------------------------------------------------------------
// Class initialization
// ---------------------------------------------------------------------------

// initState tracks a class whose initializer is running or has failed.
type initState struct {
	owner uuid.UUID
	done  chan struct{}
	err   error
}

// InitClass runs c's superclass initializers and then its <clinit>, once.
// A nested request from the initializing interpreter returns immediately;
// other interpreters wait for the initializer to finish. A class whose
// initializer failed raises NoClassDefFoundError from then on.
func (rt *Runtime) InitClass(in *vm.Interpreter, c *vm.Class) error {
	if c.Initialized() {
		return nil
	}

	rt.initMu.Lock()
	if c.Initialized() {
		rt.initMu.Unlock()
		return nil
	}
	if st, ok := rt.inits[c]; ok {
		rt.initMu.Unlock()
		select {
		case <-st.done:
		default:
			if st.owner == in.ID {
				return nil
			}
			<-st.done
		}
		if st.err != nil {
			return vm.NewFault(vm.FaultNoClassDef, "%s failed initialization", c)
		}
		return nil
	}
	st := &initState{owner: in.ID, done: make(chan struct{})}
	rt.inits[c] = st
	rt.initMu.Unlock()

	log.Debugf("initializing %s", c)
	var err error
	if c.Super != nil {
		err = rt.InitClass(in, c.Super)
	}
	if err == nil {
		if clinit := c.FindDirectMethod("<clinit>", "()V"); clinit != nil {
			_, err = in.Execute(clinit, vm.Null)
		}
	}

	rt.initMu.Lock()
	if err == nil {
		c.MarkInitialized()
		delete(rt.inits, c)
	} else {
		log.Warningf("initializer of %s failed: %s", c, err)
		st.err = err
	}
	close(st.done)
	rt.initMu.Unlock()
	return err
}

// ---------------------------------------------------------------------------
// Type checks
// ---------------------------------------------------------------------------

// InstanceOf reports whether obj is an instance of c.
func (rt *Runtime) InstanceOf(obj *vm.Object, c *vm.Class) bool {
	return obj.Class.AssignableTo(c)
}

// CanPutArrayElement reports whether an object of class elem may be stored
// in an array of class array.
func (rt *Runtime) CanPutArrayElement(elem, array *vm.Class) bool {
	return array.ComponentType != nil && elem.AssignableTo(array.ComponentType)
}

// ---------------------------------------------------------------------------
// Exception handlers
// ---------------------------------------------------------------------------

// FindCatch searches m's try blocks covering pc for a handler whose type
// the exception is assignable to. Handlers are tried in declaration order.
func (rt *Runtime) FindCatch(_ *vm.Interpreter, m *vm.Method, pc int, exception vm.Ref) (int, bool) {
	obj := rt.Object(exception)
	if obj == nil {
		return 0, false
	}
	for _, try := range m.Tries {
		if pc < try.Start || pc >= try.End {
			continue
		}
		for _, h := range try.Handlers {
			if h.Type == "" {
				return h.Addr, true
			}
			if c, ok := rt.FindClass(h.Type); ok && obj.Class.AssignableTo(c) {
				return h.Addr, true
			}
		}
	}
	return 0, false
}
