package host

import (
	"sync"

	"github.com/chazu/dexvm/vm"
)

// FieldRef names a field in the constant pool.
type FieldRef struct {
	Class string
	Name  string
	Type  string
}

// MethodRef names a method in the constant pool.
type MethodRef struct {
	Class     string
	Name      string
	Signature string
}

// Dex is the constant pool shared by the classes of one program: the
// string, type, field and method tables that instructions index into,
// with a resolution cache for each.
type Dex struct {
	Strings []string
	Types   []string
	Fields  []FieldRef
	Methods []MethodRef

	mu          sync.Mutex
	resStrings  []vm.Ref
	resClasses  []*vm.Class
	resFields   []*vm.Field
	resMethods  []*vm.Method
	resolutions int
}

// NewDex creates a constant pool.
func NewDex(strings, types []string, fields []FieldRef, methods []MethodRef) *Dex {
	return &Dex{
		Strings:    strings,
		Types:      types,
		Fields:     fields,
		Methods:    methods,
		resStrings: make([]vm.Ref, len(strings)),
		resClasses: make([]*vm.Class, len(types)),
		resFields:  make([]*vm.Field, len(fields)),
		resMethods: make([]*vm.Method, len(methods)),
	}
}

// Resolutions returns how many pool entries have been resolved so far.
func (d *Dex) Resolutions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolutions
}

// cached returns the resolved entry idx of table, resolving it on a miss.
// A failed resolution is not cached.
func cached[T comparable](d *Dex, table []T, idx uint32, resolve func() (T, error)) (T, error) {
	var zero T
	d.mu.Lock()
	if v := table[idx]; v != zero {
		d.mu.Unlock()
		return v, nil
	}
	d.mu.Unlock()

	v, err := resolve()
	if err != nil {
		return zero, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if prev := table[idx]; prev != zero {
		return prev, nil
	}
	table[idx] = v
	d.resolutions++
	return v, nil
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

func (rt *Runtime) dexFor(referrer *vm.Method) (*Dex, error) {
	if referrer == nil || referrer.Class == nil {
		return nil, vm.NewFault(vm.FaultInternal, "resolution without a referring class")
	}
	d := rt.DexOf(referrer.Class)
	if d == nil {
		return nil, vm.NewFault(vm.FaultInternal, "%s has no constant pool", referrer.Class)
	}
	return d, nil
}

// ResolveString returns the interned string at idx.
func (rt *Runtime) ResolveString(referrer *vm.Method, idx uint32) (vm.Ref, error) {
	d, err := rt.dexFor(referrer)
	if err != nil {
		return vm.Null, err
	}
	if int(idx) >= len(d.Strings) {
		return vm.Null, vm.NewFault(vm.FaultVerification, "string@%d out of range in %s", idx, referrer)
	}
	return cached(d, d.resStrings, idx, func() (vm.Ref, error) {
		return rt.Intern(d.Strings[idx])
	})
}

// ResolveClass returns the class named by type index idx.
func (rt *Runtime) ResolveClass(referrer *vm.Method, idx uint32) (*vm.Class, error) {
	d, err := rt.dexFor(referrer)
	if err != nil {
		return nil, err
	}
	return rt.resolveType(d, idx, referrer)
}

func (rt *Runtime) resolveType(d *Dex, idx uint32, referrer *vm.Method) (*vm.Class, error) {
	if int(idx) >= len(d.Types) {
		return nil, vm.NewFault(vm.FaultVerification, "type@%d out of range in %s", idx, referrer)
	}
	return cached(d, d.resClasses, idx, func() (*vm.Class, error) {
		return rt.classNamed(d.Types[idx])
	})
}

func (rt *Runtime) classNamed(desc string) (*vm.Class, error) {
	c, ok := rt.FindClass(desc)
	if !ok {
		return nil, vm.NewFault(vm.FaultNoClassDef, "%s", desc)
	}
	if !c.Linked {
		if err := rt.Link(c); err != nil {
			return nil, vm.NewFault(vm.FaultNoClassDef, "%s: %s", desc, err)
		}
	}
	return c, nil
}

// ResolveField returns the field at idx. Asking for a static field through
// an instance access, or the reverse, is an IncompatibleClassChangeError.
func (rt *Runtime) ResolveField(referrer *vm.Method, idx uint32, static bool) (*vm.Field, error) {
	d, err := rt.dexFor(referrer)
	if err != nil {
		return nil, err
	}
	if int(idx) >= len(d.Fields) {
		return nil, vm.NewFault(vm.FaultVerification, "field@%d out of range in %s", idx, referrer)
	}
	f, err := cached(d, d.resFields, idx, func() (*vm.Field, error) {
		ref := d.Fields[idx]
		c, err := rt.classNamed(ref.Class)
		if err != nil {
			return nil, err
		}
		if f := c.FindField(ref.Name, ref.Type, static); f != nil {
			return f, nil
		}
		if f := c.FindField(ref.Name, ref.Type, !static); f != nil {
			return f, nil
		}
		return nil, vm.NewFault(vm.FaultNoSuchField, "%s.%s:%s", ref.Class, ref.Name, ref.Type)
	})
	if err != nil {
		return nil, err
	}
	if f.IsStatic() != static {
		return nil, vm.NewFault(vm.FaultIncompatibleClassChange, "expected %s field %s", staticWord(static), f)
	}
	return f, nil
}

func staticWord(static bool) string {
	if static {
		return "static"
	}
	return "instance"
}

// ResolveMethod returns the method at idx, looked up according to kind.
// The cache is shared across kinds, so a mismatched kind is checked on
// every call.
func (rt *Runtime) ResolveMethod(referrer *vm.Method, idx uint32, kind vm.MethodKind) (*vm.Method, error) {
	d, err := rt.dexFor(referrer)
	if err != nil {
		return nil, err
	}
	if int(idx) >= len(d.Methods) {
		return nil, vm.NewFault(vm.FaultVerification, "method@%d out of range in %s", idx, referrer)
	}
	m, err := cached(d, d.resMethods, idx, func() (*vm.Method, error) {
		ref := d.Methods[idx]
		c, err := rt.classNamed(ref.Class)
		if err != nil {
			return nil, err
		}
		var m *vm.Method
		switch kind {
		case vm.MethodInterface:
			if !c.IsInterface() {
				return nil, vm.NewFault(vm.FaultIncompatibleClassChange, "%s is not an interface", c)
			}
			m = c.FindInterfaceMethod(ref.Name, ref.Signature)
		case vm.MethodDirect, vm.MethodStatic:
			m = c.FindDirectMethod(ref.Name, ref.Signature)
		default:
			m = c.FindVirtualMethod(ref.Name, ref.Signature)
		}
		if m == nil {
			return nil, vm.NewFault(vm.FaultNoSuchMethod, "%s.%s%s", ref.Class, ref.Name, ref.Signature)
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	if (kind == vm.MethodStatic) != m.IsStatic() {
		return nil, vm.NewFault(vm.FaultIncompatibleClassChange, "expected %s method %s", staticWord(kind == vm.MethodStatic), m)
	}
	return m, nil
}
