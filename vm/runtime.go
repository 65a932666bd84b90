package vm

// MethodKind tells the resolver which lookup rules an invoke uses.
type MethodKind uint8

const (
	MethodVirtual MethodKind = iota
	MethodSuper
	MethodDirect
	MethodStatic
	MethodInterface
)

func (k MethodKind) String() string {
	switch k {
	case MethodVirtual:
		return "virtual"
	case MethodSuper:
		return "super"
	case MethodDirect:
		return "direct"
	case MethodStatic:
		return "static"
	case MethodInterface:
		return "interface"
	}
	return "unknown"
}

// Resolver turns constant-pool indices into runtime handles. The referrer is
// the method whose code holds the index. Failures should be *Fault values
// (FaultNoClassDef, FaultNoSuchField, FaultNoSuchMethod, ...).
type Resolver interface {
	ResolveString(referrer *Method, idx uint32) (Ref, error)
	ResolveClass(referrer *Method, idx uint32) (*Class, error)
	ResolveField(referrer *Method, idx uint32, static bool) (*Field, error)
	ResolveMethod(referrer *Method, idx uint32, kind MethodKind) (*Method, error)
}

// Heap owns object storage. Object returns nil for Null or an unknown Ref.
type Heap interface {
	Object(r Ref) *Object
	AllocObject(c *Class) (Ref, error)
	AllocArray(c *Class, length int) (Ref, error)
	ClassObject(c *Class) (Ref, error)

	// InitClass runs static initialization if it has not completed. It may
	// reenter in through Execute.
	InitClass(in *Interpreter, c *Class) error
}

// Monitors implements object locking for monitor-enter and monitor-exit.
type Monitors interface {
	Lock(in *Interpreter, r Ref) error
	Unlock(in *Interpreter, r Ref) error
}

// TypeChecker answers the type questions of check-cast, instance-of and
// aput-object.
type TypeChecker interface {
	InstanceOf(obj *Object, c *Class) bool
	CanPutArrayElement(elem, array *Class) bool
}

// Throwables materializes a fault into a managed exception object.
type Throwables interface {
	NewThrowable(in *Interpreter, f *Fault) (Ref, error)
}

// Safepoint is the cooperative suspension hook taken on backward branches.
type Safepoint interface {
	SuspendRequested(in *Interpreter) bool
	HonorSuspend(in *Interpreter)
}

// Runtime is everything the interpreter needs from its host.
type Runtime interface {
	Resolver
	Heap
	Monitors
	TypeChecker
	Throwables
	Safepoint
}

// CatchFinder is an optional Runtime capability. Without it every
// exception propagates out of Execute.
type CatchFinder interface {
	// FindCatch returns the handler address in m for an exception thrown
	// at pc.
	FindCatch(in *Interpreter, m *Method, pc int, exception Ref) (int, bool)
}

// InlineOps is an optional Runtime capability backing execute-inline.
type InlineOps interface {
	Inline(in *Interpreter, index int, args [4]uint32) (Value, error)
}
