package vm

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Access flags, as encoded in the dex format.
const (
	AccPublic      uint32 = 0x0001
	AccPrivate     uint32 = 0x0002
	AccProtected   uint32 = 0x0004
	AccStatic      uint32 = 0x0008
	AccFinal       uint32 = 0x0010
	AccVolatile    uint32 = 0x0040
	AccNative      uint32 = 0x0100
	AccInterface   uint32 = 0x0200
	AccAbstract    uint32 = 0x0400
	AccConstructor uint32 = 0x10000
)

// ObjectDescriptor is the root of the class hierarchy.
const ObjectDescriptor = "Ljava/lang/Object;"

// Class is a loaded, linked class. The host owns class loading and linking;
// the interpreter reads VTable, the hierarchy and array component info.
type Class struct {
	Descriptor  string
	AccessFlags uint32
	Super       *Class
	Interfaces  []*Class

	// Declared members. Instance fields get their Slot at link time.
	Fields         []*Field
	StaticFields   []*Field
	DirectMethods  []*Method
	VirtualMethods []*Method

	// VTable is indexed by Method.MethodIndex.
	VTable []*Method

	// InstanceSlots is the size of Object.Fields for instances, including
	// inherited fields.
	InstanceSlots int

	// ComponentType is set for array classes.
	ComponentType *Class

	Linked      bool
	initialized atomic.Bool
}

func (c *Class) String() string { return c.Descriptor }

func (c *Class) IsArray() bool { return strings.HasPrefix(c.Descriptor, "[") }
func (c *Class) IsInterface() bool { return c.AccessFlags&AccInterface != 0 }
func (c *Class) IsAbstract() bool { return c.AccessFlags&AccAbstract != 0 }

// IsPrimitive reports whether c is one of the primitive type classes used
// as array components.
func (c *Class) IsPrimitive() bool { return len(c.Descriptor) == 1 }

// Initialized reports whether static initialization has completed.
func (c *Class) Initialized() bool { return c.initialized.Load() }

// MarkInitialized records completed static initialization.
func (c *Class) MarkInitialized() { c.initialized.Store(true) }

// ElemWidth returns the byte width of one element of an array class.
func (c *Class) ElemWidth() int {
	if !c.IsArray() {
		return 0
	}
	return TypeWidth(c.Descriptor[1])
}

// TypeWidth returns the storage width in bytes of a value of the type whose
// descriptor starts with ch.
func TypeWidth(ch byte) int {
	switch ch {
	case 'Z', 'B':
		return 1
	case 'C', 'S':
		return 2
	case 'J', 'D':
		return 8
	}
	return 4
}

// IsSubclassOf walks the superclass chain.
func (c *Class) IsSubclassOf(other *Class) bool {
	for k := c; k != nil; k = k.Super {
		if k == other {
			return true
		}
	}
	return false
}

// Implements reports whether c or a superclass declares iface, directly or
// through a superinterface.
func (c *Class) Implements(iface *Class) bool {
	for k := c; k != nil; k = k.Super {
		for _, i := range k.Interfaces {
			if i == iface || i.Implements(iface) {
				return true
			}
		}
	}
	return false
}

// AssignableTo reports whether a value of class c can be stored in a
// variable of class target. This is the instance-of relation.
func (c *Class) AssignableTo(target *Class) bool {
	switch {
	case c == target:
		return true
	case target.Descriptor == ObjectDescriptor:
		return !c.IsPrimitive()
	case target.IsInterface():
		return c.Implements(target)
	case target.IsArray():
		if !c.IsArray() {
			return false
		}
		ce, te := c.ComponentType, target.ComponentType
		if ce == nil || te == nil {
			return c.Descriptor == target.Descriptor
		}
		if ce.IsPrimitive() || te.IsPrimitive() {
			return ce == te
		}
		return ce.AssignableTo(te)
	}
	return c.IsSubclassOf(target)
}

// FindVirtualMethod searches c and its superclasses for a virtual method.
func (c *Class) FindVirtualMethod(name, signature string) *Method {
	for k := c; k != nil; k = k.Super {
		for _, m := range k.VirtualMethods {
			if m.Name == name && m.Signature == signature {
				return m
			}
		}
	}
	return nil
}

// FindDirectMethod searches c's own direct methods (constructors, statics
// and private methods).
func (c *Class) FindDirectMethod(name, signature string) *Method {
	for _, m := range c.DirectMethods {
		if m.Name == name && m.Signature == signature {
			return m
		}
	}
	return nil
}

// FindInterfaceMethod searches an interface and its superinterfaces.
func (c *Class) FindInterfaceMethod(name, signature string) *Method {
	for _, m := range c.VirtualMethods {
		if m.Name == name && m.Signature == signature {
			return m
		}
	}
	for _, i := range c.Interfaces {
		if m := i.FindInterfaceMethod(name, signature); m != nil {
			return m
		}
	}
	return nil
}

// FindField searches c and its superclasses for an instance or static
// field with the given name and type.
func (c *Class) FindField(name, typ string, static bool) *Field {
	for k := c; k != nil; k = k.Super {
		list := k.Fields
		if static {
			list = k.StaticFields
		}
		for _, f := range list {
			if f.Name == name && f.Type == typ {
				return f
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Fields
// ---------------------------------------------------------------------------

// Field is a resolved field. Instance fields live in Object.Fields at Slot
// (and Slot+1 when wide); static fields keep their value here.
type Field struct {
	Class       *Class
	Name        string
	Type        string
	AccessFlags uint32
	Slot        int

	static atomic.Uint64
}

func (f *Field) String() string {
	if f.Class == nil {
		return f.Name + ":" + f.Type
	}
	return fmt.Sprintf("%s.%s:%s", f.Class.Descriptor, f.Name, f.Type)
}

func (f *Field) IsStatic() bool { return f.AccessFlags&AccStatic != 0 }
func (f *Field) IsVolatile() bool { return f.AccessFlags&AccVolatile != 0 }
func (f *Field) IsWide() bool { return f.Type == "J" || f.Type == "D" }

// StaticWord and friends access a static field's storage. Every access is
// atomic, which covers the volatile forms as well.
func (f *Field) StaticWord() uint32 { return uint32(f.static.Load()) }
func (f *Field) SetStaticWord(v uint32) { f.static.Store(uint64(v)) }
func (f *Field) StaticWide() uint64 { return f.static.Load() }
func (f *Field) SetStaticWide(v uint64) { f.static.Store(v) }
