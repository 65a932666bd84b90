package vm

import (
	"fmt"
	"math"
)

// Ref is a handle to a heap object owned by the host. The zero Ref is null.
type Ref uint32

// Null is the null reference.
const Null Ref = 0

// ---------------------------------------------------------------------------
// Retained return value
// ---------------------------------------------------------------------------

// ValueKind tags the payload of a Value.
type ValueKind uint8

const (
	KindVoid   ValueKind = iota // no value (return-void)
	KindInt                     // 32-bit: int, float, boolean, byte, char, short
	KindWide                    // 64-bit: long, double
	KindObject                  // reference
)

func (k ValueKind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindWide:
		return "wide"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("ValueKind(%d)", uint8(k))
}

// Value is the retained return value of a call. Bits holds the raw payload;
// the accessors reinterpret it.
type Value struct {
	Kind ValueKind
	Bits uint64
}

func IntValue(v int32) Value { return Value{Kind: KindInt, Bits: uint64(uint32(v))} }
func FloatValue(v float32) Value { return Value{Kind: KindInt, Bits: uint64(math.Float32bits(v))} }
func LongValue(v int64) Value { return Value{Kind: KindWide, Bits: uint64(v)} }
func DoubleValue(v float64) Value { return Value{Kind: KindWide, Bits: math.Float64bits(v)} }
func ObjectValue(r Ref) Value { return Value{Kind: KindObject, Bits: uint64(r)} }

func (v Value) Int() int32 { return int32(uint32(v.Bits)) }
func (v Value) Float() float32 { return math.Float32frombits(uint32(v.Bits)) }
func (v Value) Long() int64 { return int64(v.Bits) }
func (v Value) Double() float64 { return math.Float64frombits(v.Bits) }
func (v Value) Ref() Ref { return Ref(uint32(v.Bits)) }
func (v Value) IsVoid() bool { return v.Kind == KindVoid }
func (v Value) word() uint32 { return uint32(v.Bits) }

func (v Value) String() string {
	switch v.Kind {
	case KindVoid:
		return "void"
	case KindInt:
		return fmt.Sprintf("int(%d)", v.Int())
	case KindWide:
		return fmt.Sprintf("wide(%d)", v.Long())
	case KindObject:
		if v.Ref() == Null {
			return "null"
		}
		return fmt.Sprintf("ref(%d)", v.Ref())
	}
	return fmt.Sprintf("Value{%d, %#x}", v.Kind, v.Bits)
}

// ---------------------------------------------------------------------------
// Call arguments
// ---------------------------------------------------------------------------

// ArgKind tags an entry-point argument.
type ArgKind uint8

const (
	ArgInt  ArgKind = iota // one slot
	ArgWide                // two slots, low word first
	ArgRef                 // one slot holding a Ref
)

// Arg is an argument passed to Interpreter.Execute. Wide values arrive
// pre-split into the two halves that land in adjacent registers.
type Arg struct {
	Kind ArgKind
	Lo   uint32
	Hi   uint32
}

func IntArg(v int32) Arg { return Arg{Kind: ArgInt, Lo: uint32(v)} }

func BoolArg(v bool) Arg {
	if v {
		return IntArg(1)
	}
	return IntArg(0)
}

func FloatArg(v float32) Arg { return Arg{Kind: ArgInt, Lo: math.Float32bits(v)} }

func LongArg(v int64) Arg {
	return Arg{Kind: ArgWide, Lo: uint32(v), Hi: uint32(uint64(v) >> 32)}
}

func DoubleArg(v float64) Arg {
	bits := math.Float64bits(v)
	return Arg{Kind: ArgWide, Lo: uint32(bits), Hi: uint32(bits >> 32)}
}

func RefArg(r Ref) Arg { return Arg{Kind: ArgRef, Lo: uint32(r)} }

// Slots returns the number of registers the argument occupies.
func (a Arg) Slots() int {
	if a.Kind == ArgWide {
		return 2
	}
	return 1
}
