package vm

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// Object is a heap object as seen by the interpreter. Instances keep their
// fields in 32-bit slots; arrays keep Length elements in Data, each stored
// in host byte order at Class.ElemWidth() bytes.
type Object struct {
	Class  *Class
	Fields []uint32

	Length int
	Data   []byte

	// Payload carries host-specific state such as a string's contents.
	Payload any

	wideMu sync.Mutex // serializes volatile wide field access
}

// NewInstance allocates an instance with zeroed field slots.
func NewInstance(c *Class) *Object {
	return &Object{Class: c, Fields: make([]uint32, c.InstanceSlots)}
}

// NewArray allocates an array object of the given array class.
func NewArray(c *Class, length int) *Object {
	return &Object{Class: c, Length: length, Data: make([]byte, length*c.ElemWidth())}
}

func (o *Object) IsArray() bool { return o.Class.IsArray() }

func (o *Object) Word(slot int) uint32 { return o.Fields[slot] }
func (o *Object) SetWord(slot int, v uint32) { o.Fields[slot] = v }
func (o *Object) Wide(slot int) uint64 { return LoadWide(o.Fields, slot) }
func (o *Object) SetWide(slot int, v uint64) { StoreWide(o.Fields, slot, v) }
func (o *Object) WordVolatile(slot int) uint32 { return atomic.LoadUint32(&o.Fields[slot]) }
func (o *Object) SetWordVolatile(slot int, v uint32) {
	atomic.StoreUint32(&o.Fields[slot], v)
}

func (o *Object) WideVolatile(slot int) uint64 {
	o.wideMu.Lock()
	defer o.wideMu.Unlock()
	return LoadWide(o.Fields, slot)
}

func (o *Object) SetWideVolatile(slot int, v uint64) {
	o.wideMu.Lock()
	defer o.wideMu.Unlock()
	StoreWide(o.Fields, slot, v)
}

// ---------------------------------------------------------------------------
// Array elements
// ---------------------------------------------------------------------------

// Element reads element i of a primitive or reference array, widened to 64
// bits. Narrow elements are sign- or zero-extended according to the
// component type, so the low 32 bits are the register value.
func (o *Object) Element(i int) uint64 {
	comp := o.Class.Descriptor[1]
	switch comp {
	case 'Z':
		return uint64(o.Data[i])
	case 'B':
		return uint64(uint32(int32(int8(o.Data[i]))))
	case 'C':
		return uint64(binary.NativeEndian.Uint16(o.Data[2*i:]))
	case 'S':
		return uint64(uint32(int32(int16(binary.NativeEndian.Uint16(o.Data[2*i:])))))
	case 'J', 'D':
		return binary.NativeEndian.Uint64(o.Data[8*i:])
	}
	return uint64(binary.NativeEndian.Uint32(o.Data[4*i:]))
}

// SetElement stores the low bits of v into element i.
func (o *Object) SetElement(i int, v uint64) {
	switch o.Class.Descriptor[1] {
	case 'Z', 'B':
		o.Data[i] = byte(v)
	case 'C', 'S':
		binary.NativeEndian.PutUint16(o.Data[2*i:], uint16(v))
	case 'J', 'D':
		binary.NativeEndian.PutUint64(o.Data[8*i:], v)
	default:
		binary.NativeEndian.PutUint32(o.Data[4*i:], uint32(v))
	}
}

// RefElement reads element i of a reference array.
func (o *Object) RefElement(i int) Ref { return Ref(binary.NativeEndian.Uint32(o.Data[4*i:])) }

// SetRefElement stores a reference into element i.
func (o *Object) SetRefElement(i int, r Ref) {
	binary.NativeEndian.PutUint32(o.Data[4*i:], uint32(r))
}
