package vm

import "math"

// Registers is one call's register window: 32-bit slots sliced out of the
// interpreter's stack arena. A wide value spans slots i and i+1 with the
// low word at i, independent of host byte order.
type Registers []uint32

// LoadWide reads the 64-bit value stored at regs[i], regs[i+1].
func LoadWide(regs []uint32, i int) uint64 {
	return uint64(regs[i]) | uint64(regs[i+1])<<32
}

// StoreWide writes a 64-bit value into regs[i], regs[i+1].
func StoreWide(regs []uint32, i int, v uint64) {
	regs[i] = uint32(v)
	regs[i+1] = uint32(v >> 32)
}

func (r Registers) Int(i int) int32 { return int32(r[i]) }
func (r Registers) SetInt(i int, v int32) { r[i] = uint32(v) }

func (r Registers) Float(i int) float32 { return math.Float32frombits(r[i]) }
func (r Registers) SetFloat(i int, v float32) { r[i] = math.Float32bits(v) }

func (r Registers) Wide(i int) int64 { return int64(LoadWide(r, i)) }
func (r Registers) SetWide(i int, v int64) { StoreWide(r, i, uint64(v)) }

func (r Registers) Double(i int) float64 { return math.Float64frombits(LoadWide(r, i)) }
func (r Registers) SetDouble(i int, v float64) { StoreWide(r, i, math.Float64bits(v)) }

func (r Registers) Ref(i int) Ref { return Ref(r[i]) }
func (r Registers) SetRef(i int, v Ref) { r[i] = uint32(v) }
