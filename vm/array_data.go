package vm

import "encoding/binary"

// Payload signatures. Each inline table starts with a nop whose high byte
// names the table kind.
const (
	PackedSwitchSignature uint16 = 0x0100
	SparseSwitchSignature uint16 = 0x0200
	ArrayDataSignature    uint16 = 0x0300
)

// tableByte returns byte k of a table stored in code units. Tables are
// little-endian on disk, so the even byte is the low half of its unit.
func tableByte(src []uint16, k int) byte {
	u := src[k>>1]
	if k&1 == 0 {
		return byte(u)
	}
	return byte(u >> 8)
}

// CopyTable copies count elements of the given byte width from an
// array-data payload into dst, writing each element in host byte order.
func CopyTable(dst []byte, src []uint16, count, width int) {
	switch width {
	case 1:
		for i := 0; i < count; i++ {
			dst[i] = tableByte(src, i)
		}
	case 2:
		for i := 0; i < count; i++ {
			binary.NativeEndian.PutUint16(dst[2*i:], src[i])
		}
	case 4:
		for i := 0; i < count; i++ {
			v := uint32(src[2*i]) | uint32(src[2*i+1])<<16
			binary.NativeEndian.PutUint32(dst[4*i:], v)
		}
	case 8:
		for i := 0; i < count; i++ {
			u := src[4*i : 4*i+4]
			v := uint64(u[0]) | uint64(u[1])<<16 | uint64(u[2])<<32 | uint64(u[3])<<48
			binary.NativeEndian.PutUint64(dst[8*i:], v)
		}
	default:
		abortf("unexpected array data width %d", width)
	}
}

// ArrayDataUnits returns the length in code units of an array-data payload.
func ArrayDataUnits(width, count int) int {
	return 4 + (width*count+1)/2
}

// FillArrayData copies an array-data payload into arr. A table holding
// more elements than the array raises an index fault and leaves the array
// untouched.
func FillArrayData(arr *Object, table []uint16) error {
	if table[0] != ArrayDataSignature {
		abortf("bad array data magic 0x%04x", table[0])
	}
	width := int(table[1])
	size := int(uint32(table[2]) | uint32(table[3])<<16)
	if size > arr.Length {
		return indexOutOfBounds(arr.Length, int32(size))
	}
	if width*size > len(arr.Data) {
		abortf("array data width %d does not match %s", width, arr.Class)
	}
	CopyTable(arr.Data, table[4:], size, width)
	return nil
}
