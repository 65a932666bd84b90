package vm

import "sort"

// SwitchFallthrough is what a switch lookup returns on a miss: the width of
// the switch instruction itself, so execution continues after it.
const SwitchFallthrough int32 = 3

func tableInt(t []uint16, i int) int32 {
	return int32(uint32(t[i]) | uint32(t[i+1])<<16)
}

// PackedSwitch looks testVal up in a packed-switch payload and returns the
// branch offset, relative to the switch instruction.
//
//	ident     u2  0x0100
//	size      u2
//	first_key s4
//	targets   s4[size]
func PackedSwitch(table []uint16, testVal int32) int32 {
	if table[0] != PackedSwitchSignature {
		abortf("bad packed switch magic 0x%04x", table[0])
	}
	size := int(table[1])
	firstKey := tableInt(table, 2)

	// Compute in 64 bits so a distant key cannot wrap into range.
	index := int64(testVal) - int64(firstKey)
	if index < 0 || index >= int64(size) {
		return SwitchFallthrough
	}
	return tableInt(table, 4+2*int(index))
}

// SparseSwitch looks testVal up in a sparse-switch payload by binary search
// over its ascending keys.
//
//	ident   u2  0x0200
//	size    u2
//	keys    s4[size]
//	targets s4[size]
func SparseSwitch(table []uint16, testVal int32) int32 {
	if table[0] != SparseSwitchSignature {
		abortf("bad sparse switch magic 0x%04x", table[0])
	}
	size := int(table[1])
	keys := table[2:]
	targets := table[2+2*size:]

	i := sort.Search(size, func(i int) bool {
		return tableInt(keys, 2*i) >= testVal
	})
	if i < size && tableInt(keys, 2*i) == testVal {
		return tableInt(targets, 2*i)
	}
	return SwitchFallthrough
}

// PackedSwitchUnits returns the length in code units of a packed-switch payload.
func PackedSwitchUnits(size int) int { return 4 + 2*size }

// SparseSwitchUnits returns the length in code units of a sparse-switch payload.
func SparseSwitchUnits(size int) int { return 2 + 4*size }
