package vm

import "math"

// aluOp selects the operation of a binary arithmetic instruction. The order
// matches the opcode layout of each binop family.
type aluOp uint8

const (
	aluAdd aluOp = iota
	aluSub
	aluMul
	aluDiv
	aluRem
	aluAnd
	aluOr
	aluXor
	aluShl
	aluShr
	aluUshr
	aluRsub // literal minus register; lit16 and lit8 forms only
)

func (op aluOp) isShift() bool { return op >= aluShl && op <= aluUshr }

// ---------------------------------------------------------------------------
// Integer division
// ---------------------------------------------------------------------------

// DivInt32 divides with managed semantics: a zero divisor is a fault and
// MinInt32 / -1 yields MinInt32.
func DivInt32(a, b int32) (int32, error) {
	if b == 0 {
		return 0, divideByZero()
	}
	if a == math.MinInt32 && b == -1 {
		return a, nil
	}
	return a / b, nil
}

// RemInt32 is the remainder counterpart of DivInt32; MinInt32 % -1 is 0.
func RemInt32(a, b int32) (int32, error) {
	if b == 0 {
		return 0, divideByZero()
	}
	if a == math.MinInt32 && b == -1 {
		return 0, nil
	}
	return a % b, nil
}

func DivInt64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, divideByZero()
	}
	if a == math.MinInt64 && b == -1 {
		return a, nil
	}
	return a / b, nil
}

func RemInt64(a, b int64) (int64, error) {
	if b == 0 {
		return 0, divideByZero()
	}
	if a == math.MinInt64 && b == -1 {
		return 0, nil
	}
	return a % b, nil
}

func intALU(op aluOp, a, b int32) (int32, error) {
	switch op {
	case aluAdd:
		return a + b, nil
	case aluSub:
		return a - b, nil
	case aluRsub:
		return b - a, nil
	case aluMul:
		return a * b, nil
	case aluDiv:
		return DivInt32(a, b)
	case aluRem:
		return RemInt32(a, b)
	case aluAnd:
		return a & b, nil
	case aluOr:
		return a | b, nil
	case aluXor:
		return a ^ b, nil
	case aluShl:
		return a << (uint32(b) & 0x1f), nil
	case aluShr:
		return a >> (uint32(b) & 0x1f), nil
	case aluUshr:
		return int32(uint32(a) >> (uint32(b) & 0x1f)), nil
	}
	abortf("bad int op %d", op)
	return 0, nil
}

// longALU takes the shift distance in b for shift ops; only its low six
// bits are used.
func longALU(op aluOp, a, b int64) (int64, error) {
	switch op {
	case aluAdd:
		return a + b, nil
	case aluSub:
		return a - b, nil
	case aluMul:
		return a * b, nil
	case aluDiv:
		return DivInt64(a, b)
	case aluRem:
		return RemInt64(a, b)
	case aluAnd:
		return a & b, nil
	case aluOr:
		return a | b, nil
	case aluXor:
		return a ^ b, nil
	case aluShl:
		return a << (uint64(b) & 0x3f), nil
	case aluShr:
		return a >> (uint64(b) & 0x3f), nil
	case aluUshr:
		return int64(uint64(a) >> (uint64(b) & 0x3f)), nil
	}
	abortf("bad long op %d", op)
	return 0, nil
}

func floatALU(op aluOp, a, b float32) float32 {
	switch op {
	case aluAdd:
		return a + b
	case aluSub:
		return a - b
	case aluMul:
		return a * b
	case aluDiv:
		return a / b
	case aluRem:
		// fmod is exact, so computing in double and narrowing matches fmodf.
		return float32(math.Mod(float64(a), float64(b)))
	}
	abortf("bad float op %d", op)
	return 0
}

func doubleALU(op aluOp, a, b float64) float64 {
	switch op {
	case aluAdd:
		return a + b
	case aluSub:
		return a - b
	case aluMul:
		return a * b
	case aluDiv:
		return a / b
	case aluRem:
		return math.Mod(a, b)
	}
	abortf("bad double op %d", op)
	return 0
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

// DoubleToInt32 converts with saturation: values at or beyond the int32
// range clamp to its bounds and NaN becomes 0. Float sources widen to
// double first, which is exact.
func DoubleToInt32(v float64) int32 {
	switch {
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	case v != v:
		return 0
	}
	return int32(v)
}

// DoubleToInt64 is DoubleToInt32 for a 64-bit target.
func DoubleToInt64(v float64) int64 {
	switch {
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	case v != v:
		return 0
	}
	return int64(v)
}

func FloatToInt32(v float32) int32 { return DoubleToInt32(float64(v)) }
func FloatToInt64(v float32) int64 { return DoubleToInt64(float64(v)) }

// ---------------------------------------------------------------------------
// Comparisons
// ---------------------------------------------------------------------------

// CompareFloat64 returns -1, 0 or 1, or nanVal when the operands are
// unordered. cmpl passes -1 and cmpg passes 1.
func CompareFloat64(a, b float64, nanVal int32) int32 {
	switch {
	case a == b:
		return 0
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return nanVal
}

func CompareFloat32(a, b float32, nanVal int32) int32 {
	return CompareFloat64(float64(a), float64(b), nanVal)
}

func CompareInt64(a, b int64) int32 {
	switch {
	case a == b:
		return 0
	case a < b:
		return -1
	}
	return 1
}
