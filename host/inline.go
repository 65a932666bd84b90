package host

import (
	"github.com/chazu/dexvm/vm"
)

// Indices of the methods execute-inline can call.
const (
	InlineStringLength = iota
	InlineStringIsEmpty
	InlineMathAbsInt
	InlineMathMinInt
	InlineMathMaxInt
	InlineMathAbsLong
)

// InlineMethod names the method an inline index stands for.
type InlineMethod struct {
	Class     string
	Name      string
	Signature string
}

// InlineMethods is the execute-inline table, by index.
var InlineMethods = []InlineMethod{
	InlineStringLength:  {StringDescriptor, "length", "()I"},
	InlineStringIsEmpty: {StringDescriptor, "isEmpty", "()Z"},
	InlineMathAbsInt:    {MathDescriptor, "abs", "(I)I"},
	InlineMathMinInt:    {MathDescriptor, "min", "(II)I"},
	InlineMathMaxInt:    {MathDescriptor, "max", "(II)I"},
	InlineMathAbsLong:   {MathDescriptor, "abs", "(J)J"},
}

// Inline runs an inlined method on up to four argument words.
func (rt *Runtime) Inline(_ *vm.Interpreter, index int, args [4]uint32) (vm.Value, error) {
	switch index {
	case InlineStringLength, InlineStringIsEmpty:
		s, err := rt.stringArg(vm.Ref(args[0]), InlineMethods[index].Name)
		if err != nil {
			return vm.Value{}, err
		}
		if index == InlineStringIsEmpty {
			return boolValue(s == ""), nil
		}
		return vm.IntValue(int32(utf16Len(s))), nil
	case InlineMathAbsInt:
		return vm.IntValue(absInt(int32(args[0]))), nil
	case InlineMathMinInt:
		return vm.IntValue(min(int32(args[0]), int32(args[1]))), nil
	case InlineMathMaxInt:
		return vm.IntValue(max(int32(args[0]), int32(args[1]))), nil
	case InlineMathAbsLong:
		return vm.LongValue(absLong(int64(vm.LoadWide(args[:], 0)))), nil
	}
	return vm.Value{}, vm.NewFault(vm.FaultInternal, "no inline method %d", index)
}
