package vm

// dispatchTable maps every opcode to its handler. Opcodes the format
// leaves unused abort.
var dispatchTable = buildDispatchTable()

func buildDispatchTable() [256]opHandler {
	var t [256]opHandler
	for i := range t {
		t[i] = opUnused
	}
	set := func(h opHandler, ops ...Opcode) {
		for _, op := range ops {
			t[op] = h
		}
	}
	span := func(h opHandler, first, last Opcode) {
		for op := int(first); op <= int(last); op++ {
			t[op] = h
		}
	}

	set(opNop, OpNop)
	set(opMove, OpMove, OpMoveObject)
	set(opMoveFrom16, OpMoveFrom16, OpMoveObjectFrom16)
	set(opMove16, OpMove16, OpMoveObject16)
	set(opMoveWide, OpMoveWide)
	set(opMoveWideFrom16, OpMoveWideFrom16)
	set(opMoveWide16, OpMoveWide16)
	set(opMoveResult, OpMoveResult, OpMoveResultObject)
	set(opMoveResultWide, OpMoveResultWide)
	set(opMoveException, OpMoveException)
	set(opReturnVoid, OpReturnVoid, OpReturnVoidBarrier)
	set(opReturn, OpReturn)
	set(opReturnWide, OpReturnWide)
	set(opReturnObject, OpReturnObject)

	set(opConst4, OpConst4)
	set(opConst16, OpConst16)
	set(opConst, OpConst)
	set(opConstHigh16, OpConstHigh16)
	set(opConstWide16, OpConstWide16)
	set(opConstWide32, OpConstWide32)
	set(opConstWide, OpConstWide)
	set(opConstWideHigh16, OpConstWideHigh16)
	set(opConstString, OpConstString, OpConstStringJumbo)
	set(opConstClass, OpConstClass)

	set(opMonitorEnter, OpMonitorEnter)
	set(opMonitorExit, OpMonitorExit)
	set(opCheckCast, OpCheckCast)
	set(opInstanceOf, OpInstanceOf)
	set(opArrayLength, OpArrayLength)
	set(opNewInstance, OpNewInstance)
	set(opNewArray, OpNewArray)
	set(opFilledNewArray, OpFilledNewArray, OpFilledNewArrayRange)
	set(opFillArrayData, OpFillArrayData)
	set(opThrow, OpThrow)

	set(opGoto, OpGoto)
	set(opGoto16, OpGoto16)
	set(opGoto32, OpGoto32)
	set(opPackedSwitch, OpPackedSwitch)
	set(opSparseSwitch, OpSparseSwitch)
	set(opCmpFloat, OpCmplFloat, OpCmpgFloat)
	set(opCmpDouble, OpCmplDouble, OpCmpgDouble)
	set(opCmpLong, OpCmpLong)
	span(opIf, OpIfEq, OpIfLe)
	span(opIfz, OpIfEqz, OpIfLez)

	span(opAget, OpAget, OpAgetShort)
	set(opAput, OpAput, OpAputWide, OpAputBoolean, OpAputByte, OpAputChar, OpAputShort)
	set(opAputObject, OpAputObject)
	span(opInstanceField, OpIget, OpIputShort)
	span(opStaticField, OpSget, OpSputShort)

	set(opInvokeVirtual, OpInvokeVirtual, OpInvokeVirtualRange)
	set(opInvokeSuper, OpInvokeSuper, OpInvokeSuperRange)
	set(opInvokeDirect, OpInvokeDirect, OpInvokeDirectRange, OpInvokeObjectInitRange)
	set(opInvokeStatic, OpInvokeStatic, OpInvokeStaticRange)
	set(opInvokeInterface, OpInvokeInterface, OpInvokeInterfaceRange)

	span(opUnary, OpNegInt, OpIntToShort)
	span(opBinopInt, OpAddInt, OpUshrInt)
	span(opBinopLong, OpAddLong, OpUshrLong)
	span(opBinopFloat, OpAddFloat, OpRemFloat)
	span(opBinopDouble, OpAddDouble, OpRemDouble)
	span(opBinopInt2Addr, OpAddInt2Addr, OpUshrInt2Addr)
	span(opBinopLong2Addr, OpAddLong2Addr, OpUshrLong2Addr)
	span(opBinopFloat2Addr, OpAddFloat2Addr, OpRemFloat2Addr)
	span(opBinopDouble2Addr, OpAddDouble2Addr, OpRemDouble2Addr)
	span(opBinopLit16, OpAddIntLit16, OpXorIntLit16)
	span(opBinopLit8, OpAddIntLit8, OpUshrIntLit8)

	set(opInstanceField, OpIgetVolatile, OpIputVolatile, OpIgetObjectVolatile,
		OpIgetWideVolatile, OpIputWideVolatile, OpIputObjectVolatile,
		OpIgetQuick, OpIgetWideQuick, OpIgetObjectQuick,
		OpIputQuick, OpIputWideQuick, OpIputObjectQuick)
	set(opStaticField, OpSgetVolatile, OpSputVolatile, OpSgetWideVolatile,
		OpSputWideVolatile, OpSgetObjectVolatile, OpSputObjectVolatile)

	set(opBreakpoint, OpBreakpoint)
	set(opThrowVerificationError, OpThrowVerificationError)
	set(opExecuteInline, OpExecuteInline, OpExecuteInlineRange)
	set(opInvokeVirtualQuick, OpInvokeVirtualQuick, OpInvokeVirtualQuickRange)
	set(opInvokeSuperQuick, OpInvokeSuperQuick, OpInvokeSuperQuickRange)

	return t
}
