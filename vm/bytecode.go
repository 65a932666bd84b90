package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Instruction words
// ---------------------------------------------------------------------------

// Inst is the first code unit of an instruction: the opcode in the low
// byte and the A/B or AA operand in the high byte.
type Inst uint16

func (i Inst) Op() Opcode { return Opcode(i & 0xff) }
func (i Inst) A() int { return int(i>>8) & 0x0f }
func (i Inst) B() int { return int(i >> 12) }
func (i Inst) AA() int { return int(i >> 8) }

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode is the low byte of an instruction word.
type Opcode byte

// Moves and returns
const (
	OpNop              Opcode = 0x00
	OpMove             Opcode = 0x01
	OpMoveFrom16       Opcode = 0x02
	OpMove16           Opcode = 0x03
	OpMoveWide         Opcode = 0x04
	OpMoveWideFrom16   Opcode = 0x05
	OpMoveWide16       Opcode = 0x06
	OpMoveObject       Opcode = 0x07
	OpMoveObjectFrom16 Opcode = 0x08
	OpMoveObject16     Opcode = 0x09
	OpMoveResult       Opcode = 0x0a
	OpMoveResultWide   Opcode = 0x0b
	OpMoveResultObject Opcode = 0x0c
	OpMoveException    Opcode = 0x0d
	OpReturnVoid       Opcode = 0x0e
	OpReturn           Opcode = 0x0f
	OpReturnWide       Opcode = 0x10
	OpReturnObject     Opcode = 0x11
)

// Constants
const (
	OpConst4           Opcode = 0x12
	OpConst16          Opcode = 0x13
	OpConst            Opcode = 0x14
	OpConstHigh16      Opcode = 0x15
	OpConstWide16      Opcode = 0x16
	OpConstWide32      Opcode = 0x17
	OpConstWide        Opcode = 0x18
	OpConstWideHigh16  Opcode = 0x19
	OpConstString      Opcode = 0x1a
	OpConstStringJumbo Opcode = 0x1b
	OpConstClass       Opcode = 0x1c
)

// Objects and arrays
const (
	OpMonitorEnter        Opcode = 0x1d
	OpMonitorExit         Opcode = 0x1e
	OpCheckCast           Opcode = 0x1f
	OpInstanceOf          Opcode = 0x20
	OpArrayLength         Opcode = 0x21
	OpNewInstance         Opcode = 0x22
	OpNewArray            Opcode = 0x23
	OpFilledNewArray      Opcode = 0x24
	OpFilledNewArrayRange Opcode = 0x25
	OpFillArrayData       Opcode = 0x26
	OpThrow               Opcode = 0x27
)

// Control flow
const (
	OpGoto         Opcode = 0x28
	OpGoto16       Opcode = 0x29
	OpGoto32       Opcode = 0x2a
	OpPackedSwitch Opcode = 0x2b
	OpSparseSwitch Opcode = 0x2c
	OpCmplFloat    Opcode = 0x2d
	OpCmpgFloat    Opcode = 0x2e
	OpCmplDouble   Opcode = 0x2f
	OpCmpgDouble   Opcode = 0x30
	OpCmpLong      Opcode = 0x31
	OpIfEq         Opcode = 0x32
	OpIfNe         Opcode = 0x33
	OpIfLt         Opcode = 0x34
	OpIfGe         Opcode = 0x35
	OpIfGt         Opcode = 0x36
	OpIfLe         Opcode = 0x37
	OpIfEqz        Opcode = 0x38
	OpIfNez        Opcode = 0x39
	OpIfLtz        Opcode = 0x3a
	OpIfGez        Opcode = 0x3b
	OpIfGtz        Opcode = 0x3c
	OpIfLez        Opcode = 0x3d
)

// Array element access
const (
	OpAget        Opcode = 0x44
	OpAgetWide    Opcode = 0x45
	OpAgetObject  Opcode = 0x46
	OpAgetBoolean Opcode = 0x47
	OpAgetByte    Opcode = 0x48
	OpAgetChar    Opcode = 0x49
	OpAgetShort   Opcode = 0x4a
	OpAput        Opcode = 0x4b
	OpAputWide    Opcode = 0x4c
	OpAputObject  Opcode = 0x4d
	OpAputBoolean Opcode = 0x4e
	OpAputByte    Opcode = 0x4f
	OpAputChar    Opcode = 0x50
	OpAputShort   Opcode = 0x51
)

// Field access
const (
	OpIget        Opcode = 0x52
	OpIgetWide    Opcode = 0x53
	OpIgetObject  Opcode = 0x54
	OpIgetBoolean Opcode = 0x55
	OpIgetByte    Opcode = 0x56
	OpIgetChar    Opcode = 0x57
	OpIgetShort   Opcode = 0x58
	OpIput        Opcode = 0x59
	OpIputWide    Opcode = 0x5a
	OpIputObject  Opcode = 0x5b
	OpIputBoolean Opcode = 0x5c
	OpIputByte    Opcode = 0x5d
	OpIputChar    Opcode = 0x5e
	OpIputShort   Opcode = 0x5f
	OpSget        Opcode = 0x60
	OpSgetWide    Opcode = 0x61
	OpSgetObject  Opcode = 0x62
	OpSgetBoolean Opcode = 0x63
	OpSgetByte    Opcode = 0x64
	OpSgetChar    Opcode = 0x65
	OpSgetShort   Opcode = 0x66
	OpSput        Opcode = 0x67
	OpSputWide    Opcode = 0x68
	OpSputObject  Opcode = 0x69
	OpSputBoolean Opcode = 0x6a
	OpSputByte    Opcode = 0x6b
	OpSputChar    Opcode = 0x6c
	OpSputShort   Opcode = 0x6d
)

// Invocation
const (
	OpInvokeVirtual        Opcode = 0x6e
	OpInvokeSuper          Opcode = 0x6f
	OpInvokeDirect         Opcode = 0x70
	OpInvokeStatic         Opcode = 0x71
	OpInvokeInterface      Opcode = 0x72
	OpInvokeVirtualRange   Opcode = 0x74
	OpInvokeSuperRange     Opcode = 0x75
	OpInvokeDirectRange    Opcode = 0x76
	OpInvokeStaticRange    Opcode = 0x77
	OpInvokeInterfaceRange Opcode = 0x78
)

// Unary operations and conversions
const (
	OpNegInt        Opcode = 0x7b
	OpNotInt        Opcode = 0x7c
	OpNegLong       Opcode = 0x7d
	OpNotLong       Opcode = 0x7e
	OpNegFloat      Opcode = 0x7f
	OpNegDouble     Opcode = 0x80
	OpIntToLong     Opcode = 0x81
	OpIntToFloat    Opcode = 0x82
	OpIntToDouble   Opcode = 0x83
	OpLongToInt     Opcode = 0x84
	OpLongToFloat   Opcode = 0x85
	OpLongToDouble  Opcode = 0x86
	OpFloatToInt    Opcode = 0x87
	OpFloatToLong   Opcode = 0x88
	OpFloatToDouble Opcode = 0x89
	OpDoubleToInt   Opcode = 0x8a
	OpDoubleToLong  Opcode = 0x8b
	OpDoubleToFloat Opcode = 0x8c
	OpIntToByte     Opcode = 0x8d
	OpIntToChar     Opcode = 0x8e
	OpIntToShort    Opcode = 0x8f
)

// Binary operations, three-register form. Each family starts at its
// add opcode and follows the aluOp order.
const (
	OpAddInt    Opcode = 0x90
	OpSubInt    Opcode = 0x91
	OpMulInt    Opcode = 0x92
	OpDivInt    Opcode = 0x93
	OpRemInt    Opcode = 0x94
	OpAndInt    Opcode = 0x95
	OpOrInt     Opcode = 0x96
	OpXorInt    Opcode = 0x97
	OpShlInt    Opcode = 0x98
	OpShrInt    Opcode = 0x99
	OpUshrInt   Opcode = 0x9a
	OpAddLong   Opcode = 0x9b
	OpSubLong   Opcode = 0x9c
	OpMulLong   Opcode = 0x9d
	OpDivLong   Opcode = 0x9e
	OpRemLong   Opcode = 0x9f
	OpAndLong   Opcode = 0xa0
	OpOrLong    Opcode = 0xa1
	OpXorLong   Opcode = 0xa2
	OpShlLong   Opcode = 0xa3
	OpShrLong   Opcode = 0xa4
	OpUshrLong  Opcode = 0xa5
	OpAddFloat  Opcode = 0xa6
	OpSubFloat  Opcode = 0xa7
	OpMulFloat  Opcode = 0xa8
	OpDivFloat  Opcode = 0xa9
	OpRemFloat  Opcode = 0xaa
	OpAddDouble Opcode = 0xab
	OpSubDouble Opcode = 0xac
	OpMulDouble Opcode = 0xad
	OpDivDouble Opcode = 0xae
	OpRemDouble Opcode = 0xaf
)

// Binary operations, two-address form
const (
	OpAddInt2Addr    Opcode = 0xb0
	OpSubInt2Addr    Opcode = 0xb1
	OpMulInt2Addr    Opcode = 0xb2
	OpDivInt2Addr    Opcode = 0xb3
	OpRemInt2Addr    Opcode = 0xb4
	OpAndInt2Addr    Opcode = 0xb5
	OpOrInt2Addr     Opcode = 0xb6
	OpXorInt2Addr    Opcode = 0xb7
	OpShlInt2Addr    Opcode = 0xb8
	OpShrInt2Addr    Opcode = 0xb9
	OpUshrInt2Addr   Opcode = 0xba
	OpAddLong2Addr   Opcode = 0xbb
	OpSubLong2Addr   Opcode = 0xbc
	OpMulLong2Addr   Opcode = 0xbd
	OpDivLong2Addr   Opcode = 0xbe
	OpRemLong2Addr   Opcode = 0xbf
	OpAndLong2Addr   Opcode = 0xc0
	OpOrLong2Addr    Opcode = 0xc1
	OpXorLong2Addr   Opcode = 0xc2
	OpShlLong2Addr   Opcode = 0xc3
	OpShrLong2Addr   Opcode = 0xc4
	OpUshrLong2Addr  Opcode = 0xc5
	OpAddFloat2Addr  Opcode = 0xc6
	OpSubFloat2Addr  Opcode = 0xc7
	OpMulFloat2Addr  Opcode = 0xc8
	OpDivFloat2Addr  Opcode = 0xc9
	OpRemFloat2Addr  Opcode = 0xca
	OpAddDouble2Addr Opcode = 0xcb
	OpSubDouble2Addr Opcode = 0xcc
	OpMulDouble2Addr Opcode = 0xcd
	OpDivDouble2Addr Opcode = 0xce
	OpRemDouble2Addr Opcode = 0xcf
)

// Binary operations with literals
const (
	OpAddIntLit16 Opcode = 0xd0
	OpRsubInt     Opcode = 0xd1
	OpMulIntLit16 Opcode = 0xd2
	OpDivIntLit16 Opcode = 0xd3
	OpRemIntLit16 Opcode = 0xd4
	OpAndIntLit16 Opcode = 0xd5
	OpOrIntLit16  Opcode = 0xd6
	OpXorIntLit16 Opcode = 0xd7
	OpAddIntLit8  Opcode = 0xd8
	OpRsubIntLit8 Opcode = 0xd9
	OpMulIntLit8  Opcode = 0xda
	OpDivIntLit8  Opcode = 0xdb
	OpRemIntLit8  Opcode = 0xdc
	OpAndIntLit8  Opcode = 0xdd
	OpOrIntLit8   Opcode = 0xde
	OpXorIntLit8  Opcode = 0xdf
	OpShlIntLit8  Opcode = 0xe0
	OpShrIntLit8  Opcode = 0xe1
	OpUshrIntLit8 Opcode = 0xe2
)

// Optimized forms produced by dexopt
const (
	OpIgetVolatile            Opcode = 0xe3
	OpIputVolatile            Opcode = 0xe4
	OpSgetVolatile            Opcode = 0xe5
	OpSputVolatile            Opcode = 0xe6
	OpIgetObjectVolatile      Opcode = 0xe7
	OpIgetWideVolatile        Opcode = 0xe8
	OpIputWideVolatile        Opcode = 0xe9
	OpSgetWideVolatile        Opcode = 0xea
	OpSputWideVolatile        Opcode = 0xeb
	OpBreakpoint              Opcode = 0xec
	OpThrowVerificationError  Opcode = 0xed
	OpExecuteInline           Opcode = 0xee
	OpExecuteInlineRange      Opcode = 0xef
	OpInvokeObjectInitRange   Opcode = 0xf0
	OpReturnVoidBarrier       Opcode = 0xf1
	OpIgetQuick               Opcode = 0xf2
	OpIgetWideQuick           Opcode = 0xf3
	OpIgetObjectQuick         Opcode = 0xf4
	OpIputQuick               Opcode = 0xf5
	OpIputWideQuick           Opcode = 0xf6
	OpIputObjectQuick         Opcode = 0xf7
	OpInvokeVirtualQuick      Opcode = 0xf8
	OpInvokeVirtualQuickRange Opcode = 0xf9
	OpInvokeSuperQuick        Opcode = 0xfa
	OpInvokeSuperQuickRange   Opcode = 0xfb
	OpIputObjectVolatile      Opcode = 0xfc
	OpSgetObjectVolatile      Opcode = 0xfd
	OpSputObjectVolatile      Opcode = 0xfe
)

// ---------------------------------------------------------------------------
// Instruction formats
// ---------------------------------------------------------------------------

// Format is an instruction layout. The first digit of its name is the
// instruction width in code units.
type Format uint8

const (
	Fmt10x Format = iota // op
	Fmt12x               // op vA, vB
	Fmt11n               // op vA, #+B
	Fmt11x               // op vAA
	Fmt10t               // op +AA
	Fmt20t               // op +AAAA
	Fmt20bc              // op AA, kind@BBBB
	Fmt22x               // op vAA, vBBBB
	Fmt21t               // op vAA, +BBBB
	Fmt21s               // op vAA, #+BBBB
	Fmt21h               // op vAA, #+BBBB0000[00000000]
	Fmt21c               // op vAA, thing@BBBB
	Fmt23x               // op vAA, vBB, vCC
	Fmt22b               // op vAA, vBB, #+CC
	Fmt22t               // op vA, vB, +CCCC
	Fmt22s               // op vA, vB, #+CCCC
	Fmt22c               // op vA, vB, thing@CCCC
	Fmt22cs              // op vA, vB, fieldoff@CCCC
	Fmt32x               // op vAAAA, vBBBB
	Fmt30t               // op +AAAAAAAA
	Fmt31t               // op vAA, +BBBBBBBB
	Fmt31i               // op vAA, #+BBBBBBBB
	Fmt31c               // op vAA, thing@BBBBBBBB
	Fmt35c               // op {vC, vD, vE, vF, vG}, thing@BBBB
	Fmt35ms              // op {vC, vD, vE, vF, vG}, vtaboff@BBBB
	Fmt35mi              // op {vC, vD, vE, vF, vG}, inline@BBBB
	Fmt3rc               // op {vCCCC .. vNNNN}, thing@BBBB
	Fmt3rms              // op {vCCCC .. vNNNN}, vtaboff@BBBB
	Fmt3rmi              // op {vCCCC .. vNNNN}, inline@BBBB
	Fmt51l               // op vAA, #+BBBBBBBBBBBBBBBB
)

var formatNames = [...]string{
	Fmt10x: "10x", Fmt12x: "12x", Fmt11n: "11n", Fmt11x: "11x", Fmt10t: "10t",
	Fmt20t: "20t", Fmt20bc: "20bc", Fmt22x: "22x", Fmt21t: "21t", Fmt21s: "21s",
	Fmt21h: "21h", Fmt21c: "21c", Fmt23x: "23x", Fmt22b: "22b", Fmt22t: "22t",
	Fmt22s: "22s", Fmt22c: "22c", Fmt22cs: "22cs", Fmt32x: "32x", Fmt30t: "30t",
	Fmt31t: "31t", Fmt31i: "31i", Fmt31c: "31c", Fmt35c: "35c", Fmt35ms: "35ms",
	Fmt35mi: "35mi", Fmt3rc: "3rc", Fmt3rms: "3rms", Fmt3rmi: "3rmi", Fmt51l: "51l",
}

func (f Format) String() string { return formatNames[f] }

// Width returns the instruction length in code units.
func (f Format) Width() int { return int(formatNames[f][0] - '0') }

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name   string
	Format Format
}

// opcodeTable is indexed by opcode; unused opcodes have an empty name.
var opcodeTable = [256]OpcodeInfo{
	OpNop:              {"nop", Fmt10x},
	OpMove:             {"move", Fmt12x},
	OpMoveFrom16:       {"move/from16", Fmt22x},
	OpMove16:           {"move/16", Fmt32x},
	OpMoveWide:         {"move-wide", Fmt12x},
	OpMoveWideFrom16:   {"move-wide/from16", Fmt22x},
	OpMoveWide16:       {"move-wide/16", Fmt32x},
	OpMoveObject:       {"move-object", Fmt12x},
	OpMoveObjectFrom16: {"move-object/from16", Fmt22x},
	OpMoveObject16:     {"move-object/16", Fmt32x},
	OpMoveResult:       {"move-result", Fmt11x},
	OpMoveResultWide:   {"move-result-wide", Fmt11x},
	OpMoveResultObject: {"move-result-object", Fmt11x},
	OpMoveException:    {"move-exception", Fmt11x},
	OpReturnVoid:       {"return-void", Fmt10x},
	OpReturn:           {"return", Fmt11x},
	OpReturnWide:       {"return-wide", Fmt11x},
	OpReturnObject:     {"return-object", Fmt11x},

	OpConst4:           {"const/4", Fmt11n},
	OpConst16:          {"const/16", Fmt21s},
	OpConst:            {"const", Fmt31i},
	OpConstHigh16:      {"const/high16", Fmt21h},
	OpConstWide16:      {"const-wide/16", Fmt21s},
	OpConstWide32:      {"const-wide/32", Fmt31i},
	OpConstWide:        {"const-wide", Fmt51l},
	OpConstWideHigh16:  {"const-wide/high16", Fmt21h},
	OpConstString:      {"const-string", Fmt21c},
	OpConstStringJumbo: {"const-string/jumbo", Fmt31c},
	OpConstClass:       {"const-class", Fmt21c},

	OpMonitorEnter:        {"monitor-enter", Fmt11x},
	OpMonitorExit:         {"monitor-exit", Fmt11x},
	OpCheckCast:           {"check-cast", Fmt21c},
	OpInstanceOf:          {"instance-of", Fmt22c},
	OpArrayLength:         {"array-length", Fmt12x},
	OpNewInstance:         {"new-instance", Fmt21c},
	OpNewArray:            {"new-array", Fmt22c},
	OpFilledNewArray:      {"filled-new-array", Fmt35c},
	OpFilledNewArrayRange: {"filled-new-array/range", Fmt3rc},
	OpFillArrayData:       {"fill-array-data", Fmt31t},
	OpThrow:               {"throw", Fmt11x},

	OpGoto:         {"goto", Fmt10t},
	OpGoto16:       {"goto/16", Fmt20t},
	OpGoto32:       {"goto/32", Fmt30t},
	OpPackedSwitch: {"packed-switch", Fmt31t},
	OpSparseSwitch: {"sparse-switch", Fmt31t},
	OpCmplFloat:    {"cmpl-float", Fmt23x},
	OpCmpgFloat:    {"cmpg-float", Fmt23x},
	OpCmplDouble:   {"cmpl-double", Fmt23x},
	OpCmpgDouble:   {"cmpg-double", Fmt23x},
	OpCmpLong:      {"cmp-long", Fmt23x},
	OpIfEq:         {"if-eq", Fmt22t},
	OpIfNe:         {"if-ne", Fmt22t},
	OpIfLt:         {"if-lt", Fmt22t},
	OpIfGe:         {"if-ge", Fmt22t},
	OpIfGt:         {"if-gt", Fmt22t},
	OpIfLe:         {"if-le", Fmt22t},
	OpIfEqz:        {"if-eqz", Fmt21t},
	OpIfNez:        {"if-nez", Fmt21t},
	OpIfLtz:        {"if-ltz", Fmt21t},
	OpIfGez:        {"if-gez", Fmt21t},
	OpIfGtz:        {"if-gtz", Fmt21t},
	OpIfLez:        {"if-lez", Fmt21t},

	OpAget:        {"aget", Fmt23x},
	OpAgetWide:    {"aget-wide", Fmt23x},
	OpAgetObject:  {"aget-object", Fmt23x},
	OpAgetBoolean: {"aget-boolean", Fmt23x},
	OpAgetByte:    {"aget-byte", Fmt23x},
	OpAgetChar:    {"aget-char", Fmt23x},
	OpAgetShort:   {"aget-short", Fmt23x},
	OpAput:        {"aput", Fmt23x},
	OpAputWide:    {"aput-wide", Fmt23x},
	OpAputObject:  {"aput-object", Fmt23x},
	OpAputBoolean: {"aput-boolean", Fmt23x},
	OpAputByte:    {"aput-byte", Fmt23x},
	OpAputChar:    {"aput-char", Fmt23x},
	OpAputShort:   {"aput-short", Fmt23x},

	OpIget:        {"iget", Fmt22c},
	OpIgetWide:    {"iget-wide", Fmt22c},
	OpIgetObject:  {"iget-object", Fmt22c},
	OpIgetBoolean: {"iget-boolean", Fmt22c},
	OpIgetByte:    {"iget-byte", Fmt22c},
	OpIgetChar:    {"iget-char", Fmt22c},
	OpIgetShort:   {"iget-short", Fmt22c},
	OpIput:        {"iput", Fmt22c},
	OpIputWide:    {"iput-wide", Fmt22c},
	OpIputObject:  {"iput-object", Fmt22c},
	OpIputBoolean: {"iput-boolean", Fmt22c},
	OpIputByte:    {"iput-byte", Fmt22c},
	OpIputChar:    {"iput-char", Fmt22c},
	OpIputShort:   {"iput-short", Fmt22c},
	OpSget:        {"sget", Fmt21c},
	OpSgetWide:    {"sget-wide", Fmt21c},
	OpSgetObject:  {"sget-object", Fmt21c},
	OpSgetBoolean: {"sget-boolean", Fmt21c},
	OpSgetByte:    {"sget-byte", Fmt21c},
	OpSgetChar:    {"sget-char", Fmt21c},
	OpSgetShort:   {"sget-short", Fmt21c},
	OpSput:        {"sput", Fmt21c},
	OpSputWide:    {"sput-wide", Fmt21c},
	OpSputObject:  {"sput-object", Fmt21c},
	OpSputBoolean: {"sput-boolean", Fmt21c},
	OpSputByte:    {"sput-byte", Fmt21c},
	OpSputChar:    {"sput-char", Fmt21c},
	OpSputShort:   {"sput-short", Fmt21c},

	OpInvokeVirtual:        {"invoke-virtual", Fmt35c},
	OpInvokeSuper:          {"invoke-super", Fmt35c},
	OpInvokeDirect:         {"invoke-direct", Fmt35c},
	OpInvokeStatic:         {"invoke-static", Fmt35c},
	OpInvokeInterface:      {"invoke-interface", Fmt35c},
	OpInvokeVirtualRange:   {"invoke-virtual/range", Fmt3rc},
	OpInvokeSuperRange:     {"invoke-super/range", Fmt3rc},
	OpInvokeDirectRange:    {"invoke-direct/range", Fmt3rc},
	OpInvokeStaticRange:    {"invoke-static/range", Fmt3rc},
	OpInvokeInterfaceRange: {"invoke-interface/range", Fmt3rc},

	OpNegInt:        {"neg-int", Fmt12x},
	OpNotInt:        {"not-int", Fmt12x},
	OpNegLong:       {"neg-long", Fmt12x},
	OpNotLong:       {"not-long", Fmt12x},
	OpNegFloat:      {"neg-float", Fmt12x},
	OpNegDouble:     {"neg-double", Fmt12x},
	OpIntToLong:     {"int-to-long", Fmt12x},
	OpIntToFloat:    {"int-to-float", Fmt12x},
	OpIntToDouble:   {"int-to-double", Fmt12x},
	OpLongToInt:     {"long-to-int", Fmt12x},
	OpLongToFloat:   {"long-to-float", Fmt12x},
	OpLongToDouble:  {"long-to-double", Fmt12x},
	OpFloatToInt:    {"float-to-int", Fmt12x},
	OpFloatToLong:   {"float-to-long", Fmt12x},
	OpFloatToDouble: {"float-to-double", Fmt12x},
	OpDoubleToInt:   {"double-to-int", Fmt12x},
	OpDoubleToLong:  {"double-to-long", Fmt12x},
	OpDoubleToFloat: {"double-to-float", Fmt12x},
	OpIntToByte:     {"int-to-byte", Fmt12x},
	OpIntToChar:     {"int-to-char", Fmt12x},
	OpIntToShort:    {"int-to-short", Fmt12x},

	OpAddIntLit16: {"add-int/lit16", Fmt22s},
	OpRsubInt:     {"rsub-int", Fmt22s},
	OpMulIntLit16: {"mul-int/lit16", Fmt22s},
	OpDivIntLit16: {"div-int/lit16", Fmt22s},
	OpRemIntLit16: {"rem-int/lit16", Fmt22s},
	OpAndIntLit16: {"and-int/lit16", Fmt22s},
	OpOrIntLit16:  {"or-int/lit16", Fmt22s},
	OpXorIntLit16: {"xor-int/lit16", Fmt22s},
	OpAddIntLit8:  {"add-int/lit8", Fmt22b},
	OpRsubIntLit8: {"rsub-int/lit8", Fmt22b},
	OpMulIntLit8:  {"mul-int/lit8", Fmt22b},
	OpDivIntLit8:  {"div-int/lit8", Fmt22b},
	OpRemIntLit8:  {"rem-int/lit8", Fmt22b},
	OpAndIntLit8:  {"and-int/lit8", Fmt22b},
	OpOrIntLit8:   {"or-int/lit8", Fmt22b},
	OpXorIntLit8:  {"xor-int/lit8", Fmt22b},
	OpShlIntLit8:  {"shl-int/lit8", Fmt22b},
	OpShrIntLit8:  {"shr-int/lit8", Fmt22b},
	OpUshrIntLit8: {"ushr-int/lit8", Fmt22b},

	OpIgetVolatile:            {"iget-volatile", Fmt22c},
	OpIputVolatile:            {"iput-volatile", Fmt22c},
	OpSgetVolatile:            {"sget-volatile", Fmt21c},
	OpSputVolatile:            {"sput-volatile", Fmt21c},
	OpIgetObjectVolatile:      {"iget-object-volatile", Fmt22c},
	OpIgetWideVolatile:        {"iget-wide-volatile", Fmt22c},
	OpIputWideVolatile:        {"iput-wide-volatile", Fmt22c},
	OpSgetWideVolatile:        {"sget-wide-volatile", Fmt21c},
	OpSputWideVolatile:        {"sput-wide-volatile", Fmt21c},
	OpBreakpoint:              {"breakpoint", Fmt10x},
	OpThrowVerificationError:  {"throw-verification-error", Fmt20bc},
	OpExecuteInline:           {"execute-inline", Fmt35mi},
	OpExecuteInlineRange:      {"execute-inline/range", Fmt3rmi},
	OpInvokeObjectInitRange:   {"invoke-object-init/range", Fmt3rc},
	OpReturnVoidBarrier:       {"return-void-barrier", Fmt10x},
	OpIgetQuick:               {"iget-quick", Fmt22cs},
	OpIgetWideQuick:           {"iget-wide-quick", Fmt22cs},
	OpIgetObjectQuick:         {"iget-object-quick", Fmt22cs},
	OpIputQuick:               {"iput-quick", Fmt22cs},
	OpIputWideQuick:           {"iput-wide-quick", Fmt22cs},
	OpIputObjectQuick:         {"iput-object-quick", Fmt22cs},
	OpInvokeVirtualQuick:      {"invoke-virtual-quick", Fmt35ms},
	OpInvokeVirtualQuickRange: {"invoke-virtual-quick/range", Fmt3rms},
	OpInvokeSuperQuick:        {"invoke-super-quick", Fmt35ms},
	OpInvokeSuperQuickRange:   {"invoke-super-quick/range", Fmt3rms},
	OpIputObjectVolatile:      {"iput-object-volatile", Fmt22c},
	OpSgetObjectVolatile:      {"sget-object-volatile", Fmt21c},
	OpSputObjectVolatile:      {"sput-object-volatile", Fmt21c},
}

func init() {
	binops := []string{"add", "sub", "mul", "div", "rem", "and", "or", "xor", "shl", "shr", "ushr"}
	families := []struct {
		base, base2addr Opcode
		suffix          string
		n               int
	}{
		{OpAddInt, OpAddInt2Addr, "int", 11},
		{OpAddLong, OpAddLong2Addr, "long", 11},
		{OpAddFloat, OpAddFloat2Addr, "float", 5},
		{OpAddDouble, OpAddDouble2Addr, "double", 5},
	}
	for _, f := range families {
		for i := 0; i < f.n; i++ {
			name := binops[i] + "-" + f.suffix
			opcodeTable[f.base+Opcode(i)] = OpcodeInfo{name, Fmt23x}
			opcodeTable[f.base2addr+Opcode(i)] = OpcodeInfo{name + "/2addr", Fmt12x}
		}
	}
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info := opcodeTable[op]; info.Name != "" {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("unused-%02x", byte(op)), Format: Fmt10x}
}

// Name returns the mnemonic for an opcode.
func (op Opcode) Name() string { return op.Info().Name }

// Format returns the instruction layout for an opcode.
func (op Opcode) Format() Format { return op.Info().Format }

// Width returns the instruction length in code units.
func (op Opcode) Width() int { return op.Info().Format.Width() }

// Defined reports whether the opcode is assigned.
func (op Opcode) Defined() bool { return opcodeTable[op].Name != "" }

// String implements the Stringer interface.
func (op Opcode) String() string { return op.Name() }

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// payloadUnits returns the length of the payload table at insns[pc], or 0
// if insns[pc] does not start one.
func payloadUnits(insns []uint16, pc int) int {
	if pc+4 > len(insns) {
		return 0
	}
	switch insns[pc] {
	case PackedSwitchSignature:
		return PackedSwitchUnits(int(insns[pc+1]))
	case SparseSwitchSignature:
		return SparseSwitchUnits(int(insns[pc+1]))
	case ArrayDataSignature:
		width := int(insns[pc+1])
		size := int(uint32(insns[pc+2]) | uint32(insns[pc+3])<<16)
		return ArrayDataUnits(width, size)
	}
	return 0
}

func regList(n int, regs uint16, fifth int) string {
	parts := make([]string, 0, n)
	for i := 0; i < n && i < 4; i++ {
		parts = append(parts, fmt.Sprintf("v%d", (regs>>(4*i))&0x0f))
	}
	if n == 5 {
		parts = append(parts, fmt.Sprintf("v%d", fifth))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// DisassembleAt renders the instruction at insns[pc] and returns its width.
func DisassembleAt(insns []uint16, pc int) (string, int) {
	if n := payloadUnits(insns, pc); n > 0 {
		kind := map[uint16]string{
			PackedSwitchSignature: "packed-switch-payload",
			SparseSwitchSignature: "sparse-switch-payload",
			ArrayDataSignature:    "array-payload",
		}[insns[pc]]
		return fmt.Sprintf("%04x: %s (%d units)", pc, kind, n), n
	}

	inst := Inst(insns[pc])
	op := inst.Op()
	info := op.Info()
	width := info.Format.Width()
	if pc+width > len(insns) {
		return fmt.Sprintf("%04x: %s <truncated>", pc, info.Name), len(insns) - pc
	}
	u := func(n int) uint16 { return insns[pc+n] }
	u32 := func(n int) int32 { return int32(uint32(u(n)) | uint32(u(n+1))<<16) }

	var ops string
	switch info.Format {
	case Fmt10x:
	case Fmt12x:
		ops = fmt.Sprintf("v%d, v%d", inst.A(), inst.B())
	case Fmt11n:
		ops = fmt.Sprintf("v%d, #%d", inst.A(), int32(int16(inst))>>12)
	case Fmt11x:
		ops = fmt.Sprintf("v%d", inst.AA())
	case Fmt10t:
		off := int(int8(inst.AA()))
		ops = fmt.Sprintf("%+d (-> %04x)", off, pc+off)
	case Fmt20t:
		off := int(int16(u(1)))
		ops = fmt.Sprintf("%+d (-> %04x)", off, pc+off)
	case Fmt20bc:
		ops = fmt.Sprintf("%d, ref@%d", inst.AA(), u(1))
	case Fmt22x:
		ops = fmt.Sprintf("v%d, v%d", inst.AA(), u(1))
	case Fmt21t:
		off := int(int16(u(1)))
		ops = fmt.Sprintf("v%d, %+d (-> %04x)", inst.AA(), off, pc+off)
	case Fmt21s:
		ops = fmt.Sprintf("v%d, #%d", inst.AA(), int16(u(1)))
	case Fmt21h:
		if op == OpConstWideHigh16 {
			ops = fmt.Sprintf("v%d, #%#x", inst.AA(), uint64(u(1))<<48)
		} else {
			ops = fmt.Sprintf("v%d, #%#x", inst.AA(), uint32(u(1))<<16)
		}
	case Fmt21c:
		ops = fmt.Sprintf("v%d, @%d", inst.AA(), u(1))
	case Fmt23x:
		ops = fmt.Sprintf("v%d, v%d, v%d", inst.AA(), u(1)&0xff, u(1)>>8)
	case Fmt22b:
		ops = fmt.Sprintf("v%d, v%d, #%d", inst.AA(), u(1)&0xff, int8(u(1)>>8))
	case Fmt22t:
		off := int(int16(u(1)))
		ops = fmt.Sprintf("v%d, v%d, %+d (-> %04x)", inst.A(), inst.B(), off, pc+off)
	case Fmt22s:
		ops = fmt.Sprintf("v%d, v%d, #%d", inst.A(), inst.B(), int16(u(1)))
	case Fmt22c, Fmt22cs:
		ops = fmt.Sprintf("v%d, v%d, @%d", inst.A(), inst.B(), u(1))
	case Fmt32x:
		ops = fmt.Sprintf("v%d, v%d", u(1), u(2))
	case Fmt30t:
		off := int(u32(1))
		ops = fmt.Sprintf("%+d (-> %04x)", off, pc+off)
	case Fmt31t:
		off := int(u32(1))
		ops = fmt.Sprintf("v%d, %+d (-> %04x)", inst.AA(), off, pc+off)
	case Fmt31i:
		ops = fmt.Sprintf("v%d, #%d", inst.AA(), u32(1))
	case Fmt31c:
		ops = fmt.Sprintf("v%d, @%d", inst.AA(), uint32(u32(1)))
	case Fmt35c, Fmt35ms, Fmt35mi:
		ops = fmt.Sprintf("%s, @%d", regList(inst.B(), u(2), inst.A()), u(1))
	case Fmt3rc, Fmt3rms, Fmt3rmi:
		first, n := int(u(2)), inst.AA()
		ops = fmt.Sprintf("{v%d .. v%d}, @%d", first, first+n-1, u(1))
	case Fmt51l:
		v := uint64(u(1)) | uint64(u(2))<<16 | uint64(u(3))<<32 | uint64(u(4))<<48
		ops = fmt.Sprintf("v%d, #%d", inst.AA(), int64(v))
	}
	if ops == "" {
		return fmt.Sprintf("%04x: %s", pc, info.Name), width
	}
	return fmt.Sprintf("%04x: %s %s", pc, info.Name, ops), width
}

// Disassemble returns a listing of a method's code, one instruction or
// payload table per line.
func Disassemble(insns []uint16) string {
	var sb strings.Builder
	for pc := 0; pc < len(insns); {
		line, n := DisassembleAt(insns, pc)
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(line)
		pc += n
	}
	return sb.String()
}
