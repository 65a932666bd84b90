package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Faults: recoverable bytecode-level errors
// ---------------------------------------------------------------------------

// FaultKind identifies the managed exception class a fault materializes as.
type FaultKind uint8

const (
	FaultNone FaultKind = iota
	FaultNullPointer
	FaultArrayIndex
	FaultArithmetic
	FaultNegativeArraySize
	FaultClassCast
	FaultArrayStore
	FaultStackOverflow
	FaultNoSuchMethod
	FaultNoSuchField
	FaultNoClassDef
	FaultAbstractMethod
	FaultIncompatibleClassChange
	FaultInstantiation
	FaultIllegalMonitorState
	FaultVerification
	FaultOutOfMemory
	FaultInternal
	FaultRuntime
	FaultThrown // a managed exception object thrown by code or a native
)

var faultDescriptors = [...]string{
	FaultNone:                    "",
	FaultNullPointer:             "Ljava/lang/NullPointerException;",
	FaultArrayIndex:              "Ljava/lang/ArrayIndexOutOfBoundsException;",
	FaultArithmetic:              "Ljava/lang/ArithmeticException;",
	FaultNegativeArraySize:       "Ljava/lang/NegativeArraySizeException;",
	FaultClassCast:               "Ljava/lang/ClassCastException;",
	FaultArrayStore:              "Ljava/lang/ArrayStoreException;",
	FaultStackOverflow:           "Ljava/lang/StackOverflowError;",
	FaultNoSuchMethod:            "Ljava/lang/NoSuchMethodError;",
	FaultNoSuchField:             "Ljava/lang/NoSuchFieldError;",
	FaultNoClassDef:              "Ljava/lang/NoClassDefFoundError;",
	FaultAbstractMethod:          "Ljava/lang/AbstractMethodError;",
	FaultIncompatibleClassChange: "Ljava/lang/IncompatibleClassChangeError;",
	FaultInstantiation:           "Ljava/lang/InstantiationError;",
	FaultIllegalMonitorState:     "Ljava/lang/IllegalMonitorStateException;",
	FaultVerification:            "Ljava/lang/VerifyError;",
	FaultOutOfMemory:             "Ljava/lang/OutOfMemoryError;",
	FaultInternal:                "Ljava/lang/InternalError;",
	FaultRuntime:                 "Ljava/lang/RuntimeException;",
	FaultThrown:                  "Ljava/lang/Throwable;",
}

// Descriptor returns the class descriptor of the exception the fault raises.
func (k FaultKind) Descriptor() string {
	if int(k) < len(faultDescriptors) {
		return faultDescriptors[k]
	}
	return ""
}

// String returns the simple class name, e.g. "NullPointerException".
func (k FaultKind) String() string {
	d := k.Descriptor()
	if d == "" {
		return fmt.Sprintf("FaultKind(%d)", uint8(k))
	}
	d = strings.TrimSuffix(d, ";")
	return d[strings.LastIndexByte(d, '/')+1:]
}

// Fault is a recoverable error raised by an instruction. It travels through
// the exception-thrown signal and is materialized into an exception object
// by the runtime's Throwables service. Exception is set once materialized,
// or up front for FaultThrown.
type Fault struct {
	Kind      FaultKind
	Message   string
	Exception Ref
}

func (f *Fault) Error() string {
	if f.Message == "" {
		return f.Kind.String()
	}
	return f.Kind.String() + ": " + f.Message
}

// NewFault builds a fault with a formatted message.
func NewFault(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func nullPointer(what string) *Fault {
	return NewFault(FaultNullPointer, "%s", what)
}

func indexOutOfBounds(length int, index int32) *Fault {
	return NewFault(FaultArrayIndex, "length=%d; index=%d", length, index)
}

func divideByZero() *Fault {
	return &Fault{Kind: FaultArithmetic, Message: "divide by zero"}
}

// ---------------------------------------------------------------------------
// Uncaught exceptions
// ---------------------------------------------------------------------------

// StackElement is one frame of an exception's stack trace.
type StackElement struct {
	Class  string
	Method string
	PC     int
}

func (e StackElement) String() string {
	return fmt.Sprintf("%s.%s @%04x", e.Class, e.Method, e.PC)
}

// ThrownError is returned by Execute when an exception propagates out of the
// entry frame without finding a handler.
type ThrownError struct {
	Fault     *Fault
	Exception Ref
	Trace     []StackElement
}

func (e *ThrownError) Error() string {
	return "uncaught " + e.Fault.Error()
}

func (e *ThrownError) Unwrap() error { return e.Fault }

// ---------------------------------------------------------------------------
// Aborts: unrecoverable internal errors
// ---------------------------------------------------------------------------

// AbortError is panicked when the interpreter hits a condition the bytecode
// format guarantees cannot happen: a malformed table, an unknown opcode, a
// register or branch outside the method. There is no recovery path inside
// the interpreter; embedders that want to survive it recover the panic.
type AbortError struct {
	Message string
	Method  string
	PC      int
}

func (e *AbortError) Error() string {
	if e.Method == "" {
		return "dexvm abort: " + e.Message
	}
	return fmt.Sprintf("dexvm abort: %s (in %s @%04x)", e.Message, e.Method, e.PC)
}

func abortf(format string, args ...any) {
	panic(&AbortError{Message: fmt.Sprintf(format, args...), PC: -1})
}
