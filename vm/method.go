package vm

import (
	"fmt"
	"strings"
	"sync"
)

// NativeFunc is the bridge signature for natively implemented methods. args
// is the callee's incoming argument window ("this" first for instance
// methods, wide values in two slots). A non-nil error is raised in the
// caller as an exception; return a *Fault to choose its class.
type NativeFunc func(in *Interpreter, args Registers, m *Method) (Value, error)

// Method is a method descriptor: its code item plus linkage.
type Method struct {
	Class       *Class
	Name        string
	Signature   string // e.g. "(IJ)V"
	AccessFlags uint32

	RegistersSize int
	InsSize       int
	OutsSize      int
	Insns         []uint16
	Tries         []TryBlock

	// Native is the implementation of a native method.
	Native NativeFunc

	// MethodIndex is the vtable slot of a virtual method.
	MethodIndex int

	// sites holds per-instruction resolution caches, keyed by pc.
	sites sync.Map
}

// TryBlock covers instructions [Start, End) of a method.
type TryBlock struct {
	Start    int
	End      int
	Handlers []CatchHandler
}

// CatchHandler jumps to Addr for exceptions assignable to Type. An empty
// Type catches everything.
type CatchHandler struct {
	Type string
	Addr int
}

func (m *Method) String() string {
	if m.Class == nil {
		return m.Name + m.Signature
	}
	return m.Class.Descriptor + "." + m.Name + m.Signature
}

func (m *Method) IsStatic() bool { return m.AccessFlags&AccStatic != 0 }
func (m *Method) IsNative() bool { return m.Native != nil || m.AccessFlags&AccNative != 0 }
func (m *Method) IsAbstract() bool { return m.AccessFlags&AccAbstract != 0 }

// ReturnType returns the descriptor of the method's return type.
func (m *Method) ReturnType() string {
	i := strings.LastIndexByte(m.Signature, ')')
	return m.Signature[i+1:]
}

// ParamTypes splits a method signature into its parameter descriptors.
func ParamTypes(signature string) ([]string, error) {
	if !strings.HasPrefix(signature, "(") {
		return nil, fmt.Errorf("bad signature %q", signature)
	}
	end := strings.IndexByte(signature, ')')
	if end < 0 {
		return nil, fmt.Errorf("bad signature %q", signature)
	}
	var params []string
	s := signature[1:end]
	for len(s) > 0 {
		i := 0
		for i < len(s) && s[i] == '[' {
			i++
		}
		if i == len(s) {
			return nil, fmt.Errorf("bad signature %q", signature)
		}
		if s[i] == 'L' {
			semi := strings.IndexByte(s[i:], ';')
			if semi < 0 {
				return nil, fmt.Errorf("bad signature %q", signature)
			}
			i += semi
		} else if !strings.ContainsRune("ZBCSIJFD", rune(s[i])) {
			return nil, fmt.Errorf("bad signature %q", signature)
		}
		params = append(params, s[:i+1])
		s = s[i+1:]
	}
	return params, nil
}

// ArgSlots returns the number of registers a method's incoming arguments
// occupy, including "this" for instance methods.
func ArgSlots(signature string, static bool) (int, error) {
	params, err := ParamTypes(signature)
	if err != nil {
		return 0, err
	}
	n := 0
	if !static {
		n++
	}
	for _, p := range params {
		if p == "J" || p == "D" {
			n += 2
		} else {
			n++
		}
	}
	return n, nil
}
