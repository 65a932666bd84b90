package host

import (
	"unicode/utf16"

	"github.com/chazu/dexvm/vm"
)

// NewString allocates a fresh string object.
func (rt *Runtime) NewString(s string) (vm.Ref, error) {
	c, _ := rt.FindClass(StringDescriptor)
	o := vm.NewInstance(c)
	o.Payload = s
	return rt.alloc(o)
}

// Intern returns the canonical string object for s. String constants are
// interned, so equal literals are the same reference.
func (rt *Runtime) Intern(s string) (vm.Ref, error) {
	rt.mu.RLock()
	r, ok := rt.interned[s]
	rt.mu.RUnlock()
	if ok {
		return r, nil
	}

	r, err := rt.NewString(s)
	if err != nil {
		return vm.Null, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if prev, ok := rt.interned[s]; ok {
		return prev, nil
	}
	rt.interned[s] = r
	return r, nil
}

// String returns the contents of a string object.
func (rt *Runtime) String(r vm.Ref) (string, bool) {
	o := rt.Object(r)
	if o == nil {
		return "", false
	}
	s, ok := o.Payload.(string)
	return s, ok
}

// stringArg reads a string argument, raising NullPointerException for null.
func (rt *Runtime) stringArg(r vm.Ref, what string) (string, error) {
	if r == vm.Null {
		return "", vm.NewFault(vm.FaultNullPointer, "%s on null string", what)
	}
	s, ok := rt.String(r)
	if !ok {
		return "", vm.NewFault(vm.FaultClassCast, "ref(%d) is not a string", r)
	}
	return s, nil
}

// utf16Len is the length of s in UTF-16 code units, which is what
// String.length reports.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
