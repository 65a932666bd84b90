package host

import (
	"errors"
	"fmt"

	"github.com/chazu/dexvm/vm"
)

// ErrLink is wrapped by every linking failure.
var ErrLink = errors.New("link error")

// Link prepares a defined class for execution: it links the superclass
// and interfaces, assigns instance field slots after the inherited ones,
// fills in the incoming argument counts and builds the vtable. Linking a
// linked class is a no-op.
func (rt *Runtime) Link(c *vm.Class) error {
	return rt.link(c, map[*vm.Class]bool{})
}

func (rt *Runtime) link(c *vm.Class, visiting map[*vm.Class]bool) error {
	if c.Linked {
		return nil
	}
	if visiting[c] {
		return fmt.Errorf("%w: circular hierarchy at %s", ErrLink, c)
	}
	visiting[c] = true

	if c.Super == nil && c.Descriptor != vm.ObjectDescriptor && !c.IsInterface() {
		c.Super, _ = rt.FindClass(vm.ObjectDescriptor)
	}
	if c.Super != nil {
		if c.Super.IsInterface() {
			return fmt.Errorf("%w: %s extends interface %s", ErrLink, c, c.Super)
		}
		if err := rt.link(c.Super, visiting); err != nil {
			return err
		}
	}
	for _, i := range c.Interfaces {
		if !i.IsInterface() {
			return fmt.Errorf("%w: %s implements class %s", ErrLink, c, i)
		}
		if err := rt.link(i, visiting); err != nil {
			return err
		}
	}

	slot := 0
	if c.Super != nil {
		slot = c.Super.InstanceSlots
	}
	for _, f := range c.Fields {
		f.Class = c
		f.AccessFlags &^= vm.AccStatic
		f.Slot = slot
		if f.IsWide() {
			slot += 2
		} else {
			slot++
		}
	}
	c.InstanceSlots = slot
	for _, f := range c.StaticFields {
		f.Class = c
		f.AccessFlags |= vm.AccStatic
	}

	for _, m := range c.DirectMethods {
		if err := linkMethod(c, m); err != nil {
			return err
		}
	}
	for _, m := range c.VirtualMethods {
		if err := linkMethod(c, m); err != nil {
			return err
		}
		if m.IsStatic() {
			return fmt.Errorf("%w: static method %s in virtual table", ErrLink, m)
		}
	}
	c.VTable = buildVTable(c)

	c.Linked = true
	log.Debugf("linked %s: %d slots, %d vtable entries", c, c.InstanceSlots, len(c.VTable))
	return nil
}

func linkMethod(c *vm.Class, m *vm.Method) error {
	m.Class = c
	ins, err := vm.ArgSlots(m.Signature, m.IsStatic())
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLink, m, err)
	}
	switch {
	case m.InsSize == 0:
		m.InsSize = ins
	case m.InsSize != ins:
		return fmt.Errorf("%w: %s declares %d ins, signature needs %d", ErrLink, m, m.InsSize, ins)
	}
	if !m.IsNative() && !m.IsAbstract() && m.RegistersSize < m.InsSize {
		return fmt.Errorf("%w: %s has %d registers for %d ins", ErrLink, m, m.RegistersSize, m.InsSize)
	}
	return nil
}

// buildVTable copies the superclass table, replaces overridden entries and
// appends new virtual methods. Interfaces number their methods in
// declaration order.
func buildVTable(c *vm.Class) []*vm.Method {
	var table []*vm.Method
	if c.Super != nil {
		table = append(table, c.Super.VTable...)
	}
	for _, m := range c.VirtualMethods {
		m.MethodIndex = -1
		if !c.IsInterface() {
			for i, inherited := range table {
				if inherited.Name == m.Name && inherited.Signature == m.Signature {
					m.MethodIndex = i
					table[i] = m
					break
				}
			}
		}
		if m.MethodIndex < 0 {
			m.MethodIndex = len(table)
			table = append(table, m)
		}
	}
	return table
}
