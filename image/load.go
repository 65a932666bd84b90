package image

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/dexvm/host"
	"github.com/chazu/dexvm/vm"
)

var (
	// ErrUnknownClass is returned by Load for a super or interface that is
	// neither in the image nor built in.
	ErrUnknownClass = errors.New("image: unknown class")
	// ErrMultipleDex is returned by FromRuntime when the runtime's classes
	// do not share one constant pool.
	ErrMultipleDex = errors.New("image: classes span several constant pools")
)

// Load defines and links the image's classes in rt and returns their
// constant pool.
func Load(img *Image, rt *host.Runtime) (*host.Dex, error) {
	fields := make([]host.FieldRef, len(img.FieldRefs))
	for i, f := range img.FieldRefs {
		fields[i] = host.FieldRef{Class: f.Class, Name: f.Name, Type: f.Type}
	}
	methods := make([]host.MethodRef, len(img.MethodRefs))
	for i, m := range img.MethodRefs {
		methods[i] = host.MethodRef{Class: m.Class, Name: m.Name, Signature: m.Signature}
	}
	dex := host.NewDex(img.Strings, img.Types, fields, methods)

	classes := make([]*vm.Class, len(img.Classes))
	byDesc := make(map[string]*vm.Class, len(img.Classes))
	for i, def := range img.Classes {
		c := &vm.Class{
			Descriptor:     def.Descriptor,
			AccessFlags:    def.AccessFlags,
			Fields:         fieldsFrom(def.Fields),
			StaticFields:   fieldsFrom(def.StaticFields),
			DirectMethods:  methodsFrom(def.DirectMethods),
			VirtualMethods: methodsFrom(def.VirtualMethods),
		}
		classes[i] = c
		byDesc[c.Descriptor] = c
	}

	lookup := func(desc string) (*vm.Class, error) {
		if c, ok := byDesc[desc]; ok {
			return c, nil
		}
		if c, ok := rt.FindClass(desc); ok {
			return c, nil
		}
		return nil, fmt.Errorf("%w %s", ErrUnknownClass, desc)
	}
	for i, def := range img.Classes {
		c := classes[i]
		if def.Super != "" {
			super, err := lookup(def.Super)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", def.Descriptor, err)
			}
			c.Super = super
		}
		for _, desc := range def.Interfaces {
			iface, err := lookup(desc)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", def.Descriptor, err)
			}
			c.Interfaces = append(c.Interfaces, iface)
		}
	}

	for _, c := range classes {
		if err := rt.DefineClass(dex, c); err != nil {
			return nil, err
		}
	}
	for i, c := range classes {
		if err := rt.Link(c); err != nil {
			return nil, err
		}
		for j, f := range c.StaticFields {
			setStatic(f, img.Classes[i].StaticFields[j].Value)
		}
	}
	return dex, nil
}

func setStatic(f *vm.Field, v uint64) {
	if f.IsWide() {
		f.SetStaticWide(v)
	} else {
		f.SetStaticWord(uint32(v))
	}
}

func fieldsFrom(defs []FieldDef) []*vm.Field {
	out := make([]*vm.Field, len(defs))
	for i, d := range defs {
		out[i] = &vm.Field{Name: d.Name, Type: d.Type, AccessFlags: d.AccessFlags}
	}
	return out
}

func methodsFrom(defs []MethodDef) []*vm.Method {
	out := make([]*vm.Method, len(defs))
	for i, d := range defs {
		m := &vm.Method{
			Name:          d.Name,
			Signature:     d.Signature,
			AccessFlags:   d.AccessFlags,
			RegistersSize: d.Registers,
			InsSize:       d.Ins,
			OutsSize:      d.Outs,
			Insns:         d.Code,
		}
		for _, t := range d.Tries {
			try := vm.TryBlock{Start: t.Start, End: t.End}
			for _, h := range t.Handlers {
				try.Handlers = append(try.Handlers, vm.CatchHandler{Type: h.Type, Addr: h.Addr})
			}
			m.Tries = append(m.Tries, try)
		}
		out[i] = m
	}
	return out
}

// FromRuntime snapshots the program classes of rt, with the current
// values of their static fields, into an image.
func FromRuntime(rt *host.Runtime) (*Image, error) {
	classes := rt.Classes()
	img := &Image{Version: Version}
	var dex *host.Dex
	for _, c := range classes {
		d := rt.DexOf(c)
		if dex != nil && d != dex {
			return nil, ErrMultipleDex
		}
		dex = d
	}
	if dex != nil {
		img.Strings = dex.Strings
		img.Types = dex.Types
		for _, f := range dex.Fields {
			img.FieldRefs = append(img.FieldRefs, FieldRef(f))
		}
		for _, m := range dex.Methods {
			img.MethodRefs = append(img.MethodRefs, MethodRef(m))
		}
	}

	for _, c := range classes {
		def := ClassDef{
			Descriptor:     c.Descriptor,
			AccessFlags:    c.AccessFlags,
			Fields:         fieldDefs(c.Fields),
			StaticFields:   fieldDefs(c.StaticFields),
			DirectMethods:  methodDefs(c.DirectMethods),
			VirtualMethods: methodDefs(c.VirtualMethods),
		}
		if c.Super != nil {
			def.Super = c.Super.Descriptor
		}
		for _, i := range c.Interfaces {
			def.Interfaces = append(def.Interfaces, i.Descriptor)
		}
		img.Classes = append(img.Classes, def)
	}
	return img, nil
}

func fieldDefs(fields []*vm.Field) []FieldDef {
	var out []FieldDef
	for _, f := range fields {
		d := FieldDef{Name: f.Name, Type: f.Type, AccessFlags: f.AccessFlags}
		if f.IsStatic() {
			d.Value = f.StaticWide()
		}
		out = append(out, d)
	}
	return out
}

func methodDefs(methods []*vm.Method) []MethodDef {
	var out []MethodDef
	for _, m := range methods {
		d := MethodDef{
			Name:        m.Name,
			Signature:   m.Signature,
			AccessFlags: m.AccessFlags,
			Registers:   m.RegistersSize,
			Ins:         m.InsSize,
			Outs:        m.OutsSize,
			Code:        m.Insns,
		}
		for _, t := range m.Tries {
			try := TryDef{Start: t.Start, End: t.End}
			for _, h := range t.Handlers {
				try.Handlers = append(try.Handlers, HandlerDef(h))
			}
			d.Tries = append(d.Tries, try)
		}
		out = append(out, d)
	}
	return out
}

// Disassemble writes a listing of every method in the image.
func Disassemble(w io.Writer, img *Image) error {
	for _, c := range img.Classes {
		if _, err := fmt.Fprintf(w, "class %s", c.Descriptor); err != nil {
			return err
		}
		if c.Super != "" {
			fmt.Fprintf(w, " extends %s", c.Super)
		}
		fmt.Fprintln(w)
		for _, list := range [][]MethodDef{c.DirectMethods, c.VirtualMethods} {
			for _, m := range list {
				fmt.Fprintf(w, "  %s%s (registers=%d ins=%d outs=%d)\n", m.Name, m.Signature, m.Registers, m.Ins, m.Outs)
				if len(m.Code) == 0 {
					continue
				}
				for _, line := range strings.Split(vm.Disassemble(m.Code), "\n") {
					fmt.Fprintf(w, "    %s\n", line)
				}
				for _, t := range m.Tries {
					for _, h := range t.Handlers {
						typ := h.Type
						if typ == "" {
							typ = "<any>"
						}
						fmt.Fprintf(w, "    try %04x-%04x catch %s -> %04x\n", t.Start, t.End, typ, h.Addr)
					}
				}
			}
		}
	}
	return nil
}
