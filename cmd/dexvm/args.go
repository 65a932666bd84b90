package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/dexvm/host"
	"github.com/chazu/dexvm/vm"
)

// entryPoint names the method to run: "LMain;.main" or "LMain;.main(I)I".
type entryPoint struct {
	Class     string
	Name      string
	Signature string
}

func (e entryPoint) String() string {
	return e.Class + "." + e.Name + e.Signature
}

func parseEntry(s string) (entryPoint, error) {
	i := strings.Index(s, ";.")
	if !strings.HasPrefix(s, "L") || i < 0 {
		return entryPoint{}, fmt.Errorf("entry %q: want Lpkg/Class;.method[(sig)]", s)
	}
	e := entryPoint{Class: s[:i+1], Name: s[i+2:]}
	if j := strings.IndexByte(e.Name, '('); j >= 0 {
		e.Name, e.Signature = e.Name[:j], e.Name[j:]
	}
	if e.Name == "" {
		return entryPoint{}, fmt.Errorf("entry %q: missing method name", s)
	}
	return e, nil
}

const stringArrayDescriptor = "[" + host.StringDescriptor

// buildArgs converts command-line words into arguments for m. A method
// taking a single String[] receives all words in one array.
func buildArgs(rt *host.Runtime, m *vm.Method, words []string) ([]vm.Arg, error) {
	params, err := vm.ParamTypes(m.Signature)
	if err != nil {
		return nil, err
	}
	if len(params) == 1 && params[0] == stringArrayDescriptor {
		ref, err := stringArray(rt, words)
		if err != nil {
			return nil, err
		}
		return []vm.Arg{vm.RefArg(ref)}, nil
	}
	if len(words) != len(params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", m, len(params), len(words))
	}

	args := make([]vm.Arg, len(params))
	for i, p := range params {
		a, err := parseArg(rt, p, words[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		args[i] = a
	}
	return args, nil
}

func parseArg(rt *host.Runtime, typ, word string) (vm.Arg, error) {
	switch typ {
	case "Z":
		b, err := strconv.ParseBool(word)
		return vm.BoolArg(b), err
	case "B":
		n, err := strconv.ParseInt(word, 0, 8)
		return vm.IntArg(int32(n)), err
	case "S":
		n, err := strconv.ParseInt(word, 0, 16)
		return vm.IntArg(int32(n)), err
	case "C":
		r := []rune(word)
		if len(r) != 1 || r[0] > 0xffff {
			return vm.Arg{}, fmt.Errorf("%q is not a single char", word)
		}
		return vm.IntArg(int32(r[0])), nil
	case "I":
		n, err := strconv.ParseInt(word, 0, 32)
		return vm.IntArg(int32(n)), err
	case "J":
		n, err := strconv.ParseInt(word, 0, 64)
		return vm.LongArg(n), err
	case "F":
		f, err := strconv.ParseFloat(word, 32)
		return vm.FloatArg(float32(f)), err
	case "D":
		f, err := strconv.ParseFloat(word, 64)
		return vm.DoubleArg(f), err
	case host.StringDescriptor:
		ref, err := rt.NewString(word)
		return vm.RefArg(ref), err
	}
	return vm.Arg{}, fmt.Errorf("cannot pass %q as %s", word, typ)
}

func stringArray(rt *host.Runtime, words []string) (vm.Ref, error) {
	c, ok := rt.FindClass(stringArrayDescriptor)
	if !ok {
		return vm.Null, fmt.Errorf("no class %s", stringArrayDescriptor)
	}
	ref, err := rt.AllocArray(c, len(words))
	if err != nil {
		return vm.Null, err
	}
	arr := rt.Object(ref)
	for i, w := range words {
		s, err := rt.NewString(w)
		if err != nil {
			return vm.Null, err
		}
		arr.SetRefElement(i, s)
	}
	return ref, nil
}

// formatResult renders a return value according to the method's declared
// return type.
func formatResult(rt *host.Runtime, m *vm.Method, v vm.Value) string {
	ret := m.Signature[strings.IndexByte(m.Signature, ')')+1:]
	switch ret {
	case "V":
		return ""
	case "Z":
		return strconv.FormatBool(v.Int() != 0)
	case "C":
		return string(rune(uint16(v.Int())))
	case "B", "S", "I":
		return strconv.Itoa(int(v.Int()))
	case "J":
		return strconv.FormatInt(v.Long(), 10)
	case "F":
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32)
	case "D":
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	}
	if v.Ref() == vm.Null {
		return "null"
	}
	if s, ok := rt.String(v.Ref()); ok {
		return strconv.Quote(s)
	}
	if obj := rt.Object(v.Ref()); obj != nil {
		return fmt.Sprintf("%s@%d", host.JavaName(obj.Class.Descriptor), v.Ref())
	}
	return v.String()
}
