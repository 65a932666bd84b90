package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/dexvm/host"
	"github.com/chazu/dexvm/image"
	"github.com/chazu/dexvm/profile"
	"github.com/chazu/dexvm/vm"
)

func programImage() *image.Image {
	twice := vm.NewCodeBuilder()
	twice.Emit23x(vm.OpAddInt, 0, 1, 1)
	twice.Emit11x(vm.OpReturn, 0)

	hello := vm.NewCodeBuilder()
	hello.Emit21(vm.OpConstString, 0, 0)
	hello.Emit35c(vm.OpInvokeStatic, 0, 0)
	hello.Emit10x(vm.OpReturnVoid)

	boom := vm.NewCodeBuilder()
	boom.EmitConst4(0, 1)
	boom.EmitConst4(1, 0)
	boom.Emit23x(vm.OpDivInt, 0, 0, 1)
	boom.Emit11x(vm.OpReturn, 0)

	count := vm.NewCodeBuilder()
	count.Emit12x(vm.OpArrayLength, 0, 1)
	count.Emit11x(vm.OpReturn, 0)

	return &image.Image{
		Strings:    []string{"hello, world"},
		MethodRefs: []image.MethodRef{{Class: host.ConsoleDescriptor, Name: "println", Signature: "(Ljava/lang/String;)V"}},
		Classes: []image.ClassDef{{
			Descriptor: "LMain;",
			Super:      vm.ObjectDescriptor,
			DirectMethods: []image.MethodDef{
				{Name: "twice", Signature: "(I)I", AccessFlags: vm.AccStatic, Registers: 2, Ins: 1, Code: twice.Code()},
				{Name: "hello", Signature: "()V", AccessFlags: vm.AccStatic, Registers: 1, Outs: 1, Code: hello.Code()},
				{Name: "boom", Signature: "()I", AccessFlags: vm.AccStatic, Registers: 2, Code: boom.Code()},
				{Name: "count", Signature: "([Ljava/lang/String;)I", AccessFlags: vm.AccStatic, Registers: 2, Ins: 1, Code: count.Code()},
				{Name: "wild", Signature: "()V", AccessFlags: vm.AccStatic, Code: []uint16{uint16(vm.OpGoto) | 0x7f<<8}},
			},
		}},
	}
}

func writeProgram(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.dexi")
	if err := image.WriteFile(path, programImage()); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun(t *testing.T) {
	path := writeProgram(t)
	tests := []struct {
		name       string
		entry      string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr []string
	}{
		{"int result", "LMain;.twice", []string{"21"}, exitOK, "42\n", nil},
		{"explicit signature", "LMain;.twice(I)I", []string{"0x10"}, exitOK, "32\n", nil},
		{"console output", "LMain;.hello", nil, exitOK, "hello, world\n", nil},
		{"string array", "LMain;.count", []string{"a", "b", "c"}, exitOK, "3\n", nil},
		{"uncaught", "LMain;.boom", nil, exitThrown, "", []string{
			"Exception in thread \"main\" java.lang.ArithmeticException",
			"\tat LMain;.boom()I @",
		}},
		{"abort", "LMain;.wild", nil, exitAbort, "", []string{"dexvm abort: branch target"}},
		{"bad argument", "LMain;.twice", []string{"x"}, exitUsage, "", []string{"argument 1"}},
		{"arity", "LMain;.twice", nil, exitUsage, "", []string{"takes 1 arguments, got 0"}},
		{"no method", "LMain;.missing", nil, exitUsage, "", []string{"missing"}},
		{"bad entry", "Main.twice", nil, exitUsage, "", []string{"want Lpkg/Class;.method"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(options{imagePath: path, entry: tt.entry}, tt.args, &stdout, &stderr)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr %q)", code, tt.wantCode, stderr.String())
			}
			if stdout.String() != tt.wantStdout {
				t.Errorf("stdout = %q, want %q", stdout.String(), tt.wantStdout)
			}
			for _, want := range tt.wantStderr {
				if !strings.Contains(stderr.String(), want) {
					t.Errorf("stderr lacks %q:\n%s", want, stderr.String())
				}
			}
		})
	}
}

func TestRunFromManifest(t *testing.T) {
	dir := t.TempDir()
	if err := image.WriteFile(filepath.Join(dir, "app.dexi"), programImage()); err != nil {
		t.Fatal(err)
	}
	config := `
[program]
image = "app.dexi"
entry = "LMain;.twice(I)I"
args = ["5"]

[profile]
enabled = true
db = "prof.db"
`
	configPath := filepath.Join(dir, "dexvm.toml")
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run(options{config: configPath}, nil, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit code = %d, stderr %q", code, stderr.String())
	}
	if stdout.String() != "10\n" {
		t.Errorf("stdout = %q", stdout.String())
	}

	store, err := profile.Open(filepath.Join(dir, "prof.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	runs, err := store.Runs()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Entry != "LMain;.twice(I)I" {
		t.Fatalf("runs = %+v", runs)
	}
	saved, err := store.Load(runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Opcodes["add-int"] != 1 || saved.Opcodes["return"] != 1 {
		t.Errorf("opcodes = %v", saved.Opcodes)
	}
}

func TestRunDisassemble(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(options{imagePath: writeProgram(t), disasm: true}, nil, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr %q", code, stderr.String())
	}
	for _, want := range []string{"class LMain;", "  count([Ljava/lang/String;)I", "div-int"} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("listing lacks %q", want)
		}
	}
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		in      string
		want    entryPoint
		wantErr bool
	}{
		{in: "LMain;.main", want: entryPoint{"LMain;", "main", ""}},
		{in: "Lcom/ex/App;.fib(I)I", want: entryPoint{"Lcom/ex/App;", "fib", "(I)I"}},
		{in: "LMain;.", wantErr: true},
		{in: "Main.main", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseEntry(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseEntry (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseArg(t *testing.T) {
	rt := host.New()
	tests := []struct {
		typ, word string
		want      vm.Arg
		wantErr   bool
	}{
		{typ: "I", word: "-7", want: vm.IntArg(-7)},
		{typ: "Z", word: "true", want: vm.BoolArg(true)},
		{typ: "C", word: "A", want: vm.IntArg('A')},
		{typ: "B", word: "300", wantErr: true},
		{typ: "J", word: "1099511627776", want: vm.LongArg(1 << 40)},
		{typ: "D", word: "0.5", want: vm.DoubleArg(0.5)},
		{typ: "F", word: "1.5", want: vm.FloatArg(1.5)},
		{typ: "LFoo;", word: "x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.word, func(t *testing.T) {
			got, err := parseArg(rt, tt.typ, tt.word)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseArg = %+v, want %+v", got, tt.want)
			}
		})
	}

	ref, err := parseArg(rt, host.StringDescriptor, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := rt.String(vm.Ref(ref.Lo)); !ok || s != "hi" {
		t.Errorf("string arg = %q, %v", s, ok)
	}
}
