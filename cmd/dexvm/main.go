// dexvm CLI - loads a program image and runs one of its methods
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/dexvm/host"
	"github.com/chazu/dexvm/image"
	"github.com/chazu/dexvm/manifest"
	"github.com/chazu/dexvm/profile"
	"github.com/chazu/dexvm/vm"
)

// Exit codes.
const (
	exitOK       = 0
	exitThrown   = 1
	exitUsage    = 2
	exitAbort    = 70
	exitSoftware = 71
)

var log = commonlog.GetLogger("dexvm.cmd")

type options struct {
	config    string
	imagePath string
	entry     string
	disasm    bool
	profile   bool
	profileDB string
	verbosity int
	trace     bool
	stack     int
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "Path to dexvm.toml (default: search upward from the working directory)")
	flag.StringVar(&opts.imagePath, "image", "", "Program image to load")
	flag.StringVar(&opts.entry, "entry", "", "Entry method, e.g. 'LMain;.main' or 'LMain;.fib(I)I'")
	flag.BoolVar(&opts.disasm, "disasm", false, "Print a listing of the image and exit")
	flag.BoolVar(&opts.profile, "profile", false, "Record an opcode and method profile")
	flag.StringVar(&opts.profileDB, "profile-db", "", "Profile database (implies -profile)")
	flag.IntVar(&opts.verbosity, "v", 0, "Log verbosity (0-4)")
	flag.BoolVar(&opts.trace, "trace", false, "Log every executed instruction at debug level")
	flag.IntVar(&opts.stack, "stack", 0, "Interpreter stack size in slots")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dexvm [options] [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Loads a program image and runs its entry method with the given arguments.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  dexvm -image app.dexi -entry 'LMain;.fib(I)I' 20\n")
		fmt.Fprintf(os.Stderr, "  dexvm -image app.dexi -disasm\n")
		fmt.Fprintf(os.Stderr, "  dexvm -profile-db prof.db       # settings from ./dexvm.toml\n")
	}
	flag.Parse()

	os.Exit(run(opts, flag.Args(), os.Stdout, os.Stderr))
}

// configure loads the manifest and applies command-line overrides.
func configure(opts options) (*manifest.Manifest, error) {
	var m *manifest.Manifest
	var err error
	if opts.config != "" {
		m, err = manifest.LoadFile(opts.config)
	} else {
		m, err = manifest.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}

	if opts.imagePath != "" {
		m.Program.Image = opts.imagePath
	}
	if opts.entry != "" {
		m.Program.Entry = opts.entry
	}
	if opts.profile {
		m.Profile.Enabled = true
	}
	if opts.profileDB != "" {
		m.Profile.Enabled = true
		m.Profile.DB = opts.profileDB
	}
	if opts.verbosity > 0 {
		m.Logging.Verbosity = opts.verbosity
	}
	if opts.trace {
		m.Interpreter.Trace = true
	}
	if opts.stack > 0 {
		m.Interpreter.StackSize = opts.stack
	}
	return m, nil
}

func run(opts options, args []string, stdout, stderr io.Writer) int {
	m, err := configure(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	commonlog.Configure(m.Logging.Verbosity, m.LogFile())

	if m.Program.Image == "" {
		fmt.Fprintf(stderr, "Error: no image given (use -image or [program] image)\n")
		return exitUsage
	}
	img, err := image.ReadFile(m.ImagePath())
	if err != nil {
		fmt.Fprintf(stderr, "Error loading image: %v\n", err)
		return exitUsage
	}
	if opts.disasm {
		if err := image.Disassemble(stdout, img); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitSoftware
		}
		return exitOK
	}

	if m.Program.Entry == "" {
		fmt.Fprintf(stderr, "Error: no entry method given (use -entry or [program] entry)\n")
		return exitUsage
	}
	entry, err := parseEntry(m.Program.Entry)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	rt := host.New(host.WithOutput(stdout))
	if _, err := image.Load(img, rt); err != nil {
		fmt.Fprintf(stderr, "Error loading image: %v\n", err)
		return exitUsage
	}
	method, err := rt.LookupMethod(entry.Class, entry.Name, entry.Signature)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if !method.IsStatic() {
		fmt.Fprintf(stderr, "Error: entry %s is not static\n", method)
		return exitUsage
	}

	if len(args) == 0 {
		args = m.Program.Args
	}
	callArgs, err := buildArgs(rt, method, args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	interpOpts := m.InterpreterOptions()
	var profiler *vm.Profiler
	if m.Profile.Enabled {
		profiler = vm.NewProfiler()
		interpOpts = append(interpOpts, vm.WithProfiler(profiler))
	}

	started := time.Now()
	result, err := execute(rt.NewInterpreter(interpOpts...), method, callArgs)
	code := report(rt, method, result, err, stdout, stderr)

	if profiler != nil && code != exitAbort {
		if err := saveProfile(m.ProfileDBPath(), entry.String(), started, profiler); err != nil {
			fmt.Fprintf(stderr, "Warning: profile not saved: %v\n", err)
		}
	}
	return code
}

// execute runs the entry method, turning an interpreter abort into an
// error.
func execute(in *vm.Interpreter, m *vm.Method, args []vm.Arg) (result vm.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			abort, ok := r.(*vm.AbortError)
			if !ok {
				panic(r)
			}
			err = abort
		}
	}()
	return in.Execute(m, vm.Null, args...)
}

func report(rt *host.Runtime, m *vm.Method, result vm.Value, err error, stdout, stderr io.Writer) int {
	var abort *vm.AbortError
	var thrown *vm.ThrownError
	switch {
	case err == nil:
		if s := formatResult(rt, m, result); s != "" {
			fmt.Fprintln(stdout, s)
		}
		return exitOK
	case errors.As(err, &abort):
		fmt.Fprintf(stderr, "%v\n", abort)
		return exitAbort
	case errors.As(err, &thrown):
		desc := thrown.Fault.Error()
		if thrown.Exception != vm.Null {
			desc = rt.Describe(thrown.Exception)
		}
		fmt.Fprintf(stderr, "Exception in thread \"main\" %s\n", desc)
		for _, el := range thrown.Trace {
			fmt.Fprintf(stderr, "\tat %s\n", el)
		}
		return exitThrown
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitSoftware
}

func saveProfile(path, entry string, started time.Time, p *vm.Profiler) error {
	store, err := profile.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	run := profile.FromProfiler(entry, started, p)
	if err := store.Save(run); err != nil {
		return err
	}
	log.Infof("saved profile %s to %s", run.ID, path)
	return nil
}
