// Package manifest handles dexvm.toml run configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/dexvm/vm"
)

// FileName is the name of the configuration file.
const FileName = "dexvm.toml"

// Manifest represents a dexvm.toml configuration.
type Manifest struct {
	Interpreter Interpreter `toml:"interpreter"`
	Logging     Logging     `toml:"logging"`
	Program     Program     `toml:"program"`
	Profile     Profile     `toml:"profile"`

	// Dir is the directory containing the dexvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Interpreter configures each interpreter thread.
type Interpreter struct {
	StackSize     int  `toml:"stack-size"`
	CheckBranches bool `toml:"check-branches"`
	Trace         bool `toml:"trace"`
}

// Logging configures commonlog.
type Logging struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Program names what to run.
type Program struct {
	Image string   `toml:"image"`
	Entry string   `toml:"entry"`
	Args  []string `toml:"args"`
}

// Profile configures profile collection.
type Profile struct {
	Enabled bool   `toml:"enabled"`
	DB      string `toml:"db"`
}

// Default returns the configuration used when no dexvm.toml is present.
func Default() *Manifest {
	return &Manifest{
		Interpreter: Interpreter{
			StackSize:     vm.DefaultStackSize,
			CheckBranches: true,
		},
		Profile: Profile{DB: "profile.db"},
		Dir:     ".",
	}
}

// Load parses a dexvm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path. Keys absent from the
// file keep their defaults.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	if m.Interpreter.StackSize <= 0 {
		return nil, fmt.Errorf("%s: interpreter.stack-size must be positive, got %d", path, m.Interpreter.StackSize)
	}
	if m.Logging.Verbosity < 0 {
		return nil, fmt.Errorf("%s: logging.verbosity must not be negative", path)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a dexvm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// InterpreterOptions converts the [interpreter] section into options for
// vm.NewInterpreter.
func (m *Manifest) InterpreterOptions() []vm.Option {
	return []vm.Option{
		vm.WithStackSize(m.Interpreter.StackSize),
		vm.WithBranchChecks(m.Interpreter.CheckBranches),
		vm.WithTrace(m.Interpreter.Trace),
	}
}

// Path resolves a path from the configuration relative to Dir.
func (m *Manifest) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// ImagePath returns the absolute path of the program image.
func (m *Manifest) ImagePath() string {
	return m.Path(m.Program.Image)
}

// ProfileDBPath returns the path of the profile database.
func (m *Manifest) ProfileDBPath() string {
	return m.Path(m.Profile.DB)
}

// LogFile returns the log file path, or nil to log to stderr.
func (m *Manifest) LogFile() *string {
	if m.Logging.File == "" {
		return nil
	}
	p := m.Path(m.Logging.File)
	return &p
}
