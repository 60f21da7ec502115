// Package manifest handles sable.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/chazu/sable/contract"
	"github.com/chazu/sable/lower"
	"github.com/chazu/sable/runtime"
)

// FileName is the name Load and FindAndLoad look for.
const FileName = "sable.toml"

var log = commonlog.GetLogger("sable.manifest")

// Manifest represents a sable.toml configuration.
type Manifest struct {
	Compile Compile `toml:"compile"`
	Runtime Runtime `toml:"runtime"`
	Log     Log     `toml:"log"`
	Store   Store   `toml:"store"`
	// Contracts maps alias names to registered contract names.
	Contracts map[string]string `toml:"contracts"`

	// Dir is the directory containing the sable.toml file (set at load time).
	Dir string `toml:"-"`

	awaitTimeout time.Duration
}

// Compile configures translation.
type Compile struct {
	ErrorMode    string `toml:"error-mode"` // "panic" or "recover"
	DebugInfo    bool   `toml:"debug-info"`
	ModuleObject bool   `toml:"module-object"`
}

// Runtime configures execution.
type Runtime struct {
	Workers      int64  `toml:"workers"`
	AwaitTimeout string `toml:"await-timeout"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Store configures the code store.
type Store struct {
	Path string `toml:"path"` // relative to the manifest directory
}

// Default returns the configuration used when no sable.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	if err := m.normalize(); err != nil {
		panic(err)
	}
	return m
}

// Load parses a sable.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if err := m.normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("loaded %s", path)
	return &m, nil
}

// FindAndLoad walks up from startDir to find a sable.toml file,
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

// normalize fills in defaults and validates the values.
func (m *Manifest) normalize() error {
	switch m.Compile.ErrorMode {
	case "":
		m.Compile.ErrorMode = "panic"
	case "panic", "recover":
	default:
		return fmt.Errorf("compile.error-mode: unknown mode %q", m.Compile.ErrorMode)
	}
	if m.Runtime.Workers <= 0 {
		m.Runtime.Workers = int64(goruntime.NumCPU())
	}
	if m.Runtime.AwaitTimeout != "" {
		d, err := time.ParseDuration(m.Runtime.AwaitTimeout)
		if err != nil {
			return fmt.Errorf("runtime.await-timeout: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("runtime.await-timeout: negative duration %s", d)
		}
		m.awaitTimeout = d
	}
	return nil
}

// CompileOptions returns translator options for the [compile] table.
// Contracts is left for the caller, usually the runtime's registry.
func (m *Manifest) CompileOptions() lower.Options {
	opts := lower.Options{
		DebugInfo:    m.Compile.DebugInfo,
		ModuleObject: m.Compile.ModuleObject,
	}
	if m.Compile.ErrorMode == "recover" {
		opts.ErrorMode = lower.Recover
	}
	return opts
}

// RuntimeOptions returns runtime options for the [runtime] table.
func (m *Manifest) RuntimeOptions() runtime.Options {
	return runtime.Options{
		Workers:      m.Runtime.Workers,
		AwaitTimeout: m.awaitTimeout,
	}
}

// StorePath returns the absolute code store path, or "" when none is
// configured.
func (m *Manifest) StorePath() string {
	p := m.Store.Path
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// NewRuntime creates a runtime configured by m, with the contract aliases
// registered.
func (m *Manifest) NewRuntime() (*runtime.Runtime, error) {
	rt := runtime.New(m.RuntimeOptions())
	if err := m.RegisterContracts(rt.Contracts); err != nil {
		return nil, err
	}
	return rt, nil
}

// RegisterContracts binds every [contracts] alias in reg. Each target must
// already be registered.
func (m *Manifest) RegisterContracts(reg *contract.Registry) error {
	for alias, target := range m.Contracts {
		c, ok := reg.Lookup(target)
		if !ok {
			return fmt.Errorf("contracts.%s: unknown contract %q", alias, target)
		}
		reg.Register(alias, c)
	}
	return nil
}
