// Package manifest handles cellvm.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/chazu/cellvm/vm"
	"github.com/docker/go-units"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "cellvm.toml"

var log = commonlog.GetLogger("cellvm.manifest")

// Config represents a cellvm.toml runtime configuration.
type Config struct {
	GC     GCConfig     `toml:"gc"`
	Interp InterpConfig `toml:"interp"`
	Log    LogConfig    `toml:"log"`
	Store  StoreConfig  `toml:"store"`

	// Dir is the directory containing the cellvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// GCConfig configures the collector. Sizes accept human-readable strings
// such as "4MiB" or "512k"; "0" disables the setting.
type GCConfig struct {
	Threshold string `toml:"threshold"`
	HeapLimit string `toml:"heap-limit"`
}

// InterpConfig configures the interpreter.
type InterpConfig struct {
	MaxDepth       int  `toml:"max-depth"`
	LenientOpcodes bool `toml:"lenient-opcodes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// StoreConfig configures the program store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no cellvm.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	if wd, err := os.Getwd(); err == nil {
		c.Dir = wd
	}
	return c
}

func (c *Config) applyDefaults() {
	if c.GC.Threshold == "" {
		c.GC.Threshold = units.BytesSize(vm.DefaultThreshold)
	}
	if c.GC.HeapLimit == "" {
		c.GC.HeapLimit = "0"
	}
	if c.Interp.MaxDepth == 0 {
		c.Interp.MaxDepth = vm.DefaultMaxDepth
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(".cellvm", "programs.db")
	}
}

// Load parses a cellvm.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	c.applyDefaults()
	if _, err := c.StateOptions(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("loaded %s", path)
	return &c, nil
}

// FindAndLoad walks up from startDir to find a cellvm.toml file,
// then loads and returns the config. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
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
			return nil, nil
		}
		dir = parent
	}
}

// StateOptions converts the configuration into options for vm.NewState.
func (c *Config) StateOptions() ([]vm.Option, error) {
	threshold, err := parseSize("gc.threshold", c.GC.Threshold)
	if err != nil {
		return nil, err
	}
	limit, err := parseSize("gc.heap-limit", c.GC.HeapLimit)
	if err != nil {
		return nil, err
	}
	if c.Interp.MaxDepth < 0 {
		return nil, fmt.Errorf("interp.max-depth must not be negative, got %d", c.Interp.MaxDepth)
	}

	opts := []vm.Option{
		vm.WithThreshold(threshold),
		vm.WithHeapLimit(limit),
		vm.WithLenientOpcodes(c.Interp.LenientOpcodes),
	}
	if c.Interp.MaxDepth > 0 {
		opts = append(opts, vm.WithMaxDepth(c.Interp.MaxDepth))
	}
	return opts, nil
}

// NewState creates a State configured by c.
func (c *Config) NewState(extra ...vm.Option) (*vm.State, error) {
	opts, err := c.StateOptions()
	if err != nil {
		return nil, err
	}
	return vm.NewState(append(opts, extra...)...), nil
}

// StorePath returns the absolute path of the program store. The special
// path ":memory:" is returned unchanged.
func (c *Config) StorePath() string {
	if c.Store.Path == ":memory:" || filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(c.Dir, c.Store.Path)
}

// ConfigureLogging sets up the commonlog backend from the [log] section.
// An empty path logs to stderr.
func (c *Config) ConfigureLogging() {
	var path *string
	if c.Log.Path != "" {
		p := c.Log.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(c.Dir, p)
		}
		path = &p
	}
	commonlog.Configure(c.Log.Verbosity, path)
}

func parseSize(key, s string) (uint64, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %q", key, s)
	}
	return uint64(n), nil
}
