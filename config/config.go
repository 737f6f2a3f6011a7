// Package config loads upkg settings from an optional TOML file and the
// environment. Environment variables, including those read from a .env
// file, override the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/tliron/commonlog"

	"github.com/tsawler/upkg/filecache"
	"github.com/tsawler/upkg/reader"
	"github.com/tsawler/upkg/resolver"
)

var log = commonlog.GetLogger("upkg.config")

// Environment variables read by ApplyEnv.
const (
	EnvBaseDir         = "UPKG_BASE_DIR"
	EnvLanguage        = "UPKG_LANGUAGE"
	EnvLogLevel        = "UPKG_LOG_LEVEL"
	EnvLogFile         = "UPKG_LOG_FILE"
	EnvStreamCacheSize = "UPKG_STREAM_CACHE_SIZE"
)

// Config holds every setting.
type Config struct {
	BaseDir         string   `toml:"base_dir"`
	Language        string   `toml:"language"`
	LogLevel        string   `toml:"log_level"`
	LogFile         string   `toml:"log_file"`
	StreamCacheSize int      `toml:"stream_cache_size"`
	MaxDepth        int      `toml:"max_depth"`
	Folders         []Folder `toml:"folders"`
}

// Folder is a directory scanned for packages.
type Folder struct {
	Dir     string `toml:"dir"`
	Pattern string `toml:"pattern"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	c := &Config{
		BaseDir:         ".",
		Language:        reader.DefaultLanguage,
		LogLevel:        "notice",
		StreamCacheSize: filecache.DefaultCapacity,
		MaxDepth:        resolver.DefaultMaxDepth,
	}
	for _, f := range reader.DefaultFolders {
		c.Folders = append(c.Folders, Folder{Dir: f.Dir, Pattern: f.Pattern})
	}
	return c
}

// Load reads the TOML file at path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if err := c.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile decodes path into c. Keys missing from the file keep their
// current values.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("parse error in %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.Warningf("%s: unknown setting %s", path, key)
	}
	return nil
}

// LoadDotEnv adds the variables of the given .env files (".env" when none
// are given) to the environment without replacing variables already set.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				log.Debugf("no %s file", f)
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from the environment through lookup,
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseDir); ok && v != "" {
		c.BaseDir = v
	}
	if v, ok := lookup(EnvLanguage); ok && v != "" {
		c.Language = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.LogFile = v
	}
	if v, ok := lookup(EnvStreamCacheSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvStreamCacheSize, err)
		}
		c.StreamCacheSize = n
	}
	return nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.StreamCacheSize <= 0 {
		return fmt.Errorf("stream_cache_size must be positive, got %d", c.StreamCacheSize)
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	for i, f := range c.Folders {
		if f.Dir == "" || f.Pattern == "" {
			return fmt.Errorf("folder %d needs both dir and pattern", i)
		}
	}
	return nil
}

var verbosities = map[string]int{
	"none":     -4,
	"critical": -3,
	"error":    -2,
	"warning":  -1,
	"notice":   0,
	"info":     1,
	"debug":    2,
}

// ParseLevel converts a level name to a commonlog verbosity.
func ParseLevel(level string) (int, error) {
	v, ok := verbosities[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return 0, fmt.Errorf("unknown log level %q", level)
	}
	return v, nil
}

// Verbosity returns the configured log level as a commonlog verbosity.
func (c *Config) Verbosity() int {
	v, err := ParseLevel(c.LogLevel)
	if err != nil {
		return 0
	}
	return v
}

// ConfigureLogging applies the log level and file to commonlog.
func (c *Config) ConfigureLogging() {
	if c.LogFile == "" {
		commonlog.Configure(c.Verbosity(), nil)
		return
	}
	path := c.LogFile
	commonlog.Configure(c.Verbosity(), &path)
}

// ManagerOptions returns the reader options these settings describe.
func (c *Config) ManagerOptions() []reader.Option {
	folders := make([]reader.Folder, len(c.Folders))
	for i, f := range c.Folders {
		folders[i] = reader.Folder{Dir: f.Dir, Pattern: f.Pattern}
	}
	return []reader.Option{
		reader.WithLanguage(c.Language),
		reader.WithStreamCacheSize(c.StreamCacheSize),
		reader.WithMaxDepth(c.MaxDepth),
		reader.WithFolders(folders),
	}
}
