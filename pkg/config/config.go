package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Global Koanf instance, initialized once at startup.
var (
	k    *koanf.Koanf
	once sync.Once
)

// InitGlobalConfig initializes the global Koanf instance.
// This should be called early in the application lifecycle, before Load.
func InitGlobalConfig() {
	once.Do(func() {
		k = koanf.New(".")
	})
}

// Config is the full application configuration tree.
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Server    ServerConfig    `koanf:"server"`
	Model     ModelConfig     `koanf:"model"`
	Retention RetentionConfig `koanf:"retention"`
}

// LogConfig controls logging behavior.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text, json
	File   string `koanf:"file"`   // empty = stderr
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	Port         int           `koanf:"port"`
	APIEnabled   bool          `koanf:"api_enabled"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// ModelConfig describes the generation pipeline.
type ModelConfig struct {
	// Command is the pipeline executable invoked per generation.
	Command string `koanf:"command"`

	// Args are extra arguments passed before the per-request flags.
	Args []string `koanf:"args"`

	// ModelID names the checkpoint the pipeline should load.
	ModelID string `koanf:"model_id"`

	// Steps is the inference step count recorded on each task.
	Steps int `koanf:"steps"`

	// OutputDir is where completed images are written.
	OutputDir string `koanf:"output_dir"`
}

// RetentionConfig bounds task history and on-disk artifacts.
type RetentionConfig struct {
	MaxAgeDays   int `koanf:"max_age_days"`
	MaxArtifacts int `koanf:"max_artifacts"`
	MaxTasks     int `koanf:"max_tasks"`
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex // To protect currentConfig during runtime updates
}

// NewManager creates a new Manager.
// It initializes the global Koanf instance if not already done.
func NewManager() *Manager {
	InitGlobalConfig()
	return &Manager{
		koanfInstance: k,
	}
}

// DefaultConfig returns a Config populated with hardcoded default values.
// These serve as the baseline configuration if no other sources override them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Server:    DefaultServerConfig(),
		Model:     DefaultModelConfig(),
		Retention: DefaultRetentionConfig(),
	}
}

// DefaultServerConfig returns the server defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0",
		Port:         8000,
		APIEnabled:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // a synchronous generation can take minutes
	}
}

// DefaultModelConfig returns the pipeline defaults.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Command:   "flux-pipeline",
		Args:      nil,
		ModelID:   "black-forest-labs/FLUX.1-dev",
		Steps:     23,
		OutputDir: "./output/images",
	}
}

// DefaultRetentionConfig returns the retention defaults.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		MaxAgeDays:   0, // no age limit
		MaxArtifacts: 0, // no artifact count limit
		MaxTasks:     1000,
	}
}

// Load loads configuration from various sources based on precedence.
// It populates the manager's currentConfig.
//
// Configuration precedence (highest to lowest):
//  1. Command-line flags (--log.level=debug)
//  2. Environment variables (FLUXGATE_LOG_LEVEL=debug)
//  3. Config file (YAML)
//  4. Default values
//
// Environment variables use FLUXGATE_ prefix and underscore-to-dot mapping:
//
//	FLUXGATE_LOG_LEVEL   -> log.level
//	FLUXGATE_SERVER_PORT -> server.port
//
// For custom source ordering, use LoadWithSources() instead.
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	debug := false
	if flags != nil {
		debugFlag := flags.Lookup("debug")
		if debugFlag != nil && debugFlag.Value.String() == "true" {
			debug = true
		}
	}

	sources := DefaultSources(customConfigFilePath, flags, debug)
	return m.LoadWithSources(sources)
}

// LoadWithSources loads configuration from the provided sources in priority
// order. Sources with lower priority values are loaded first, higher
// priority sources override lower priority values.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Priority() < sources[j].Priority()
	})

	for _, src := range sources {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("error loading config from %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	m.currentConfig = newCfg

	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfgCopy := m.currentConfig
	return cfgCopy
}

// GetValue retrieves a configuration value by key path.
// Example: GetValue("model.steps"). Returns nil if the key doesn't exist.
func (m *Manager) GetValue(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance.Get(key)
}

// DefaultConfigAsMap converts the DefaultConfig struct to a flat map for
// Koanf's confmap.Provider. A bit manual, but it ensures Koanf knows all keys.
func DefaultConfigAsMap() map[string]any {
	def := DefaultConfig()
	return map[string]any{
		// Log configuration
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		// Server configuration
		"server.addr":          def.Server.Addr,
		"server.port":          def.Server.Port,
		"server.api_enabled":   def.Server.APIEnabled,
		"server.read_timeout":  def.Server.ReadTimeout,
		"server.write_timeout": def.Server.WriteTimeout,

		// Model configuration
		"model.command":    def.Model.Command,
		"model.args":       def.Model.Args,
		"model.model_id":   def.Model.ModelID,
		"model.steps":      def.Model.Steps,
		"model.output_dir": def.Model.OutputDir,

		// Retention configuration
		"retention.max_age_days":  def.Retention.MaxAgeDays,
		"retention.max_artifacts": def.Retention.MaxArtifacts,
		"retention.max_tasks":     def.Retention.MaxTasks,
	}
}

// BindFlags defines command-line flags corresponding to configuration
// settings. These flags allow overriding config file / environment variable
// settings. Call this when setting up Cobra commands.
func BindFlags(flags *pflag.FlagSet) {
	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")

	// Note: The main --config / -c flag for specifying the config file path
	// is defined directly on the root Cobra command's PersistentFlags.
}
