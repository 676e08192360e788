package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to reset global variables for testing
func resetGlobalConfig() {
	k = nil
	once = sync.Once{}
}

// newTestFlagSet defines the flags the config layer can bind to.
func newTestFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log.level", "info", "")
	flags.String("log.format", "text", "")
	flags.String("log.file", "", "")
	flags.Int("server.port", 8000, "")
	flags.Int("model.steps", 23, "")
	BindFlags(flags)
	return flags
}

func TestInitGlobalConfig_InitializesKoanfOnce(t *testing.T) {
	resetGlobalConfig()
	InitGlobalConfig()
	assert.NotNil(t, k, "Global koanf instance should be initialized")
}

func TestInitGlobalConfig_IsIdempotent(t *testing.T) {
	resetGlobalConfig()
	InitGlobalConfig()
	firstInstance := k
	InitGlobalConfig()
	secondInstance := k
	assert.Equal(t, firstInstance, secondInstance, "Koanf instance should not change on repeated InitGlobalConfig calls")
}

func TestNewManager_InitializesManagerWithGlobalKoanf(t *testing.T) {
	resetGlobalConfig()
	manager := NewManager()
	assert.NotNil(t, manager, "Manager should not be nil")
	assert.NotNil(t, manager.koanfInstance, "Manager's koanfInstance should not be nil")
	assert.Equal(t, k, manager.koanfInstance, "Manager's koanfInstance should use the global Koanf instance")
}

func TestDefaultConfig_ReturnsExpectedDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Log.Level, "Default log level should be 'info'")
	assert.Equal(t, "text", cfg.Log.Format, "Default log format should be 'text'")
	assert.Equal(t, 8000, cfg.Server.Port, "Default server port should be 8000")
	assert.Equal(t, 23, cfg.Model.Steps, "Default step count should be 23")
	assert.Equal(t, "./output/images", cfg.Model.OutputDir, "Default output dir should match")
	assert.Equal(t, 1000, cfg.Retention.MaxTasks, "Default task history cap should be 1000")
}

func TestManager_Load_LoadsDefaultsWhenNoFlags(t *testing.T) {
	resetGlobalConfig()
	manager := NewManager()
	err := manager.Load(nil, "")
	assert.NoError(t, err, "Load should not return error when loading defaults")
	cfg := manager.Get()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 23, cfg.Model.Steps)
}

func TestManager_Load_OverridesWithFlags(t *testing.T) {
	resetGlobalConfig()
	manager := NewManager()
	flags := newTestFlagSet()
	_ = flags.Set("log.level", "error")
	_ = flags.Set("server.port", "9000")
	err := manager.Load(flags, "")
	assert.NoError(t, err, "Load should not return error when loading with flags")
	cfg := manager.Get()
	assert.Equal(t, "error", cfg.Log.Level, "Flag should override log level")
	assert.Equal(t, 9000, cfg.Server.Port, "Flag should override server port")
}

func TestManager_Load_DebugFlagSetsLogLevelToDebug(t *testing.T) {
	resetGlobalConfig()
	manager := NewManager()
	flags := newTestFlagSet()
	_ = flags.Set("debug", "true")
	err := manager.Load(flags, "")
	assert.NoError(t, err, "Load should not return error when loading with debug flag")
	cfg := manager.Get()
	assert.Equal(t, "debug", cfg.Log.Level, "Debug flag should set log level to debug")
}

func TestManager_Load_FromYAMLFile(t *testing.T) {
	resetGlobalConfig()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9100
model:
  command: /opt/flux/run.sh
  model_id: black-forest-labs/FLUX.1-schnell
  steps: 8
retention:
  max_tasks: 50
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	manager := NewManager()
	err := manager.Load(nil, path)
	require.NoError(t, err)

	cfg := manager.Get()
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/opt/flux/run.sh", cfg.Model.Command)
	assert.Equal(t, "black-forest-labs/FLUX.1-schnell", cfg.Model.ModelID)
	assert.Equal(t, 8, cfg.Model.Steps)
	assert.Equal(t, 50, cfg.Retention.MaxTasks)
	// Untouched keys keep defaults
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestManager_Load_MissingExplicitFileFails(t *testing.T) {
	resetGlobalConfig()
	manager := NewManager()
	err := manager.Load(nil, "/nonexistent/config.yaml")
	assert.Error(t, err, "Explicitly requested config file must exist")
}

func TestManager_LoadWithSources_PriorityOrdering(t *testing.T) {
	resetGlobalConfig()
	manager := NewManager()

	low := overrideTestSource{priority: 1, values: map[string]any{"log.level": "warn"}}
	high := overrideTestSource{priority: 2, values: map[string]any{"log.level": "error"}}

	// Deliberately out of order; LoadWithSources must sort by priority.
	err := manager.LoadWithSources([]ConfigSource{high, defaultsSource{}, low})
	require.NoError(t, err)

	assert.Equal(t, "error", manager.Get().Log.Level, "Highest priority source should win")
}

func TestBindFlags_AddsDebugFlag(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	debugFlag := flags.Lookup("debug")
	assert.NotNil(t, debugFlag, "BindFlags should add a 'debug' flag")
	assert.Equal(t, "false", debugFlag.DefValue, "Debug flag should default to false")
}

// overrideTestSource is a fixed-value source with a configurable priority.
type overrideTestSource struct {
	priority int
	values   map[string]any
}

func (s overrideTestSource) Name() string  { return "test-override" }
func (s overrideTestSource) Priority() int { return s.priority }

func (s overrideTestSource) Load(ko *koanf.Koanf) error {
	return ko.Load(confmap.Provider(s.values, "."), nil)
}
