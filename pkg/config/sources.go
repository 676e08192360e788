package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigSource is one layer in the configuration loading chain.
// Sources are loaded in ascending Priority order; later loads override
// earlier values key by key.
type ConfigSource interface {
	// Name identifies the source in error messages.
	Name() string

	// Priority orders loading; lower loads first.
	Priority() int

	// Load merges this source's values into the koanf instance.
	Load(k *koanf.Koanf) error
}

// Source priorities. Gaps allow custom sources to slot between layers.
const (
	PriorityDefaults = 10
	PriorityFile     = 20
	PriorityEnv      = 30
	PriorityFlags    = 40
	PriorityOverride = 50
)

// envPrefix is the environment variable namespace.
const envPrefix = "FLUXGATE_"

// defaultConfigFile is probed when no explicit config path is given.
const defaultConfigFile = "config.yaml"

// DefaultSources returns the standard loading chain:
// defaults, then YAML file, then environment, then flags.
// When debug is set, a final override forces log.level to debug.
func DefaultSources(configFilePath string, flags *pflag.FlagSet, debug bool) []ConfigSource {
	sources := []ConfigSource{
		defaultsSource{},
		fileSource{path: configFilePath},
		envSource{},
	}
	if flags != nil {
		sources = append(sources, flagSource{flags: flags})
	}
	if debug {
		sources = append(sources, overrideSource{values: map[string]any{"log.level": "debug"}})
	}
	return sources
}

// defaultsSource loads the hardcoded baseline values.
type defaultsSource struct{}

func (defaultsSource) Name() string  { return "defaults" }
func (defaultsSource) Priority() int { return PriorityDefaults }

func (defaultsSource) Load(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil)
}

// fileSource loads a YAML config file. An explicitly requested file must
// exist; the probed default file is optional.
type fileSource struct {
	path string
}

func (s fileSource) Name() string {
	if s.path != "" {
		return fmt.Sprintf("file(%s)", s.path)
	}
	return fmt.Sprintf("file(%s)", defaultConfigFile)
}

func (s fileSource) Priority() int { return PriorityFile }

func (s fileSource) Load(k *koanf.Koanf) error {
	path := s.path
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	if _, err := os.Stat(path); err != nil {
		if explicit {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		return nil // optional default file is absent
	}

	return k.Load(file.Provider(path), yaml.Parser())
}

// envSource loads FLUXGATE_* environment variables, mapping underscores to
// config key dots: FLUXGATE_SERVER_PORT -> server.port.
type envSource struct{}

func (envSource) Name() string  { return "env" }
func (envSource) Priority() int { return PriorityEnv }

func (envSource) Load(k *koanf.Koanf) error {
	return k.Load(env.Provider(envPrefix, ".", func(key string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_", ".")
	}), nil)
}

// flagSource loads values from command-line flags that were actually set.
type flagSource struct {
	flags *pflag.FlagSet
}

func (flagSource) Name() string  { return "flags" }
func (flagSource) Priority() int { return PriorityFlags }

func (s flagSource) Load(k *koanf.Koanf) error {
	return k.Load(posflag.Provider(s.flags, ".", k), nil)
}

// overrideSource injects fixed values on top of everything else.
type overrideSource struct {
	values map[string]any
}

func (overrideSource) Name() string  { return "override" }
func (overrideSource) Priority() int { return PriorityOverride }

func (s overrideSource) Load(k *koanf.Koanf) error {
	return k.Load(confmap.Provider(s.values, "."), nil)
}
