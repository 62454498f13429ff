package sessionkit

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix read by [LoadConfig].
const DefaultEnvPrefix = "SESSIONKIT_"

// LoadConfig layers configuration sources over [DefaultConfig] and
// validates the result. Later sources win:
//  1. defaults
//  2. YAML file at path (skipped when path is empty)
//  3. environment variables starting with envPrefix
//
// Environment keys use a double underscore between sections so that single
// underscores can appear inside a key:
// SESSIONKIT_SESSION__MAX_PER_USER=3 sets session.max_per_user.
func LoadConfig(path, envPrefix string) (Config, error) {
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	transform := func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}
	if err := k.Load(env.Provider(envPrefix, ".", transform), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := DefaultConfig()
	if k.Exists("redis.addrs") {
		cfg.Redis.Addrs = nil
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if err := cfg.Redis.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
