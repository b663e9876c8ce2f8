package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// PluginConfig stores bundle-specific configuration as key-value pairs.
type PluginConfig map[string]interface{}

// Config wraps viper and provides typed accessors.
type Config struct {
	v       *viper.Viper
	plugins map[string]PluginConfig
}

// Load reads an INI (or any viper-supported) config file and prepares
// defaults. A missing .env next to the process is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GAMELAUNCHER")
	v.AutomaticEnv()

	setDefaults(v)

	c := &Config{
		v:       v,
		plugins: make(map[string]PluginConfig),
	}

	if strings.EqualFold(filepath.Ext(path), ".ini") {
		cfg, err := loadINI(v, path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		loadPlugins(cfg, c)
		return c, nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return c, nil
}

// Defaults returns a Config holding only default values.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	return &Config{v: v, plugins: make(map[string]PluginConfig)}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("BundleDir", "./plugins")
	v.SetDefault("BundleExt", ".zip")
	v.SetDefault("ScanConcurrency", 4)
	v.SetDefault("RecordsBackend", "file")
	v.SetDefault("RecordsDir", "./records")
	v.SetDefault("Database", "records.db")
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "text")
	v.SetDefault("LogSource", false)
	v.SetDefault("LogDir", "./log")
	v.SetDefault("LogStdout", false)
	v.SetDefault("GormLogLevel", "warn")
	v.SetDefault("WorkerPoolSize", 2)
	v.SetDefault("WatchBundles", false)
	v.SetDefault("WatchDebounceMs", 500)
	v.SetDefault("ReloadMinIntervalSec", 2)
	v.SetDefault("BreakerMaxFailures", 3)
	v.SetDefault("BreakerCooldownSec", 30)
}

// Set overrides a value, mostly for tests and flags.
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetString returns a string value.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns an int value.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool returns a bool value.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetPluginConfig retrieves bundle-specific configuration by bundle name.
func (c *Config) GetPluginConfig(name string) (PluginConfig, bool) {
	cfg, ok := c.plugins[name]
	return cfg, ok
}

// PluginNames returns the configured bundle names.
func (c *Config) PluginNames() []string {
	if len(c.plugins) == 0 {
		return nil
	}
	nameList := make([]string, 0, len(c.plugins))
	for name := range c.plugins {
		nameList = append(nameList, name)
	}
	sort.Strings(nameList)
	return nameList
}

// GetPluginBool returns a bool value from bundle configuration.
// Returns false if bundle or key not found, or value cannot be converted to bool.
func (c *Config) GetPluginBool(plugin, key string) bool {
	val, ok := c.pluginValue(plugin, key)
	if !ok {
		return false
	}
	if str, isStr := val.(string); isStr {
		val = strings.TrimSpace(str)
	}
	b, err := cast.ToBoolE(val)
	if err != nil {
		return false
	}
	return b
}

// PluginEnabled reports whether a bundle may be loaded. Bundles without a
// section, or without an enabled key, are enabled.
func (c *Config) PluginEnabled(name string) bool {
	pluginCfg, ok := c.GetPluginConfig(name)
	if !ok {
		return true
	}
	if _, hasKey := pluginCfg["enabled"]; hasKey {
		return c.GetPluginBool(name, "enabled")
	}
	return true
}

func (c *Config) pluginValue(plugin, key string) (interface{}, bool) {
	cfg, ok := c.plugins[plugin]
	if !ok {
		return nil, false
	}
	val, ok := cfg[key]
	return val, ok
}

func loadINI(v *viper.Viper, path string) (*ini.File, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	for _, key := range cfg.Section("").Keys() {
		v.Set(key.Name(), key.Value())
	}

	return cfg, nil
}

func loadPlugins(cfg *ini.File, c *Config) {
	const pluginPrefix = "plugins."

	for _, section := range cfg.Sections() {
		sectionName := section.Name()
		if sectionName == "" || sectionName == ini.DefaultSection {
			continue
		}

		if strings.HasPrefix(sectionName, pluginPrefix) {
			pluginName := strings.TrimPrefix(sectionName, pluginPrefix)
			pluginCfg := make(PluginConfig)

			for _, key := range section.Keys() {
				pluginCfg[key.Name()] = key.Value()
			}

			c.plugins[pluginName] = pluginCfg
		}
	}
}
