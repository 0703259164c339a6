package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/breaklinks/internal/dialog"
	"github.com/mesh-intelligence/breaklinks/internal/jobs"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyLogLevel      = "log_level"
	cfgKeyLogFormat     = "log_format"
	cfgKeyMaxConcurrent = "jobs.max_concurrent"
	cfgKeyAfterLife     = "jobs.after_life"
	cfgKeyPollInterval  = "dialog.poll_interval"
)

// configFile is the structure init writes to config.yaml.
type configFile struct {
	Backend   string        `yaml:"backend"`
	DataDir   string        `yaml:"data_dir,omitempty"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Jobs      jobsSection   `yaml:"jobs"`
	Dialog    dialogSection `yaml:"dialog"`
}

type jobsSection struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	AfterLife     time.Duration `yaml:"after_life"`
}

type dialogSection struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

func defaultConfigFile(dataDir string) configFile {
	return configFile{
		Backend:   types.BackendSQLite,
		DataDir:   dataDir,
		LogLevel:  "info",
		LogFormat: "text",
		Jobs:      jobsSection{MaxConcurrent: jobs.DefaultMaxConcurrent, AfterLife: jobs.DefaultAfterLife},
		Dialog:    dialogSection{PollInterval: dialog.DefaultPollInterval},
	}
}

// loadConfig reads config.yaml from configDir. A missing directory or file
// is not an error; defaults apply.
func loadConfig(configDir string) (*viper.Viper, error) {
	def := defaultConfigFile("")
	v := viper.New()
	v.SetDefault(cfgKeyBackend, def.Backend)
	v.SetDefault(cfgKeyLogLevel, def.LogLevel)
	v.SetDefault(cfgKeyLogFormat, def.LogFormat)
	v.SetDefault(cfgKeyMaxConcurrent, def.Jobs.MaxConcurrent)
	v.SetDefault(cfgKeyAfterLife, def.Jobs.AfterLife)
	v.SetDefault(cfgKeyPollInterval, def.Dialog.PollInterval)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. An existing file is left untouched.
func writeConfigIfMissing(path, dataDir string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	cfg := defaultConfigFile(dataDir)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	header := []byte("# breaklinks configuration\n")
	return true, os.WriteFile(path, append(header, data...), 0o644)
}
