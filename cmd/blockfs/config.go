package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "BLOCKFS"
	appName      = "blockfs"
)

type Config struct {
	Image      string `envconfig:"BLOCKFS_IMAGE"       yaml:"image"`
	CacheSlots int    `envconfig:"BLOCKFS_CACHE_SLOTS" yaml:"cacheSlots"`
	Addr       string `envconfig:"BLOCKFS_ADDR"        yaml:"addr"`
}

// LoadConfig reads the optional yaml config file and applies environment
// variable overrides on top.
func LoadConfig() (*Config, error) {
	configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE")
	if configFile == "" {
		configFile = filepath.Join(
			os.Getenv("HOME"),
			".config",
			appName+".yaml",
		)
	}

	c := Config{
		CacheSlots: 64,
		Addr:       "127.0.0.1:8080",
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf(
			"parsing config file `%s`: %w",
			configFile,
			err,
		)
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("processing environment overrides: %w", err)
	}

	return &c, nil
}
