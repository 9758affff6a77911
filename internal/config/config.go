package config

import (
	"os"

	"github.com/pelletier/go-toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Custom struct {
	Display struct {
		Name          string `toml:"name"`
		AuthorityFile string `toml:"authority-file"`
		Timeout       int    `toml:"connect-timeout"`
	} `toml:"display"`
	Log struct {
		Level string `toml:"level"`
		JSON  bool   `toml:"json"`
	} `toml:"log"`
	Metrics struct {
		Listen string `toml:"listen"`
	} `toml:"metrics"`
}

// Default is the configuration used when no file is given.
func Default() *Custom {
	var c Custom
	c.setDefaults()
	return &c
}

func (c *Custom) setDefaults() {
	if c.Display.Timeout <= 0 {
		c.Display.Timeout = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Initialize reads a configuration file. Settings missing from the file
// keep their defaults.
func Initialize(file string) (*Custom, error) {
	f, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(f)
}

func Parse(data []byte) (*Custom, error) {
	var config Custom
	err := toml.Unmarshal(data, &config)
	if err != nil {
		return nil, err
	}
	config.setDefaults()
	if _, err := zapcore.ParseLevel(config.Log.Level); err != nil {
		return nil, err
	}
	return &config, nil
}

// Logger builds the logger the configuration asks for.
func (c *Custom) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	if c.Log.JSON {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
