package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/parcelsync/internal/flagx"
	"github.com/dmitrijs2005/parcelsync/internal/timex"
)

// FileConfig is the on-disk shape. Empty fields leave the current value
// untouched.
type FileConfig struct {
	ServerBaseURL       string         `json:"server_base_url" yaml:"server_base_url"`
	HealthGRPCAddr      string         `json:"health_grpc_addr" yaml:"health_grpc_addr"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	DBPath              string         `json:"db_path" yaml:"db_path"`
	SecurePassphrase    string         `json:"secure_passphrase" yaml:"secure_passphrase"`
	InboxDir            string         `json:"inbox_dir" yaml:"inbox_dir"`
	DefaultCollection   string         `json:"default_collection" yaml:"default_collection"`
	LogLevel            string         `json:"log_level" yaml:"log_level"`
	LogFormat           string         `json:"log_format" yaml:"log_format"`
}

func parseFile(cfg *Config) error {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return nil
	}
	return loadFile(cfg, path)
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc FileConfig) apply(cfg *Config) {
	setString(&cfg.ServerBaseURL, fc.ServerBaseURL)
	setString(&cfg.HealthGRPCAddr, fc.HealthGRPCAddr)
	setString(&cfg.DBPath, fc.DBPath)
	setString(&cfg.SecurePassphrase, fc.SecurePassphrase)
	setString(&cfg.InboxDir, fc.InboxDir)
	setString(&cfg.DefaultCollection, fc.DefaultCollection)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	if fc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
	if fc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
