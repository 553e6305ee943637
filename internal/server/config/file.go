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

// FileConfig is the DTO read from the config file. Durations accept both
// strings like "15m" and integer nanoseconds. Empty values are skipped.
type FileConfig struct {
	HTTPAddr                     string         `json:"http_addr" yaml:"http_addr"`
	GRPCHealthAddr               string         `json:"grpc_health_addr" yaml:"grpc_health_addr"`
	DatabaseDSN                  string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey                    string         `json:"secret_key" yaml:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration" yaml:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration" yaml:"refresh_token_validity_duration"`
	UploadCredentialValidity     timex.Duration `json:"upload_credential_validity" yaml:"upload_credential_validity"`
	S3RootUser                   string         `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword               string         `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket                     string         `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region                     string         `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint               string         `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3PublicBaseURL              string         `json:"s3_public_base_url" yaml:"s3_public_base_url"`
	BootstrapEmail               string         `json:"bootstrap_email" yaml:"bootstrap_email"`
	BootstrapPassword            string         `json:"bootstrap_password" yaml:"bootstrap_password"`
	LogLevel                     string         `json:"log_level" yaml:"log_level"`
	LogFormat                    string         `json:"log_format" yaml:"log_format"`
}

// parseFile loads the file named by -c or -config, if any.
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

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&cfg.HTTPAddr, fc.HTTPAddr)
	overlay(&cfg.GRPCHealthAddr, fc.GRPCHealthAddr)
	overlay(&cfg.DatabaseDSN, fc.DatabaseDSN)
	overlay(&cfg.SecretKey, fc.SecretKey)
	overlay(&cfg.S3RootUser, fc.S3RootUser)
	overlay(&cfg.S3RootPassword, fc.S3RootPassword)
	overlay(&cfg.S3Bucket, fc.S3Bucket)
	overlay(&cfg.S3Region, fc.S3Region)
	overlay(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	overlay(&cfg.S3PublicBaseURL, fc.S3PublicBaseURL)
	overlay(&cfg.BootstrapEmail, fc.BootstrapEmail)
	overlay(&cfg.BootstrapPassword, fc.BootstrapPassword)
	overlay(&cfg.LogLevel, fc.LogLevel)
	overlay(&cfg.LogFormat, fc.LogFormat)

	if d := fc.AccessTokenValidityDuration.Duration; d > 0 {
		cfg.AccessTokenValidityDuration = d
	}
	if d := fc.RefreshTokenValidityDuration.Duration; d > 0 {
		cfg.RefreshTokenValidityDuration = d
	}
	if d := fc.UploadCredentialValidity.Duration; d > 0 {
		cfg.UploadCredentialValidity = d
	}
	return nil
}
