package config

import "time"

// Config holds runtime settings for the parcelsync client.
type Config struct {
	ServerBaseURL       string
	HealthGRPCAddr      string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	DBPath              string
	SecurePassphrase    string
	InboxDir            string
	DefaultCollection   string
	LogLevel            string
	LogFormat           string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.HealthGRPCAddr = ""
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 15 * time.Second
	c.DBPath = "parcelsync.db"
	c.SecurePassphrase = ""
	c.InboxDir = ""
	c.DefaultCollection = ""
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig applies defaults, then the config file (if any), then flags.
// Later sources take precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
