package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/parcelsync/internal/flagx"
)

var knownFlags = []string{
	"-a", "-g", "-i", "-t", "-d", "-k",
	"-inbox", "-collection", "-log-level", "-log-format",
}

// parseFlags populates Config fields from command-line flags. os.Args is
// filtered through flagx.FilterArgs first so unrelated flags (such as -c)
// do not break parsing.
func parseFlags(cfg *Config) error {
	return parseArgs(cfg, os.Args[1:])
}

func parseArgs(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("client", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "base URL of the parcel backend")
	fs.StringVar(&cfg.HealthGRPCAddr, "g", cfg.HealthGRPCAddr, "grpc health endpoint host:port")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "local database path")
	fs.StringVar(&cfg.SecurePassphrase, "k", cfg.SecurePassphrase, "secure storage passphrase")
	fs.StringVar(&cfg.InboxDir, "inbox", cfg.InboxDir, "inbox directory to watch")
	fs.StringVar(&cfg.DefaultCollection, "collection", cfg.DefaultCollection, "default target collection")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text or json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
	return nil
}
