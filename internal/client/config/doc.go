// Package config loads runtime configuration for the parcelsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in
//     .yaml or .yml are read as YAML, anything else as JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string          base URL of the parcel backend
//	-g string          host:port of a grpc.health.v1 endpoint (optional)
//	-i int             online status check interval (seconds)
//	-t int             request timeout (seconds)
//	-d string          path of the local SQLite database
//	-k string          passphrase sealing the secure storage tier
//	-inbox string      directory watched for dropped photos (optional)
//	-collection string default target collection for inbox photos
//	-log-level string  debug, info, warn or error
//	-log-format string text or json
//
// # File schema
//
// Durations use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds:
//
//	{
//	  "server_base_url": "https://api.example.test/v1",
//	  "online_check_interval": "3s",
//	  "request_timeout": "15s",
//	  "db_path": "parcelsync.db"
//	}
package config
