package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/dumpvault/internal/flagx"
	"github.com/dmitrijs2005/dumpvault/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations use
// timex.Duration so both "1m" and integer nanoseconds are accepted.
// Zero values leave the corresponding Config field untouched.
type JsonConfig struct {
	HTTPAddr       string         `json:"http_addr"`
	DatabaseDSN    string         `json:"database_dsn"`
	SecretKey      string         `json:"secret_key"`
	Environment    string         `json:"environment"`
	S3RootUser     string         `json:"s3_root_user"`
	S3RootPassword string         `json:"s3_root_password"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	RedisAddr      string         `json:"redis_addr"`
	AuthRateLimit  int            `json:"auth_rate_limit"`
	AuthRateWindow timex.Duration `json:"auth_rate_window"`
	HashWorkers    int            `json:"hash_workers"`
}

// parseJson loads the file named by -c/-config (if any) into config.
// A missing flag is not an error; an unreadable file or invalid JSON is.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.Environment, c.Environment)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.RedisAddr, c.RedisAddr)

	if c.AuthRateLimit > 0 {
		config.AuthRateLimit = c.AuthRateLimit
	}
	if c.AuthRateWindow.Duration > 0 {
		config.AuthRateWindow = c.AuthRateWindow.Duration
	}
	if c.HashWorkers > 0 {
		config.HashWorkers = c.HashWorkers
	}

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
