package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/dumpvault/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   session token HMAC secret
//	-m string   environment: development | production
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-r string   Redis address for the auth throttle ("" disables it)
//	-l int      auth requests allowed per IP per window
//	-w int      auth throttle window, minutes
//	-k int      concurrent password hashing workers
//
// Args are filtered with flagx.FilterArgs first so -c/-config and other
// components' flags do not collide.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-m", "-u", "-p", "-b", "-g", "-e", "-r", "-l", "-w", "-k"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.Environment, "m", config.Environment, "environment (development|production)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address for auth throttle")
	fs.IntVar(&config.AuthRateLimit, "l", config.AuthRateLimit, "auth requests per IP per window")
	authRateWindow := fs.Int("w", int(config.AuthRateWindow.Minutes()), "auth throttle window (in minutes)")
	fs.IntVar(&config.HashWorkers, "k", config.HashWorkers, "concurrent password hashing workers")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AuthRateWindow = time.Duration(*authRateWindow) * time.Minute
	return nil
}
