package config

// lookupFunc matches os.LookupEnv.
type lookupFunc func(key string) (string, bool)

// parseEnv overlays the values that are usually injected by the deployment
// rather than written to a config file.
//
//	SECRET_KEY    session token signing secret
//	DATABASE_DSN  PostgreSQL DSN
//	APP_ENV       development | production
//	REDIS_ADDR    Redis address for the auth throttle
func parseEnv(config *Config, lookup lookupFunc) {
	if v, ok := lookup("SECRET_KEY"); ok {
		config.SecretKey = v
	}
	if v, ok := lookup("DATABASE_DSN"); ok {
		config.DatabaseDSN = v
	}
	if v, ok := lookup("APP_ENV"); ok {
		config.Environment = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		config.RedisAddr = v
	}
}
