package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Queue, broker, rate limit and cache settings
// live in their own structs so that each component can be handed only the
// part it needs.
type Config struct {
	Env                string // application environment (e.g. "dev", "prod")
	Port               string // HTTP port to listen on
	DBUser             string // database username
	DBPass             string // database password (optional)
	DBHost             string // database host address
	DBPort             string // database port number
	DBName             string // database name
	JWTSecret          string // secret used to sign admin JWTs
	AccessTTLMin       int    // admin access token time-to-live in minutes
	AdminUser          string // admin login name for sale toggling
	AdminPasswordHash  string // bcrypt hash of the admin password
	SeedDemoData       bool   // insert demo products when the table is empty
	ShutdownTimeoutSec int    // seconds to wait for in-flight requests on shutdown
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:                must("APP_ENV"),                          // environment (dev/test/prod)
		Port:               must("APP_PORT"),                         // port to bind the HTTP server
		DBUser:             must("DB_USER"),                          // database user
		DBPass:             os.Getenv("DB_PASS"),                     // database password (empty allowed)
		DBHost:             must("DB_HOST"),                          // database host
		DBPort:             must("DB_PORT"),                          // database port
		DBName:             must("DB_NAME"),                          // database name
		JWTSecret:          must("JWT_SECRET"),                       // secret used for signing JWTs
		AccessTTLMin:       envInt("ACCESS_TOKEN_TTL_MIN", 30),       // TTL for admin tokens in minutes
		AdminUser:          envStr("ADMIN_USER", "admin"),            // admin login name
		AdminPasswordHash:  os.Getenv("ADMIN_PASSWORD_HASH"),         // empty disables admin login
		SeedDemoData:       envBool("SEED_DEMO_DATA", false),         // seed products on startup
		ShutdownTimeoutSec: envInt("SHUTDOWN_TIMEOUT_SEC", 10),       // graceful shutdown window
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
