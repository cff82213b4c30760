// Package config loads the application configuration from environment variables.
// Values can also come from a .env file, which main loads before calling LoadConfig.
// All problems are collected and reported together so a misconfigured deployment
// fails once with the full list instead of one variable at a time.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// PoolConfig represents configuration for a PostgreSQL connection pool.
type PoolConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxSize  int
}

// DSN returns the connection string for this pool.
func (c *PoolConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.DBName,
	)
}

// MongoConfig holds the document database location.
type MongoConfig struct {
	URI      string
	Database string
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver   string
	Mongo    *MongoConfig
	Postgres *PoolConfig // nil unless Driver is postgres
}

// AuthConfig holds session-token configuration.
type AuthConfig struct {
	JWTSecret     string        // Secret key for signing session tokens
	TokenDuration time.Duration // Lifetime of a session token
	CookieSecure  bool          // Set the Secure attribute on the session cookie
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string
	CORSAllowedOrigins []string
}

// UploadConfig holds uploaded-file settings.
type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// AppConfig is the top-level configuration structure for the application.
type AppConfig struct {
	Store             *StoreConfig
	Auth              *AuthConfig
	Server            *ServerConfig
	Upload            *UploadConfig
	ReconcileInterval time.Duration // 0 disables the background reconciler
}

func getRequiredEnv(key string, errors *[]string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		*errors = append(*errors, fmt.Sprintf("missing required environment variable: %s", key))
		return ""
	}
	return value
}

func getOptionalEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getOptionalEnvInt(key string, defaultValue int, errors *[]string) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected integer, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueInt
}

func getOptionalEnvBool(key string, defaultValue bool, errors *[]string) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueBool, err := strconv.ParseBool(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected boolean, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueBool
}

// `time.ParseDuration` expects a string like "15m" or "1h30s".
func getOptionalEnvDuration(key string, defaultValue time.Duration, errors *[]string) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueDuration, err := time.ParseDuration(valueStr)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("invalid value for %s: expected duration string, got '%s': %v", key, valueStr, err))
		return defaultValue
	}
	return valueDuration
}

// clampPoolSize keeps the pool size between 5 and 100.
func clampPoolSize(size int, varName string, errors *[]string) int {
	if size < 5 {
		*errors = append(*errors, fmt.Sprintf("pool size for %s (%d) is less than minimum 5", varName, size))
		return 5
	}
	if size > 100 {
		*errors = append(*errors, fmt.Sprintf("pool size for %s (%d) is greater than maximum 100", varName, size))
		return 100
	}
	return size
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadConfig creates and returns an AppConfig by reading and validating environment variables.
func LoadConfig() (*AppConfig, error) {
	var errors []string

	// Store
	driver := strings.ToLower(getOptionalEnv("STORE_DRIVER", DriverMongo))
	storeConfig := &StoreConfig{
		Driver: driver,
		Mongo: &MongoConfig{
			URI:      getOptionalEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
			Database: getOptionalEnv("MONGO_DB", "socialapp"),
		},
	}

	switch driver {
	case DriverMongo, DriverMemory:
	case DriverPostgres:
		// Postgres credentials are only required when that backend is selected.
		storeConfig.Postgres = &PoolConfig{
			Host:     getOptionalEnv("DB_HOST", "localhost"),
			Port:     getOptionalEnvInt("DB_PORT", 5432, &errors),
			User:     getRequiredEnv("DB_USER", &errors),
			Password: getRequiredEnv("DB_PASSWORD", &errors),
			DBName:   getRequiredEnv("DB_NAME", &errors),
			MaxSize:  clampPoolSize(getOptionalEnvInt("DB_POOL_SIZE", 10, &errors), "DB_POOL_SIZE", &errors),
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid value for STORE_DRIVER: %q (want %s, %s or %s)", driver, DriverMongo, DriverPostgres, DriverMemory))
	}

	// Auth
	authConfig := &AuthConfig{
		JWTSecret:     getRequiredEnv("JWT_SECRET", &errors),
		TokenDuration: getOptionalEnvDuration("JWT_TOKEN_DURATION", 24*time.Hour, &errors),
		CookieSecure:  getOptionalEnvBool("COOKIE_SECURE", false, &errors),
	}
	if authConfig.TokenDuration <= 0 {
		errors = append(errors, "JWT_TOKEN_DURATION must be positive")
	}

	// Server
	serverConfig := &ServerConfig{
		Port:               getOptionalEnv("PORT", "3000"),
		CORSAllowedOrigins: splitList(getOptionalEnv("CORS_ALLOWED_ORIGINS", "")),
	}

	// Uploads
	uploadConfig := &UploadConfig{
		Dir:      getOptionalEnv("UPLOAD_DIR", "./public/images/uploads"),
		MaxBytes: int64(getOptionalEnvInt("UPLOAD_MAX_BYTES", 5<<20, &errors)),
	}
	if uploadConfig.MaxBytes <= 0 {
		errors = append(errors, "UPLOAD_MAX_BYTES must be positive")
	}

	reconcileInterval := getOptionalEnvDuration("RECONCILE_INTERVAL", 10*time.Minute, &errors)
	if reconcileInterval < 0 {
		errors = append(errors, "RECONCILE_INTERVAL must not be negative")
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return &AppConfig{
		Store:             storeConfig,
		Auth:              authConfig,
		Server:            serverConfig,
		Upload:            uploadConfig,
		ReconcileInterval: reconcileInterval,
	}, nil
}
