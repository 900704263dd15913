package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// DevSigningKey is only ever used when APP_ENV is not production.
	DevSigningKey = "DefaultSecretKeyForDevelopment123456789"

	minProductionKeyLen = 32
)

type Config struct {
	AppEnv         string
	APIPort        string
	RequestTimeout time.Duration

	JWTKey      []byte
	JWTIssuer   string
	JWTAudience string
	// UsingDevKey is set when JWT_SECRET was absent and DevSigningKey was used.
	UsingDevKey bool
	BcryptCost  int

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string
	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuditQueueName     string
	LoginMaxAttempts   int
	LoginLockoutWindow time.Duration
	CORSAllowedOrigins []string
	LogLevel           string
	LogFormat          string
}

// fileConfig mirrors the optional YAML file named by CONFIG_FILE. Every field
// is a fallback that the matching environment variable overrides.
type fileConfig struct {
	AppEnv string `yaml:"app_env"`
	Server struct {
		Port                  string `yaml:"port"`
		RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
		CORSAllowedOrigins    string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`
	JWT struct {
		Issuer   string `yaml:"issuer"`
		Audience string `yaml:"audience"`
	} `yaml:"jwt"`
	Database struct {
		Driver     string `yaml:"driver"`
		Host       string `yaml:"host"`
		Port       string `yaml:"port"`
		User       string `yaml:"user"`
		Name       string `yaml:"name"`
		SSLMode    string `yaml:"sslmode"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Redis struct {
		Addr string `yaml:"addr"`
		DB   int    `yaml:"db"`
	} `yaml:"redis"`
	Auth struct {
		BcryptCost          int    `yaml:"bcrypt_cost"`
		LoginMaxAttempts    int    `yaml:"login_max_attempts"`
		LoginLockoutMinutes int    `yaml:"login_lockout_minutes"`
		AuditQueueName      string `yaml:"audit_queue_name"`
	} `yaml:"auth"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads .env, then CONFIG_FILE (if set), then the process environment.
// Secrets (JWT_SECRET, DB_PASSWORD, REDIS_PASSWORD) are only read from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	var fc fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", or(fc.AppEnv, EnvDevelopment)),
		APIPort:            getEnv("API_PORT", or(fc.Server.Port, "8080")),
		RequestTimeout:     time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", orInt(fc.Server.RequestTimeoutSeconds, 30))) * time.Second,
		JWTIssuer:          getEnv("JWT_ISSUER", or(fc.JWT.Issuer, "UserServiceAPI")),
		JWTAudience:        getEnv("JWT_AUDIENCE", or(fc.JWT.Audience, "UserServiceClient")),
		BcryptCost:         getEnvAsInt("BCRYPT_COST", orInt(fc.Auth.BcryptCost, 12)),
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", or(fc.Database.Driver, DriverPostgres))),
		DBHost:             getEnv("DB_HOST", or(fc.Database.Host, "localhost")),
		DBPort:             getEnv("DB_PORT", or(fc.Database.Port, "5432")),
		DBUser:             getEnv("DB_USER", or(fc.Database.User, "user")),
		DBPassword:         getEnv("DB_PASSWORD", "password"),
		DBName:             getEnv("DB_NAME", or(fc.Database.Name, "academic_users")),
		DBSslMode:          getEnv("DB_SSLMODE", or(fc.Database.SSLMode, "disable")),
		SQLitePath:         getEnv("SQLITE_PATH", or(fc.Database.SQLitePath, "file:academic_users.db?cache=shared&mode=rwc")),
		RedisAddr:          getEnv("REDIS_ADDR", or(fc.Redis.Addr, "localhost:6379")),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvAsInt("REDIS_DB", fc.Redis.DB),
		AuditQueueName:     getEnv("AUDIT_QUEUE_NAME", or(fc.Auth.AuditQueueName, "auth_events_queue")),
		LoginMaxAttempts:   getEnvAsInt("LOGIN_MAX_ATTEMPTS", orInt(fc.Auth.LoginMaxAttempts, 5)),
		LoginLockoutWindow: time.Duration(getEnvAsInt("LOGIN_LOCKOUT_MINUTES", orInt(fc.Auth.LoginLockoutMinutes, 15))) * time.Minute,
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", or(fc.Server.CORSAllowedOrigins, "*"))),
		LogLevel:           getEnv("LOG_LEVEL", or(fc.Log.Level, "info")),
		LogFormat:          getEnv("LOG_FORMAT", or(fc.Log.Format, "text")),
	}

	secret := os.Getenv("JWT_SECRET")
	switch {
	case secret != "":
		cfg.JWTKey = []byte(secret)
	case cfg.AppEnv == EnvProduction:
		return nil, errors.New("JWT_SECRET must be set when APP_ENV=production")
	default:
		cfg.JWTKey = []byte(DevSigningKey)
		cfg.UsingDevKey = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.DBConnStr = "host=" + cfg.DBHost +
		" port=" + cfg.DBPort +
		" user=" + cfg.DBUser +
		" password=" + cfg.DBPassword +
		" dbname=" + cfg.DBName +
		" sslmode=" + cfg.DBSslMode

	return cfg, nil
}

func (c *Config) validate() error {
	if c.AppEnv == EnvProduction && len(c.JWTKey) < minProductionKeyLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minProductionKeyLen)
	}
	if c.DBDriver != DriverPostgres && c.DBDriver != DriverSQLite {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.LoginMaxAttempts <= 0 {
		return errors.New("LOGIN_MAX_ATTEMPTS must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
