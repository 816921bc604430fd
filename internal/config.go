package internal

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	JWTAccessSecret      string        `mapstructure:"jwt_access_secret" validate:"required,min=32"`
	JWTRefreshSecret     string        `mapstructure:"jwt_refresh_secret" validate:"required,min=32"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"required,min=10,max=15"`
	AdminIPAllowlist     []string      `mapstructure:"admin_ip_allowlist"`
	LoginPath            string        `mapstructure:"login_path"`
	LandingPath          string        `mapstructure:"landing_path"`
}

const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

type CacheConfig struct {
	Driver string      `mapstructure:"driver" validate:"oneof=memory redis"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`

	UploadFolder string        `mapstructure:"upload_folder"`
	CleanupTime  string        `mapstructure:"cleanup_time"`
	MaxTempAge   time.Duration `mapstructure:"max_temp_age"`

	StatsInterval time.Duration `mapstructure:"stats_interval"`

	BackupEnabled       bool   `mapstructure:"backup_enabled"`
	BackupTime          string `mapstructure:"backup_time"`
	BackupDir           string `mapstructure:"backup_dir"`
	BackupRetentionDays int    `mapstructure:"backup_retention_days"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ApplyDefaults fills in values the config file may leave out.
func (c *Config) ApplyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Security.LoginPath == "" {
		c.Security.LoginPath = "/auth/login"
	}
	if c.Security.LandingPath == "" {
		c.Security.LandingPath = "/dashboard"
	}
	if c.Security.AccessTokenDuration <= 0 {
		c.Security.AccessTokenDuration = 15 * time.Minute
	}
	if c.Security.RefreshTokenDuration <= 0 {
		c.Security.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheDriverMemory
	}
	if c.Cache.Redis.KeyPrefix == "" {
		c.Cache.Redis.KeyPrefix = "fieldline:access:"
	}

	s := &c.Scheduler
	if s.PollInterval <= 0 {
		s.PollInterval = time.Second
	}
	if s.StopTimeout <= 0 {
		s.StopTimeout = 5 * time.Second
	}
	if s.UploadFolder == "" {
		s.UploadFolder = "uploads"
	}
	if s.CleanupTime == "" {
		s.CleanupTime = "03:00"
	}
	if s.MaxTempAge <= 0 {
		s.MaxTempAge = 24 * time.Hour
	}
	if s.StatsInterval <= 0 {
		s.StatsInterval = 6 * time.Hour
	}
	if s.BackupTime == "" {
		s.BackupTime = "02:00"
	}
	if s.BackupDir == "" {
		s.BackupDir = "backups"
	}
	if s.BackupRetentionDays <= 0 {
		s.BackupRetentionDays = 7
	}
}

// LoadConfigFromEnv builds the configuration for container deployments where
// no config file is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", DriverPostgres),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			JWTAccessSecret:      getEnv("JWT_ACCESS_SECRET", ""),
			JWTRefreshSecret:     getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenDuration:  getEnvAsDuration("ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration: getEnvAsDuration("REFRESH_TOKEN_DURATION", 7*24*time.Hour),
			BCryptCost:           getEnvAsInt("BCRYPT_COST", 12),
			AdminIPAllowlist:     getEnvAsList("ADMIN_IP_ALLOWLIST"),
			LoginPath:            getEnv("LOGIN_PATH", ""),
			LandingPath:          getEnv("LANDING_PATH", ""),
		},
		Cache: CacheConfig{
			Driver: getEnv("CACHE_DRIVER", CacheDriverMemory),
			Redis: RedisConfig{
				Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
				Password:  getEnv("REDIS_PASSWORD", ""),
				DB:        getEnvAsInt("REDIS_DB", 0),
				KeyPrefix: getEnv("REDIS_KEY_PREFIX", ""),
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:             getEnvAsBool("SCHEDULER_ENABLED", true),
			PollInterval:        getEnvAsDuration("SCHEDULER_POLL_INTERVAL", time.Second),
			StopTimeout:         getEnvAsDuration("SCHEDULER_STOP_TIMEOUT", 5*time.Second),
			UploadFolder:        getEnv("UPLOAD_FOLDER", ""),
			CleanupTime:         getEnv("CLEANUP_TIME", ""),
			MaxTempAge:          getEnvAsDuration("MAX_TEMP_AGE", 24*time.Hour),
			StatsInterval:       getEnvAsDuration("STATS_INTERVAL", 6*time.Hour),
			BackupEnabled:       getEnvAsBool("BACKUP_ENABLED", false),
			BackupTime:          getEnv("BACKUP_TIME", ""),
			BackupDir:           getEnv("BACKUP_DIR", ""),
			BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 7),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("cache config: %v", err))
	}

	if err := c.Scheduler.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("scheduler config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Driver != DriverPostgres && c.Driver != DriverSQLite {
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTAccessSecret) < 32 {
		return errors.New("jwt_access_secret must be at least 32 characters")
	}
	if len(c.JWTRefreshSecret) < 32 {
		return errors.New("jwt_refresh_secret must be at least 32 characters")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("jwt_access_secret and jwt_refresh_secret must differ")
	}
	for _, entry := range c.AdminIPAllowlist {
		if _, err := netip.ParsePrefix(entry); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(entry); err != nil {
			return fmt.Errorf("invalid admin_ip_allowlist entry %q", entry)
		}
	}
	return nil
}

func (c *CacheConfig) Validate() error {
	switch c.Driver {
	case CacheDriverMemory:
		return nil
	case CacheDriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required when driver is redis")
		}
		return nil
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
}

func (c *SchedulerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	for name, value := range map[string]string{"cleanup_time": c.CleanupTime, "backup_time": c.BackupTime} {
		if _, err := time.Parse("15:04", value); err != nil {
			return fmt.Errorf("%s must be HH:MM, got %q", name, value)
		}
	}
	if c.BackupEnabled && c.BackupDir == "" {
		return errors.New("backup_dir is required when backups are enabled")
	}
	return nil
}
