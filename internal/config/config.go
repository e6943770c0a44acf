package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	OTP      OTPConfig
	Workflow WorkflowConfig
	Bank     BankConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	SwaggerHost     string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type JWTConfig struct {
	SecretKey   string
	Issuer      string
	ExpiryHours int
}

type OTPConfig struct {
	CodeLength      int
	TTL             time.Duration
	MaxAttempts     int
	RateLimit       int
	RateLimitWindow time.Duration
	Argon2Time      uint32
	Argon2Memory    uint32
	Argon2Threads   uint8
	Argon2KeyLength uint32
}

type WorkflowConfig struct {
	ApprovalSLA     time.Duration
	RejectionPolicy string
	ManagerGate     bool
	SweepInterval   time.Duration
	SweepBatchSize  int
	MaxBatchSize    int
}

type BankConfig struct {
	BIC             string
	Name            string
	ClearingMember  string
	Timeout         time.Duration
	MaxFailures     uint32
	BreakerInterval time.Duration
	BreakerTimeout  time.Duration
}

type LogConfig struct {
	Level       string
	Format      string
	Development bool
}

var defaults = map[string]any{
	"server.port":             "8080",
	"server.read_timeout":     15 * time.Second,
	"server.write_timeout":    15 * time.Second,
	"server.shutdown_timeout": 30 * time.Second,
	"server.allowed_origins":  "",
	"server.swagger_host":     "localhost:8080",

	"database.host":              "localhost",
	"database.port":              "5432",
	"database.user":              "postgres",
	"database.password":          "password",
	"database.name":              "cartable",
	"database.ssl_mode":          "disable",
	"database.max_open_conns":    25,
	"database.max_idle_conns":    5,
	"database.conn_max_lifetime": 5 * time.Minute,
	"database.migrate":           true,

	"redis.host":     "localhost",
	"redis.port":     "6379",
	"redis.password": "",
	"redis.db":       0,

	"jwt.secret_key":   "",
	"jwt.issuer":       "cartable",
	"jwt.expiry_hours": 24,

	"otp.code_length":       6,
	"otp.ttl":               2 * time.Minute,
	"otp.max_attempts":      5,
	"otp.rate_limit":        10,
	"otp.rate_limit_window": 10 * time.Minute,
	"otp.argon2_time":       1,
	"otp.argon2_memory":     64 * 1024,
	"otp.argon2_threads":    2,
	"otp.argon2_key_length": 32,

	"workflow.approval_sla":     72 * time.Hour,
	"workflow.rejection_policy": "veto",
	"workflow.manager_gate":     false,
	"workflow.sweep_interval":   time.Minute,
	"workflow.sweep_batch_size": 100,
	"workflow.max_batch_size":   100,

	"bank.bic":              "RPAYNGLAXXX",
	"bank.name":             "RuralPay Cartable",
	"bank.clearing_member":  "",
	"bank.timeout":          10 * time.Second,
	"bank.max_failures":     5,
	"bank.breaker_interval": time.Minute,
	"bank.breaker_timeout":  30 * time.Second,

	"log.level":       "info",
	"log.format":      "json",
	"log.development": false,
}

// Load reads path (a .env file, optional) and the environment. Every key binds to its
// upper-cased env name, so workflow.approval_sla is WORKFLOW_APPROVAL_SLA.
func Load(path string) (*Config, error) {
	file := viper.New()
	if path != "" {
		file.SetConfigFile(path)
		file.SetConfigType("env")
		if err := file.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isMissingFile(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	v := viper.New()
	for key, val := range defaults {
		env := envName(key)
		// .env entries replace the default; the process environment still wins.
		if file.IsSet(env) {
			val = file.Get(env)
		}
		v.SetDefault(key, val)
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}
	if err := v.BindEnv("server.port", "SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			AllowedOrigins:  splitList(v.GetString("server.allowed_origins")),
			SwaggerHost:     v.GetString("server.swagger_host"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			Migrate:         v.GetBool("database.migrate"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			SecretKey:   v.GetString("jwt.secret_key"),
			Issuer:      v.GetString("jwt.issuer"),
			ExpiryHours: v.GetInt("jwt.expiry_hours"),
		},
		OTP: OTPConfig{
			CodeLength:      v.GetInt("otp.code_length"),
			TTL:             v.GetDuration("otp.ttl"),
			MaxAttempts:     v.GetInt("otp.max_attempts"),
			RateLimit:       v.GetInt("otp.rate_limit"),
			RateLimitWindow: v.GetDuration("otp.rate_limit_window"),
			Argon2Time:      v.GetUint32("otp.argon2_time"),
			Argon2Memory:    v.GetUint32("otp.argon2_memory"),
			Argon2Threads:   uint8(v.GetUint("otp.argon2_threads")),
			Argon2KeyLength: v.GetUint32("otp.argon2_key_length"),
		},
		Workflow: WorkflowConfig{
			ApprovalSLA:     v.GetDuration("workflow.approval_sla"),
			RejectionPolicy: v.GetString("workflow.rejection_policy"),
			ManagerGate:     v.GetBool("workflow.manager_gate"),
			SweepInterval:   v.GetDuration("workflow.sweep_interval"),
			SweepBatchSize:  v.GetInt("workflow.sweep_batch_size"),
			MaxBatchSize:    v.GetInt("workflow.max_batch_size"),
		},
		Bank: BankConfig{
			BIC:             v.GetString("bank.bic"),
			Name:            v.GetString("bank.name"),
			ClearingMember:  v.GetString("bank.clearing_member"),
			Timeout:         v.GetDuration("bank.timeout"),
			MaxFailures:     v.GetUint32("bank.max_failures"),
			BreakerInterval: v.GetDuration("bank.breaker_interval"),
			BreakerTimeout:  v.GetDuration("bank.breaker_timeout"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Format:      v.GetString("log.format"),
			Development: v.GetBool("log.development"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.JWT.SecretKey == "" {
		problems = append(problems, "jwt.secret_key is required")
	}
	if c.OTP.CodeLength < 4 || c.OTP.CodeLength > 10 {
		problems = append(problems, "otp.code_length must be between 4 and 10")
	}
	if c.OTP.TTL <= 0 {
		problems = append(problems, "otp.ttl must be positive")
	}
	if c.OTP.MaxAttempts < 1 {
		problems = append(problems, "otp.max_attempts must be at least 1")
	}
	if c.Workflow.ApprovalSLA <= 0 {
		problems = append(problems, "workflow.approval_sla must be positive")
	}
	if c.Workflow.MaxBatchSize < 1 {
		problems = append(problems, "workflow.max_batch_size must be at least 1")
	}
	switch strings.ToLower(c.Workflow.RejectionPolicy) {
	case "veto", "quorum":
	default:
		problems = append(problems, fmt.Sprintf("workflow.rejection_policy %q is not veto or quorum", c.Workflow.RejectionPolicy))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
