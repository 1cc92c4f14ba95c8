package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mossy-p/burner-signaling/internal/admission"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultSecret = "change-me-in-production"
)

type Config struct {
	Port           string      `yaml:"port"`
	Environment    string      `yaml:"environment"`
	AllowedOrigins []string    `yaml:"allowed_origins"`
	JWTSecret      string      `yaml:"jwt_secret"`
	Redis          RedisConfig `yaml:"redis"`
	Log            LogConfig   `yaml:"log"`
	ICE            ICEConfig   `yaml:"ice"`

	CredentialTTL time.Duration `yaml:"credential_ttl"`
	RefreshWindow time.Duration `yaml:"refresh_window"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	EndedGrace    time.Duration `yaml:"ended_grace"`
	MessageTTL    time.Duration `yaml:"message_ttl"`

	// MaxSignalingMessagesPerSecond bounds inbound frames per connection.
	MaxSignalingMessagesPerSecond int `yaml:"max_signaling_messages_per_second"`

	// RateLimits overrides individual admission classes.
	RateLimits   map[admission.Class]admission.Policy `yaml:"rate_limits"`
	AdjustPeriod time.Duration                        `yaml:"adjust_period"`
	MemoryBudget int64                                `yaml:"memory_budget"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ICEConfig lists the servers handed to clients at /api/ice-servers.
type ICEConfig struct {
	STUNServers  []string `yaml:"stun_servers"`
	TURNServer   string   `yaml:"turn_server"`
	TURNUsername string   `yaml:"turn_username"`
	TURNPassword string   `yaml:"turn_password"`
}

// Options carries CLI flag values. Empty fields are not set.
type Options struct {
	Path        string
	Port        string
	Environment string
	LogLevel    string
	LogFormat   string
	RedisAddr   string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:           "8080",
		Environment:    EnvDevelopment,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		JWTSecret:      defaultSecret,
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		Log: LogConfig{Level: "info", Format: "text"},
		ICE: ICEConfig{
			STUNServers: []string{"stun:stun.l.google.com:19302"},
		},
		CredentialTTL:                 time.Hour,
		RefreshWindow:                 10 * time.Minute,
		SweepInterval:                 5 * time.Minute,
		EndedGrace:                    30 * time.Second,
		MessageTTL:                    5 * time.Minute,
		MaxSignalingMessagesPerSecond: 50,
		AdjustPeriod:                  30 * time.Second,
		MemoryBudget:                  512 << 20,
	}
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. YAML file (--config or SIGNALING_CONFIG)
// 4. Built-in defaults - lowest priority
func Load(opts Options) (*Config, error) {
	cfg := Default()

	path := opts.Path
	if path == "" {
		path = os.Getenv("SIGNALING_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyOptions(opts)

	if cfg.Environment == EnvProduction && cfg.Log.Format == "text" && os.Getenv("LOG_FORMAT") == "" && opts.LogFormat == "" {
		cfg.Log.Format = "json"
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.AllowedOrigins = strings.Split(origins, ",")
	}
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)

	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnv("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	if stun := getEnv("STUN_SERVER", ""); stun != "" {
		c.ICE.STUNServers = strings.Split(stun, ",")
	}
	c.ICE.TURNServer = getEnv("TURN_SERVER", c.ICE.TURNServer)
	c.ICE.TURNUsername = getEnv("TURN_USERNAME", c.ICE.TURNUsername)
	c.ICE.TURNPassword = getEnv("TURN_PASSWORD", c.ICE.TURNPassword)

	var errs []error
	if v := getEnv("REDIS_ENABLED", ""); v != "" {
		b, err := strconv.ParseBool(v)
		errs = append(errs, envErr("REDIS_ENABLED", err))
		c.Redis.Enabled = b
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("REDIS_DB", err))
		c.Redis.DB = n
	}
	if v := getEnv("SWEEP_INTERVAL", ""); v != "" {
		d, err := time.ParseDuration(v)
		errs = append(errs, envErr("SWEEP_INTERVAL", err))
		c.SweepInterval = d
	}
	if v := getEnv("MAX_SIGNALING_MESSAGES_PER_SECOND", ""); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("MAX_SIGNALING_MESSAGES_PER_SECOND", err))
		c.MaxSignalingMessagesPerSecond = n
	}
	return errors.Join(errs...)
}

func (c *Config) applyOptions(opts Options) {
	if opts.Port != "" {
		c.Port = opts.Port
	}
	if opts.Environment != "" {
		c.Environment = opts.Environment
	}
	if opts.LogLevel != "" {
		c.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		c.Log.Format = opts.LogFormat
	}
	if opts.RedisAddr != "" {
		host, port, ok := strings.Cut(opts.RedisAddr, ":")
		c.Redis.Enabled = true
		c.Redis.Host = host
		if ok {
			c.Redis.Port = port
		}
	}
}

// Policies returns the admission policies: defaults with any configured
// overrides applied.
func (c *Config) Policies() map[admission.Class]admission.Policy {
	policies := admission.DefaultPolicies()
	for class, p := range c.RateLimits {
		policies[class] = p
	}
	return policies
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.Environment == EnvProduction && c.JWTSecret == defaultSecret {
		errs = append(errs, errors.New("jwt_secret must be changed in production"))
	}
	for name, d := range map[string]time.Duration{
		"credential_ttl": c.CredentialTTL,
		"refresh_window": c.RefreshWindow,
		"sweep_interval": c.SweepInterval,
		"ended_grace":    c.EndedGrace,
		"message_ttl":    c.MessageTTL,
		"adjust_period":  c.AdjustPeriod,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.RefreshWindow >= c.CredentialTTL {
		errs = append(errs, errors.New("refresh_window must be shorter than credential_ttl"))
	}
	if c.MaxSignalingMessagesPerSecond <= 0 {
		errs = append(errs, errors.New("max_signaling_messages_per_second must be positive"))
	}
	for class, p := range c.RateLimits {
		if p.Points <= 0 || p.Window <= 0 || p.Block < 0 {
			errs = append(errs, fmt.Errorf("rate_limits.%s: points and window must be positive", class))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", key, err)
}
