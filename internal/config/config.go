package config

import (
	"fmt"
	"strings"
	"time"

	"condoadmin/client"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Console   ConsoleConfig   `mapstructure:"console"`
	DevAPI    DevAPIConfig    `mapstructure:"devapi"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
	Port        string `mapstructure:"port"`
}

type APIConfig struct {
	// URL is normalized to a single trailing slash by Load.
	URL          string        `mapstructure:"url"`
	RefreshPath  string        `mapstructure:"refresh_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RenewTimeout time.Duration `mapstructure:"renew_timeout"`
}

// StoreConfig selects where credentials live: "file", "redis" or "memory".
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	Prefix  string `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ConsoleConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// KeepaliveInterval is how often the signed-in profile is revalidated.
	// Zero disables it.
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`
}

type DevAPIConfig struct {
	Port            string        `mapstructure:"port"`
	SigningKey      string        `mapstructure:"signing_key"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	RotateRefresh   bool          `mapstructure:"rotate_refresh"`
	AllowList       string        `mapstructure:"allow_list"`
}

type RateLimitConfig struct {
	LoginPerMinute int `mapstructure:"login_per_minute"`
	LoginBurst     int `mapstructure:"login_burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.port", ":3000")
	v.SetDefault("api.url", client.DefaultBaseURL)
	v.SetDefault("api.refresh_path", "token/refresh/")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.renew_timeout", client.DefaultRenewTimeout)
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.path", ".condoadmin/credentials.json")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("console.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("console.keepalive_interval", 5*time.Minute)
	v.SetDefault("devapi.port", ":8000")
	v.SetDefault("devapi.signing_key", "condoadmin-dev-signing-key")
	v.SetDefault("devapi.access_token_ttl", 5*time.Minute)
	v.SetDefault("devapi.refresh_token_ttl", 24*time.Hour)
	v.SetDefault("devapi.allow_list", "memory")
	v.SetDefault("ratelimit.login_per_minute", 10)
	v.SetDefault("ratelimit.login_burst", 5)
}

// Load reads config.yaml from the working directory or ./config, then applies
// CONDO_* environment overrides (CONDO_API_URL, CONDO_STORE_BACKEND, ...).
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("CONDO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine, defaults and env cover everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	base, err := client.NormalizeBaseURL(cfg.API.URL)
	if err != nil {
		return nil, fmt.Errorf("config: api.url: %w", err)
	}
	cfg.API.URL = base

	switch cfg.Store.Backend {
	case "file", "redis", "memory":
	default:
		return nil, fmt.Errorf("config: unknown store.backend %q", cfg.Store.Backend)
	}

	return &cfg, nil
}

// MustLoad is Load for main packages.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
