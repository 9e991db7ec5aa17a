package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Relay    RelayConfig    `mapstructure:"relay"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Instance InstanceConfig `mapstructure:"instance"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RelayConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	Issuer     string `mapstructure:"issuer"`
	ServiceKey string `mapstructure:"service_key"`
}

// RealtimeConfig tunes the presence and broadcast core.
type RealtimeConfig struct {
	// NotificationStore selects "mysql" or "memory".
	NotificationStore     string        `mapstructure:"notification_store"`
	IdleThreshold         time.Duration `mapstructure:"idle_threshold"`
	ReapInterval          time.Duration `mapstructure:"reap_interval"`
	DashboardPushInterval time.Duration `mapstructure:"dashboard_push_interval"`
	SendBufferSize        int           `mapstructure:"send_buffer_size"`
	WriteTimeout          time.Duration `mapstructure:"write_timeout"`
	PingInterval          time.Duration `mapstructure:"ping_interval"`
	MaxMessageSize        int64         `mapstructure:"max_message_size"`
	CatchupLimit          int           `mapstructure:"catchup_limit"`
	NotifyOnSale          bool          `mapstructure:"notify_on_sale"`
	AllowedOrigins        []string      `mapstructure:"allowed_origins"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load() (*Config, error) {
	v := newViper()

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ticketing-realtime/")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("relay.port", 8090)
	v.SetDefault("relay.host", "0.0.0.0")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "ticketing_mutations")
	v.SetDefault("mysql.dsn", "ticketing_user:ticketing_pass@tcp(localhost:3306)/ticketing_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "ticketing-platform")
	v.SetDefault("auth.service_key", "")
	v.SetDefault("realtime.notification_store", "mysql")
	v.SetDefault("realtime.idle_threshold", 5*time.Minute)
	v.SetDefault("realtime.reap_interval", time.Minute)
	v.SetDefault("realtime.dashboard_push_interval", 30*time.Second)
	v.SetDefault("realtime.send_buffer_size", 64)
	v.SetDefault("realtime.write_timeout", 10*time.Second)
	v.SetDefault("realtime.ping_interval", 30*time.Second)
	v.SetDefault("realtime.max_message_size", 4096)
	v.SetDefault("realtime.catchup_limit", 100)
	v.SetDefault("realtime.notify_on_sale", true)
	v.SetDefault("realtime.allowed_origins", []string{"*"})
	v.SetDefault("instance.id", "realtime-service-1")
	v.SetDefault("log.level", "info")

	// Environment variable mappings
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.host", "SERVER_HOST")
	_ = v.BindEnv("relay.port", "RELAY_PORT")
	_ = v.BindEnv("relay.host", "RELAY_HOST")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("redis.channel", "REDIS_CHANNEL")
	_ = v.BindEnv("mysql.dsn", "MYSQL_DSN")
	_ = v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	_ = v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	_ = v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	_ = v.BindEnv("auth.issuer", "AUTH_ISSUER")
	_ = v.BindEnv("auth.service_key", "AUTH_SERVICE_KEY")
	_ = v.BindEnv("realtime.notification_store", "REALTIME_NOTIFICATION_STORE")
	_ = v.BindEnv("realtime.idle_threshold", "REALTIME_IDLE_THRESHOLD")
	_ = v.BindEnv("realtime.reap_interval", "REALTIME_REAP_INTERVAL")
	_ = v.BindEnv("realtime.dashboard_push_interval", "REALTIME_DASHBOARD_PUSH_INTERVAL")
	_ = v.BindEnv("realtime.send_buffer_size", "REALTIME_SEND_BUFFER_SIZE")
	_ = v.BindEnv("realtime.write_timeout", "REALTIME_WRITE_TIMEOUT")
	_ = v.BindEnv("realtime.ping_interval", "REALTIME_PING_INTERVAL")
	_ = v.BindEnv("realtime.max_message_size", "REALTIME_MAX_MESSAGE_SIZE")
	_ = v.BindEnv("realtime.catchup_limit", "REALTIME_CATCHUP_LIMIT")
	_ = v.BindEnv("realtime.notify_on_sale", "REALTIME_NOTIFY_ON_SALE")
	_ = v.BindEnv("instance.id", "INSTANCE_ID")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations the realtime core cannot run with.
func (c *Config) Validate() error {
	if c.Realtime.IdleThreshold <= 0 {
		return fmt.Errorf("realtime.idle_threshold must be positive, got %s", c.Realtime.IdleThreshold)
	}
	if c.Realtime.ReapInterval <= 0 {
		return fmt.Errorf("realtime.reap_interval must be positive, got %s", c.Realtime.ReapInterval)
	}
	if c.Realtime.DashboardPushInterval <= 0 {
		return fmt.Errorf("realtime.dashboard_push_interval must be positive, got %s", c.Realtime.DashboardPushInterval)
	}
	if c.Realtime.PingInterval <= 0 {
		return fmt.Errorf("realtime.ping_interval must be positive, got %s", c.Realtime.PingInterval)
	}
	if c.Realtime.WriteTimeout <= 0 {
		return fmt.Errorf("realtime.write_timeout must be positive, got %s", c.Realtime.WriteTimeout)
	}
	if c.Realtime.MaxMessageSize <= 0 {
		return fmt.Errorf("realtime.max_message_size must be positive, got %d", c.Realtime.MaxMessageSize)
	}
	if c.Realtime.SendBufferSize <= 0 {
		return fmt.Errorf("realtime.send_buffer_size must be positive, got %d", c.Realtime.SendBufferSize)
	}
	switch c.Realtime.NotificationStore {
	case "mysql", "memory":
	default:
		return fmt.Errorf("realtime.notification_store must be mysql or memory, got %q", c.Realtime.NotificationStore)
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Redis: %s, Store: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Redis.Address,
		c.Realtime.NotificationStore,
		c.Instance.ID,
	)
}
