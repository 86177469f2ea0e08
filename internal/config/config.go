package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	QUIC     QUICConfig     `mapstructure:"quic"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Presence PresenceConfig `mapstructure:"presence"`
	Fanout   FanoutConfig   `mapstructure:"fanout"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr                   string        `mapstructure:"addr"`
	HealthAddr             string        `mapstructure:"health_addr"`
	NodeID                 int64         `mapstructure:"node_id"`
	MaxConnections         int           `mapstructure:"max_connections"`
	HeartbeatTimeout       time.Duration `mapstructure:"heartbeat_timeout"`
	HeartbeatCheckInterval time.Duration `mapstructure:"heartbeat_check_interval"`
}

type QUICConfig struct {
	MaxIdleTimeout        time.Duration `mapstructure:"max_idle_timeout"`
	KeepAlivePeriod       time.Duration `mapstructure:"keep_alive_period"`
	MaxIncomingStreams    int64         `mapstructure:"max_incoming_streams"`
	MaxIncomingUniStreams int64         `mapstructure:"max_incoming_uni_streams"`
	Allow0RTT             bool          `mapstructure:"allow_0rtt"`
	CertFile              string        `mapstructure:"cert_file"`
	KeyFile               string        `mapstructure:"key_file"`
}

type AuthConfig struct {
	TokenSecret string `mapstructure:"token_secret"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type PresenceConfig struct {
	// ReplayWindow bounds the undelivered-message scan on reconnect.
	ReplayWindow time.Duration `mapstructure:"replay_window"`
	// ReplayBatchSize caps one replay batch write.
	ReplayBatchSize int `mapstructure:"replay_batch_size"`
}

type FanoutConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the YAML config from the given path.
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.HealthAddr == "" {
		c.Server.HealthAddr = ":8080"
	}
	if c.Server.HeartbeatTimeout <= 0 {
		c.Server.HeartbeatTimeout = 2 * time.Minute
	}
	if c.Server.HeartbeatCheckInterval <= 0 {
		c.Server.HeartbeatCheckInterval = 30 * time.Second
	}
	if c.Presence.ReplayWindow <= 0 {
		c.Presence.ReplayWindow = 24 * time.Hour
	}
	if c.Presence.ReplayBatchSize <= 0 {
		c.Presence.ReplayBatchSize = 500
	}
	if c.Fanout.Workers <= 0 {
		c.Fanout.Workers = 16
	}
	if c.Fanout.QueueSize <= 0 {
		c.Fanout.QueueSize = 4096
	}
}
