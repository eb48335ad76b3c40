package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/Zwubman/software-company-sub002/pkg/config"
	"github.com/Zwubman/software-company-sub002/pkg/database"
	"github.com/Zwubman/software-company-sub002/pkg/log"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Chat      ChatConfig
	Database  database.Config
	Redis     RedisConfig
	Kafka     KafkaConfig
	Identity  IdentityConfig
	Log       log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval  time.Duration `mapstructure:"ping_interval"`
	PongWait      time.Duration `mapstructure:"pong_wait"`
	WriteWait     time.Duration `mapstructure:"write_wait"`
	MaxFrameSize  int64         `mapstructure:"max_frame_size"`
	SendQueueSize int           `mapstructure:"send_queue_size"`
}

type ChatConfig struct {
	MaxBodyBytes    int           `mapstructure:"max_body_bytes"`
	ReplayPageSize  int           `mapstructure:"replay_page_size"`
	PersistTimeout  time.Duration `mapstructure:"persist_timeout"`
	HistoryPageMax  int           `mapstructure:"history_page_max"`
	HistoryCacheTTL time.Duration `mapstructure:"history_cache_ttl"`
}

type RedisConfig struct {
	Address           string
	Password          string
	DB                int
	RegistryPrefix    string        `mapstructure:"registry_prefix"`
	CachePrefix       string        `mapstructure:"cache_prefix"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
}

// KafkaConfig configures the outbound event stream. Empty brokers disable it.
type KafkaConfig struct {
	Brokers    string
	Topic      string
	Partitions int
}

type IdentityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_frame_size", 8192)
	v.SetDefault("websocket.send_queue_size", 256)
	v.SetDefault("chat.max_body_bytes", 4000)
	v.SetDefault("chat.replay_page_size", 200)
	v.SetDefault("chat.persist_timeout", "5s")
	v.SetDefault("chat.history_page_max", 100)
	v.SetDefault("chat.history_cache_ttl", "5m")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "chat.db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.registry_prefix", "chat:registry")
	v.SetDefault("redis.cache_prefix", "chat:history")
	v.SetDefault("redis.heartbeat_interval", "10s")
	v.SetDefault("redis.key_ttl", "30s")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "chat-events")
	v.SetDefault("kafka.partitions", 8)
	v.SetDefault("identity.issuer", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "support-chat")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.db_name", "DB_NAME")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("identity.jwt_secret", "IDENTITY_JWT_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Chat.PersistTimeout = parseDuration(v, "chat.persist_timeout", 5*time.Second)
	cfg.Chat.HistoryCacheTTL = parseDuration(v, "chat.history_cache_ttl", 5*time.Minute)
	cfg.Redis.HeartbeatInterval = parseDuration(v, "redis.heartbeat_interval", 10*time.Second)
	cfg.Redis.KeyTTL = parseDuration(v, "redis.key_ttl", 30*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
