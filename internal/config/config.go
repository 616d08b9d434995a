package config

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultConfigPath = "configs/config_local.toml"

type MainConfig struct {
	AppName     string `toml:"appName"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	TLSRedirect bool   `toml:"tlsRedirect"`
}

type LogConfig struct {
	LogPath    string `toml:"logPath"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"maxSizeMB"`
	MaxBackups int    `toml:"maxBackups"`
	MaxAgeDays int    `toml:"maxAgeDays"`
}

// JwtConfig 与上游业务 API 共享的签名密钥；serve 要求非空
type JwtConfig struct {
	Key    string `toml:"key"`
	Issuer string `toml:"issuer"`
}

// ApiConfig 已读状态 REST 接口
type ApiConfig struct {
	BaseURL        string `toml:"baseURL"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
}

// SocketConfig 实时推送通道
type SocketConfig struct {
	URL                 string `toml:"url"`
	MinBackoffMillis    int    `toml:"minBackoffMillis"`
	MaxBackoffMillis    int    `toml:"maxBackoffMillis"`
	PingIntervalSeconds int    `toml:"pingIntervalSeconds"`
	HandshakeSeconds    int    `toml:"handshakeSeconds"`
}

type SessionConfig struct {
	Token string `toml:"token"`
}

type SyncConfig struct {
	HistoryRefreshSpec string `toml:"historyRefreshSpec"`
	SnapshotTTLMinutes int    `toml:"snapshotTTLMinutes"`
}

type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

type RedisConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"poolSize"`
	MinIdleConns int    `toml:"minIdleConns"`
}

type KafkaConfig struct {
	Brokers     []string `toml:"brokers"`
	ClientID    string   `toml:"clientID"`
	ChangeTopic string   `toml:"changeTopic"`
	Partitions  int32    `toml:"partitions"`
	Replication int16    `toml:"replication"`
}

// MCPConfig MCP 工具配置
type MCPConfig struct {
	Enabled bool   `toml:"enabled"`
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type Config struct {
	MainConfig    `toml:"mainConfig"`
	LogConfig     `toml:"logConfig"`
	JwtConfig     `toml:"jwtConfig"`
	ApiConfig     `toml:"apiConfig"`
	SocketConfig  `toml:"socketConfig"`
	SessionConfig `toml:"sessionConfig"`
	SyncConfig    `toml:"syncConfig"`
	MysqlConfig   `toml:"mysqlConfig"`
	RedisConfig   `toml:"redisConfig"`
	KafkaConfig   `toml:"kafkaConfig"`
	MCPConfig     `toml:"mcpConfig"`
}

var (
	mu     sync.RWMutex
	config *Config
)

var ErrMissingJwtKey = errors.New("jwtConfig.key is required to verify dashboard tokens")

// LoadConfig 读取 TOML 配置并补全默认值。文件不存在时使用默认配置。
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	conf := new(Config)
	if _, err := toml.DecodeFile(path, conf); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	conf.applyDefaults()

	mu.Lock()
	config = conf
	mu.Unlock()
	return conf, nil
}

// Validate 检查对外服务必需的配置
func (c *Config) Validate() error {
	if c.JwtConfig.Key == "" {
		return ErrMissingJwtKey
	}
	return nil
}

// GetConfig 返回已加载的配置；尚未加载时按默认路径加载
func GetConfig() *Config {
	mu.RLock()
	c := config
	mu.RUnlock()
	if c != nil {
		return c
	}
	c, err := LoadConfig(DefaultConfigPath)
	if err != nil {
		c = new(Config)
		c.applyDefaults()
	}
	return c
}

func (c *Config) applyDefaults() {
	if c.AppName == "" {
		c.AppName = "RxDash"
	}
	if c.MainConfig.Host == "" {
		c.MainConfig.Host = "0.0.0.0"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8090
	}
	if c.ApiConfig.TimeoutSeconds <= 0 {
		c.ApiConfig.TimeoutSeconds = 10
	}
	if c.MinBackoffMillis <= 0 {
		c.MinBackoffMillis = 500
	}
	if c.MaxBackoffMillis <= 0 {
		c.MaxBackoffMillis = 30000
	}
	if c.MaxBackoffMillis < c.MinBackoffMillis {
		c.MaxBackoffMillis = c.MinBackoffMillis
	}
	if c.PingIntervalSeconds <= 0 {
		c.PingIntervalSeconds = 25
	}
	if c.HandshakeSeconds <= 0 {
		c.HandshakeSeconds = 10
	}
	if c.HistoryRefreshSpec == "" {
		c.HistoryRefreshSpec = "@every 5m"
	}
	if c.SnapshotTTLMinutes <= 0 {
		c.SnapshotTTLMinutes = 24 * 60
	}
	if c.KafkaConfig.ChangeTopic == "" {
		c.KafkaConfig.ChangeTopic = "rxdash.notification.changes"
	}
	if c.MCPConfig.Name == "" {
		c.MCPConfig.Name = "rxdash-notifications"
	}
	if c.MCPConfig.Version == "" {
		c.MCPConfig.Version = "1.0.0"
	}
}

func (c ApiConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c SocketConfig) MinBackoff() time.Duration {
	return time.Duration(c.MinBackoffMillis) * time.Millisecond
}

func (c SocketConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMillis) * time.Millisecond
}

func (c SocketConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalSeconds) * time.Second
}

func (c SocketConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeSeconds) * time.Second
}

func (c SyncConfig) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLMinutes) * time.Minute
}
