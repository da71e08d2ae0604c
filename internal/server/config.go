package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/Zereker/nlu/internal/action"
	"github.com/Zereker/nlu/internal/online"
	"github.com/Zereker/nlu/internal/session"
	"github.com/Zereker/nlu/pkg/graph"
	"github.com/Zereker/nlu/pkg/log"
	"github.com/Zereker/nlu/pkg/mq"
	"github.com/Zereker/nlu/pkg/navigation"
	"github.com/Zereker/nlu/pkg/redis"
	"github.com/Zereker/nlu/pkg/review"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig          `toml:"server"`
	Log        log.Config            `toml:"log"`
	Dialogue   action.Config         `toml:"dialogue"`
	Lexicon    LexiconConfig         `toml:"lexicon"`
	Session    session.Config        `toml:"session"`
	Neo4j      graph.Neo4jConfig     `toml:"neo4j"`
	Navigation navigation.Config     `toml:"navigation"`
	Redis      redis.Config          `toml:"redis"`
	Kafka      mq.KafkaConfig        `toml:"kafka"`
	Postgres   review.PostgresConfig `toml:"postgres"`
	Review     review.FileConfig     `toml:"review"`
	Online     online.Config         `toml:"online"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Mode         string `toml:"mode"` // tcp, http, both, or mcp
	TCPAddr      string `toml:"tcp_addr"`
	Port         int    `toml:"port"` // http 端口
	MaxFrameSize int    `toml:"max_frame_size"`
	IdleTimeout  string `toml:"idle_timeout"`
	Metrics      *bool  `toml:"metrics"` // 是否通过 http 暴露 /metrics，默认 true
}

// LexiconConfig 分词词表
type LexiconConfig struct {
	Path      string   `toml:"path"`       // YAML 词表，为空时使用空词表
	DictFiles []string `toml:"dict_files"` // gse 词典，为空时使用内置词典
}

// Validate checks server configuration
func (s *ServerConfig) Validate() error {
	if s.Mode == "" {
		s.Mode = "tcp" // default mode
	}
	switch s.Mode {
	case "tcp", "http", "both", "mcp":
		// valid
	default:
		return fmt.Errorf("invalid mode: %s, must be tcp, http, both, or mcp", s.Mode)
	}

	if s.TCPAddr == "" {
		s.TCPAddr = ":7000"
	}
	if s.ServesHTTP() && (s.Port <= 0 || s.Port > 65535) {
		return fmt.Errorf("port is required and must be between 1 and 65535")
	}
	if s.MaxFrameSize < 0 {
		return fmt.Errorf("max_frame_size must not be negative")
	}
	if s.IdleTimeout != "" {
		if _, err := time.ParseDuration(s.IdleTimeout); err != nil {
			return fmt.Errorf("idle_timeout is invalid: %w", err)
		}
	}
	return nil
}

// ServesTCP 是否启动 TCP 服务
func (s *ServerConfig) ServesTCP() bool {
	return s.Mode == "tcp" || s.Mode == "both"
}

// ServesHTTP 是否启动 HTTP 服务
func (s *ServerConfig) ServesHTTP() bool {
	return s.Mode == "http" || s.Mode == "both"
}

// ServesMCP 通过标准输入输出提供 MCP 工具，日志需关闭 stdout
func (s *ServerConfig) ServesMCP() bool {
	return s.Mode == "mcp"
}

// MetricsEnabled 默认开启
func (s *ServerConfig) MetricsEnabled() bool {
	return s.Metrics == nil || *s.Metrics
}

// Validate checks all configuration fields
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if err := c.Dialogue.Validate(); err != nil {
		return fmt.Errorf("dialogue: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	if err := c.Neo4j.Validate(); err != nil {
		return fmt.Errorf("neo4j: %w", err)
	}

	if c.Navigation.Path != "" {
		if err := c.Navigation.Validate(); err != nil {
			return fmt.Errorf("navigation: %w", err)
		}
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := c.Kafka.Validate(); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}

	if err := c.Postgres.Validate(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	if err := c.Review.Validate(); err != nil {
		return fmt.Errorf("review: %w", err)
	}

	if err := c.Online.Validate(); err != nil {
		return fmt.Errorf("online: %w", err)
	}

	return nil
}

// 环境变量覆盖配置文件中的密钥
const (
	EnvNeo4jPassword    = "NLU_NEO4J_PASSWORD"
	EnvRedisPassword    = "NLU_REDIS_PASSWORD"
	EnvPostgresPassword = "NLU_POSTGRES_PASSWORD"
	EnvAMapKey          = "NLU_AMAP_KEY"
)

// applyEnv 用环境变量覆盖密钥，空值不覆盖
func (c *Config) applyEnv() {
	for env, field := range map[string]*string{
		EnvNeo4jPassword:    &c.Neo4j.Password,
		EnvRedisPassword:    &c.Redis.Password,
		EnvPostgresPassword: &c.Postgres.Password,
		EnvAMapKey:          &c.Online.APIKey,
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*field = v
		}
	}
}

// LoadConfig reads and parses the configuration file.
// A .env file next to the working directory is loaded first when present.
func LoadConfig(filename string) (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses TOML configuration and applies environment overrides
func ParseConfig(data []byte) (Config, error) {
	var cfg Config

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
