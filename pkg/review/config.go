package review

import "fmt"

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"ssl_mode"`
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// Validate checks PostgreSQL configuration.
func (c *PostgresConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Database == "" {
		return fmt.Errorf("database is required")
	}
	return nil
}

// FileConfig 未启用 PostgreSQL 时的文件存储
type FileConfig struct {
	Path         string `toml:"path"`
	RotationTime string `toml:"rotation_time"`
	MaxAge       string `toml:"max_age"`
}

// Validate 填充默认值
func (c *FileConfig) Validate() error {
	if c.Path == "" {
		c.Path = "./data/review"
	}
	if c.RotationTime == "" {
		c.RotationTime = "24h"
	}
	if c.MaxAge == "" {
		c.MaxAge = "720h"
	}
	return nil
}
