package navigation

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config 导航地点库配置
type Config struct {
	Path  string `toml:"path"`  // SQLite 文件路径
	Table string `toml:"table"` // 含 name 列的表名
}

// Validate 校验表名，表名无法参数化，只允许标识符
func (c *Config) Validate() error {
	if c.Table == "" {
		c.Table = "navigation"
	}
	if !identRe.MatchString(c.Table) {
		return fmt.Errorf("table %q is not a valid identifier", c.Table)
	}
	return nil
}

// LoadLocations 按行序读取地点名称，空名称被过滤
func LoadLocations(ctx context.Context, cfg Config) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("navigation db %s: %w", cfg.Path, err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open navigation db: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SELECT name FROM "+cfg.Table+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("query navigation table %s: %w", cfg.Table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan navigation row: %w", err)
		}
		if n := strings.TrimSpace(name.String); name.Valid && n != "" {
			names = append(names, n)
		}
	}

	return names, rows.Err()
}
