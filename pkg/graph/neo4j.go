package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Package-level instance
var clientInstance *Client

// Init initializes the graph package with config.
func Init(cfg Neo4jConfig) error {
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	clientInstance = client
	return nil
}

// NewClient returns the Client instance.
func NewClient() *Client {
	return clientInstance
}

// Close closes the Client connection.
func Close(ctx context.Context) error {
	if clientInstance != nil {
		return clientInstance.Close(ctx)
	}
	return nil
}

// Runner executes Cypher statements. Implemented by *Client and by test fakes.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	RunWriteBatch(ctx context.Context, queries []string, paramsList []map[string]any) error
}

// Neo4jConfig holds Neo4j connection configuration
type Neo4jConfig struct {
	URI            string `toml:"uri"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	Database       string `toml:"database"`
	ConnectTimeout string `toml:"connect_timeout"`
}

// Validate checks Neo4j configuration.
func (c *Neo4jConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("uri is required")
	}
	if c.Database == "" {
		c.Database = "neo4j"
	}
	if c.ConnectTimeout == "" {
		c.ConnectTimeout = "10s"
	}
	if _, err := time.ParseDuration(c.ConnectTimeout); err != nil {
		return fmt.Errorf("connect_timeout is invalid: %w", err)
	}
	return nil
}

// Client is a thin wrapper over the Neo4j driver returning plain maps
type Client struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ Runner = (*Client)(nil)

func newClient(cfg Neo4jConfig) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	timeout, _ := time.ParseDuration(cfg.ConnectTimeout)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}

	return &Client{
		driver:   driver,
		database: cfg.Database,
	}, nil
}

// ============================================================================
// Generic Query Methods
// ============================================================================

// Run executes a read Cypher query and returns results as []map[string]any
func (s *Client) Run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("cypher execution failed: %w", err)
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect results: %w", err)
	}

	results := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row := make(map[string]any)
		for _, key := range record.Keys {
			val, _ := record.Get(key)
			row[key] = convertValue(val)
		}
		results = append(results, row)
	}

	return results, nil
}

// RunWriteBatch executes multiple write Cypher queries in a single transaction
func (s *Client) RunWriteBatch(ctx context.Context, queries []string, paramsList []map[string]any) error {
	if len(queries) != len(paramsList) {
		return fmt.Errorf("queries and params length mismatch")
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for i, query := range queries {
			if _, err := tx.Run(ctx, query, paramsList[i]); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})

	return err
}

// ============================================================================
// Utility Methods
// ============================================================================

// Health checks Neo4j connection
func (s *Client) Health(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

// Close closes the Neo4j connection
func (s *Client) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// convertValue converts Neo4j types to Go types
func convertValue(val any) any {
	switch v := val.(type) {
	case neo4j.Node:
		return v.Props
	case neo4j.Relationship:
		return v.Props
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = convertValue(item)
		}
		return out
	default:
		return val
	}
}
