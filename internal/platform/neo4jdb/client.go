package neo4jdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type Config struct {
	URI         string
	User        string
	Password    string
	Database    string
	Timeout     time.Duration
	MaxPoolSize int
}

type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

// New connects and verifies the driver. It returns (nil, nil) when no URI is configured.
func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}
	uri := strings.TrimSpace(cfg.URI)
	if uri == "" {
		return nil, nil
	}
	user := strings.TrimSpace(cfg.User)
	if user == "" {
		user = "neo4j"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxPool := cfg.MaxPoolSize
	if maxPool <= 0 {
		maxPool = 50
	}

	auth := neo4j.BasicAuth(user, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = maxPool
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jdb: verify connectivity: %w", err)
	}

	return &Client{
		Driver:   driver,
		Database: strings.TrimSpace(cfg.Database),
		log:      log.With("client", "Neo4jDB"),
	}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return fmt.Errorf("neo4jdb: not connected")
	}
	return c.Driver.VerifyConnectivity(ctx)
}

// ReadRows runs cypher in a read session and returns each record as a map.
func (c *Client) ReadRows(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if c == nil || c.Driver == nil {
		return nil, fmt.Errorf("neo4jdb: not connected")
	}
	res, err := neo4j.ExecuteQuery(ctx, c.Driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.Database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: read: %w", err)
	}
	out := make([]map[string]any, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, rec.AsMap())
	}
	return out, nil
}

// Write runs cypher in a write session.
func (c *Client) Write(ctx context.Context, cypher string, params map[string]any) error {
	if c == nil || c.Driver == nil {
		return fmt.Errorf("neo4jdb: not connected")
	}
	_, err := neo4j.ExecuteQuery(ctx, c.Driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.Database),
		neo4j.ExecuteQueryWithWritersRouting(),
	)
	if err != nil {
		return fmt.Errorf("neo4jdb: write: %w", err)
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
