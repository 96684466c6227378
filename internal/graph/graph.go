// Package graph wraps the Neo4j driver behind the two operations the
// pipeline needs: batched writes and buffered reads. Every call runs in its
// own session so concurrent workers never share one.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"mspro-labs/book-buddy/internal/logging"
)

// WriteSummary carries the counters a write produced. The loader uses the
// relationship counter to report rows whose endpoints did not exist.
type WriteSummary struct {
	NodesCreated         int
	RelationshipsCreated int
	PropertiesSet        int
}

type Store struct {
	driver   neo4j.DriverWithContext
	database string
	log      *logging.Logger
}

// Config holds the connection settings for Connect.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
	MaxPool  int
	Timeout  time.Duration
}

// Connect builds the driver and verifies connectivity before returning, so a
// bad endpoint fails at startup rather than mid-load.
func Connect(ctx context.Context, cfg Config, log *logging.Logger) (*Store, error) {
	if cfg.MaxPool <= 0 {
		cfg.MaxPool = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPool
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return &Store{driver: driver, database: cfg.Database, log: log.With("component", "graph")}, nil
}

func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// RunWrite executes one parameterized write statement inside a managed write
// transaction and returns its counters.
func (s *Store) RunWrite(ctx context.Context, query string, params map[string]any) (WriteSummary, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		c := summary.Counters()
		return WriteSummary{
			NodesCreated:         c.NodesCreated(),
			RelationshipsCreated: c.RelationshipsCreated(),
			PropertiesSet:        c.PropertiesSet(),
		}, nil
	})
	if err != nil {
		return WriteSummary{}, fmt.Errorf("write failed: %w", err)
	}
	return out.(WriteSummary), nil
}

// RunWriteRecords executes a write statement that also returns rows (e.g. a
// trailing aggregate count) and buffers every record as a map.
func (s *Store) RunWriteRecords(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		var rows []map[string]any
		for res.Next(ctx) {
			rows = append(rows, res.Record().AsMap())
		}
		return rows, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}
	rows, _ := out.([]map[string]any)
	return rows, nil
}

// RunRead executes a read statement and buffers every record as a map.
func (s *Store) RunRead(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		var rows []map[string]any
		for res.Next(ctx) {
			rows = append(rows, res.Record().AsMap())
		}
		return rows, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	rows, _ := out.([]map[string]any)
	return rows, nil
}

// CreateVectorIndex provisions a cosine similarity index over a node
// property. IF NOT EXISTS makes duplicate or racing calls no-ops.
func (s *Store) CreateVectorIndex(ctx context.Context, name, label, property string, dimensions int) error {
	if err := ValidateEmbeddingProperty(label, property); err != nil {
		return err
	}
	if dimensions <= 0 {
		return fmt.Errorf("refusing to create index %q with dimensionality %d", name, dimensions)
	}
	query := fmt.Sprintf(`CREATE VECTOR INDEX %s IF NOT EXISTS
FOR (n:%s) ON (n.%s)
OPTIONS {indexConfig: {`+"`vector.dimensions`"+`: $dimensions, `+"`vector.similarity_function`"+`: 'cosine'}}`,
		name, label, property)
	if _, err := s.RunWrite(ctx, query, map[string]any{"dimensions": dimensions}); err != nil {
		return fmt.Errorf("failed to create vector index %q: %w", name, err)
	}
	s.log.Info("vector index ready", "index", name, "label", label, "property", property, "dimensions", dimensions)
	return nil
}

// Wipe deletes all nodes and relationships in transaction-sized chunks, then
// drops every index and constraint. Test and reset environments only.
func (s *Store) Wipe(ctx context.Context) error {
	s.log.Warn("wiping database")

	// CALL IN TRANSACTIONS only runs in an implicit transaction, so this
	// one statement bypasses the managed-transaction helpers.
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	res, err := session.Run(ctx, `MATCH (n) CALL { WITH n DETACH DELETE n } IN TRANSACTIONS OF 10000 ROWS`, nil)
	if err == nil {
		_, err = res.Consume(ctx)
	}
	session.Close(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete nodes: %w", err)
	}

	constraints, err := s.RunRead(ctx, `SHOW CONSTRAINTS YIELD name RETURN name`, nil)
	if err != nil {
		return fmt.Errorf("failed to list constraints: %w", err)
	}
	for _, row := range constraints {
		if name, ok := row["name"].(string); ok {
			if _, err := s.RunWrite(ctx, fmt.Sprintf("DROP CONSTRAINT %s IF EXISTS", name), nil); err != nil {
				return fmt.Errorf("failed to drop constraint %q: %w", name, err)
			}
		}
	}

	indexes, err := s.RunRead(ctx, `SHOW INDEXES YIELD name RETURN name`, nil)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, row := range indexes {
		if name, ok := row["name"].(string); ok {
			if _, err := s.RunWrite(ctx, fmt.Sprintf("DROP INDEX %s IF EXISTS", name), nil); err != nil {
				return fmt.Errorf("failed to drop index %q: %w", name, err)
			}
		}
	}
	s.log.Warn("database wiped")
	return nil
}
