// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/AleutianAI/ngscope/services/ngscope/config"
)

// DefaultBatchSize is the number of rows sent per UNWIND statement.
const DefaultBatchSize = 500

// ErrNoGraph is returned when Export is called without a graph.
var ErrNoGraph = errors.New("graph must not be nil")

var schemaStatements = []string{
	"CREATE CONSTRAINT ng_entity_key IF NOT EXISTS FOR (n:NgEntity) REQUIRE n.key IS UNIQUE",
	"CREATE CONSTRAINT ng_property_key IF NOT EXISTS FOR (n:NgProperty) REQUIRE n.key IS UNIQUE",
	"CREATE INDEX ng_entity_name IF NOT EXISTS FOR (n:NgEntity) ON (n.name)",
}

const entityCypher = `UNWIND $batch AS row
MERGE (n:NgEntity {key: row.key})
SET n.name = row.name, n.kind = row.kind, n.file = row.file, n.line = row.line,
    n.standalone = row.standalone, n.selector = row.selector, n.pipe_name = row.pipe_name,
    n.public = row.public, n.fully_resolved = row.fully_resolved, n.run_id = $run_id`

const propertyCypher = `UNWIND $batch AS row
MATCH (owner:NgEntity {key: row.owner})
MERGE (p:NgProperty {key: row.key})
SET p.name = row.name, p.kind = row.kind, p.source = row.source,
    p.required = row.required, p.virtual = row.virtual, p.run_id = $run_id
MERGE (owner)-[:HAS_PROPERTY]->(p)`

// edgeCypher returns the statement for one edge type. Relationship types
// cannot be parameters, so each type gets its own statement.
func edgeCypher(t EdgeType) string {
	return fmt.Sprintf(`UNWIND $batch AS row
MATCH (a:NgEntity {key: row.from}), (b:NgEntity {key: row.to})
MERGE (a)-[r:%s]->(b)
SET r.run_id = $run_id`, t)
}

// staleCypher removes nodes left over from earlier runs.
const staleCypher = `MATCH (n) WHERE (n:NgEntity OR n:NgProperty) AND n.run_id <> $run_id
DETACH DELETE n`

// runFunc executes one Cypher statement.
type runFunc func(ctx context.Context, cypher string, params map[string]any) error

// Neo4jExporter loads a Graph into Neo4j with batched UNWIND/MERGE
// statements.
//
// Thread Safety:
//
//	Safe for concurrent use; the driver manages its own connection pool.
type Neo4jExporter struct {
	driver    neo4j.DriverWithContext
	run       runFunc
	batchSize int
	logger    *slog.Logger
}

// NewNeo4jExporter connects to the database described by cfg.
//
// Outputs:
//
//	*Neo4jExporter - Ready to export. Close it when done.
//	error - Non-nil if the driver cannot be created or the server is
//	        unreachable.
func NewNeo4jExporter(ctx context.Context, cfg config.Neo4jConfig, logger *slog.Logger) (*Neo4jExporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j at %s: %w", cfg.URI, err)
	}

	e := &Neo4jExporter{driver: driver, batchSize: DefaultBatchSize, logger: logger}
	e.run = func(ctx context.Context, cypher string, params map[string]any) error {
		_, err := neo4j.ExecuteQuery(ctx, driver, cypher, params,
			neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(cfg.Database))
		return err
	}
	return e, nil
}

// Close releases the driver.
func (e *Neo4jExporter) Close(ctx context.Context) error {
	if e.driver == nil {
		return nil
	}
	return e.driver.Close(ctx)
}

// Export writes g, then deletes entities and properties from earlier runs.
//
// Description:
//
//	Schema constraints are created first, then entity nodes, property nodes
//	and edges are merged in batches. Every node and edge is stamped with
//	g.RunID; a successful export finishes by removing nodes with any other
//	run ID, so the database mirrors the latest scan.
//
// Outputs:
//
//	error - The first failing statement, wrapped with what was being loaded.
func (e *Neo4jExporter) Export(ctx context.Context, g *Graph) error {
	if g == nil {
		return ErrNoGraph
	}
	start := time.Now()

	for _, stmt := range schemaStatements {
		if err := e.run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	entities := make([]map[string]any, 0, len(g.Entities))
	for _, n := range g.Entities {
		entities = append(entities, map[string]any{
			"key": n.Key, "name": n.Name, "kind": n.Kind, "file": n.File, "line": n.Line,
			"standalone": n.Standalone, "selector": n.Selector, "pipe_name": n.PipeName,
			"public": n.Public, "fully_resolved": n.FullyResolved,
		})
	}
	if err := e.load(ctx, entityCypher, g.RunID, entities); err != nil {
		return fmt.Errorf("loading entities: %w", err)
	}

	properties := make([]map[string]any, 0, len(g.Properties))
	for _, p := range g.Properties {
		properties = append(properties, map[string]any{
			"key": p.Key, "owner": p.Owner, "name": p.Name, "kind": p.Kind,
			"source": p.Source, "required": p.Required, "virtual": p.Virtual,
		})
	}
	if err := e.load(ctx, propertyCypher, g.RunID, properties); err != nil {
		return fmt.Errorf("loading properties: %w", err)
	}

	for _, t := range EdgeTypes {
		edges := g.EdgesOf(t)
		rows := make([]map[string]any, 0, len(edges))
		for _, edge := range edges {
			rows = append(rows, map[string]any{"from": edge.From, "to": edge.To})
		}
		if err := e.load(ctx, edgeCypher(t), g.RunID, rows); err != nil {
			return fmt.Errorf("loading %s edges: %w", t, err)
		}
	}

	if err := e.run(ctx, staleCypher, map[string]any{"run_id": g.RunID}); err != nil {
		return fmt.Errorf("removing stale nodes: %w", err)
	}

	e.logger.Info("graph exported",
		slog.String("run_id", g.RunID),
		slog.Int("entities", len(g.Entities)),
		slog.Int("properties", len(g.Properties)),
		slog.Int("edges", len(g.Edges)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// load sends rows in batches of at most batchSize. Empty input sends nothing.
func (e *Neo4jExporter) load(ctx context.Context, cypher, runID string, rows []map[string]any) error {
	size := e.batchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	for start := 0; start < len(rows); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+size, len(rows))
		params := map[string]any{"batch": rows[start:end], "run_id": runID}
		if err := e.run(ctx, cypher, params); err != nil {
			return err
		}
	}
	return nil
}
