// Package pgvector is the in-database dense retrieval backend. It serves the
// same role as the Qdrant client but keeps chunk embeddings in PostgreSQL,
// which removes one moving part for deployments that already run Postgres for
// contract metadata.
package pgvector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/covenantlabs/covenant/internal/core/domain"
	"github.com/covenantlabs/covenant/internal/core/ports"
)

// schemaLockKey serializes EnsureSchema across replicas starting against the
// same database.
const schemaLockKey = int64(2026082502)

// PoolConfig holds tunable parameters for the PostgreSQL connection pool.
type PoolConfig struct {
	MaxConns int
	MinConns int
}

// NewPool creates a pgx connection pool with pgvector types registered on
// every connection.
func NewPool(ctx context.Context, dsn string, opts ...PoolConfig) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(opts) > 0 && opts[0].MaxConns > 0 {
		config.MaxConns = int32(opts[0].MaxConns)
	} else {
		config.MaxConns = 10
	}
	if len(opts) > 0 && opts[0].MinConns > 0 {
		config.MinConns = int32(opts[0].MinConns)
	} else {
		config.MinConns = 2
	}

	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return pool, nil
}

// Store answers vector searches with a cosine-distance scan over the
// contract_chunks table. The query text is embedded through the embedder
// collaborator before hitting the database.
type Store struct {
	pool     *pgxpool.Pool
	embedder ports.Embedder
}

func NewStore(pool *pgxpool.Pool, embedder ports.Embedder) *Store {
	return &Store{pool: pool, embedder: embedder}
}

// EnsureSchema creates the chunk table and its vector index. dims must match
// the embedding model; rows written with another dimension are rejected by
// the column type.
func (s *Store) EnsureSchema(ctx context.Context, dims int) error {
	if dims <= 0 {
		return domain.WrapError(domain.ErrConfiguration, "ensure chunk schema",
			fmt.Errorf("embedding dimensions must be positive, got %d", dims))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", schemaLockKey); err != nil {
		return fmt.Errorf("failed to take schema lock: %w", err)
	}

	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS contract_chunks (
			chunk_id      TEXT PRIMARY KEY,
			document_id   TEXT NOT NULL,
			section_type  TEXT NOT NULL DEFAULT '',
			clause_number TEXT NOT NULL DEFAULT '',
			page_num      INTEGER NOT NULL DEFAULT 0,
			span_start    INTEGER NOT NULL DEFAULT 0,
			span_end      INTEGER NOT NULL DEFAULT 0,
			source_uri    TEXT NOT NULL DEFAULT '',
			body          TEXT NOT NULL DEFAULT '',
			effective_date DATE,
			embedding     vector(%d) NOT NULL
		)`, dims),
		"CREATE INDEX IF NOT EXISTS idx_contract_chunks_document_id ON contract_chunks (document_id)",
		"CREATE INDEX IF NOT EXISTS idx_contract_chunks_embedding ON contract_chunks USING hnsw (embedding vector_cosine_ops)",
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply chunk schema: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunk schema: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, queryText string, filters domain.SearchFilters, k int) ([]domain.RankedHit, error) {
	vector, err := s.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, err
	}

	query, args := buildSearchQuery(pgvec.NewVector(vector), filters, k)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "vector search", err)
	}
	defer rows.Close()

	var hits []domain.RankedHit
	for rows.Next() {
		var (
			hit   domain.RankedHit
			score float64
		)
		if err := rows.Scan(
			&hit.ChunkID,
			&hit.DocumentID,
			&hit.SectionType,
			&hit.ClauseNumber,
			&hit.PageNum,
			&hit.SpanStart,
			&hit.SpanEnd,
			&hit.SourceURI,
			&hit.Text,
			&score,
		); err != nil {
			return nil, domain.WrapError(domain.ErrBackendUnavailable, "vector search",
				fmt.Errorf("failed to scan chunk: %w", err))
		}
		hit.BackendRank = len(hits) + 1
		hit.BackendScore = score
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "vector search",
			fmt.Errorf("rows error: %w", err))
	}
	return hits, nil
}

// buildSearchQuery renders the cosine-distance scan with the push-down
// filters appended as WHERE conditions. The reported score is cosine
// similarity so that higher still means closer, matching the other backend.
func buildSearchQuery(vector pgvec.Vector, filters domain.SearchFilters, k int) (string, []any) {
	args := []any{vector}
	var conds []string
	if filters.DocumentID != "" {
		args = append(args, filters.DocumentID)
		conds = append(conds, fmt.Sprintf("document_id = $%d", len(args)))
	}
	if dr := filters.DateRange; dr != nil {
		args = append(args, dr.Start)
		conds = append(conds, fmt.Sprintf("effective_date >= $%d", len(args)))
		args = append(args, dr.End)
		conds = append(conds, fmt.Sprintf("effective_date <= $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ") + "\n\t\t"
	}

	args = append(args, k)
	query := fmt.Sprintf(`
		SELECT chunk_id, document_id, section_type, clause_number, page_num,
		       span_start, span_end, source_uri, body,
		       1 - (embedding <=> $1) AS score
		FROM contract_chunks
		%sORDER BY embedding <=> $1
		LIMIT $%d
	`, where, len(args))
	return query, args
}
