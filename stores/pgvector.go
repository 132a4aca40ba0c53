package stores

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/sirupsen/logrus"

	"github.com/bootiful-ai/carina-rag/models"
)

// PgVectorStore keeps chunks in a Postgres table using the pgvector extension.
// The layout matches the vector_store table used by the original deployment.
// Nothing connects until the first call, so an unreachable server only fails
// the operation that needs it.
type PgVectorStore struct {
	pool       *pgxpool.Pool
	table      string
	dimensions int
	embedder   Embedder
	log        *logrus.Entry

	mu          sync.Mutex
	schemaReady bool
}

// OpenPgVector configures a lazy pool whose connections ensure the vector
// extension and understand the vector type.
func OpenPgVector(ctx context.Context, dsn, table string, dimensions int, embedder Embedder) (*PgVectorStore, error) {
	if table == "" {
		table = "vector_store"
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("pgvector: dimensions must be positive, got %d", dimensions)
	}
	if embedder == nil {
		return nil, fmt.Errorf("stores: embedder is nil")
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
			return err
		}
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	return &PgVectorStore{
		pool:       pool,
		table:      pgx.Identifier{table}.Sanitize(),
		dimensions: dimensions,
		embedder:   embedder,
		log:        logrus.WithFields(logrus.Fields{"component": "store", "backend": "pgvector"}),
	}, nil
}

func (s *PgVectorStore) ensureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemaReady {
		return nil
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id uuid PRIMARY KEY,
    content text,
    metadata json,
    embedding vector(%d)
)`, s.table, s.dimensions))
	if err != nil {
		return fmt.Errorf("failed to prepare pgvector schema: %w", err)
	}
	s.schemaReady = true
	return nil
}

func (s *PgVectorStore) Clear(ctx context.Context) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table))
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", s.table, err)
	}
	s.log.Debugf("Cleared %d chunks", tag.RowsAffected())
	return nil
}

func (s *PgVectorStore) Insert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, chunkTexts(chunks))
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	insert := fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding) VALUES ($1, $2, $3, $4)`, s.table)
	batch := &pgx.Batch{}
	for i, c := range chunks {
		meta, err := sonic.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata of chunk %s: %w", c.ID, err)
		}
		batch.Queue(insert, c.ID, c.Text, meta, pgvector.NewVector(vectors[i]))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PgVectorStore) Search(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var count int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", s.table, err)
	}
	if count == 0 {
		return []models.Chunk{}, nil
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT id::text, content, metadata FROM %s ORDER BY embedding <=> $1 LIMIT $2`, s.table),
		pgvector.NewVector(queryVec), min(k, count),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", s.table, err)
	}
	defer rows.Close()

	out := make([]models.Chunk, 0, min(k, count))
	for rows.Next() {
		var (
			c    models.Chunk
			meta []byte
		)
		if err := rows.Scan(&c.ID, &c.Text, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := sonic.Unmarshal(meta, &c.Metadata); err != nil {
				s.log.Warnf("could not decode metadata for chunk %s: %v", c.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}

var _ VectorStore = (*PgVectorStore)(nil)
