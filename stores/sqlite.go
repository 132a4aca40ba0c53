package stores

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/bootiful-ai/carina-rag/models"
)

const docsSchema = `
CREATE TABLE IF NOT EXISTS docs (
    id TEXT PRIMARY KEY,
    content TEXT,
    meta TEXT,
    embedding BLOB
);
`

// SQLiteStore keeps chunks in a local SQLite file and ranks them by brute-force
// cosine similarity. It suits single-document corpora.
type SQLiteStore struct {
	db       *sql.DB
	embedder Embedder
	log      *logrus.Entry
}

// OpenSQLite opens (or creates) the database at path. ":memory:" is accepted.
func OpenSQLite(path string, embedder Embedder) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)
	store, err := NewSQLiteStore(db, embedder)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewSQLiteStore(db *sql.DB, embedder Embedder) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("stores: db is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("stores: embedder is nil")
	}
	if _, err := db.Exec(docsSchema); err != nil {
		return nil, fmt.Errorf("failed to create docs table: %w", err)
	}
	return &SQLiteStore{
		db:       db,
		embedder: embedder,
		log:      logrus.WithFields(logrus.Fields{"component": "store", "backend": "sqlite"}),
	}, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM docs`)
	if err != nil {
		return fmt.Errorf("failed to clear docs: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.log.Debugf("Cleared %d chunks", n)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, chunkTexts(chunks))
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO docs(id, content, meta, embedding) VALUES(?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range chunks {
		meta, err := sonic.MarshalString(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata of chunk %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Text, meta, EncodeEmbedding(vectors[i])); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debugf("Inserted %d chunks", len(chunks))
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	count, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []models.Chunk{}, nil
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, meta, embedding FROM docs ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		chunk models.Chunk
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var (
			c    models.Chunk
			meta string
			blob []byte
		)
		if err := rows.Scan(&c.ID, &c.Text, &meta, &blob); err != nil {
			return nil, err
		}
		if meta != "" {
			if err := sonic.UnmarshalString(meta, &c.Metadata); err != nil {
				s.log.Warnf("could not decode metadata for chunk %s: %v", c.ID, err)
			}
		}
		vec, err := DecodeEmbedding(blob)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, scored{chunk: c, score: CosineSimilarity(queryVec, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]models.Chunk, len(candidates))
	for i, c := range candidates {
		out[i] = c.chunk
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM docs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count docs: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ VectorStore = (*SQLiteStore)(nil)
