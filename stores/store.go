// Package stores holds the vector store backends. Each backend embeds text
// itself, so callers only deal in chunks and query strings.
package stores

import (
	"context"

	"github.com/bootiful-ai/carina-rag/models"
)

// Embedder converts text into vectors. It matches the langchaingo embeddings.Embedder shape.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists chunks and answers similarity queries.
type VectorStore interface {
	// Clear removes every stored chunk.
	Clear(ctx context.Context) error
	// Insert embeds and stores the chunks as one batch.
	Insert(ctx context.Context, chunks []models.Chunk) error
	// Search returns at most k chunks, most relevant first. An empty store yields no chunks.
	Search(ctx context.Context, query string, k int) ([]models.Chunk, error)
	Close() error
}

func chunkTexts(chunks []models.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}
