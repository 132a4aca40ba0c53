package stores

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/bootiful-ai/carina-rag/models"
)

const testDimensions = 4096

// wordEmbedder is a deterministic bag-of-words embedder. Texts sharing words
// land close together, which is enough to check ranking without a model.
type wordEmbedder struct {
	err error
}

func (e wordEmbedder) embed(text string) []float32 {
	vec := make([]float32, testDimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%testDimensions]++
	}
	return vec
}

func (e wordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e wordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.embed(text), nil
}

var errEmbed = errors.New("embedding model unavailable")

const cdwaQuestion = "What should I know about the transition to Consumer Direct Care Network Washington (CDWA)?"

func faqChunks() []models.Chunk {
	texts := []string{
		"Timesheets are due every other Friday.",
		"Members transition to CDWA on July 1.",
		"Overtime rules stay the same.",
		"Individual providers keep their current clients.",
		"Payroll moves to the new employer of record.",
		"Direct deposit forms are available online.",
	}
	chunks := make([]models.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = models.Chunk{
			ID:   uuid.NewString(),
			Text: t,
			Metadata: models.ChunkMetadata{
				DocumentID: "doc-1",
				FileName:   "faq.pdf",
				PageNumber: i/2 + 1,
			},
		}
	}
	return chunks
}
