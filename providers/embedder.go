package providers

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"google.golang.org/genai"

	"github.com/bootiful-ai/carina-rag/stores"
)

// geminiBatchSize is the most contents the Gemini API embeds per request.
const geminiBatchSize = 100

// NewEmbedder returns the embedder for opts.Provider.
func NewEmbedder(ctx context.Context, opts Options) (stores.Embedder, error) {
	switch opts.Provider {
	case ProviderOllama, "":
		llm, err := newOllama(opts)
		if err != nil {
			return nil, err
		}
		return newLangChainEmbedder(llm)
	case ProviderOpenAI:
		llm, err := newOpenAI(opts, true)
		if err != nil {
			return nil, err
		}
		return newLangChainEmbedder(llm)
	case ProviderGemini:
		client, err := newGemini(ctx, opts)
		if err != nil {
			return nil, err
		}
		return &GeminiEmbedder{client: client, model: opts.Model}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}
}

func newLangChainEmbedder(client embeddings.EmbedderClient) (stores.Embedder, error) {
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// GeminiEmbedder embeds text with the Gemini embedding models.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiBatchSize {
		end := min(start+geminiBatchSize, len(texts))
		contents := make([]*genai.Content, 0, end-start)
		for _, t := range texts[start:end] {
			contents = append(contents, genai.Text(t)...)
		}
		resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
		if err != nil {
			return nil, fmt.Errorf("gemini embedding call failed: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}
		for _, emb := range resp.Embeddings {
			out = append(out, emb.Values)
		}
	}
	return out, nil
}

func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
