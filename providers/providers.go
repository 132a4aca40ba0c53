// Package providers builds the embedding and chat backends from configuration.
package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/genai"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Options selects a backend and model.
type Options struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

func newOllama(opts Options) (*ollama.LLM, error) {
	llmOpts := []ollama.Option{ollama.WithModel(opts.Model)}
	if opts.BaseURL != "" {
		llmOpts = append(llmOpts, ollama.WithServerURL(opts.BaseURL))
	}
	llm, err := ollama.New(llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return llm, nil
}

func newOpenAI(opts Options, embedding bool) (*openai.LLM, error) {
	var llmOpts []openai.Option
	if embedding {
		llmOpts = append(llmOpts, openai.WithEmbeddingModel(opts.Model))
	} else {
		llmOpts = append(llmOpts, openai.WithModel(opts.Model))
	}
	if opts.APIKey != "" {
		llmOpts = append(llmOpts, openai.WithToken(opts.APIKey))
	}
	if opts.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(opts.BaseURL))
	}
	llm, err := openai.New(llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return llm, nil
}

func newGemini(ctx context.Context, opts Options) (*genai.Client, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w. Make sure GEMINI_API_KEY is set", err)
	}
	return client, nil
}
