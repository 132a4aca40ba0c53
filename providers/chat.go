package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"google.golang.org/genai"

	"github.com/bootiful-ai/carina-rag/models"
)

// ChatClient sends a prompt to a chat-completion backend and returns the answer text.
type ChatClient interface {
	Complete(ctx context.Context, messages []models.Message) (string, error)
}

// ChatOptions adds sampling settings to the backend selection.
type ChatOptions struct {
	Options
	Temperature float64
}

// NewChatClient returns the chat client for opts.Provider.
func NewChatClient(ctx context.Context, opts ChatOptions) (ChatClient, error) {
	switch opts.Provider {
	case ProviderOllama, "":
		llm, err := newOllama(opts.Options)
		if err != nil {
			return nil, err
		}
		return NewLangChainChat(llm, opts.Temperature), nil
	case ProviderOpenAI:
		llm, err := newOpenAI(opts.Options, false)
		if err != nil {
			return nil, err
		}
		return NewLangChainChat(llm, opts.Temperature), nil
	case ProviderGemini:
		client, err := newGemini(ctx, opts.Options)
		if err != nil {
			return nil, err
		}
		return &GeminiChat{client: client, model: opts.Model, temperature: opts.Temperature}, nil
	default:
		return nil, fmt.Errorf("unknown chat provider: %s", opts.Provider)
	}
}

// LangChainChat adapts any langchaingo model.
type LangChainChat struct {
	model       llms.Model
	temperature float64
}

func NewLangChainChat(model llms.Model, temperature float64) *LangChainChat {
	return &LangChainChat{model: model, temperature: temperature}
}

func (c *LangChainChat) Complete(ctx context.Context, messages []models.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == models.RoleSystem {
			role = llms.ChatMessageTypeSystem
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	resp, err := c.model.GenerateContent(ctx, content, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// GeminiChat talks to Gemini. System messages become the system instruction.
type GeminiChat struct {
	client      *genai.Client
	model       string
	temperature float64
}

func (c *GeminiChat) Complete(ctx context.Context, messages []models.Message) (string, error) {
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		contents = append(contents, genai.Text(m.Content)...)
	}

	temperature := float32(c.temperature)
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if len(system) > 0 {
		if instruction := genai.Text(strings.Join(system, "\n")); len(instruction) > 0 {
			config.SystemInstruction = instruction[0]
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var responseText strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p.Text != "" {
			responseText.WriteString(p.Text)
		}
	}
	return responseText.String(), nil
}
