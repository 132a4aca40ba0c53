package services

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/bootiful-ai/carina-rag/models"
)

// systemPromptTemplate sets the Carina persona. {documents} receives the retrieved context.
const systemPromptTemplate = `
You're assisting with questions about services offered by Carina.
Carina is a two-sided healthcare marketplace focusing on home care aides (caregivers)
and their Medicaid in-home care clients (adults and children with developmental disabilities and low income elderly population).
Carina's mission is to build online tools to bring good jobs to care workers, so care workers can provide the
best possible care for those who need it.

Use the information from the DOCUMENTS section to provide accurate answers but act as if you knew this information innately.
If unsure, simply state that you don't know.

DOCUMENTS:
{documents}

`

// DefaultQuestion is asked when no question is configured.
const DefaultQuestion = "What should I know about the transition to Consumer Direct Care Network Washington (CDWA)?"

var systemPrompt = prompts.PromptTemplate{
	Template:       systemPromptTemplate,
	InputVariables: []string{"documents"},
	TemplateFormat: prompts.TemplateFormatFString,
}

// BuildPrompt returns the system message with the retrieved chunks followed by
// the user's question. Chunks are joined in rank order, one per line.
func BuildPrompt(chunks []models.Chunk, question string) ([]models.Message, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	system, err := systemPrompt.Format(map[string]any{
		"documents": strings.Join(texts, "\n"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render system prompt: %w", err)
	}

	return []models.Message{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: question},
	}, nil
}
