package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/bootiful-ai/carina-rag/models"
)

func init() {
	// BPE ranks ship with the binary; no download at runtime.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// TextSplitter divides pages into chunks ready for embedding. Page metadata
// is copied onto every chunk produced from it.
type TextSplitter interface {
	Split(pages []models.Page) ([]models.Chunk, error)
}

// TokenSplitterConfig mirrors the knobs of a token-window splitter.
type TokenSplitterConfig struct {
	Encoding              string
	ChunkSize             int
	MinChunkSizeChars     int
	MinChunkLengthToEmbed int
	MaxNumChunks          int
	KeepSeparator         bool
}

func DefaultTokenSplitterConfig() TokenSplitterConfig {
	return TokenSplitterConfig{
		Encoding:              "cl100k_base",
		ChunkSize:             800,
		MinChunkSizeChars:     350,
		MinChunkLengthToEmbed: 5,
		MaxNumChunks:          10000,
		KeepSeparator:         true,
	}
}

// TokenSplitter cuts text into windows of at most ChunkSize tokens, pulling
// each window back to the last sentence boundary when one is far enough in.
type TokenSplitter struct {
	config   TokenSplitterConfig
	encoding *tiktoken.Tiktoken
}

func NewTokenSplitter(config TokenSplitterConfig) (*TokenSplitter, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.Encoding == "" {
		config.Encoding = "cl100k_base"
	}
	if config.MaxNumChunks <= 0 {
		config.MaxNumChunks = DefaultTokenSplitterConfig().MaxNumChunks
	}
	enc, err := tiktoken.GetEncoding(config.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding %q: %w", config.Encoding, err)
	}
	return &TokenSplitter{config: config, encoding: enc}, nil
}

func (s *TokenSplitter) Split(pages []models.Page) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, page := range pages {
		for _, text := range s.SplitText(page.Text) {
			chunks = append(chunks, newChunk(page, text))
		}
	}
	return chunks, nil
}

// SplitText returns the chunk texts for a single block of text. Windows are
// counted in tokens but cut on character boundaries: a token can hold part of
// a multi-byte character, and such a token is carried into the next window.
func (s *TokenSplitter) SplitText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	stream, offsets := s.tokenize(text)
	numTokens := len(offsets) - 1

	var out []string
	tok, pos := 0, 0 // first token not yet fully consumed, byte position in stream
	numChunks := 0
	for pos < len(stream) && numChunks < s.config.MaxNumChunks {
		end := min(tok+s.config.ChunkSize, numTokens)
		start, stop := wholeRunes(stream, pos, offsets[end])
		for start == stop && end < numTokens {
			end++
			start, stop = wholeRunes(stream, pos, offsets[end])
		}

		chunkText := stream[start:stop]
		cut := stop
		if strings.TrimSpace(chunkText) != "" {
			lastPunctuation := max(
				strings.LastIndex(chunkText, "."),
				strings.LastIndex(chunkText, "?"),
				strings.LastIndex(chunkText, "!"),
				strings.LastIndex(chunkText, "\n"),
			)
			if lastPunctuation != -1 && lastPunctuation > s.config.MinChunkSizeChars {
				chunkText = chunkText[:lastPunctuation+1]
				cut = start + lastPunctuation + 1
			}
			if toAppend := s.clean(chunkText); len(toAppend) > s.config.MinChunkLengthToEmbed {
				out = append(out, toAppend)
			}
			numChunks++
		}

		if cut <= pos {
			// Only broken bytes remain.
			break
		}
		pos = cut
		for tok < numTokens && offsets[tok+1] <= pos {
			tok++
		}
	}

	if pos < len(stream) {
		start, stop := wholeRunes(stream, pos, len(stream))
		remaining := strings.TrimSpace(strings.ReplaceAll(stream[start:stop], "\n", " "))
		if len(remaining) > s.config.MinChunkLengthToEmbed {
			out = append(out, remaining)
		}
	}
	return out
}

// tokenize returns the decoded token stream and the byte offset at which each
// token starts. offsets has one extra entry holding the stream length.
func (s *TokenSplitter) tokenize(text string) (string, []int) {
	tokens := s.encoding.Encode(text, nil, nil)
	offsets := make([]int, len(tokens)+1)
	var b strings.Builder
	for i, t := range tokens {
		b.WriteString(s.encoding.Decode([]int{t}))
		offsets[i+1] = b.Len()
	}
	return b.String(), offsets
}

// wholeRunes narrows text[from:to] to complete UTF-8 sequences.
func wholeRunes(text string, from, to int) (int, int) {
	for from < to && !utf8.RuneStart(text[from]) {
		from++
	}
	for i := to - 1; i >= from && i >= to-utf8.UTFMax; i-- {
		if utf8.RuneStart(text[i]) {
			if !utf8.FullRuneInString(text[i:to]) {
				to = i
			}
			break
		}
	}
	return from, to
}

func (s *TokenSplitter) clean(text string) string {
	if !s.config.KeepSeparator {
		text = strings.ReplaceAll(text, "\n", " ")
	}
	return strings.TrimSpace(text)
}

// RecursiveSplitter splits on paragraph, line and word boundaries by
// character count.
type RecursiveSplitter struct {
	splitter textsplitter.RecursiveCharacter
}

func NewRecursiveSplitter(chunkSize, chunkOverlap int) *RecursiveSplitter {
	return &RecursiveSplitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

func (s *RecursiveSplitter) Split(pages []models.Page) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, page := range pages {
		texts, err := s.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", page.Number, err)
		}
		for _, text := range texts {
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunks = append(chunks, newChunk(page, text))
		}
	}
	return chunks, nil
}

func newChunk(page models.Page, text string) models.Chunk {
	return models.Chunk{
		ID:   uuid.NewString(),
		Text: text,
		Metadata: models.ChunkMetadata{
			DocumentID: page.DocumentID,
			FileName:   page.FileName,
			PageNumber: page.Number,
		},
	}
}
