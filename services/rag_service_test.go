package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bootiful-ai/carina-rag/models"
)

type fakeLoader struct {
	pages []models.Page
	err   error
}

func (f *fakeLoader) Load(_ context.Context, path string) ([]models.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	pages := make([]models.Page, len(f.pages))
	for i, p := range f.pages {
		p.FileName = filepath.Base(path)
		pages[i] = p
	}
	return pages, nil
}

type fakeStore struct {
	mu        sync.Mutex
	chunks    []models.Chunk
	clearErr  error
	insertErr error
	searchErr error
	clears    int
	lastK     int
}

func (f *fakeStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.clears++
	f.chunks = nil
	return nil
}

func (f *fakeStore) Insert(_ context.Context, chunks []models.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ string, k int) ([]models.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return append([]models.Chunk(nil), f.chunks...), nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) snapshot() []models.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Chunk(nil), f.chunks...)
}

type fakeChat struct {
	answer   string
	err      error
	block    bool
	messages []models.Message
}

func (f *fakeChat) Complete(ctx context.Context, messages []models.Message) (string, error) {
	f.messages = messages
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

var faqPages = []models.Page{
	{Number: 1, DocumentID: "doc-1", Text: faqText},
	{Number: 2, DocumentID: "doc-1", Text: "Timesheets are due every other Friday through the new portal."},
}

func newTestService(t *testing.T, loader *fakeLoader, store *fakeStore, chat *fakeChat, cfg RAGConfig) (RAGService, string) {
	t.Helper()
	dir := t.TempDir()
	fa, err := NewFileActions(dir)
	require.NoError(t, err)
	return NewRAGService(loader, smallSplitter(t), store, chat, fa, cfg), dir
}

func chunkContents(chunks []models.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text + "|" + c.Metadata.FileName + "|" + c.Metadata.DocumentID
	}
	return out
}

func TestIngest_ReplacesStoreContents(t *testing.T) {
	store := &fakeStore{chunks: []models.Chunk{{ID: "stale", Text: "old content"}}}
	svc, _ := newTestService(t, &fakeLoader{pages: faqPages}, store, &fakeChat{}, RAGConfig{})

	resp, err := svc.Ingest(context.Background(), "faq.pdf")
	require.NoError(t, err)

	assert.Equal(t, "doc-1", resp.DocumentID)
	assert.Equal(t, 2, resp.Pages)
	assert.Equal(t, len(store.snapshot()), resp.Chunks)
	for _, c := range store.snapshot() {
		assert.NotEqual(t, "stale", c.ID)
		assert.Equal(t, "faq.pdf", c.Metadata.FileName)
	}
}

func TestIngest_IsIdempotent(t *testing.T) {
	store := &fakeStore{}
	svc, _ := newTestService(t, &fakeLoader{pages: faqPages}, store, &fakeChat{}, RAGConfig{})

	_, err := svc.Ingest(context.Background(), "faq.pdf")
	require.NoError(t, err)
	first := chunkContents(store.snapshot())

	_, err = svc.Ingest(context.Background(), "faq.pdf")
	require.NoError(t, err)

	assert.Equal(t, first, chunkContents(store.snapshot()))
	assert.Equal(t, 2, store.clears)
}

func TestIngest_MissingPDFLeavesStoreUntouched(t *testing.T) {
	existing := []models.Chunk{{ID: "kept", Text: "still here"}}
	store := &fakeStore{chunks: existing}
	loader := NewPDFLoader(PDFLoaderConfig{BottomLines: 3})
	fa, err := NewFileActions(t.TempDir())
	require.NoError(t, err)
	svc := NewRAGService(loader, smallSplitter(t), store, &fakeChat{}, fa, RAGConfig{})

	_, err = svc.Ingest(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))

	require.ErrorIs(t, err, ErrResourceNotFound)
	assert.Equal(t, existing, store.snapshot())
	assert.Zero(t, store.clears)
}

func TestIngest_EmptyPath(t *testing.T) {
	svc, _ := newTestService(t, &fakeLoader{pages: faqPages}, &fakeStore{}, &fakeChat{}, RAGConfig{})

	_, err := svc.Ingest(context.Background(), "")

	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestIngest_StorageFailures(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("clear", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeLoader{pages: faqPages}, &fakeStore{clearErr: boom}, &fakeChat{}, RAGConfig{})
		_, err := svc.Ingest(context.Background(), "faq.pdf")
		assert.ErrorIs(t, err, ErrStorageWrite)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("insert", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeLoader{pages: faqPages}, &fakeStore{insertErr: boom}, &fakeChat{}, RAGConfig{})
		_, err := svc.Ingest(context.Background(), "faq.pdf")
		assert.ErrorIs(t, err, ErrStorageWrite)
	})
}

func TestAsk_UsesRetrievedChunks(t *testing.T) {
	store := &fakeStore{chunks: []models.Chunk{
		{Text: "first"}, {Text: "second"}, {Text: "third"}, {Text: "fourth"}, {Text: "fifth"}, {Text: "sixth"},
	}}
	chat := &fakeChat{answer: "CDWA becomes the employer on July 1."}
	svc, _ := newTestService(t, &fakeLoader{}, store, chat, RAGConfig{})

	resp, err := svc.Ask(context.Background(), models.AskRequest{Question: DefaultQuestion})
	require.NoError(t, err)

	assert.Equal(t, DefaultTopK, store.lastK)
	assert.Len(t, resp.Sources, DefaultTopK)
	assert.Equal(t, "CDWA becomes the employer on July 1.", resp.Answer)
	require.Len(t, chat.messages, 2)
	assert.Contains(t, chat.messages[0].Content, "first\nsecond\nthird\nfourth")
	assert.NotContains(t, chat.messages[0].Content, "fifth")
	assert.Equal(t, DefaultQuestion, chat.messages[1].Content)
}

func TestAsk_ExplicitTopK(t *testing.T) {
	store := &fakeStore{chunks: []models.Chunk{{Text: "a"}, {Text: "b"}, {Text: "c"}}}
	svc, _ := newTestService(t, &fakeLoader{}, store, &fakeChat{answer: "ok"}, RAGConfig{TopK: 3})

	resp, err := svc.Ask(context.Background(), models.AskRequest{Question: "q", TopK: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, store.lastK)
	assert.Len(t, resp.Sources, 1)
}

func TestAsk_SearchFailureFallsBackToEmptyContext(t *testing.T) {
	chat := &fakeChat{answer: "I don't know."}
	svc, _ := newTestService(t, &fakeLoader{}, &fakeStore{searchErr: errors.New("timeout")}, chat, RAGConfig{})

	resp, err := svc.Ask(context.Background(), models.AskRequest{Question: "q"})
	require.NoError(t, err)

	assert.Empty(t, resp.Sources)
	assert.Equal(t, "I don't know.", resp.Answer)
	assert.Contains(t, chat.messages[0].Content, "DOCUMENTS:\n\n")
}

func TestAsk_ChatFailure(t *testing.T) {
	boom := errors.New("model not found")
	svc, _ := newTestService(t, &fakeLoader{}, &fakeStore{}, &fakeChat{err: boom}, RAGConfig{})

	_, err := svc.Ask(context.Background(), models.AskRequest{Question: "q"})

	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, boom)
}

func TestAsk_ChatTimeout(t *testing.T) {
	svc, _ := newTestService(t, &fakeLoader{}, &fakeStore{}, &fakeChat{block: true}, RAGConfig{ChatTimeout: 20 * time.Millisecond})

	_, err := svc.Ask(context.Background(), models.AskRequest{Question: "q"})

	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRun_EmptyStoreWritesAnswer(t *testing.T) {
	svc, dir := newTestService(t, &fakeLoader{}, &fakeStore{}, &fakeChat{answer: "I don't know."}, RAGConfig{})

	_, err := svc.Run(context.Background(), models.RunRequest{Question: "Who is Carina?", OutputPath: "output.txt"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "output.txt"))
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", string(data))
}

func TestRun_ReindexThenAsk(t *testing.T) {
	store := &fakeStore{}
	chat := &fakeChat{answer: "Payroll moves to CDWA."}
	svc, dir := newTestService(t, &fakeLoader{pages: faqPages}, store, chat, RAGConfig{})

	resp, err := svc.Run(context.Background(), models.RunRequest{
		PDFPath:    "faq.pdf",
		Reindex:    true,
		Question:   DefaultQuestion,
		OutputPath: "answers/output.txt",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Sources)
	assert.Equal(t, 1, store.clears)
	data, err := os.ReadFile(filepath.Join(dir, "answers", "output.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Payroll moves to CDWA.", string(data))
}

func TestRun_FailuresDoNotWriteAnswer(t *testing.T) {
	t.Run("generation", func(t *testing.T) {
		svc, dir := newTestService(t, &fakeLoader{}, &fakeStore{}, &fakeChat{err: errors.New("down")}, RAGConfig{})
		_, err := svc.Run(context.Background(), models.RunRequest{Question: "q", OutputPath: "output.txt"})
		assert.ErrorIs(t, err, ErrGeneration)
		assert.NoFileExists(t, filepath.Join(dir, "output.txt"))
	})

	t.Run("missing pdf on reindex", func(t *testing.T) {
		loader := &fakeLoader{err: ErrResourceNotFound}
		store := &fakeStore{}
		svc, dir := newTestService(t, loader, store, &fakeChat{answer: "never"}, RAGConfig{})
		_, err := svc.Run(context.Background(), models.RunRequest{PDFPath: "gone.pdf", Reindex: true, Question: "q"})
		assert.ErrorIs(t, err, ErrResourceNotFound)
		assert.Zero(t, store.clears)
		assert.NoFileExists(t, filepath.Join(dir, DefaultOutputPath))
	})
}
