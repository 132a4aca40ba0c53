package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bootiful-ai/carina-rag/models"
	"github.com/bootiful-ai/carina-rag/providers"
	"github.com/bootiful-ai/carina-rag/stores"
)

// DefaultTopK is how many chunks a query retrieves when no k is given.
const DefaultTopK = 4

// RAGService interface defines the ingestion and question-answering operations.
type RAGService interface {
	// Ingest replaces the store contents with the chunks of the PDF at pdfPath.
	Ingest(c context.Context, pdfPath string) (*models.IngestResponse, error)
	// Ask answers a single question from the stored chunks. No history is kept.
	Ask(c context.Context, req models.AskRequest) (*models.AskResponse, error)
	// Run optionally re-ingests, asks one question and writes the answer file.
	Run(c context.Context, req models.RunRequest) (*models.AskResponse, error)
}

// RAGConfig holds the query-side settings.
type RAGConfig struct {
	TopK        int
	ChatTimeout time.Duration
}

// ragServiceImpl holds the dependencies it needs to do its job
type ragServiceImpl struct {
	loader      DocumentLoader
	splitter    TextSplitter
	store       stores.VectorStore
	chat        providers.ChatClient
	fileActions *FileActions
	config      RAGConfig
	ingestLog   *logrus.Entry
	queryLog    *logrus.Entry
}

// NewRAGService creates a new RAG service instance
func NewRAGService(
	loader DocumentLoader,
	splitter TextSplitter,
	store stores.VectorStore,
	chat providers.ChatClient,
	fileActions *FileActions,
	config RAGConfig,
) RAGService {
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	return &ragServiceImpl{
		loader:      loader,
		splitter:    splitter,
		store:       store,
		chat:        chat,
		fileActions: fileActions,
		config:      config,
		ingestLog:   logrus.WithField("component", "ingest"),
		queryLog:    logrus.WithField("component", "query"),
	}
}

// Ingest implements RAGService
func (r *ragServiceImpl) Ingest(c context.Context, pdfPath string) (*models.IngestResponse, error) {
	if pdfPath == "" {
		return nil, fmt.Errorf("%w: no pdf path given", ErrResourceNotFound)
	}
	r.ingestLog.Infof("Ingesting %s", pdfPath)

	pages, err := r.loader.Load(c, pdfPath)
	if err != nil {
		return nil, err
	}

	chunks, err := r.splitter.Split(pages)
	if err != nil {
		return nil, fmt.Errorf("could not split %s: %w", pdfPath, err)
	}
	r.ingestLog.Infof("Split %s into %d chunks.", pdfPath, len(chunks))

	if err := r.store.Clear(c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	if err := r.store.Insert(c, chunks); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	resp := &models.IngestResponse{Pages: len(pages), Chunks: len(chunks)}
	if len(pages) > 0 {
		resp.DocumentID = pages[0].DocumentID
	}
	r.ingestLog.WithField("document_id", resp.DocumentID).
		Infof("Stored %d chunks from %d pages", resp.Chunks, resp.Pages)
	return resp, nil
}

// Ask implements RAGService
func (r *ragServiceImpl) Ask(c context.Context, req models.AskRequest) (*models.AskResponse, error) {
	k := req.TopK
	if k <= 0 {
		k = r.config.TopK
	}
	r.queryLog.Infof("Querying with: '%s' (k=%d)", req.Question, k)

	chunks, err := r.store.Search(c, req.Question, k)
	if err != nil {
		r.queryLog.WithError(fmt.Errorf("%w: %w", ErrStorageRead, err)).
			Warn("Similarity search failed, answering without documents")
		chunks = nil
	}
	if len(chunks) > k {
		chunks = chunks[:k]
	}
	r.queryLog.Infof("Retrieved %d documents", len(chunks))

	messages, err := BuildPrompt(chunks, req.Question)
	if err != nil {
		return nil, err
	}

	chatCtx := c
	if r.config.ChatTimeout > 0 {
		var cancel context.CancelFunc
		chatCtx, cancel = context.WithTimeout(c, r.config.ChatTimeout)
		defer cancel()
	}
	answer, err := r.chat.Complete(chatCtx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	return &models.AskResponse{Answer: answer, Sources: chunks}, nil
}

// Run implements RAGService
func (r *ragServiceImpl) Run(c context.Context, req models.RunRequest) (*models.AskResponse, error) {
	if req.Reindex {
		if _, err := r.Ingest(c, req.PDFPath); err != nil {
			return nil, err
		}
	}

	resp, err := r.Ask(c, models.AskRequest{Question: req.Question, TopK: req.TopK})
	if err != nil {
		return nil, err
	}

	if err := r.fileActions.WriteAnswer(req.OutputPath, resp.Answer); err != nil {
		return nil, err
	}
	return resp, nil
}
