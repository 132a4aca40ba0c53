package stores

import (
	"context"
	"fmt"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"

	"github.com/bootiful-ai/carina-rag/models"
)

// ChromaStore keeps chunks in a Chroma collection. The collection embeds
// through the injected Embedder, never through chroma-go's default function.
// The collection is resolved on first use, so an unreachable server only
// fails the call that needs it.
type ChromaStore struct {
	client         chromago.Client
	collectionName string
	embedding      *chromaEmbeddingFunction
	log            *logrus.Entry

	mu         sync.Mutex
	collection chromago.Collection
}

// OpenChroma prepares a client for the Chroma server at baseURL. No request is made yet.
func OpenChroma(_ context.Context, baseURL, collectionName string, embedder Embedder) (*ChromaStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("stores: embedder is nil")
	}
	var opts []chromago.ClientOption
	if baseURL != "" {
		opts = append(opts, chromago.WithBaseURL(baseURL))
	}
	client, err := chromago.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	return &ChromaStore{
		client:         client,
		collectionName: collectionName,
		embedding:      &chromaEmbeddingFunction{embedder: embedder},
		log:            logrus.WithFields(logrus.Fields{"component": "store", "backend": "chroma"}),
	}, nil
}

func (s *ChromaStore) getCollection(ctx context.Context) (chromago.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection != nil {
		return s.collection, nil
	}

	s.log.Infof("Getting or creating collection '%s'...", s.collectionName)
	collection, err := s.client.GetOrCreateCollection(
		ctx,
		s.collectionName,
		chromago.WithEmbeddingFunctionCreate(s.embedding),
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "Carina FAQ chunks"),
				chromago.NewStringAttribute("created_by", "carina-rag"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection %s: %w", s.collectionName, err)
	}
	s.collection = collection
	return collection, nil
}

func (s *ChromaStore) Clear(ctx context.Context) error {
	collection, err := s.getCollection(ctx)
	if err != nil {
		return err
	}
	results, err := collection.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to list chroma documents: %w", err)
	}
	ids := results.GetIDs()
	if len(ids) == 0 {
		return nil
	}
	if err := collection.Delete(ctx, chromago.WithIDsDelete(ids...)); err != nil {
		return fmt.Errorf("failed to delete chroma documents: %w", err)
	}
	s.log.Debugf("Cleared %d chunks", len(ids))
	return nil
}

func (s *ChromaStore) Insert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	collection, err := s.getCollection(ctx)
	if err != nil {
		return err
	}
	embs, err := s.embedding.EmbedDocuments(ctx, chunkTexts(chunks))
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embs) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embs), len(chunks))
	}

	ids := make([]chromago.DocumentID, len(chunks))
	texts := make([]string, len(chunks))
	metas := make([]chromago.DocumentMetadata, len(chunks))
	for i, c := range chunks {
		ids[i] = chromago.DocumentID(c.ID)
		texts[i] = c.Text
		metas[i] = chromago.NewDocumentMetadata(
			chromago.NewStringAttribute("document_id", c.Metadata.DocumentID),
			chromago.NewStringAttribute("file_name", c.Metadata.FileName),
			chromago.NewIntAttribute("page_number", int64(c.Metadata.PageNumber)),
		)
	}

	err = collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to add chunks to chroma: %w", err)
	}
	return nil
}

func (s *ChromaStore) Search(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	collection, err := s.getCollection(ctx)
	if err != nil {
		return nil, err
	}
	count, err := collection.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chroma documents: %w", err)
	}
	if count == 0 {
		return []models.Chunk{}, nil
	}

	queryEmb, err := s.embedding.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := collection.Query(ctx,
		chromago.WithQueryEmbeddings(queryEmb),
		chromago.WithNResults(min(k, count)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chroma: %w", err)
	}

	idGroups := results.GetIDGroups()
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	if len(documentGroups) == 0 {
		return []models.Chunk{}, nil
	}

	out := make([]models.Chunk, 0, len(documentGroups[0]))
	for i, doc := range documentGroups[0] {
		if len(out) == k {
			break
		}
		c := models.Chunk{Text: doc.ContentString()}
		if len(idGroups) > 0 && i < len(idGroups[0]) {
			c.ID = string(idGroups[0][i])
		}
		if len(metadataGroups) > 0 && i < len(metadataGroups[0]) && metadataGroups[0][i] != nil {
			c.Metadata = s.decodeMetadata(c.ID, metadataGroups[0][i])
		}
		out = append(out, c)
	}
	return out, nil
}

// decodeMetadata goes through JSON because DocumentMetadata exposes no plain map accessor.
func (s *ChromaStore) decodeMetadata(id string, metadata chromago.DocumentMetadata) models.ChunkMetadata {
	var meta models.ChunkMetadata
	raw, err := sonic.Marshal(metadata)
	if err != nil {
		s.log.Warnf("could not marshal metadata for chunk %s: %v", id, err)
		return meta
	}
	if err := sonic.Unmarshal(raw, &meta); err != nil {
		s.log.Warnf("could not unmarshal metadata for chunk %s: %v", id, err)
	}
	return meta
}

func (s *ChromaStore) Close() error {
	return s.client.Close()
}

// chromaEmbeddingFunction exposes an Embedder as a chroma-go embedding function.
type chromaEmbeddingFunction struct {
	embedder Embedder
}

func (f *chromaEmbeddingFunction) EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error) {
	vectors, err := f.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([]embeddings.Embedding, len(vectors))
	for i, v := range vectors {
		out[i] = embeddings.NewEmbeddingFromFloat32(v)
	}
	return out, nil
}

func (f *chromaEmbeddingFunction) EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error) {
	vector, err := f.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbeddingFromFloat32(vector), nil
}

var (
	_ VectorStore                  = (*ChromaStore)(nil)
	_ embeddings.EmbeddingFunction = (*chromaEmbeddingFunction)(nil)
)
