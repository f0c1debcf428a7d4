// Package rag orchestrates retrieval-augmented generation: documents are
// split, embedded and stored in a vector store, and questions are answered
// from the fragments closest to them.
package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/bloom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Embedding defaults.
const (
	DefaultNResults    = 3
	DefaultBatchSize   = 64
	DefaultConcurrency = 4
)

// Ensure DocumentEmbedder implements ragchat.DocumentService at compile time.
var _ ragchat.DocumentService = (*DocumentEmbedder)(nil)

// DocumentEmbedder implements ragchat.DocumentService on top of an
// Embedder and a VectorStore. Zero-valued settings use their defaults.
type DocumentEmbedder struct {
	Store    ragchat.VectorStore
	Embedder ragchat.Embedder

	// TokenCounter measures chunks when SplitByTokens is set.
	TokenCounter ragchat.TokenCounter

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	ChunkSize     int
	ChunkOverlap  int
	SplitByTokens bool
	Separators    []string

	// NResults is the number of fragments returned by a search that does
	// not ask for a specific count.
	NResults int

	// BatchSize is the number of fragments embedded per API call and
	// Concurrency the number of calls in flight.
	BatchSize   int
	Concurrency int

	// RetryDelays are waited between attempts of an embedding call that
	// failed with EUNAVAILABLE. Nil uses DefaultRetryDelays; an empty
	// non-nil slice disables retries.
	RetryDelays []time.Duration

	// Limiter, when set, paces embedding calls.
	Limiter *rate.Limiter
}

// Connect creates or loads the store's collections.
func (e *DocumentEmbedder) Connect(ctx context.Context) error {
	return e.Store.Connect(ctx)
}

// SaveDocument splits the documents, embeds the distinct fragments and
// stores them under the metadata of the first document. Saving content
// that is already stored returns the existing id without embedding it
// again.
func (e *DocumentEmbedder) SaveDocument(ctx context.Context, docs []*ragchat.Document) (string, error) {
	if len(docs) == 0 {
		return "", ragchat.Errorf(ragchat.EINVALID, "at least one document required")
	}
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return "", err
		}
	}

	hash := ContentHash(docs)
	stored, err := e.Store.GetAllDocuments(ctx)
	if err != nil {
		return "", fmt.Errorf("list documents: %w", err)
	}
	for _, m := range stored {
		if m.ContentHash == hash {
			e.logger().Info("document already stored",
				zap.String("id", m.ID),
				zap.String("hash", hash),
			)
			return m.ID, nil
		}
	}

	fragments, err := e.fragments(ctx, docs)
	if err != nil {
		return "", err
	}
	if len(fragments) == 0 {
		return "", ragchat.Errorf(ragchat.EINVALID, "document has no text to embed")
	}

	if err := e.embed(ctx, fragments); err != nil {
		return "", err
	}

	meta := ragchat.AlignMetadata(docs[0].Metadata)
	meta.ContentHash = hash
	return e.Store.StoreEmbeddings(ctx, meta, fragments)
}

// fragments splits the documents into chunks, dropping repeated texts.
func (e *DocumentEmbedder) fragments(ctx context.Context, docs []*ragchat.Document) ([]*ragchat.Fragment, error) {
	splitter := &ragchat.TextSplitter{
		ChunkSize:    e.ChunkSize,
		ChunkOverlap: e.ChunkOverlap,
		Separators:   e.Separators,
	}
	if splitter.ChunkSize == 0 {
		splitter.ChunkSize = ragchat.DefaultChunkSize
	}
	if e.SplitByTokens {
		if e.TokenCounter == nil {
			return nil, ragchat.Errorf(ragchat.EINVALID, "token splitting requires a token counter")
		}
		splitter.Length = ragchat.TokenLength(ctx, e.TokenCounter)
	}

	chunks, err := splitter.SplitDocuments(docs)
	if err != nil {
		return nil, err
	}

	seen := bloom.NewDedup(uint(len(chunks)))
	fragments := make([]*ragchat.Fragment, 0, len(chunks))
	for _, chunk := range chunks {
		if seen.Seen(chunk.Content) {
			continue
		}
		fragments = append(fragments, &ragchat.Fragment{Content: chunk.Content})
	}
	if dropped := len(chunks) - len(fragments); dropped > 0 {
		e.logger().Debug("dropped duplicate fragments", zap.Int("count", dropped))
	}
	return fragments, nil
}

// embed fills in the embedding of every fragment, batching calls and
// running up to Concurrency of them at once.
func (e *DocumentEmbedder) embed(ctx context.Context, fragments []*ragchat.Fragment) error {
	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	concurrency := e.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(fragments); start += batchSize {
		batch := fragments[start:min(start+batchSize, len(fragments))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, f := range batch {
				texts[i] = f.Content
			}

			vectors, err := withRetry(gctx, "embed documents", e.retryDelays(), e.logger(), func(ctx context.Context) ([][]float32, error) {
				if e.Limiter != nil {
					if err := e.Limiter.Wait(ctx); err != nil {
						return nil, err
					}
				}
				return e.Embedder.EmbedDocuments(ctx, texts)
			})
			if err != nil {
				return fmt.Errorf("embed fragments: %w", err)
			}
			if len(vectors) != len(batch) {
				return ragchat.Errorf(ragchat.EINTERNAL, "embedder returned %d vectors for %d fragments", len(vectors), len(batch))
			}
			for i, f := range batch {
				f.Embedding = vectors[i]
			}
			return nil
		})
	}
	return g.Wait()
}

// SimilaritySearch embeds the query and returns the k closest fragments.
// A non-positive k uses NResults.
func (e *DocumentEmbedder) SimilaritySearch(ctx context.Context, query string, k int) ([]*ragchat.SearchResult, error) {
	if query == "" {
		return nil, ragchat.Errorf(ragchat.EINVALID, "query required")
	}
	if k <= 0 {
		k = e.NResults
	}
	if k <= 0 {
		k = DefaultNResults
	}

	vector, err := withRetry(ctx, "embed query", e.retryDelays(), e.logger(), func(ctx context.Context) ([]float32, error) {
		if e.Limiter != nil {
			if err := e.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		return e.Embedder.EmbedQuery(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return e.Store.SimilaritySearch(ctx, vector, k)
}

// GetAllDocuments returns the metadata of all stored documents.
func (e *DocumentEmbedder) GetAllDocuments(ctx context.Context) ([]*ragchat.DocumentMetadata, error) {
	return e.Store.GetAllDocuments(ctx)
}

// RemoveDocument deletes a stored document and its fragments.
func (e *DocumentEmbedder) RemoveDocument(ctx context.Context, id string) (bool, error) {
	return e.Store.RemoveDocument(ctx, id)
}

func (e *DocumentEmbedder) retryDelays() []time.Duration {
	if e.RetryDelays == nil {
		return DefaultRetryDelays()
	}
	return e.RetryDelays
}

func (e *DocumentEmbedder) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// ContentHash identifies the combined content of docs.
func ContentHash(docs []*ragchat.Document) string {
	d := xxhash.New()
	for _, doc := range docs {
		_, _ = d.WriteString(doc.Content)
		_, _ = d.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
