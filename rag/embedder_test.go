package rag_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/mock"
	"github.com/fwojciec/ragchat/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lengthEmbedder embeds each text as [len(text), 1].
func lengthEmbedder(calls *atomic.Int32) *mock.Embedder {
	return &mock.Embedder{
		EmbedDocumentsFn: func(_ context.Context, texts []string) ([][]float32, error) {
			if calls != nil {
				calls.Add(1)
			}
			vectors := make([][]float32, len(texts))
			for i, text := range texts {
				vectors[i] = []float32{float32(len(text)), 1}
			}
			return vectors, nil
		},
		EmbedQueryFn: func(_ context.Context, text string) ([]float32, error) {
			return []float32{float32(len(text)), 1}, nil
		},
	}
}

// recordingStore captures stored embeddings and starts out empty.
type recordingStore struct {
	mock.VectorStore
	meta      *ragchat.DocumentMetadata
	fragments []*ragchat.Fragment
}

func newRecordingStore() *recordingStore {
	s := &recordingStore{}
	s.GetAllDocumentsFn = func(context.Context) ([]*ragchat.DocumentMetadata, error) {
		return nil, nil
	}
	s.StoreEmbeddingsFn = func(_ context.Context, meta *ragchat.DocumentMetadata, fragments []*ragchat.Fragment) (string, error) {
		s.meta = meta
		s.fragments = fragments
		return "7", nil
	}
	return s
}

func TestDocumentEmbedder_SaveDocument(t *testing.T) {
	t.Parallel()

	t.Run("stores distinct fragments under aligned metadata", func(t *testing.T) {
		t.Parallel()

		store := newRecordingStore()
		e := &rag.DocumentEmbedder{Store: &store.VectorStore, Embedder: lengthEmbedder(nil)}
		docs := []*ragchat.Document{
			{Content: "BRCA1 repairs DNA", Metadata: map[string]string{ragchat.MetaTitle: "Gene notes", ragchat.MetaSource: "notes.txt"}},
			{Content: "BRCA1 repairs DNA"},
			{Content: "TP53 guards the genome"},
		}

		id, err := e.SaveDocument(context.Background(), docs)

		require.NoError(t, err)
		assert.Equal(t, "7", id)
		require.Len(t, store.fragments, 2)
		assert.Equal(t, "BRCA1 repairs DNA", store.fragments[0].Content)
		assert.Equal(t, []float32{17, 1}, store.fragments[0].Embedding)
		assert.Equal(t, "TP53 guards the genome", store.fragments[1].Content)
		assert.Equal(t, []float32{22, 1}, store.fragments[1].Embedding)
		assert.Equal(t, "Gene notes", store.meta.Title)
		assert.Equal(t, "notes.txt", store.meta.Source)
		assert.Equal(t, ragchat.UnknownMetadata, store.meta.Author)
		assert.Equal(t, rag.ContentHash(docs), store.meta.ContentHash)
	})

	t.Run("returns the existing id for already stored content", func(t *testing.T) {
		t.Parallel()

		docs := []*ragchat.Document{{Content: "BRCA1 repairs DNA"}}
		store := &mock.VectorStore{
			GetAllDocumentsFn: func(context.Context) ([]*ragchat.DocumentMetadata, error) {
				return []*ragchat.DocumentMetadata{
					{ID: "1", ContentHash: "other"},
					{ID: "3", ContentHash: rag.ContentHash(docs)},
				}, nil
			},
		}
		var calls atomic.Int32
		e := &rag.DocumentEmbedder{Store: store, Embedder: lengthEmbedder(&calls)}

		id, err := e.SaveDocument(context.Background(), docs)

		require.NoError(t, err)
		assert.Equal(t, "3", id)
		assert.Zero(t, calls.Load())
	})

	t.Run("embeds in batches preserving order", func(t *testing.T) {
		t.Parallel()

		store := newRecordingStore()
		var calls atomic.Int32
		e := &rag.DocumentEmbedder{
			Store:       &store.VectorStore,
			Embedder:    lengthEmbedder(&calls),
			ChunkSize:   5,
			BatchSize:   2,
			Concurrency: 2,
		}

		_, err := e.SaveDocument(context.Background(), []*ragchat.Document{{Content: "a bb ccc dddd eeeee ff"}})

		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
		var contents []string
		for _, f := range store.fragments {
			contents = append(contents, f.Content)
			assert.Equal(t, []float32{float32(len(f.Content)), 1}, f.Embedding)
		}
		assert.Equal(t, []string{"a bb", "ccc", "dddd", "eeeee", "ff"}, contents)
	})

	t.Run("retries unavailable embedder", func(t *testing.T) {
		t.Parallel()

		store := newRecordingStore()
		var calls atomic.Int32
		embedder := lengthEmbedder(nil)
		inner := embedder.EmbedDocumentsFn
		embedder.EmbedDocumentsFn = func(ctx context.Context, texts []string) ([][]float32, error) {
			if calls.Add(1) == 1 {
				return nil, ragchat.Errorf(ragchat.EUNAVAILABLE, "rate limited")
			}
			return inner(ctx, texts)
		}
		e := &rag.DocumentEmbedder{
			Store:       &store.VectorStore,
			Embedder:    embedder,
			RetryDelays: []time.Duration{time.Millisecond},
		}

		_, err := e.SaveDocument(context.Background(), []*ragchat.Document{{Content: "BRCA1"}})

		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("does not retry invalid requests", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		e := &rag.DocumentEmbedder{
			Store: &newRecordingStore().VectorStore,
			Embedder: &mock.Embedder{
				EmbedDocumentsFn: func(context.Context, []string) ([][]float32, error) {
					calls.Add(1)
					return nil, ragchat.Errorf(ragchat.EINVALID, "input too long")
				},
			},
			RetryDelays: []time.Duration{time.Millisecond, time.Millisecond},
		}

		_, err := e.SaveDocument(context.Background(), []*ragchat.Document{{Content: "BRCA1"}})

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("rejects empty input", func(t *testing.T) {
		t.Parallel()

		e := &rag.DocumentEmbedder{Store: &newRecordingStore().VectorStore, Embedder: lengthEmbedder(nil)}

		_, err := e.SaveDocument(context.Background(), nil)
		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))

		_, err = e.SaveDocument(context.Background(), []*ragchat.Document{{Content: "  "}})
		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})

	t.Run("token splitting requires a counter", func(t *testing.T) {
		t.Parallel()

		e := &rag.DocumentEmbedder{
			Store:         &newRecordingStore().VectorStore,
			Embedder:      lengthEmbedder(nil),
			SplitByTokens: true,
		}

		_, err := e.SaveDocument(context.Background(), []*ragchat.Document{{Content: "BRCA1"}})

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})

	t.Run("splits by tokens", func(t *testing.T) {
		t.Parallel()

		store := newRecordingStore()
		e := &rag.DocumentEmbedder{
			Store:    &store.VectorStore,
			Embedder: lengthEmbedder(nil),
			TokenCounter: &mock.TokenCounter{
				CountTokensFn: func(_ context.Context, text string) (int, error) {
					return len(strings.Fields(text)), nil
				},
			},
			SplitByTokens: true,
			ChunkSize:     3,
		}

		_, err := e.SaveDocument(context.Background(), []*ragchat.Document{{Content: "alpha beta gamma delta"}})

		require.NoError(t, err)
		require.Len(t, store.fragments, 2)
		assert.Equal(t, "alpha beta gamma", store.fragments[0].Content)
		assert.Equal(t, "delta", store.fragments[1].Content)
	})
}

func TestDocumentEmbedder_SimilaritySearch(t *testing.T) {
	t.Parallel()

	t.Run("uses NResults when k is not positive", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		var gotK []int
		var gotVector []float32
		store := &mock.VectorStore{
			SimilaritySearchFn: func(_ context.Context, vector []float32, k int) ([]*ragchat.SearchResult, error) {
				mu.Lock()
				defer mu.Unlock()
				gotK = append(gotK, k)
				gotVector = vector
				return nil, nil
			},
		}
		e := &rag.DocumentEmbedder{Store: store, Embedder: lengthEmbedder(nil), NResults: 5}

		_, err := e.SimilaritySearch(context.Background(), "BRCA1", 0)
		require.NoError(t, err)
		_, err = e.SimilaritySearch(context.Background(), "BRCA1", 2)
		require.NoError(t, err)

		assert.Equal(t, []int{5, 2}, gotK)
		assert.Equal(t, []float32{5, 1}, gotVector)
	})

	t.Run("defaults to three results", func(t *testing.T) {
		t.Parallel()

		var gotK int
		store := &mock.VectorStore{
			SimilaritySearchFn: func(_ context.Context, _ []float32, k int) ([]*ragchat.SearchResult, error) {
				gotK = k
				return nil, nil
			},
		}
		e := &rag.DocumentEmbedder{Store: store, Embedder: lengthEmbedder(nil)}

		_, err := e.SimilaritySearch(context.Background(), "BRCA1", -1)

		require.NoError(t, err)
		assert.Equal(t, rag.DefaultNResults, gotK)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		t.Parallel()

		e := &rag.DocumentEmbedder{Store: &mock.VectorStore{}, Embedder: lengthEmbedder(nil)}

		_, err := e.SimilaritySearch(context.Background(), "", 3)

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})
}

func TestDocumentEmbedder_Delegates(t *testing.T) {
	t.Parallel()

	var connected bool
	store := &mock.VectorStore{
		ConnectFn: func(context.Context) error {
			connected = true
			return nil
		},
		GetAllDocumentsFn: func(context.Context) ([]*ragchat.DocumentMetadata, error) {
			return []*ragchat.DocumentMetadata{{ID: "1"}}, nil
		},
		RemoveDocumentFn: func(_ context.Context, id string) (bool, error) {
			return id == "1", nil
		},
	}
	e := &rag.DocumentEmbedder{Store: store, Embedder: lengthEmbedder(nil)}

	require.NoError(t, e.Connect(context.Background()))
	assert.True(t, connected)

	docs, err := e.GetAllDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	removed, err := e.RemoveDocument(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = e.RemoveDocument(context.Background(), "2")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestContentHash(t *testing.T) {
	t.Parallel()

	a := rag.ContentHash([]*ragchat.Document{{Content: "ab"}, {Content: "c"}})
	b := rag.ContentHash([]*ragchat.Document{{Content: "a"}, {Content: "bc"}})
	c := rag.ContentHash([]*ragchat.Document{{Content: "ab"}, {Content: "c"}})

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
	assert.Len(t, a, 16)
}
