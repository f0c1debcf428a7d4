package sqlite_test

import (
	"context"
	"testing"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func setupTestStore(t *testing.T, opts ...sqlite.Option) *sqlite.VectorStore {
	t.Helper()
	store := sqlite.NewVectorStore(setupTestDB(t), opts...)
	require.NoError(t, store.Connect(context.Background()))
	return store
}

func storeDocument(t *testing.T, store *sqlite.VectorStore, title string, vectors ...[]float32) string {
	t.Helper()
	fragments := make([]*ragchat.Fragment, len(vectors))
	for i, v := range vectors {
		fragments[i] = &ragchat.Fragment{Content: title + " fragment", Embedding: v}
	}
	meta := ragchat.AlignMetadata(map[string]string{"title": title})
	id, err := store.StoreEmbeddings(context.Background(), meta, fragments)
	require.NoError(t, err)
	return id
}

func TestVectorStore_Connect(t *testing.T) {
	t.Parallel()

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		store := setupTestStore(t)
		storeDocument(t, store, "kept", []float32{1, 0})

		require.NoError(t, store.Connect(context.Background()))

		docs, err := store.GetAllDocuments(context.Background())
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("opens unopened database", func(t *testing.T) {
		t.Parallel()

		db := sqlite.NewDB(":memory:")
		store := sqlite.NewVectorStore(db)
		t.Cleanup(func() { store.Close() })

		require.NoError(t, store.Connect(context.Background()))
		assert.True(t, db.IsOpen())
	})

	t.Run("uses custom collection names", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		store := sqlite.NewVectorStore(db, sqlite.WithCollections("Emb", "Meta"))
		require.NoError(t, store.Connect(context.Background()))

		var n int
		err := db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM "Meta"`).Scan(&n)
		require.NoError(t, err)
		err = db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM "Emb"`).Scan(&n)
		require.NoError(t, err)
	})

	t.Run("rejects invalid collection names", func(t *testing.T) {
		t.Parallel()

		store := sqlite.NewVectorStore(setupTestDB(t), sqlite.WithCollections(`x"; DROP TABLE y; --`, "Meta"))
		err := store.Connect(context.Background())
		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})

	t.Run("rejects identical collection names", func(t *testing.T) {
		t.Parallel()

		store := sqlite.NewVectorStore(setupTestDB(t), sqlite.WithCollections("Same", "Same"))
		err := store.Connect(context.Background())
		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})

	t.Run("operations fail before connect", func(t *testing.T) {
		t.Parallel()

		store := sqlite.NewVectorStore(setupTestDB(t))
		_, err := store.GetAllDocuments(context.Background())
		assert.Equal(t, ragchat.EUNAVAILABLE, ragchat.ErrorCode(err))
	})
}

func TestVectorStore_StoreEmbeddings(t *testing.T) {
	t.Parallel()

	t.Run("assigns ids to metadata and fragments", func(t *testing.T) {
		t.Parallel()

		store := setupTestStore(t)
		meta := ragchat.AlignMetadata(map[string]string{"title": "Paper", "source": "paper.pdf"})
		meta.ContentHash = "abc"
		fragments := []*ragchat.Fragment{
			{Content: "one", Embedding: []float32{1, 0}},
			{Content: "two", Embedding: []float32{0, 1}},
		}

		id, err := store.StoreEmbeddings(context.Background(), meta, fragments)

		require.NoError(t, err)
		assert.Equal(t, "1", id)
		assert.Equal(t, id, meta.ID)
		assert.False(t, meta.CreatedAt.IsZero())
		for _, f := range fragments {
			assert.Equal(t, id, f.MetaID)
			assert.NotEmpty(t, f.ID)
		}
		assert.NotEqual(t, fragments[0].ID, fragments[1].ID)

		docs, err := store.GetAllDocuments(context.Background())
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Paper", docs[0].Title)
		assert.Equal(t, "paper.pdf", docs[0].Source)
		assert.Equal(t, ragchat.UnknownMetadata, docs[0].Author)
		assert.Equal(t, "abc", docs[0].ContentHash)
		assert.False(t, docs[0].IsDeleted)
	})

	t.Run("rejects empty fragment list", func(t *testing.T) {
		t.Parallel()

		store := setupTestStore(t)
		_, err := store.StoreEmbeddings(context.Background(), ragchat.AlignMetadata(nil), nil)

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})

	t.Run("rejects mixed dimensions", func(t *testing.T) {
		t.Parallel()

		store := setupTestStore(t)
		_, err := store.StoreEmbeddings(context.Background(), ragchat.AlignMetadata(nil), []*ragchat.Fragment{
			{Content: "a", Embedding: []float32{1}},
			{Content: "b", Embedding: []float32{1, 2}},
		})

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))

		docs, err := store.GetAllDocuments(context.Background())
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestVectorStore_SimilaritySearch(t *testing.T) {
	t.Parallel()

	t.Run("returns closest fragments joined with metadata", func(t *testing.T) {
		t.Parallel()

		store := setupTestStore(t)
		storeDocument(t, store, "near", []float32{1, 0}, []float32{0.9, 0.1})
		storeDocument(t, store, "far", []float32{-1, 0})

		results, err := store.SimilaritySearch(context.Background(), []float32{1, 0}, 2)

		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "near", results[0].Metadata.Title)
		assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
		assert.Equal(t, "near", results[1].Metadata.Title)
		assert.Equal(t, "near fragment", results[0].Fragment.Content)
	})

	t.Run("returns nothing for empty store", func(t *testing.T) {
		t.Parallel()

		store := setupTestStore(t)
		results, err := store.SimilaritySearch(context.Background(), []float32{1, 0}, 3)

		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("excludes removed documents", func(t *testing.T) {
		t.Parallel()

		store := setupTestStore(t)
		removed := storeDocument(t, store, "removed", []float32{1, 0})
		storeDocument(t, store, "kept", []float32{0, 1})

		ok, err := store.RemoveDocument(context.Background(), removed)
		require.NoError(t, err)
		require.True(t, ok)

		results, err := store.SimilaritySearch(context.Background(), []float32{1, 0}, 5)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "kept", results[0].Metadata.Title)
	})

	t.Run("rejects dimension mismatch", func(t *testing.T) {
		t.Parallel()

		store := setupTestStore(t)
		storeDocument(t, store, "doc", []float32{1, 0})

		_, err := store.SimilaritySearch(context.Background(), []float32{1, 0, 0}, 1)

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})

	t.Run("rejects empty query vector", func(t *testing.T) {
		t.Parallel()

		store := setupTestStore(t)
		_, err := store.SimilaritySearch(context.Background(), nil, 1)

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})

	t.Run("excludes soft-deleted documents", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		store := sqlite.NewVectorStore(db)
		require.NoError(t, store.Connect(context.Background()))
		hidden := storeDocument(t, store, "hidden", []float32{1, 0})
		storeDocument(t, store, "visible", []float32{0, 1})

		_, err := db.ExecContext(context.Background(),
			`UPDATE "DocumentMetadata" SET is_deleted = 1 WHERE id = ?`, hidden)
		require.NoError(t, err)

		results, err := store.SimilaritySearch(context.Background(), []float32{1, 0}, 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "visible", results[0].Metadata.Title)

		docs, err := store.GetAllDocuments(context.Background())
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "visible", docs[0].Title)
	})

	t.Run("logs and discards fragments of unknown documents", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zap.WarnLevel)
		db := setupTestDB(t)
		store := sqlite.NewVectorStore(db, sqlite.WithLogger(zap.New(core)))
		require.NoError(t, store.Connect(context.Background()))
		storeDocument(t, store, "doc", []float32{1, 0})

		_, err := db.ExecContext(context.Background(),
			`INSERT INTO "DocumentEmbeddings" (meta_id, text, vector) VALUES ('99', 'orphan', ?)`,
			ragchat.EncodeVector([]float32{1, 0}))
		require.NoError(t, err)

		results, err := store.SimilaritySearch(context.Background(), []float32{1, 0}, 5)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "doc fragment", results[0].Fragment.Content)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "99", logs.All()[0].ContextMap()["meta_id"])
	})
}

func TestVectorStore_RemoveDocument(t *testing.T) {
	t.Parallel()

	t.Run("removes metadata and fragments", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		store := sqlite.NewVectorStore(db)
		require.NoError(t, store.Connect(context.Background()))
		id := storeDocument(t, store, "doc", []float32{1, 0}, []float32{0, 1})

		ok, err := store.RemoveDocument(context.Background(), id)

		require.NoError(t, err)
		assert.True(t, ok)

		var n int
		err = db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM "DocumentEmbeddings"`).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		docs, err := store.GetAllDocuments(context.Background())
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("returns false for unknown id", func(t *testing.T) {
		t.Parallel()

		store := setupTestStore(t)
		ok, err := store.RemoveDocument(context.Background(), "42")

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("returns false for non-numeric id", func(t *testing.T) {
		t.Parallel()

		store := setupTestStore(t)
		ok, err := store.RemoveDocument(context.Background(), "1 OR 1=1")

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("keeps other documents", func(t *testing.T) {
		t.Parallel()

		store := setupTestStore(t)
		first := storeDocument(t, store, "first", []float32{1, 0})
		storeDocument(t, store, "second", []float32{0, 1})

		_, err := store.RemoveDocument(context.Background(), first)
		require.NoError(t, err)

		docs, err := store.GetAllDocuments(context.Background())
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "second", docs[0].Title)
	})
}
