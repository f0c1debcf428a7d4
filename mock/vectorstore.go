package mock

import (
	"context"

	"github.com/fwojciec/ragchat"
)

var _ ragchat.VectorStore = (*VectorStore)(nil)

// VectorStore is a mock implementation of ragchat.VectorStore.
type VectorStore struct {
	ConnectFn          func(ctx context.Context) error
	StoreEmbeddingsFn  func(ctx context.Context, meta *ragchat.DocumentMetadata, fragments []*ragchat.Fragment) (string, error)
	SimilaritySearchFn func(ctx context.Context, vector []float32, k int) ([]*ragchat.SearchResult, error)
	RemoveDocumentFn   func(ctx context.Context, id string) (bool, error)
	GetAllDocumentsFn  func(ctx context.Context) ([]*ragchat.DocumentMetadata, error)
	CloseFn            func() error
}

func (s *VectorStore) Connect(ctx context.Context) error {
	return s.ConnectFn(ctx)
}

func (s *VectorStore) StoreEmbeddings(ctx context.Context, meta *ragchat.DocumentMetadata, fragments []*ragchat.Fragment) (string, error) {
	return s.StoreEmbeddingsFn(ctx, meta, fragments)
}

func (s *VectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]*ragchat.SearchResult, error) {
	return s.SimilaritySearchFn(ctx, vector, k)
}

func (s *VectorStore) RemoveDocument(ctx context.Context, id string) (bool, error) {
	return s.RemoveDocumentFn(ctx, id)
}

func (s *VectorStore) GetAllDocuments(ctx context.Context) ([]*ragchat.DocumentMetadata, error) {
	return s.GetAllDocumentsFn(ctx)
}

func (s *VectorStore) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

var _ ragchat.DocumentService = (*DocumentService)(nil)

// DocumentService is a mock implementation of ragchat.DocumentService.
type DocumentService struct {
	SaveDocumentFn     func(ctx context.Context, docs []*ragchat.Document) (string, error)
	SimilaritySearchFn func(ctx context.Context, query string, k int) ([]*ragchat.SearchResult, error)
	GetAllDocumentsFn  func(ctx context.Context) ([]*ragchat.DocumentMetadata, error)
	RemoveDocumentFn   func(ctx context.Context, id string) (bool, error)
}

func (s *DocumentService) SaveDocument(ctx context.Context, docs []*ragchat.Document) (string, error) {
	return s.SaveDocumentFn(ctx, docs)
}

func (s *DocumentService) SimilaritySearch(ctx context.Context, query string, k int) ([]*ragchat.SearchResult, error) {
	return s.SimilaritySearchFn(ctx, query, k)
}

func (s *DocumentService) GetAllDocuments(ctx context.Context) ([]*ragchat.DocumentMetadata, error) {
	return s.GetAllDocumentsFn(ctx)
}

func (s *DocumentService) RemoveDocument(ctx context.Context, id string) (bool, error) {
	return s.RemoveDocumentFn(ctx, id)
}
