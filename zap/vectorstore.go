// Package zap decorates ragchat services with structured logging.
package zap

import (
	"context"
	"time"

	"github.com/fwojciec/ragchat"
	"go.uber.org/zap"
)

// Ensure LoggingVectorStore implements ragchat.VectorStore.
var _ ragchat.VectorStore = (*LoggingVectorStore)(nil)

// LoggingVectorStore wraps a VectorStore with operation logging.
type LoggingVectorStore struct {
	next   ragchat.VectorStore
	logger *zap.Logger
}

// NewLoggingVectorStore creates a new LoggingVectorStore.
func NewLoggingVectorStore(next ragchat.VectorStore, logger *zap.Logger) *LoggingVectorStore {
	return &LoggingVectorStore{next: next, logger: logger}
}

// Connect delegates to the wrapped store and logs the operation.
func (s *LoggingVectorStore) Connect(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		log(s.logger, "vector store connect", err,
			zap.Duration("duration", time.Since(begin)),
		)
	}(time.Now())
	return s.next.Connect(ctx)
}

// StoreEmbeddings delegates to the wrapped store and logs the operation.
func (s *LoggingVectorStore) StoreEmbeddings(ctx context.Context, meta *ragchat.DocumentMetadata, fragments []*ragchat.Fragment) (id string, err error) {
	defer func(begin time.Time) {
		log(s.logger, "vector store save", err,
			zap.String("id", id),
			zap.Int("fragments", len(fragments)),
			zap.Duration("duration", time.Since(begin)),
		)
	}(time.Now())
	return s.next.StoreEmbeddings(ctx, meta, fragments)
}

// SimilaritySearch delegates to the wrapped store and logs the operation.
func (s *LoggingVectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int) (results []*ragchat.SearchResult, err error) {
	defer func(begin time.Time) {
		log(s.logger, "vector store search", err,
			zap.Int("k", k),
			zap.Int("count", len(results)),
			zap.Duration("duration", time.Since(begin)),
		)
	}(time.Now())
	return s.next.SimilaritySearch(ctx, vector, k)
}

// RemoveDocument delegates to the wrapped store and logs the operation.
func (s *LoggingVectorStore) RemoveDocument(ctx context.Context, id string) (removed bool, err error) {
	defer func(begin time.Time) {
		log(s.logger, "vector store remove", err,
			zap.String("id", id),
			zap.Bool("removed", removed),
			zap.Duration("duration", time.Since(begin)),
		)
	}(time.Now())
	return s.next.RemoveDocument(ctx, id)
}

// GetAllDocuments delegates to the wrapped store and logs the operation.
func (s *LoggingVectorStore) GetAllDocuments(ctx context.Context) (docs []*ragchat.DocumentMetadata, err error) {
	defer func(begin time.Time) {
		log(s.logger, "vector store list", err,
			zap.Int("count", len(docs)),
			zap.Duration("duration", time.Since(begin)),
		)
	}(time.Now())
	return s.next.GetAllDocuments(ctx)
}

// Close delegates to the wrapped store.
func (s *LoggingVectorStore) Close() error {
	return s.next.Close()
}

// log writes msg at info level, or at error level with the error attached.
func log(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	if err != nil {
		logger.Error(msg, append(fields, zap.Error(err))...)
		return
	}
	logger.Info(msg, fields...)
}
