package zap

import (
	"context"
	"time"

	"github.com/fwojciec/ragchat"
	"go.uber.org/zap"
)

// Ensure LoggingDocumentService implements ragchat.DocumentService.
var _ ragchat.DocumentService = (*LoggingDocumentService)(nil)

// LoggingDocumentService wraps a DocumentService with operation logging.
type LoggingDocumentService struct {
	next   ragchat.DocumentService
	logger *zap.Logger
}

// NewLoggingDocumentService creates a new LoggingDocumentService.
func NewLoggingDocumentService(next ragchat.DocumentService, logger *zap.Logger) *LoggingDocumentService {
	return &LoggingDocumentService{next: next, logger: logger}
}

// SaveDocument delegates to the wrapped service and logs the operation.
func (s *LoggingDocumentService) SaveDocument(ctx context.Context, docs []*ragchat.Document) (id string, err error) {
	defer func(begin time.Time) {
		fields := []zap.Field{
			zap.String("id", id),
			zap.Int("parts", len(docs)),
			zap.Duration("duration", time.Since(begin)),
		}
		if len(docs) > 0 {
			fields = append(fields, zap.String("source", docs[0].Metadata[ragchat.MetaSource]))
		}
		log(s.logger, "save document", err, fields...)
	}(time.Now())
	return s.next.SaveDocument(ctx, docs)
}

// SimilaritySearch delegates to the wrapped service and logs the operation.
func (s *LoggingDocumentService) SimilaritySearch(ctx context.Context, query string, k int) (results []*ragchat.SearchResult, err error) {
	defer func(begin time.Time) {
		log(s.logger, "similarity search", err,
			zap.Int("k", k),
			zap.Int("count", len(results)),
			zap.Duration("duration", time.Since(begin)),
		)
	}(time.Now())
	return s.next.SimilaritySearch(ctx, query, k)
}

// GetAllDocuments delegates to the wrapped service.
func (s *LoggingDocumentService) GetAllDocuments(ctx context.Context) ([]*ragchat.DocumentMetadata, error) {
	return s.next.GetAllDocuments(ctx)
}

// RemoveDocument delegates to the wrapped service and logs the operation.
func (s *LoggingDocumentService) RemoveDocument(ctx context.Context, id string) (removed bool, err error) {
	defer func(begin time.Time) {
		log(s.logger, "remove document", err,
			zap.String("id", id),
			zap.Bool("removed", removed),
			zap.Duration("duration", time.Since(begin)),
		)
	}(time.Now())
	return s.next.RemoveDocument(ctx, id)
}
