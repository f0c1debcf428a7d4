package zap

import (
	"context"
	"time"

	"github.com/fwojciec/ragchat"
	"go.uber.org/zap"
)

// Ensure LoggingEmbedder implements ragchat.Embedder.
var _ ragchat.Embedder = (*LoggingEmbedder)(nil)

// LoggingEmbedder wraps an Embedder with call logging.
type LoggingEmbedder struct {
	next   ragchat.Embedder
	logger *zap.Logger
}

// NewLoggingEmbedder creates a new LoggingEmbedder.
func NewLoggingEmbedder(next ragchat.Embedder, logger *zap.Logger) *LoggingEmbedder {
	return &LoggingEmbedder{next: next, logger: logger}
}

// EmbedDocuments delegates to the wrapped embedder and logs the call.
func (e *LoggingEmbedder) EmbedDocuments(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	defer func(begin time.Time) {
		log(e.logger, "embed documents", err,
			zap.String("model", e.next.ModelName()),
			zap.Int("count", len(texts)),
			zap.Duration("duration", time.Since(begin)),
		)
	}(time.Now())
	return e.next.EmbedDocuments(ctx, texts)
}

// EmbedQuery delegates to the wrapped embedder and logs the call.
func (e *LoggingEmbedder) EmbedQuery(ctx context.Context, text string) (vector []float32, err error) {
	defer func(begin time.Time) {
		log(e.logger, "embed query", err,
			zap.String("model", e.next.ModelName()),
			zap.Int("dimensions", len(vector)),
			zap.Duration("duration", time.Since(begin)),
		)
	}(time.Now())
	return e.next.EmbedQuery(ctx, text)
}

// ModelName delegates to the wrapped embedder.
func (e *LoggingEmbedder) ModelName() string {
	return e.next.ModelName()
}

// Ensure LoggingChatService implements ragchat.ChatService.
var _ ragchat.ChatService = (*LoggingChatService)(nil)

// LoggingChatService wraps a ChatService with call logging. Messages are
// not logged.
type LoggingChatService struct {
	next   ragchat.ChatService
	logger *zap.Logger
}

// NewLoggingChatService creates a new LoggingChatService.
func NewLoggingChatService(next ragchat.ChatService, logger *zap.Logger) *LoggingChatService {
	return &LoggingChatService{next: next, logger: logger}
}

// Chat delegates to the wrapped service and logs the call with its token
// usage.
func (s *LoggingChatService) Chat(ctx context.Context, req *ragchat.ChatRequest) (resp *ragchat.ChatResponse, err error) {
	defer func(begin time.Time) {
		fields := []zap.Field{
			zap.String("user", req.User),
			zap.Duration("duration", time.Since(begin)),
		}
		if resp != nil {
			fields = append(fields,
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)
		}
		log(s.logger, "chat", err, fields...)
	}(time.Now())
	return s.next.Chat(ctx, req)
}
