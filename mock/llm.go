package mock

import (
	"context"

	"github.com/fwojciec/ragchat"
)

var _ ragchat.Embedder = (*Embedder)(nil)

// Embedder is a mock implementation of ragchat.Embedder.
type Embedder struct {
	EmbedDocumentsFn func(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQueryFn     func(ctx context.Context, text string) ([]float32, error)
	ModelNameFn      func() string
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedDocumentsFn(ctx, texts)
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.EmbedQueryFn(ctx, text)
}

func (e *Embedder) ModelName() string {
	if e.ModelNameFn == nil {
		return "mock-embedding"
	}
	return e.ModelNameFn()
}

var _ ragchat.TokenCounter = (*TokenCounter)(nil)

// TokenCounter is a mock implementation of ragchat.TokenCounter.
type TokenCounter struct {
	CountTokensFn func(ctx context.Context, text string) (int, error)
}

func (tc *TokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	return tc.CountTokensFn(ctx, text)
}

var _ ragchat.ChatService = (*ChatService)(nil)

// ChatService is a mock implementation of ragchat.ChatService.
type ChatService struct {
	ChatFn func(ctx context.Context, req *ragchat.ChatRequest) (*ragchat.ChatResponse, error)
}

func (s *ChatService) Chat(ctx context.Context, req *ragchat.ChatRequest) (*ragchat.ChatResponse, error) {
	return s.ChatFn(ctx, req)
}

var _ ragchat.Asker = (*Asker)(nil)

// Asker is a mock implementation of ragchat.Asker.
type Asker struct {
	AskFn func(ctx context.Context, question string) (string, error)
}

func (a *Asker) Ask(ctx context.Context, question string) (string, error) {
	return a.AskFn(ctx, question)
}
