package openai

import (
	"context"

	"github.com/fwojciec/ragchat"
	"github.com/sashabaranov/go-openai"
)

// Ensure Embedder implements ragchat.Embedder at compile time.
var _ ragchat.Embedder = (*Embedder)(nil)

// Embedder generates embeddings through the embeddings endpoint.
type Embedder struct {
	client *openai.Client
	model  string
}

// NewEmbedder creates an Embedder.
func NewEmbedder(cfg Config) (*Embedder, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	return &Embedder{client: client, model: cfg.Model}, nil
}

// EmbedDocuments implements ragchat.Embedder. Vectors are returned in
// input order regardless of the order the API lists them in.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, translateError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, ragchat.Errorf(ragchat.EINTERNAL, "openai: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, ragchat.Errorf(ragchat.EINTERNAL, "openai: embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// EmbedQuery implements ragchat.Embedder.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// ModelName implements ragchat.Embedder.
func (e *Embedder) ModelName() string {
	return e.model
}
