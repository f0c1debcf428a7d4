package gemini

import (
	"context"

	"github.com/fwojciec/ragchat"
	"google.golang.org/genai"
)

// Ensure Embedder implements ragchat.Embedder at compile time.
var _ ragchat.Embedder = (*Embedder)(nil)

// Embedder implements ragchat.Embedder using Gemini embedding models.
// Documents and queries are embedded with the matching retrieval task
// types.
type Embedder struct {
	client *genai.Client
	model  string
}

// NewEmbedder creates an Embedder. An empty model uses
// DefaultEmbeddingModel.
func NewEmbedder(client *genai.Client, model string) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{client: client, model: model}
}

// EmbedDocuments implements ragchat.Embedder.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

// EmbedQuery implements ragchat.Embedder.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// ModelName implements ragchat.Embedder.
func (e *Embedder) ModelName() string {
	return e.model
}

func (e *Embedder) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: task,
	})
	if err != nil {
		return nil, translateError(err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, ragchat.Errorf(ragchat.EINTERNAL, "gemini: embedding count does not match input")
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}
