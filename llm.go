package ragchat

import "context"

// Embedder converts text into embedding vectors.
type Embedder interface {
	// EmbedDocuments embeds texts for storage, one vector per text in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// ModelName identifies the embedding model.
	ModelName() string
}

// TokenCounter counts tokens in text for a specific model.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// ChatRequest is a single-turn exchange with a chat model.
type ChatRequest struct {
	// User labels the caller for provider-side accounting,
	// e.g. "entity_selector".
	User string

	// Model overrides the service's default model when set.
	Model string

	System  []string
	Message string
}

// TokenUsage reports tokens consumed by a chat exchange.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// ChatResponse is the model's reply to a ChatRequest.
type ChatResponse struct {
	Content string     `json:"content"`
	Usage   TokenUsage `json:"usage"`
}

// ChatService sends messages to a chat completion model.
type ChatService interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Asker answers natural language questions from stored documents.
type Asker interface {
	// Ask answers a question using the most relevant fragments.
	// Returns ENOTFOUND if no documents are stored.
	Ask(ctx context.Context, question string) (string, error)
}
