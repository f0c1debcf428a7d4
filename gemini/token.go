package gemini

import (
	"context"

	"github.com/fwojciec/ragchat"
	"google.golang.org/genai"
	"google.golang.org/genai/tokenizer"
)

var _ ragchat.TokenCounter = (*TokenCounter)(nil)

// TokenCounter counts tokens offline with the local Gemini tokenizer, so
// splitting documents by tokens makes no API calls.
type TokenCounter struct {
	model string
	tok   *tokenizer.LocalTokenizer
}

// NewTokenCounter creates a TokenCounter for model. An empty model uses
// DefaultChatModel. Models without a local tokenizer are EINVALID.
func NewTokenCounter(model string) (*TokenCounter, error) {
	if model == "" {
		model = DefaultChatModel
	}
	tok, err := tokenizer.NewLocalTokenizer(model)
	if err != nil {
		return nil, ragchat.Errorf(ragchat.EINVALID, "no local tokenizer for model %q: %v", model, err)
	}
	return &TokenCounter{model: model, tok: tok}, nil
}

// Model returns the model whose tokenizer is used.
func (tc *TokenCounter) Model() string {
	return tc.model
}

// CountTokens implements ragchat.TokenCounter.
func (tc *TokenCounter) CountTokens(_ context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	result, err := tc.tok.CountTokens([]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, nil)
	if err != nil {
		return 0, ragchat.Errorf(ragchat.EINTERNAL, "count tokens: %v", err)
	}
	return int(result.TotalTokens), nil
}
