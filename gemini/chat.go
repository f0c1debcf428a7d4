// Package gemini implements ragchat chat, embedding and token counting
// services on Google Gemini.
package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fwojciec/ragchat"
	"google.golang.org/genai"
)

// Default models.
const (
	DefaultChatModel      = "gemini-2.5-flash"
	DefaultEmbeddingModel = "text-embedding-004"
)

// Ensure ChatService implements ragchat.ChatService at compile time.
var _ ragchat.ChatService = (*ChatService)(nil)

// ChatService implements ragchat.ChatService using Google Gemini.
type ChatService struct {
	client *genai.Client
	model  string
}

// NewChatService creates a ChatService. An empty model uses
// DefaultChatModel.
func NewChatService(client *genai.Client, model string) *ChatService {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatService{client: client, model: model}
}

// Chat implements ragchat.ChatService. Gemini has no per-request user
// label, so req.User is not sent.
func (s *ChatService) Chat(ctx context.Context, req *ragchat.ChatRequest) (*ragchat.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ragchat.Errorf(ragchat.EINVALID, "message required")
	}

	model := s.model
	if req.Model != "" {
		model = req.Model
	}

	result, err := s.client.Models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(req.Message, genai.RoleUser)},
		BuildConfig(req.System),
	)
	if err != nil {
		return nil, translateError(err)
	}
	if result == nil {
		return nil, ragchat.Errorf(ragchat.EINTERNAL, "gemini returned nil result")
	}

	resp := &ragchat.ChatResponse{Content: result.Text()}
	if u := result.UsageMetadata; u != nil {
		resp.Usage = ragchat.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return resp, nil
}

// BuildConfig returns the GenerateContentConfig for Gemini API calls, with
// one system instruction part per system message.
func BuildConfig(system []string) *genai.GenerateContentConfig {
	temp := float32(0)
	config := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if len(system) > 0 {
		parts := make([]*genai.Part, 0, len(system))
		for _, s := range system {
			parts = append(parts, &genai.Part{Text: s})
		}
		config.SystemInstruction = &genai.Content{Parts: parts}
	}
	return config
}

func translateError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return ragchat.Errorf(ragchat.ENOTFOUND, "gemini: %s", apiErr.Message)
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= 500:
			return ragchat.Errorf(ragchat.EUNAVAILABLE, "gemini: %s", apiErr.Message)
		case apiErr.Code >= 400:
			return ragchat.Errorf(ragchat.EINVALID, "gemini: %s", apiErr.Message)
		}
	}
	return ragchat.Errorf(ragchat.EUNAVAILABLE, "gemini: %v", err)
}
