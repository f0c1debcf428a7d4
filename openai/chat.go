package openai

import (
	"context"
	"strings"

	"github.com/fwojciec/ragchat"
	"github.com/sashabaranov/go-openai"
)

// Ensure ChatService implements ragchat.ChatService at compile time.
var _ ragchat.ChatService = (*ChatService)(nil)

// ChatService sends single-turn conversations to the chat completions
// endpoint.
type ChatService struct {
	client *openai.Client
	model  string
}

// NewChatService creates a ChatService.
func NewChatService(cfg Config) (*ChatService, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultChatModel
	}
	return &ChatService{client: client, model: cfg.Model}, nil
}

// Chat implements ragchat.ChatService. System messages precede the user
// message in the order given.
func (s *ChatService) Chat(ctx context.Context, req *ragchat.ChatRequest) (*ragchat.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ragchat.Errorf(ragchat.EINVALID, "message required")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.System)+1)
	for _, sys := range req.System {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: sys,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	model := s.model
	if req.Model != "" {
		model = req.Model
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		User:     req.User,
	})
	if err != nil {
		return nil, translateError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ragchat.Errorf(ragchat.EINTERNAL, "openai: no choices in response")
	}

	return &ragchat.ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: ragchat.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
