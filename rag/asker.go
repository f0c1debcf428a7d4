package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/ragchat"
	"go.uber.org/zap"
)

// SystemPrompt instructs the chat model to answer from retrieved fragments.
const SystemPrompt = "You are an assistant to a biomedical researcher. " +
	"The user message contains fragments of documents retrieved by semantic search, followed by a question. " +
	"Answer the question based on the fragments; if they do not contain the answer, say so."

// Ensure Asker implements ragchat.Asker at compile time.
var _ ragchat.Asker = (*Asker)(nil)

// Asker answers questions from the fragments closest to them.
type Asker struct {
	Search ragchat.SearchService
	Chat   ragchat.ChatService

	// NResults is the number of fragments put in context; zero leaves the
	// choice to the search service.
	NResults int

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// RetryDelays works as in DocumentEmbedder.
	RetryDelays []time.Duration
}

// Ask implements ragchat.Asker.
func (a *Asker) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ragchat.Errorf(ragchat.EINVALID, "question required")
	}

	results, err := a.Search.SimilaritySearch(ctx, question, a.NResults)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", ragchat.Errorf(ragchat.ENOTFOUND, "no documents found")
	}

	delays := a.RetryDelays
	if delays == nil {
		delays = DefaultRetryDelays()
	}
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	resp, err := withRetry(ctx, "chat", delays, logger, func(ctx context.Context) (*ragchat.ChatResponse, error) {
		return a.Chat.Chat(ctx, &ragchat.ChatRequest{
			User:    "rag_asker",
			System:  []string{SystemPrompt},
			Message: BuildUserPrompt(results, question),
		})
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// BuildUserPrompt builds the user prompt containing retrieved fragments
// and the question.
func BuildUserPrompt(results []*ragchat.SearchResult, question string) string {
	var sb strings.Builder
	sb.WriteString("<fragments>\n")
	sb.WriteString(ragchat.FormatFragments(results))
	sb.WriteString("\n</fragments>\n\n")
	fmt.Fprintf(&sb, "Question: %s", question)
	return sb.String()
}
