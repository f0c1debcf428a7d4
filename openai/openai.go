// Package openai implements ragchat embedding and chat services against
// the OpenAI API or any server exposing an OpenAI-compatible API.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/ragchat"
	"github.com/sashabaranov/go-openai"
)

// Default configuration values.
const (
	DefaultEmbeddingModel = "text-embedding-ada-002"
	DefaultChatModel      = "gpt-3.5-turbo"
	DefaultTimeout        = 60 * time.Second
)

// Config holds connection settings shared by the embedder and the chat
// service.
type Config struct {
	// APIKey is required unless BaseURL points at a self-hosted server.
	APIKey string

	// BaseURL overrides the OpenAI endpoint, e.g. "http://localhost:9997/v1".
	BaseURL string

	// Model defaults to DefaultEmbeddingModel or DefaultChatModel.
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration
}

func newClient(cfg Config) (*openai.Client, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, ragchat.Errorf(ragchat.EINVALID, "openai: API key is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	conf.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return openai.NewClientWithConfig(conf), nil
}

// translateError maps API failures onto application error codes so that
// callers can tell retryable conditions from bad requests.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ragchat.Errorf(statusCode(apiErr.HTTPStatusCode), "openai: %s", apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ragchat.Errorf(statusCode(reqErr.HTTPStatusCode), "openai: %v", reqErr.Err)
	}
	return ragchat.Errorf(ragchat.EUNAVAILABLE, "openai: %v", err)
}

func statusCode(status int) string {
	switch {
	case status == http.StatusNotFound:
		return ragchat.ENOTFOUND
	case status == http.StatusTooManyRequests, status >= 500:
		return ragchat.EUNAVAILABLE
	case status >= 400:
		return ragchat.EINVALID
	}
	return ragchat.EINTERNAL
}
