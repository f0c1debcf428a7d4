// Package xinference discovers models served by an Xinference server.
// Embedding requests go through the server's OpenAI-compatible endpoint
// using package openai.
package xinference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/openai"
)

// DefaultTimeout is the default timeout for model listing requests.
const DefaultTimeout = 30 * time.Second

// AutoModel selects the first embedding model the server reports.
const AutoModel = "auto"

// Model describes a model launched on the server.
type Model struct {
	UID     string   `json:"id"`
	Name    string   `json:"model_name"`
	Type    string   `json:"model_type"`
	Ability []string `json:"model_ability,omitempty"`
}

// HasType reports whether the model serves the given type. Abilities take
// precedence over the model type when the server reports them.
func (m *Model) HasType(typ string) bool {
	if m.Ability != nil {
		return slices.Contains(m.Ability, typ)
	}
	return m.Type == typ
}

// Client talks to the Xinference REST API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a Client for the server at baseURL,
// e.g. "http://localhost:9997".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// ListModels returns the running models in the order the server lists them.
func (c *Client) ListModels(ctx context.Context) ([]*Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ragchat.Errorf(ragchat.EUNAVAILABLE, "xinference: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ragchat.Errorf(ragchat.EUNAVAILABLE, "xinference: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return decodeModels(body)
}

// decodeModels accepts both the OpenAI-style list and the older mapping
// of model UID to model description.
func decodeModels(body []byte) ([]*Model, error) {
	var list struct {
		Data []*Model `json:"data"`
	}
	if err := json.Unmarshal(body, &list); err == nil && list.Data != nil {
		return list.Data, nil
	}

	var byUID map[string]*Model
	if err := json.Unmarshal(body, &byUID); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	uids := make([]string, 0, len(byUID))
	for uid := range byUID {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	models := make([]*Model, 0, len(uids))
	for _, uid := range uids {
		m := byUID[uid]
		if m == nil {
			continue
		}
		m.UID = uid
		models = append(models, m)
	}
	return models, nil
}

// ModelsByType returns the names of running models that serve typ,
// e.g. "embedding" or "chat".
func (c *Client) ModelsByType(ctx context.Context, typ string) ([]string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, m := range models {
		if m.HasType(typ) {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

// ResolveEmbeddingModel finds the model to embed with. An empty model or
// AutoModel picks the first embedding model; anything else must match a
// running model's UID or name.
func (c *Client) ResolveEmbeddingModel(ctx context.Context, model string) (*Model, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	if model == "" || model == AutoModel {
		for _, m := range models {
			if m.HasType("embedding") {
				return m, nil
			}
		}
		return nil, ragchat.Errorf(ragchat.ENOTFOUND, "no embedding model running on %s", c.baseURL)
	}

	for _, m := range models {
		if m.UID == model || m.Name == model {
			return m, nil
		}
	}
	return nil, ragchat.Errorf(ragchat.ENOTFOUND, "model %q not running on %s", model, c.baseURL)
}

// NewEmbedder resolves model and returns an embedder bound to its UID.
func (c *Client) NewEmbedder(ctx context.Context, model string) (*openai.Embedder, error) {
	m, err := c.ResolveEmbeddingModel(ctx, model)
	if err != nil {
		return nil, err
	}
	apiKey := c.apiKey
	if apiKey == "" {
		apiKey = "none"
	}
	return openai.NewEmbedder(openai.Config{
		APIKey:  apiKey,
		BaseURL: c.baseURL + "/v1",
		Model:   m.UID,
	})
}
