package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/fwojciec/ragchat"
)

// UserQueryInteractor labels explain and update requests.
const UserQueryInteractor = "query_interactor"

// Ensure QueryHandler implements ragchat.QueryInteractor at compile time.
var _ ragchat.QueryInteractor = (*QueryHandler)(nil)

// QueryHandler explains and updates generated queries.
type QueryHandler struct {
	Chat ragchat.ChatService

	// Model overrides the chat service's default model when set.
	Model string
}

// ExplainQuery asks the model to explain what the query does.
func (h *QueryHandler) ExplainQuery(ctx context.Context, q *ragchat.QueryContext) (string, error) {
	if q == nil {
		return "", ragchat.Errorf(ragchat.EINVALID, "query required")
	}
	if err := q.Validate(); err != nil {
		return "", err
	}

	entities, rels, props := describe(q.Selected)
	system := fmt.Sprintf("You are an expert in %s and will assist in explaining a query.\n"+
		"The query answers the following user question: '%s'. "+
		"It will be used to query a knowledge graph that contains (among others) "+
		"the following entities: %s, relationships: %s, and properties: %s. "+
		"Only return the explanation, without any additional text.",
		q.Language, q.Question, entities, rels, props)

	return h.chat(ctx, system, q.Query)
}

// UpdateQuery asks the model to revise the query according to request.
// The full knowledge graph is described when known, otherwise the
// selection the query was generated from.
func (h *QueryHandler) UpdateQuery(ctx context.Context, q *ragchat.QueryContext, request string) (string, error) {
	if q == nil {
		return "", ragchat.Errorf(ragchat.EINVALID, "query required")
	}
	if err := q.Validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(request) == "" {
		return "", ragchat.Errorf(ragchat.EINVALID, "update request required")
	}

	kg := q.KG
	if kg == nil {
		kg = q.Selected
	}
	entities, rels, props := describe(kg)
	system := fmt.Sprintf("You are an expert in %s and will assist in updating a query.\n"+
		"The original query answers the following user question: '%s'. "+
		"This is the original query: '%s'. "+
		"It will be used to query a knowledge graph that has the following entities: %s, relationships: %s, and properties: %s. "+
		"Update the query to reflect the user's request. "+
		"Only return the updated query, without any additional text.",
		q.Language, q.Question, q.Query, entities, rels, props)

	reply, err := h.chat(ctx, system, request)
	if err != nil {
		return "", err
	}
	return stripFence(reply), nil
}

func (h *QueryHandler) chat(ctx context.Context, system, message string) (string, error) {
	resp, err := h.Chat.Chat(ctx, &ragchat.ChatRequest{
		User:    UserQueryInteractor,
		Model:   h.Model,
		System:  []string{system},
		Message: message,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// describe returns the entities, relationship labels, and properties of kg
// as prompt text, in that order.
func describe(kg *ragchat.KGSelection) (string, string, string) {
	return jsonText(kg.Entities), jsonText(kg.RelationshipLabels()), jsonText(kg.Properties)
}
