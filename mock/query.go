package mock

import (
	"context"

	"github.com/fwojciec/ragchat"
)

var _ ragchat.QueryGenerator = (*QueryGenerator)(nil)

// QueryGenerator is a mock implementation of ragchat.QueryGenerator.
type QueryGenerator struct {
	GenerateQueryFn func(ctx context.Context, question, language string) (*ragchat.GeneratedQuery, error)
}

func (g *QueryGenerator) GenerateQuery(ctx context.Context, question, language string) (*ragchat.GeneratedQuery, error) {
	return g.GenerateQueryFn(ctx, question, language)
}

var _ ragchat.QueryInteractor = (*QueryInteractor)(nil)

// QueryInteractor is a mock implementation of ragchat.QueryInteractor.
type QueryInteractor struct {
	ExplainQueryFn func(ctx context.Context, q *ragchat.QueryContext) (string, error)
	UpdateQueryFn  func(ctx context.Context, q *ragchat.QueryContext, request string) (string, error)
}

func (i *QueryInteractor) ExplainQuery(ctx context.Context, q *ragchat.QueryContext) (string, error) {
	return i.ExplainQueryFn(ctx, q)
}

func (i *QueryInteractor) UpdateQuery(ctx context.Context, q *ragchat.QueryContext, request string) (string, error) {
	return i.UpdateQueryFn(ctx, q, request)
}
