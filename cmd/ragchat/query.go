package main

import (
	"fmt"

	"github.com/fwojciec/ragchat"
)

// Run executes the query command.
func (c *QueryCmd) Run(deps *Dependencies) error {
	language := c.Language
	if language == "" && deps.Config != nil {
		language = deps.Config.Query.Language
	}

	generated, err := deps.Queries.GenerateQuery(deps.Ctx, c.Question, language)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", ragchat.ErrorMessage(err))
		return err
	}

	fmt.Fprintln(deps.Stdout, generated.Query)

	if c.Explain {
		explanation, err := deps.Interactor.ExplainQuery(deps.Ctx, generated.Context())
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", ragchat.ErrorMessage(err))
			return err
		}
		fmt.Fprintf(deps.Stdout, "\n%s\n", explanation)
	}

	return nil
}
