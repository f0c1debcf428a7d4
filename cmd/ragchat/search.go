package main

import (
	"fmt"

	"github.com/fwojciec/ragchat"
)

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	results, err := deps.Documents.SimilaritySearch(deps.Ctx, c.Query, c.K)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", ragchat.ErrorMessage(err))
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(deps.Stdout, "No matching fragments found.")
		return nil
	}

	fmt.Fprintln(deps.Stdout, ragchat.FormatFragments(results))
	return nil
}
