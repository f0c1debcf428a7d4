package main

import (
	"fmt"
	"strings"

	"github.com/fwojciec/ragchat"
)

// Run executes the add command. Every source is attempted; the first
// failure is returned after the rest have been processed.
func (c *AddCmd) Run(deps *Dependencies) error {
	var firstErr error
	for _, source := range c.Sources {
		id, err := c.add(deps, source)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "  skip %s: %s\n", source, ragchat.ErrorMessage(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprintf(deps.Stdout, "Added %s (%s)\n", source, id)
	}
	return firstErr
}

func (c *AddCmd) add(deps *Dependencies, source string) (string, error) {
	var (
		docs []*ragchat.Document
		err  error
	)
	if isURL(source) {
		docs, err = deps.Fetcher.FetchDocument(deps.Ctx, source)
	} else {
		docs, err = deps.Reader.LoadDocument(deps.Ctx, source)
	}
	if err != nil {
		return "", err
	}
	return deps.Documents.SaveDocument(deps.Ctx, docs)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
