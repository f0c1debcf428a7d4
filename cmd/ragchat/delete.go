package main

import (
	"fmt"

	"github.com/fwojciec/ragchat"
)

// Run executes the delete command.
func (c *DeleteCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm deletion\n")
		return ragchat.Errorf(ragchat.EINVALID, "use --force to confirm deletion")
	}

	removed, err := deps.Documents.RemoveDocument(deps.Ctx, c.ID)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", ragchat.ErrorMessage(err))
		return err
	}

	if !removed {
		fmt.Fprintf(deps.Stderr, "error: document %q not found. Use 'ragchat list' to see stored documents.\n", c.ID)
		return ragchat.Errorf(ragchat.ENOTFOUND, "document %q not found", c.ID)
	}

	fmt.Fprintf(deps.Stdout, "Deleted document %s\n", c.ID)
	return nil
}
