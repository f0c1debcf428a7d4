package main

import (
	"fmt"

	"github.com/fwojciec/ragchat"
)

// Run executes the ask command.
func (c *AskCmd) Run(deps *Dependencies) error {
	answer, err := deps.Asker.Ask(deps.Ctx, c.Question)
	if err != nil {
		if ragchat.ErrorCode(err) == ragchat.ENOTFOUND {
			fmt.Fprintf(deps.Stderr, "error: %s. Use 'ragchat add' to add documents.\n", ragchat.ErrorMessage(err))
			return err
		}
		fmt.Fprintf(deps.Stderr, "error: %s\n", ragchat.ErrorMessage(err))
		return err
	}

	fmt.Fprintln(deps.Stdout, answer)
	return nil
}
