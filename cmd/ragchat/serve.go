package main

import (
	"fmt"

	"github.com/fwojciec/ragchat"
)

// Run executes the serve command. It blocks until the context is canceled.
func (c *ServeCmd) Run(deps *Dependencies) error {
	if c.Addr != "" {
		deps.Server.Addr = c.Addr
	}

	if err := deps.Server.Open(); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", ragchat.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Listening on %s\n", deps.Server.URL())

	<-deps.Ctx.Done()
	return deps.Server.Close()
}
