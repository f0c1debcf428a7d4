package main

import (
	"fmt"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/toml"
)

// Run executes the config command. API keys are masked.
func (c *ConfigCmd) Run(deps *Dependencies) error {
	if err := toml.Encode(deps.Stdout, deps.Config.Redacted()); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", ragchat.ErrorMessage(err))
		return err
	}
	return nil
}
