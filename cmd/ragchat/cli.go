package main

import (
	"context"
	"io"

	"github.com/fwojciec/ragchat"
	raggin "github.com/fwojciec/ragchat/gin"
	"github.com/fwojciec/ragchat/toml"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx        context.Context
	Stdout     io.Writer
	Stderr     io.Writer
	Config     *toml.Config
	Documents  ragchat.DocumentService
	Reader     ragchat.DocumentReader
	Fetcher    ragchat.Fetcher
	Asker      ragchat.Asker
	Queries    ragchat.QueryGenerator
	Interactor ragchat.QueryInteractor
	Server     *raggin.Server
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	ConfigFile string `name:"config" short:"c" env:"RAGCHAT_CONFIG" help:"Configuration file (default: ~/.ragchat/config.toml)"`
	Verbose    bool   `short:"v" help:"Log service calls to stderr"`

	Add    AddCmd    `cmd:"" help:"Embed and store documents from files or URLs"`
	List   ListCmd   `cmd:"" help:"List stored documents"`
	Delete DeleteCmd `cmd:"" help:"Remove a stored document and its fragments"`
	Search SearchCmd `cmd:"" help:"Show the fragments most similar to a query"`
	Ask    AskCmd    `cmd:"" help:"Answer a question from stored documents"`
	Query  QueryCmd  `cmd:"" help:"Generate a database query from a question"`
	Serve  ServeCmd  `cmd:"" help:"Serve the HTTP API"`
	Config ConfigCmd `cmd:"" help:"Print the effective configuration"`
}

// AddCmd is the "add" subcommand.
type AddCmd struct {
	Sources []string `arg:"" help:"Files (.pdf, .html, .txt, .md) or http(s) URLs"`
}

// ListCmd is the "list" subcommand.
type ListCmd struct{}

// DeleteCmd is the "delete" subcommand.
type DeleteCmd struct {
	ID    string `arg:"" help:"Document id"`
	Force bool   `help:"Confirm deletion"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Query string `arg:"" help:"Search text"`
	K     int    `short:"k" help:"Number of fragments (default: retrieval.n_results)"`
}

// AskCmd is the "ask" subcommand.
type AskCmd struct {
	Question string `arg:"" help:"Question to answer"`
}

// QueryCmd is the "query" subcommand.
type QueryCmd struct {
	Question string `arg:"" help:"Question to translate into a query"`
	Language string `short:"l" help:"Query language (default: query.language)"`
	Schema   string `short:"s" help:"Schema file: BioCypher YAML, SQL DDL, or table JSON (default: query.schema)"`
	Explain  bool   `short:"e" help:"Also explain the generated query"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	Addr string `help:"Listen address (default: server.addr)"`
}

// ConfigCmd is the "config" subcommand.
type ConfigCmd struct{}
