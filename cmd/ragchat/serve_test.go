package main_test

import (
	"bytes"
	"context"
	"testing"

	main "github.com/fwojciec/ragchat/cmd/ragchat"
	raggin "github.com/fwojciec/ragchat/gin"
	"github.com/fwojciec/ragchat/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCmd_Run_StopsWhenContextIsCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stdout := &bytes.Buffer{}
	deps := &main.Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: &bytes.Buffer{},
		Server: raggin.NewServer(nil),
	}

	err := (&main.ServeCmd{Addr: "127.0.0.1:0"}).Run(deps)

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Listening on http://127.0.0.1:")
}

func TestConfigCmd_Run_MasksKeys(t *testing.T) {
	t.Parallel()

	cfg := toml.DefaultConfig()
	cfg.Embedding.APIKey = "sk-embedding"
	stdout := &bytes.Buffer{}
	deps := &main.Dependencies{
		Ctx:    context.Background(),
		Stdout: stdout,
		Stderr: &bytes.Buffer{},
		Config: cfg,
	}

	err := (&main.ConfigCmd{}).Run(deps)

	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "[embedding]")
	assert.NotContains(t, stdout.String(), "sk-embedding")
	assert.Equal(t, "sk-embedding", cfg.Embedding.APIKey)
}
