package main_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/fwojciec/ragchat"
	main "github.com/fwojciec/ragchat/cmd/ragchat"
	"github.com/fwojciec/ragchat/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("lists stored documents", func(t *testing.T) {
		t.Parallel()

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:    context.Background(),
			Stdout: stdout,
			Stderr: &bytes.Buffer{},
			Documents: &mock.DocumentService{
				GetAllDocumentsFn: func(context.Context) ([]*ragchat.DocumentMetadata, error) {
					return []*ragchat.DocumentMetadata{
						{ID: "1", Title: "BRCA1 review", Source: "/papers/brca1.pdf"},
						{ID: "2", Title: "unknown", Name: "notes.txt", Source: "/notes.txt"},
					}, nil
				},
			},
		}

		err := (&main.ListCmd{}).Run(deps)

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "1  BRCA1 review  /papers/brca1.pdf")
		assert.Contains(t, stdout.String(), "/notes.txt")
	})

	t.Run("prints hint when empty", func(t *testing.T) {
		t.Parallel()

		stdout := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:    context.Background(),
			Stdout: stdout,
			Stderr: &bytes.Buffer{},
			Documents: &mock.DocumentService{
				GetAllDocumentsFn: func(context.Context) ([]*ragchat.DocumentMetadata, error) {
					return nil, nil
				},
			},
		}

		err := (&main.ListCmd{}).Run(deps)

		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "ragchat add")
	})

	t.Run("reports store errors", func(t *testing.T) {
		t.Parallel()

		stderr := &bytes.Buffer{}
		deps := &main.Dependencies{
			Ctx:    context.Background(),
			Stdout: &bytes.Buffer{},
			Stderr: stderr,
			Documents: &mock.DocumentService{
				GetAllDocumentsFn: func(context.Context) ([]*ragchat.DocumentMetadata, error) {
					return nil, ragchat.Errorf(ragchat.EUNAVAILABLE, "store not connected")
				},
			},
		}

		err := (&main.ListCmd{}).Run(deps)

		require.Error(t, err)
		assert.Contains(t, stderr.String(), "error: store not connected")
	})
}
