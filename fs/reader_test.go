package fs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/fs"
	"github.com/fwojciec/ragchat/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newParser(format string) *mock.Parser {
	return &mock.Parser{
		ParseFn: func(data []byte) (*ragchat.Document, error) {
			return &ragchat.Document{
				Content:  "parsed: " + string(data),
				Metadata: map[string]string{ragchat.MetaFormat: format},
			}, nil
		},
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDocumentReader_LoadDocument(t *testing.T) {
	t.Parallel()

	t.Run("reads text files as-is", func(t *testing.T) {
		t.Parallel()

		for _, name := range []string{"notes.txt", "notes.md", "NOTES.TXT"} {
			path := writeFile(t, name, "BRCA1 is a tumor suppressor.")
			r := fs.NewDocumentReader(newParser("PDF"), newParser("HTML"))

			docs, err := r.LoadDocument(context.Background(), path)

			require.NoError(t, err)
			require.Len(t, docs, 1)
			assert.Equal(t, "BRCA1 is a tumor suppressor.", docs[0].Content)
			assert.Equal(t, map[string]string{ragchat.MetaSource: path}, docs[0].Metadata)
		}
	})

	t.Run("parses PDF files with the PDF parser", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "paper.pdf", "%PDF-1.4")
		r := fs.NewDocumentReader(newParser("PDF 1.4"), newParser("HTML"))

		docs, err := r.LoadDocument(context.Background(), path)

		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "parsed: %PDF-1.4", docs[0].Content)
		assert.Equal(t, "PDF 1.4", docs[0].Metadata[ragchat.MetaFormat])
		assert.Equal(t, path, docs[0].Metadata[ragchat.MetaSource])
	})

	t.Run("parses HTML files with the HTML parser", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "page.htm", "<p>hi</p>")
		r := fs.NewDocumentReader(newParser("PDF"), newParser("HTML"))

		docs, err := r.LoadDocument(context.Background(), path)

		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "HTML", docs[0].Metadata[ragchat.MetaFormat])
		assert.Equal(t, path, docs[0].Metadata[ragchat.MetaSource])
	})

	t.Run("returns ENOTIMPLEMENTED for unsupported formats", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "table.xlsx", "data")
		r := fs.NewDocumentReader(newParser("PDF"), newParser("HTML"))

		_, err := r.LoadDocument(context.Background(), path)

		require.Error(t, err)
		assert.Equal(t, ragchat.ENOTIMPLEMENTED, ragchat.ErrorCode(err))
	})

	t.Run("returns ENOTFOUND for missing files", func(t *testing.T) {
		t.Parallel()

		r := fs.NewDocumentReader(newParser("PDF"), newParser("HTML"))

		_, err := r.LoadDocument(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))

		require.Error(t, err)
		assert.Equal(t, ragchat.ENOTFOUND, ragchat.ErrorCode(err))
	})

	t.Run("propagates parser errors", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "broken.pdf", "junk")
		broken := &mock.Parser{
			ParseFn: func(data []byte) (*ragchat.Document, error) {
				return nil, ragchat.Errorf(ragchat.EINVALID, "not a PDF document")
			},
		}
		r := fs.NewDocumentReader(broken, newParser("HTML"))

		_, err := r.LoadDocument(context.Background(), path)

		assert.Equal(t, ragchat.EINVALID, ragchat.ErrorCode(err))
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := fs.NewDocumentReader(newParser("PDF"), newParser("HTML"))

		_, err := r.LoadDocument(ctx, writeFile(t, "a.txt", "x"))

		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestDocumentReader_FromBytes(t *testing.T) {
	t.Parallel()

	r := fs.NewDocumentReader(newParser("PDF 1.7"), newParser("HTML"))

	t.Run("pdf", func(t *testing.T) {
		t.Parallel()

		docs, err := r.DocumentFromPDF([]byte("%PDF-1.7"))

		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, fs.SourcePDF, docs[0].Metadata[ragchat.MetaSource])
		assert.Equal(t, "PDF 1.7", docs[0].Metadata[ragchat.MetaFormat])
	})

	t.Run("txt", func(t *testing.T) {
		t.Parallel()

		docs, err := r.DocumentFromTXT([]byte("plain text"))

		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "plain text", docs[0].Content)
		assert.Equal(t, map[string]string{ragchat.MetaSource: fs.SourceTXT}, docs[0].Metadata)
	})

	t.Run("html", func(t *testing.T) {
		t.Parallel()

		docs, err := r.DocumentFromHTML([]byte("<p>x</p>"))

		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, fs.SourceHTML, docs[0].Metadata[ragchat.MetaSource])
	})
}
