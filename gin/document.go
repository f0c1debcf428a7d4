package gin

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fwojciec/ragchat"
	"github.com/gin-gonic/gin"
)

// DefaultMaxUploadSize limits the body of a document upload.
const DefaultMaxUploadSize = 32 << 20

func (s *Server) registerDocumentRoutes(r *gin.RouterGroup) {
	r.GET("", s.handleListDocuments)
	r.POST("", s.handleAddDocument)
	r.DELETE("/:id", s.handleRemoveDocument)
}

func (s *Server) handleListDocuments(c *gin.Context) {
	if s.Documents == nil {
		s.Error(c, notConfigured("document storage"))
		return
	}
	docs, err := s.Documents.GetAllDocuments(c.Request.Context())
	if err != nil {
		s.Error(c, err)
		return
	}
	if docs == nil {
		docs = []*ragchat.DocumentMetadata{}
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

type addDocumentRequest struct {
	URL string `json:"url"`
}

// handleAddDocument stores a document uploaded as the multipart "file"
// field, or fetched from the URL in a JSON body.
func (s *Server) handleAddDocument(c *gin.Context) {
	if s.Documents == nil {
		s.Error(c, notConfigured("document storage"))
		return
	}

	var (
		docs []*ragchat.Document
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		docs, err = s.readUpload(c)
	} else {
		docs, err = s.fetchURL(c)
	}
	if err != nil {
		s.Error(c, err)
		return
	}

	id, err := s.Documents.SaveDocument(c.Request.Context(), docs)
	if err != nil {
		s.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) readUpload(c *gin.Context) ([]*ragchat.Document, error) {
	if s.Reader == nil {
		return nil, notConfigured("document reading")
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxUploadSize)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ragchat.Errorf(ragchat.EINVALID, "upload exceeds %d bytes", tooLarge.Limit)
		}
		return nil, ragchat.Errorf(ragchat.EINVALID, "file field required")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var docs []*ragchat.Document
	switch ext := strings.ToLower(filepath.Ext(fh.Filename)); ext {
	case ".pdf":
		docs, err = s.Reader.DocumentFromPDF(data)
	case ".html", ".htm":
		docs, err = s.Reader.DocumentFromHTML(data)
	case ".txt", ".md":
		docs, err = s.Reader.DocumentFromTXT(data)
	default:
		return nil, ragchat.Errorf(ragchat.ENOTIMPLEMENTED, "unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]string)
		}
		if doc.Metadata[ragchat.MetaName] == "" {
			doc.Metadata[ragchat.MetaName] = filepath.Base(fh.Filename)
		}
	}
	return docs, nil
}

func (s *Server) fetchURL(c *gin.Context) ([]*ragchat.Document, error) {
	var req addDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, ragchat.Errorf(ragchat.EINVALID, "invalid JSON body: %s", err)
	}
	if req.URL == "" {
		return nil, ragchat.Errorf(ragchat.EINVALID, "url required")
	}
	if s.Fetcher == nil {
		return nil, notConfigured("URL fetching")
	}
	return s.Fetcher.FetchDocument(c.Request.Context(), req.URL)
}

func (s *Server) handleRemoveDocument(c *gin.Context) {
	if s.Documents == nil {
		s.Error(c, notConfigured("document storage"))
		return
	}
	id := c.Param("id")
	removed, err := s.Documents.RemoveDocument(c.Request.Context(), id)
	if err != nil {
		s.Error(c, err)
		return
	}
	if !removed {
		s.Error(c, ragchat.Errorf(ragchat.ENOTFOUND, "document %q not found", id))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSearch(c *gin.Context) {
	if s.Documents == nil {
		s.Error(c, notConfigured("document storage"))
		return
	}
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		s.Error(c, ragchat.Errorf(ragchat.EINVALID, "query parameter q required"))
		return
	}
	k := 0
	if v := c.Query("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.Error(c, ragchat.Errorf(ragchat.EINVALID, "k must be a non-negative integer"))
			return
		}
		k = n
	}

	results, err := s.Documents.SimilaritySearch(c.Request.Context(), query, k)
	if err != nil {
		s.Error(c, err)
		return
	}
	if results == nil {
		results = []*ragchat.SearchResult{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(c *gin.Context) {
	if s.Asker == nil {
		s.Error(c, notConfigured("question answering"))
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.Error(c, ragchat.Errorf(ragchat.EINVALID, "invalid JSON body: %s", err))
		return
	}
	answer, err := s.Asker.Ask(c.Request.Context(), req.Question)
	if err != nil {
		s.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
