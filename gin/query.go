package gin

import (
	"errors"
	"net/http"

	"github.com/fwojciec/ragchat"
	"github.com/gin-gonic/gin"
)

func (s *Server) registerQueryRoutes(r *gin.RouterGroup) {
	r.POST("", s.handleGenerateQuery)
	r.POST("/explain", s.handleExplainQuery)
	r.POST("/update", s.handleUpdateQuery)
}

type generateQueryRequest struct {
	Question string `json:"question"`
	Language string `json:"language"`
}

func (s *Server) handleGenerateQuery(c *gin.Context) {
	if s.Queries == nil {
		s.Error(c, notConfigured("query generation"))
		return
	}
	var req generateQueryRequest
	if err := bindJSON(c, &req); err != nil {
		s.Error(c, err)
		return
	}
	q, err := s.Queries.GenerateQuery(c.Request.Context(), req.Question, req.Language)
	if err != nil {
		s.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) handleExplainQuery(c *gin.Context) {
	if s.Interactor == nil {
		s.Error(c, notConfigured("query interaction"))
		return
	}
	var req ragchat.QueryContext
	if err := bindJSON(c, &req); err != nil {
		s.Error(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.Error(c, err)
		return
	}
	explanation, err := s.Interactor.ExplainQuery(c.Request.Context(), &req)
	if err != nil {
		s.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explanation": explanation})
}

type updateQueryRequest struct {
	ragchat.QueryContext
	Request string `json:"request"`
}

func (s *Server) handleUpdateQuery(c *gin.Context) {
	if s.Interactor == nil {
		s.Error(c, notConfigured("query interaction"))
		return
	}
	var req updateQueryRequest
	if err := bindJSON(c, &req); err != nil {
		s.Error(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.Error(c, err)
		return
	}
	query, err := s.Interactor.UpdateQuery(c.Request.Context(), &req.QueryContext, req.Request)
	if err != nil {
		s.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query})
}

// bindJSON decodes the request body into v. Errors raised while decoding
// domain types keep their code and message.
func bindJSON(c *gin.Context, v any) error {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return nil
	}
	var e *ragchat.Error
	if errors.As(err, &e) {
		return e
	}
	return ragchat.Errorf(ragchat.EINVALID, "invalid JSON body: %s", err)
}
