// Package gin serves the ragchat HTTP API.
package gin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/fwojciec/ragchat"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ShutdownTimeout is the time given for outstanding requests to finish
// before shutdown.
const ShutdownTimeout = 5 * time.Second

// RequestIDHeader carries the request id. A client-supplied id is kept,
// otherwise one is generated.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// Server is the HTTP API. Services left nil answer with ENOTIMPLEMENTED.
type Server struct {
	ln     net.Listener
	server *http.Server
	router *gin.Engine
	logger *zap.Logger

	// Addr is the bind address, e.g. ":8080". Set before Open.
	Addr string

	// MaxUploadSize limits the request body of a file upload.
	MaxUploadSize int64

	Documents  ragchat.DocumentService
	Reader     ragchat.DocumentReader
	Fetcher    ragchat.Fetcher
	Asker      ragchat.Asker
	Queries    ragchat.QueryGenerator
	Interactor ragchat.QueryInteractor
}

// NewServer returns a server with its routes registered. A nil logger
// disables request logging.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router:        gin.New(),
		logger:        logger,
		MaxUploadSize: DefaultMaxUploadSize,
	}
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.router.Use(requestID)
	s.router.Use(ginzap.GinzapWithConfig(logger, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{zap.String(requestIDKey, c.GetString(requestIDKey))}
		},
	}))
	s.router.Use(ginzap.RecoveryWithZap(logger, true))

	s.router.GET("/health", s.handleHealth)
	s.registerDocumentRoutes(s.router.Group("/documents"))
	s.router.GET("/search", s.handleSearch)
	s.router.POST("/ask", s.handleAsk)
	s.registerQueryRoutes(s.router.Group("/queries"))

	return s
}

// ServeHTTP routes a request; it lets tests exercise the API without a
// listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Open starts listening on Addr and serves requests in the background.
func (s *Server) Open() (err error) {
	if s.ln, err = net.Listen("tcp", s.Addr); err != nil {
		return err
	}
	go func() {
		if err := s.server.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

// URL returns the base URL of a running server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func requestID(c *gin.Context) {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDKey, id)
	c.Header(RequestIDHeader, id)
	c.Next()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Error writes err as a JSON error response with the status matching its
// code. Internal errors are logged and their details withheld.
func (s *Server) Error(c *gin.Context, err error) {
	code, message := ragchat.ErrorCode(err), ragchat.ErrorMessage(err)
	if code == ragchat.EINTERNAL {
		s.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		message = "internal error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(ErrorStatusCode(code), gin.H{"error": message})
}

var codes = map[string]int{
	ragchat.ECONFLICT:       http.StatusConflict,
	ragchat.EINVALID:        http.StatusBadRequest,
	ragchat.ENOTFOUND:       http.StatusNotFound,
	ragchat.ENOTIMPLEMENTED: http.StatusNotImplemented,
	ragchat.EUNAVAILABLE:    http.StatusServiceUnavailable,
	ragchat.EINTERNAL:       http.StatusInternalServerError,
}

// ErrorStatusCode returns the HTTP status code for an error code.
func ErrorStatusCode(code string) int {
	if v, ok := codes[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

func notConfigured(what string) error {
	return ragchat.Errorf(ragchat.ENOTIMPLEMENTED, "%s is not configured", what)
}
