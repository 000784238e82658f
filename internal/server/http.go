// Package server exposes searches over a small JSON HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/coursefinder/internal/pipeline"
	"github.com/FranksOps/coursefinder/internal/progress"
	"github.com/FranksOps/coursefinder/internal/ranking"
	"github.com/FranksOps/coursefinder/internal/session"
	"github.com/FranksOps/coursefinder/internal/storage"
	"github.com/gin-gonic/gin"
)

// UserHeader carries the requester identity when the body does not.
const UserHeader = "X-User-Key"

// Searcher runs one search. *pipeline.Pipeline implements it.
type Searcher interface {
	Search(ctx context.Context, req pipeline.Request, rep *progress.Reporter) (*pipeline.ResultSet, error)
}

// Config configures the HTTP server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// HTTPServer serves the search API.
type HTTPServer struct {
	server   *http.Server
	router   *gin.Engine
	searcher Searcher
	sessions *session.Store
	history  storage.HistoryStore
	logger   *slog.Logger
}

// New builds the server and its routes. history may be nil.
func New(cfg Config, searcher Searcher, sessions *session.Store, history storage.HistoryStore, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	s := &HTTPServer{
		router:   router,
		searcher: searcher,
		sessions: sessions,
		history:  history,
		logger:   logger,
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api/v1")
	api.POST("/search", s.handleSearch)
	api.GET("/sessions/:user", s.handlePage)
	api.GET("/sessions/:user/results/:index", s.handleResult)
	api.GET("/history/:user", s.handleHistory)

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until Stop is called.
func (s *HTTPServer) Serve(l net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", l.Addr().String())
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start listens on the configured address.
func (s *HTTPServer) Start() error {
	l, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Stop gracefully shuts the server down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

type searchRequest struct {
	Query    string `json:"query"`
	Platform string `json:"platform"`
	Cap      int    `json:"cap"`
	User     string `json:"user"`
}

type pageResponse struct {
	Query     string           `json:"query"`
	Results   []ranking.Result `json:"results"`
	Survivors int              `json:"survivors"`
	More      int              `json:"more"`
	Page      int              `json:"page"`
	PageCount int              `json:"page_count"`
}

func newPageResponse(rs *pipeline.ResultSet) pageResponse {
	items := rs.Items()
	if items == nil {
		items = []ranking.Result{}
	}
	return pageResponse{
		Query:     rs.Query,
		Results:   items,
		Survivors: rs.Survivors,
		More:      rs.More(),
		Page:      rs.Page,
		PageCount: rs.PageCount(),
	}
}

func userKey(c *gin.Context, fromBody string) string {
	if u := strings.TrimSpace(fromBody); u != "" {
		return u
	}
	if u := strings.TrimSpace(c.GetHeader(UserHeader)); u != "" {
		return u
	}
	return c.ClientIP()
}

func (s *HTTPServer) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user := userKey(c, req.User)

	rs, err := s.searcher.Search(c.Request.Context(), pipeline.Request{
		Query:    req.Query,
		Platform: req.Platform,
		Cap:      req.Cap,
		UserKey:  user,
	}, nil)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusTooManyRequests {
			c.Header("Retry-After", "60")
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	// Render before publishing rs; the session store may page it afterwards.
	resp := newPageResponse(rs)
	if s.sessions != nil {
		s.sessions.Put(user, req.Query, rs)
	}
	c.JSON(http.StatusOK, resp)
}

// statusFor maps a search error to a status and a fixed client message.
// Causes stay in the logs.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		return http.StatusBadRequest, "query is empty or too short"
	case errors.Is(err, pipeline.ErrRateLimited):
		return http.StatusTooManyRequests, "rate limit exceeded"
	case errors.Is(err, pipeline.ErrSearchUnavailable):
		return http.StatusBadGateway, "search unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *HTTPServer) handlePage(c *gin.Context) {
	if s.sessions == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no search results available"})
		return
	}
	user := c.Param("user")
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a number"})
		return
	}

	if _, ok := s.sessions.Get(user); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no search results available"})
		return
	}
	view, ok := s.sessions.Page(user, page)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page out of range"})
		return
	}
	c.JSON(http.StatusOK, newPageResponse(&view))
}

func (s *HTTPServer) handleResult(c *gin.Context) {
	if s.sessions == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no search results available"})
		return
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a number"})
		return
	}
	sess, ok := s.sessions.Get(c.Param("user"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no search results available"})
		return
	}
	r, ok := sess.Results.Result(idx)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *HTTPServer) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(storage.MaxHistory)))
	recs, err := s.history.Query(c.Request.Context(), storage.Filter{
		UserKey: c.Param("user"),
		Limit:   limit,
	})
	if err != nil {
		s.logger.Error("history query failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	if recs == nil {
		recs = []*storage.SearchRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"history": recs})
}

// LoggerMiddleware logs one line per request.
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}
