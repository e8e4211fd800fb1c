// Package backend serves the hosted auth and data API on top of SQLite.
// Task rows are only ever read or written where created_by is the caller.
package backend

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskdeck/internal/storage"
)

const (
	// APIKeyHeader carries the project key on every request.
	APIKeyHeader = "apikey"

	ctxUserID = "userID"
	ctxClaims = "claims"
)

type Options struct {
	APIKey    string
	JWTSecret []byte
	TokenTTL  time.Duration
}

type Server struct {
	db     *storage.Store
	log    *logrus.Entry
	apiKey string
	tokens *Tokens
}

func New(db *storage.Store, log *logrus.Entry, opts Options) *Server {
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Server{
		db:     db,
		log:    log,
		apiKey: opts.APIKey,
		tokens: NewTokens(opts.JWTSecret, ttl),
	}
}

// Router builds the gin engine with every route mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), s.requireAPIKey())
	s.EnrichRoutes(router)
	return router
}

func (s *Server) EnrichRoutes(router *gin.Engine) {
	authRoutes := router.Group("/auth/v1")
	authRoutes.POST("/signup", s.signUpAction)
	authRoutes.POST("/token", s.tokenAction)
	authRoutes.POST("/logout", s.requireUser(), s.logoutAction)
	authRoutes.GET("/user", s.requireUser(), s.userAction)

	restRoutes := router.Group("/rest/v1", s.requireUser())
	restRoutes.GET("/tasks", s.listTasksAction)
	restRoutes.POST("/tasks", s.createTaskAction)
	restRoutes.PATCH("/tasks/:taskID", s.updateTaskAction)
	restRoutes.DELETE("/tasks/:taskID", s.deleteTaskAction)
	restRoutes.GET("/user_details/:userID", s.profileAction)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("request")
	}
}

func (s *Server) requireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" {
			c.Next()
			return
		}
		got := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
			abortWithError(c, http.StatusUnauthorized, "invalid api key")
			return
		}
		c.Next()
	}
}

// requireUser resolves the bearer token to the caller's user id.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			abortWithError(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.tokens.Parse(tokenString)
		if err != nil {
			s.log.WithError(err).Debug("rejected token")
			abortWithError(c, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// extractToken extracts the token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
