package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rcliao/studymap/internal/logger"
	"github.com/rcliao/studymap/internal/session"
	"github.com/rcliao/studymap/internal/syllabus"
)

// gin context keys.
const (
	ctxRequestID = "request_id"
	ctxUser      = "user"
	ctxRepo      = "repo"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID reuses a well-formed incoming id or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(ctxRequestID),
		}
		if user := c.GetString(ctxUser); user != "" {
			fields = append(fields, "user", user)
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func CORS(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// Identity attaches the repository of the identity named by the session
// cookie. A missing or unusable cookie leaves the request anonymous.
func (s *Server) Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		name, err := c.Cookie(session.CookieName)
		if err == nil && name != "" {
			if repo, err := s.registry.Repository(c.Request.Context(), name); err == nil {
				c.Set(ctxUser, repo.User())
				c.Set(ctxRepo, repo)
			}
		}
		c.Next()
	}
}

// RequireIdentity rejects anonymous requests.
func (s *Server) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ctxRepo); !ok {
			s.respondError(c, session.ErrNotLoggedIn)
			return
		}
		c.Next()
	}
}

func repoOf(c *gin.Context) *syllabus.Repository {
	return c.MustGet(ctxRepo).(*syllabus.Repository)
}
