package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rcliao/studymap/internal/session"
)

const cookieMaxAge = 30 * 24 * 60 * 60

type loginRequest struct {
	Name string `json:"name"`
}

type sessionResponse struct {
	User string `json:"user"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, badRequest("invalid_json", err))
		return
	}
	repo, err := s.registry.Repository(c.Request.Context(), req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.setCookie(c, repo.User(), cookieMaxAge)
	respondOK(c, sessionResponse{User: repo.User()})
}

func (s *Server) whoami(c *gin.Context) {
	user := c.GetString(ctxUser)
	if user == "" {
		s.respondError(c, session.ErrNotLoggedIn)
		return
	}
	respondOK(c, sessionResponse{User: user})
}

// logout drops the cookie and the cached repository. Stored data stays.
// logout clears the cookie. The cached repository stays so requests still
// in flight and later logins share one copy of the namespace.
func (s *Server) logout(c *gin.Context) {
	s.setCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (s *Server) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(session.CookieName, value, maxAge, "/", "", s.opts.SecureCookie, true)
}
