package httpapi

import (
	"crypto/subtle"
	"fmt"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthConfig учётные данные администратора
type AuthConfig struct {
	User         string
	Password     string
	PasswordHash string // bcrypt, wins over Password
	Realm        string
	Token        string
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (a AuthConfig) checkBasic(user, pass string) bool {
	if !equal(user, a.User) {
		return false
	}
	if a.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(pass)) == nil
	}
	return a.Password != "" && equal(pass, a.Password)
}

func (a AuthConfig) checkToken(c *gin.Context) bool {
	tok := c.Query("token")
	if tok == "" {
		tok = c.GetHeader(headerAdminToken)
	}
	return a.Token != "" && tok != "" && equal(tok, a.Token)
}

// adminOnly пропускает по basic auth или по токену
func (s *Server) adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.auth.checkToken(c) {
			c.Next()
			return
		}
		if user, pass, ok := c.Request.BasicAuth(); ok && s.auth.checkBasic(user, pass) {
			c.Next()
			return
		}
		c.Header("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", s.auth.Realm))
		s.writeError(c, errUnauthorized)
	}
}

// tokenOnly защищает выгрузку и восстановление базы
func (s *Server) tokenOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.auth.checkToken(c) {
			s.log.Warn("admin_token_rejected", "path", c.Request.URL.Path, "client_ip", c.ClientIP(), "request_id", requestID(c))
			s.writeError(c, errForbidden)
			return
		}
		c.Next()
	}
}
