package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gamenightbot/gamenight/pkg/cache"
)

const (
	sessionCookie = "gamenight_session"
	stateCookie   = "gamenight_oauth_state"

	ctxSession = "session"
)

// Session is the cache-backed web session. The cookie carries only the
// opaque token; everything else lives in Redis under the session TTL.
type Session struct {
	Token         string    `json:"token"`
	UserID        string    `json:"user_id"`
	UserDiscordID string    `json:"user_discord_id"`
	Username      string    `json:"username"`
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token"`
	TokenExpires  time.Time `json:"token_expires"`
}

func newSessionToken() string {
	return uuid.NewString()
}

// requireSession resolves the session cookie against the cache and parks
// the session on the request context. Missing or expired sessions get 401.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				errorBody{Error: "unauthenticated", Message: "sign in first"})
			return
		}

		var session Session
		hit, err := s.cache.GetJSON(c.Request.Context(), cache.SessionKey(token), &session)
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		if !hit {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				errorBody{Error: "unauthenticated", Message: "session expired"})
			return
		}

		if time.Now().After(session.TokenExpires) {
			if err := s.refreshSession(c, &session); err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					errorBody{Error: "unauthenticated", Message: "session expired"})
				return
			}
		}

		c.Set(ctxSession, &session)
		c.Next()
	}
}

// refreshSession rotates an expired OAuth access token in place and
// rewrites the cached session.
func (s *Server) refreshSession(c *gin.Context, session *Session) error {
	tok, err := s.oauth.RefreshToken(c.Request.Context(), session.RefreshToken)
	if err != nil {
		return err
	}
	session.AccessToken = tok.AccessToken
	session.RefreshToken = tok.RefreshToken
	session.TokenExpires = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return s.cache.SetJSON(c.Request.Context(), cache.SessionKey(session.Token), session, s.cfg.SessionTTL)
}

func currentSession(c *gin.Context) *Session {
	return c.MustGet(ctxSession).(*Session)
}

func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, token, int(s.cfg.SessionTTL.Seconds()), "/", "", s.cfg.CookieSecure, true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", s.cfg.CookieSecure, true)
}
