package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gamenightbot/gamenight/pkg/cache"
)

// handleLogin starts the OAuth flow: the client gets the authorization
// URL and a state value, which also lands in a short-lived cookie for the
// callback check.
func (s *Server) handleLogin(c *gin.Context) {
	redirectURI := c.Query("redirect_uri")
	if redirectURI == "" {
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: "redirect_uri is required"})
		return
	}

	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int((10 * time.Minute).Seconds()), "/", "", s.cfg.CookieSecure, true)

	c.JSON(http.StatusOK, gin.H{
		"authorization_url": s.oauth.AuthorizationURL(state, redirectURI),
		"state":             state,
	})
}

// handleCallback finishes the OAuth flow: verify state, exchange the
// code, upsert the user, and mint a cache-backed session.
func (s *Server) handleCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	wantState, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != wantState {
		c.JSON(http.StatusBadRequest, errorBody{Error: "invalid_state", Message: "OAuth state mismatch"})
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", s.cfg.CookieSecure, true)

	if code == "" {
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: "code is required"})
		return
	}

	ctx, cancel := s.upstreamContext(c)
	defer cancel()

	redirectURI := c.Query("redirect_uri")
	tok, err := s.oauth.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		respondError(c, err)
		return
	}

	dcUser, err := s.dc.GetCurrentUser(ctx, tok.AccessToken)
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := s.users.EnsureUser(c.Request.Context(), *dcUser)
	if err != nil {
		respondError(c, err)
		return
	}

	session := Session{
		Token:         newSessionToken(),
		UserID:        user.ID,
		UserDiscordID: user.DiscordID,
		Username:      user.Username,
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		TokenExpires:  time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
	if err := s.cache.SetJSON(c.Request.Context(), cache.SessionKey(session.Token), session, s.cfg.SessionTTL); err != nil {
		respondError(c, err)
		return
	}

	s.setSessionCookie(c, session.Token)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (s *Server) handleLogout(c *gin.Context) {
	session := currentSession(c)
	if err := s.cache.Delete(c.Request.Context(), cache.SessionKey(session.Token)); err != nil {
		s.logger.Warn("Failed to drop session", "error", err)
	}
	s.clearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMe(c *gin.Context) {
	session := currentSession(c)
	user, err := s.users.GetByDiscordID(c.Request.Context(), session.UserDiscordID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
