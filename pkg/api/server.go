// Package api serves the dashboard HTTP API: OAuth sign-in, guild
// management, templates, games, and exports, all scoped to the caller's
// guild membership.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gamenightbot/gamenight/pkg/cache"
	"github.com/gamenightbot/gamenight/pkg/config"
	"github.com/gamenightbot/gamenight/pkg/database"
	"github.com/gamenightbot/gamenight/pkg/discord"
	"github.com/gamenightbot/gamenight/pkg/services"
)

// Server is the API service.
type Server struct {
	cfg      config.HTTP
	frontend string

	db    *database.Client
	cache *cache.Client
	dc    *discord.CachedClient
	oauth *discord.OAuth

	guilds       *services.GuildService
	users        *services.UserService
	templates    *services.TemplateService
	games        *services.GameService
	participants *services.ParticipantService

	router *gin.Engine
	logger *slog.Logger
}

// NewServer wires the API service and its routes.
func NewServer(
	cfg config.HTTP,
	frontendURL string,
	db *database.Client,
	c *cache.Client,
	dc *discord.CachedClient,
	oauth *discord.OAuth,
	guilds *services.GuildService,
	users *services.UserService,
	templates *services.TemplateService,
	games *services.GameService,
	participants *services.ParticipantService,
) *Server {
	s := &Server{
		cfg:          cfg,
		frontend:     frontendURL,
		db:           db,
		cache:        c,
		dc:           dc,
		oauth:        oauth,
		guilds:       guilds,
		users:        users,
		templates:    templates,
		games:        games,
		participants: participants,
		logger:       slog.Default().With("component", "api"),
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))

	v1 := router.Group("/api/v1")
	v1.GET("/health", s.handleHealth)

	auth := v1.Group("/auth")
	{
		auth.GET("/login", s.handleLogin)
		auth.GET("/callback", s.handleCallback)
		auth.POST("/logout", s.requireSession(), s.handleLogout)
		auth.GET("/me", s.requireSession(), s.handleMe)
	}

	authed := v1.Group("", s.requireSession())
	authed.GET("/guilds", s.handleListGuilds)

	guild := authed.Group("/guilds/:guildID", s.guildContext())
	{
		guild.GET("", s.handleGetGuild)
		guild.GET("/config", s.handleGetGuildConfig)
		guild.PUT("", s.handleUpdateGuild)
		guild.GET("/channels", s.handleListChannels)
		guild.GET("/roles", s.handleListRoles)
		guild.POST("/validate-mention", s.handleValidateMentions)
	}

	// Template routes carry the tenant as a guild_id query parameter.
	templates := authed.Group("/templates", s.guildContext())
	{
		templates.GET("", s.handleListTemplates)
		templates.POST("", s.handleCreateTemplate)
		templates.POST("/reorder", s.handleReorderTemplates)
		templates.GET("/:id", s.handleGetTemplate)
		templates.PUT("/:id", s.handleUpdateTemplate)
		templates.DELETE("/:id", s.handleDeleteTemplate)
		templates.POST("/:id/default", s.handleSetDefaultTemplate)
	}

	// Game item routes resolve the guild from the game id when no guild_id
	// is given, so bare game links (calendar export) work.
	games := authed.Group("/games")
	{
		games.GET("", s.handleListGames)
		games.POST("", s.guildContext(), s.handleCreateGame)
		games.GET("/:id", s.handleGetGame)
		games.PUT("/:id", s.handleUpdateGame)
		games.DELETE("/:id", s.handleCancelGame)
		games.POST("/:id/join", s.handleJoinGame)
		games.POST("/:id/leave", s.handleLeaveGame)
		games.DELETE("/:id/participants/:participantID", s.handleRemoveParticipant)
		games.GET("/:id/thumbnail", s.handleGameThumbnail)
		games.GET("/:id/image", s.handleGameBanner)
	}

	authed.GET("/export/game/:id", s.handleExportGame)

	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "port", s.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true
	if err := s.db.Health(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}
	if err := s.cache.Health(ctx); err != nil {
		checks["cache"] = err.Error()
		healthy = false
	} else {
		checks["cache"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy, "checks": checks})
}
