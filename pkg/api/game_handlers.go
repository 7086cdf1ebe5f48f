package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gamenightbot/gamenight/pkg/ical"
	"github.com/gamenightbot/gamenight/pkg/models"
	"github.com/gamenightbot/gamenight/pkg/services"
)

// maxImageBytes caps thumbnail and banner uploads.
const maxImageBytes = 5 << 20

// imageCacheControl: blobs are immutable per game id, so clients may cache
// them aggressively.
const imageCacheControl = "public, max-age=31536000, immutable"

// handleListGames lists the games the caller may see across all their
// guilds. An explicit guild_id narrows the listing to one guild.
func (s *Server) handleListGames(c *gin.Context) {
	var guilds []models.Guild
	if guildID := c.Query("guild_id"); guildID != "" {
		guild, _, ok := s.resolveGuild(c, guildID)
		if !ok {
			return
		}
		guilds = []models.Guild{*guild}
	} else {
		var err error
		guilds, err = s.callerGuilds(c)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	session := currentSession(c)
	visible := make([]services.GameDetail, 0)
	for i := range guilds {
		games, err := s.games.List(c.Request.Context(), guilds[i].ID)
		if err != nil {
			respondError(c, err)
			return
		}
		if len(games) == 0 {
			continue
		}

		ctx, cancel := s.upstreamContext(c)
		member, err := s.dc.GetGuildMember(ctx, guilds[i].DiscordID, session.UserDiscordID)
		cancel()
		if err != nil {
			respondError(c, err)
			return
		}
		if member == nil {
			continue
		}
		manage, err := s.manageRights(c, &guilds[i], member)
		if err != nil {
			respondError(c, err)
			return
		}

		for _, g := range games {
			if manage || visibleTo(&g, member) {
				visible = append(visible, g)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"games": visible})
}

func (s *Server) handleGetGame(c *gin.Context) {
	detail, visible := s.visibleGame(c)
	if detail == nil {
		return
	}
	if !visible {
		c.JSON(http.StatusForbidden,
			errorBody{Error: "forbidden", Message: "you are not allowed to see this game"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": detail})
}

// handleCreateGame creates a game. The body is either plain JSON or
// multipart/form-data with a "game" JSON part plus optional "thumbnail"
// and "banner" image parts.
func (s *Server) handleCreateGame(c *gin.Context) {
	var req services.CreateGameRequest
	if err := s.bindGameCreate(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: err.Error()})
		return
	}

	if !s.allowHosting(c, req.TemplateID) {
		return
	}

	roster, err := s.resolveMentions(c, req.Participants)
	if err != nil {
		respondError(c, err)
		return
	}

	session := currentSession(c)
	host, err := s.users.GetByDiscordID(c.Request.Context(), session.UserDiscordID)
	if err != nil {
		respondError(c, err)
		return
	}

	detail, err := s.games.Create(c.Request.Context(), currentGuild(c).ID, host, req, roster)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"game": detail})
}

func (s *Server) handleUpdateGame(c *gin.Context) {
	detail, _ := s.visibleGame(c)
	if detail == nil {
		return
	}
	if !s.requireHostOrManage(c, detail) {
		return
	}

	var req services.UpdateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: err.Error()})
		return
	}

	var roster []services.ResolvedMention
	if req.Participants != nil {
		var err error
		roster, err = s.resolveMentions(c, *req.Participants)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	updated, err := s.games.Update(c.Request.Context(), currentGuild(c).ID, detail.ID, req, roster)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": updated})
}

func (s *Server) handleCancelGame(c *gin.Context) {
	detail, _ := s.visibleGame(c)
	if detail == nil {
		return
	}
	if !s.requireHostOrManage(c, detail) {
		return
	}

	if err := s.games.Cancel(c.Request.Context(), currentGuild(c).ID, detail.ID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleJoinGame(c *gin.Context) {
	detail, visible := s.visibleGame(c)
	if detail == nil {
		return
	}
	if !visible {
		c.JSON(http.StatusForbidden,
			errorBody{Error: "forbidden", Message: "you are not allowed to join this game"})
		return
	}

	member := currentMember(c)
	user, err := s.users.EnsureUser(c.Request.Context(), member.User)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.participants.Join(c.Request.Context(), currentGuild(c).ID, detail.ID, user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLeaveGame(c *gin.Context) {
	detail := s.resolveGame(c)
	if detail == nil {
		return
	}

	session := currentSession(c)
	err := s.participants.Leave(c.Request.Context(), currentGuild(c).ID, detail.ID, session.UserDiscordID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRemoveParticipant(c *gin.Context) {
	detail, _ := s.visibleGame(c)
	if detail == nil {
		return
	}
	if !s.requireHostOrManage(c, detail) {
		return
	}

	err := s.participants.Remove(c.Request.Context(), currentGuild(c).ID, detail.ID, c.Param("participantID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGameThumbnail(c *gin.Context) {
	s.serveGameImage(c, services.ImageThumbnail)
}

func (s *Server) handleGameBanner(c *gin.Context) {
	s.serveGameImage(c, services.ImageBanner)
}

func (s *Server) serveGameImage(c *gin.Context, kind string) {
	detail := s.resolveGame(c)
	if detail == nil {
		return
	}

	data, mime, err := s.games.GetImage(c.Request.Context(), currentGuild(c).ID, detail.ID, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", imageCacheControl)
	c.Data(http.StatusOK, mime, data)
}

// handleExportGame streams the game as an iCalendar attachment.
func (s *Server) handleExportGame(c *gin.Context) {
	detail, visible := s.visibleGame(c)
	if detail == nil {
		return
	}
	if !visible {
		c.JSON(http.StatusForbidden,
			errorBody{Error: "forbidden", Message: "you are not allowed to see this game"})
		return
	}

	data, filename, err := ical.Export(&detail.Game, currentGuild(c).Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, ical.ContentType, data)
}

// resolveGame locates the :id game and binds its guild and the caller's
// membership to the request context. With an explicit guild_id the lookup
// is direct; otherwise every registered guild the caller belongs to is
// tried, so links carrying only a game id (the calendar-export URL) still
// resolve. Misses are 404s either way. A nil return means the response was
// already written.
func (s *Server) resolveGame(c *gin.Context) *services.GameDetail {
	gameID := c.Param("id")

	if guildID := c.Query("guild_id"); guildID != "" {
		guild, member, ok := s.resolveGuild(c, guildID)
		if !ok {
			return nil
		}
		detail, err := s.games.Get(c.Request.Context(), guild.ID, gameID)
		if err != nil {
			respondError(c, err)
			return nil
		}
		c.Set(ctxGuild, guild)
		c.Set(ctxMember, member)
		return detail
	}

	guilds, err := s.callerGuilds(c)
	if err != nil {
		respondError(c, err)
		return nil
	}
	session := currentSession(c)
	for i := range guilds {
		detail, err := s.games.Get(c.Request.Context(), guilds[i].ID, gameID)
		if errors.Is(err, services.ErrNotFound) {
			continue
		}
		if err != nil {
			respondError(c, err)
			return nil
		}

		ctx, cancel := s.upstreamContext(c)
		member, err := s.dc.GetGuildMember(ctx, guilds[i].DiscordID, session.UserDiscordID)
		cancel()
		if err != nil {
			respondError(c, err)
			return nil
		}
		if member == nil {
			break
		}
		c.Set(ctxGuild, &guilds[i])
		c.Set(ctxMember, member)
		return detail
	}

	c.JSON(http.StatusNotFound, errorBody{Error: "not_found", Message: "resource not found"})
	return nil
}

// visibleGame resolves the :id game and computes visibility for the
// caller. A nil detail means the response was already written.
func (s *Server) visibleGame(c *gin.Context) (*services.GameDetail, bool) {
	detail := s.resolveGame(c)
	if detail == nil {
		return nil, false
	}
	return detail, visibleTo(detail, currentMember(c))
}

// requireHostOrManage enforces that the caller hosts the game or holds
// guild manage rights.
func (s *Server) requireHostOrManage(c *gin.Context, detail *services.GameDetail) bool {
	if isHost(detail, currentMember(c)) {
		return true
	}
	return s.requireManage(c)
}

// allowHosting enforces the host-role gate for game creation: templates
// with allowed host roles restrict to those holders, and the guild-level
// require-host-role flag restricts open templates to managers.
func (s *Server) allowHosting(c *gin.Context, templateID string) bool {
	template, err := s.templates.Get(c.Request.Context(), currentGuild(c).ID, templateID)
	if err != nil {
		respondError(c, err)
		return false
	}

	member := currentMember(c)
	if len(template.AllowedHostRoleIDs) > 0 {
		if member.HasRole(template.AllowedHostRoleIDs) {
			return true
		}
		return s.requireManage(c)
	}
	if currentGuild(c).RequireHostRole {
		return s.requireManage(c)
	}
	return true
}

// bindGameCreate decodes a create request from JSON or multipart form.
func (s *Server) bindGameCreate(c *gin.Context, req *services.CreateGameRequest) error {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return c.ShouldBindJSON(req)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return err
	}
	payload := form.Value["game"]
	if len(payload) == 0 {
		return fmt.Errorf("multipart form is missing the game part")
	}
	if err := json.Unmarshal([]byte(payload[0]), req); err != nil {
		return fmt.Errorf("decoding game part: %w", err)
	}

	if files := form.File["thumbnail"]; len(files) > 0 {
		req.Thumbnail, req.ThumbMIME, err = readImage(files[0])
		if err != nil {
			return err
		}
	}
	if files := form.File["banner"]; len(files) > 0 {
		req.Banner, req.BannerMIME, err = readImage(files[0])
		if err != nil {
			return err
		}
	}
	return nil
}

// readImage loads an uploaded image, enforcing the size cap and sniffing
// the real content type rather than trusting the filename.
func readImage(fh *multipart.FileHeader) ([]byte, string, error) {
	if fh.Size > maxImageBytes {
		return nil, "", fmt.Errorf("image %s exceeds the 5 MiB limit", fh.Filename)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image %s exceeds the 5 MiB limit", fh.Filename)
	}

	mime := http.DetectContentType(data)
	switch mime {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return data, mime, nil
	default:
		return nil, "", fmt.Errorf("unsupported image type %s", mime)
	}
}
