package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gamenightbot/gamenight/pkg/discord"
	"github.com/gamenightbot/gamenight/pkg/models"
	"github.com/gamenightbot/gamenight/pkg/services"
)

const (
	ctxGuild  = "guild"
	ctxMember = "member"
)

// guildContext resolves the tenant guild from the :guildID path parameter,
// or from the guild_id query parameter on routes not nested under /guilds,
// and verifies the caller is a member.
func (s *Server) guildContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("guildID")
		if id == "" {
			id = c.Query("guild_id")
		}
		if id == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				errorBody{Error: "validation_error", Message: "guild_id is required"})
			return
		}

		guild, member, ok := s.resolveGuild(c, id)
		if !ok {
			return
		}
		c.Set(ctxGuild, guild)
		c.Set(ctxMember, member)
		c.Next()
	}
}

// resolveGuild loads a registered guild and the caller's membership in it.
// Non-members get 404, never 403, so guild ids cannot be probed. ok=false
// means the response was already written.
func (s *Server) resolveGuild(c *gin.Context, guildID string) (*models.Guild, *discord.Member, bool) {
	session := currentSession(c)

	guild, err := s.guilds.GetByID(c.Request.Context(), guildID)
	if errors.Is(err, services.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound,
			errorBody{Error: "not_found", Message: "resource not found"})
		return nil, nil, false
	}
	if err != nil {
		respondError(c, err)
		c.Abort()
		return nil, nil, false
	}

	ctx, cancel := s.upstreamContext(c)
	defer cancel()
	member, err := s.dc.GetGuildMember(ctx, guild.DiscordID, session.UserDiscordID)
	if err != nil {
		respondError(c, err)
		c.Abort()
		return nil, nil, false
	}
	if member == nil {
		c.AbortWithStatusJSON(http.StatusNotFound,
			errorBody{Error: "not_found", Message: "resource not found"})
		return nil, nil, false
	}
	return guild, member, true
}

func currentGuild(c *gin.Context) *models.Guild {
	return c.MustGet(ctxGuild).(*models.Guild)
}

func currentMember(c *gin.Context) *discord.Member {
	return c.MustGet(ctxMember).(*discord.Member)
}

// canManage reports whether the member holds guild-wide manage rights:
// guild owner, a role carrying the administrator bit, or one of the
// configured bot-manager roles.
func canManage(guild *models.Guild, member *discord.Member, ownerID string, roles []discord.Role) bool {
	if member.User.ID == ownerID {
		return true
	}
	if member.HasRole(guild.BotManagerRoleIDs) {
		return true
	}
	byID := make(map[string]discord.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	for _, id := range member.Roles {
		if r, ok := byID[id]; ok && discord.HasPermission(r.Permissions, discord.PermissionAdministrator) {
			return true
		}
	}
	return false
}

// requireManage loads the guild's owner and roles and enforces manage
// rights for the request.
func (s *Server) requireManage(c *gin.Context) bool {
	ok, err := s.memberCanManage(c)
	if err != nil {
		respondError(c, err)
		return false
	}
	if !ok {
		c.JSON(http.StatusForbidden,
			errorBody{Error: "forbidden", Message: "you are not allowed to do that"})
		return false
	}
	return true
}

func (s *Server) memberCanManage(c *gin.Context) (bool, error) {
	return s.manageRights(c, currentGuild(c), currentMember(c))
}

// manageRights loads the guild's owner and roles and computes manage
// rights for an explicit guild/member pair.
func (s *Server) manageRights(c *gin.Context, guild *models.Guild, member *discord.Member) (bool, error) {
	ctx, cancel := s.upstreamContext(c)
	defer cancel()

	dcGuild, err := s.dc.GetGuild(ctx, guild.DiscordID)
	if err != nil {
		return false, err
	}
	roles, err := s.dc.GetGuildRoles(ctx, guild.DiscordID)
	if err != nil {
		return false, err
	}
	return canManage(guild, member, dcGuild.OwnerID, roles), nil
}

// visibleTo reports whether a member may see a game: open player-role
// sets are visible to everyone, restricted ones to role holders, hosts,
// and roster members.
func visibleTo(detail *services.GameDetail, member *discord.Member) bool {
	if len(detail.AllowedPlayerRoleIDs) == 0 {
		return true
	}
	if member.HasRole(detail.AllowedPlayerRoleIDs) {
		return true
	}
	for _, p := range detail.Participants {
		if p.DiscordID != nil && *p.DiscordID == member.User.ID {
			return true
		}
	}
	return false
}

// isHost reports whether the member hosts the game.
func isHost(detail *services.GameDetail, member *discord.Member) bool {
	for _, p := range detail.Participants {
		if p.PositionType == models.PositionHost && p.DiscordID != nil && *p.DiscordID == member.User.ID {
			return true
		}
	}
	return false
}

// upstreamContext bounds downstream chat-API work on the request.
func (s *Server) upstreamContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.cfg.UpstreamTimeout)
}
