package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/gamenightbot/gamenight/pkg/discord"
	"github.com/gamenightbot/gamenight/pkg/models"
	"github.com/gamenightbot/gamenight/pkg/services"
)

// handleListGuilds intersects the guilds visible to the user's OAuth token
// with the guilds the bot is registered in.
func (s *Server) handleListGuilds(c *gin.Context) {
	guilds, err := s.callerGuilds(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guilds": guilds})
}

// callerGuilds returns the registered guilds the session user belongs to:
// the user's OAuth guild list intersected with the bot's guilds.
func (s *Server) callerGuilds(c *gin.Context) ([]models.Guild, error) {
	session := currentSession(c)

	ctx, cancel := s.upstreamContext(c)
	defer cancel()
	userGuilds, err := s.dc.GetCurrentUserGuilds(ctx, session.UserDiscordID, session.AccessToken)
	if err != nil {
		return nil, err
	}

	discordIDs := make([]string, len(userGuilds))
	for i, g := range userGuilds {
		discordIDs[i] = g.ID
	}
	return s.guilds.ListByDiscordIDs(c.Request.Context(), discordIDs)
}

func (s *Server) handleGetGuild(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"guild": currentGuild(c)})
}

func (s *Server) handleGetGuildConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"config": currentGuild(c).GuildConfig})
}

// handleUpdateGuild changes the guild configuration. Manage rights only.
func (s *Server) handleUpdateGuild(c *gin.Context) {
	if !s.requireManage(c) {
		return
	}

	var req services.UpdateGuildConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: err.Error()})
		return
	}

	guild, err := s.guilds.UpdateConfig(c.Request.Context(), currentGuild(c).ID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guild": guild})
}

// handleListChannels returns the text and announcement channels a game
// can be posted in, in guild order.
func (s *Server) handleListChannels(c *gin.Context) {
	ctx, cancel := s.upstreamContext(c)
	defer cancel()

	channels, err := s.dc.GetGuildChannels(ctx, currentGuild(c).DiscordID)
	if err != nil {
		respondError(c, err)
		return
	}

	postable := make([]discord.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Type == discord.ChannelTypeText || ch.Type == discord.ChannelTypeAnnouncement {
			postable = append(postable, ch)
		}
	}
	sort.Slice(postable, func(i, j int) bool { return postable[i].Position < postable[j].Position })

	c.JSON(http.StatusOK, gin.H{"channels": postable})
}

func (s *Server) handleListRoles(c *gin.Context) {
	ctx, cancel := s.upstreamContext(c)
	defer cancel()

	roles, err := s.dc.GetGuildRoles(ctx, currentGuild(c).DiscordID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

// handleValidateMentions resolves raw participant entries against the
// member list without creating anything, so the client can disambiguate
// before submitting a game.
func (s *Server) handleValidateMentions(c *gin.Context) {
	var req struct {
		Participants []services.ParticipantEntry `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "validation_error", Message: err.Error()})
		return
	}

	resolved, err := s.resolveMentions(c, req.Participants)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": resolved})
}

// resolveMentions fetches the member list and runs mention validation.
// Shared by game create/update and the standalone validation endpoint.
func (s *Server) resolveMentions(c *gin.Context, entries []services.ParticipantEntry) ([]services.ResolvedMention, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	ctx, cancel := s.upstreamContext(c)
	defer cancel()
	members, err := s.dc.ListGuildMembers(ctx, currentGuild(c).DiscordID)
	if err != nil {
		return nil, err
	}
	return services.ValidateMentions(entries, members)
}
