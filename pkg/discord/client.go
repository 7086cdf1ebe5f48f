package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gamenightbot/gamenight/pkg/version"
)

// APIError is a non-2xx response from the Discord API.
type APIError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord API error %d (code %d): %s", e.Status, e.Code, e.Message)
}

// IsNotFound reports whether err is a Discord 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Status == http.StatusNotFound
}

// AuthHeader picks the Authorization scheme by token shape. Bot tokens are
// three dot-separated base64 segments; OAuth bearer tokens carry no dots.
func AuthHeader(token string) string {
	if strings.Count(token, ".") == 2 {
		return "Bot " + token
	}
	return "Bearer " + token
}

// Client is a thin Discord REST client. One instance per process; the
// token is chosen per call so the same client serves both the bot and
// OAuth user tokens.
type Client struct {
	baseURL  string
	botToken string
	http     *http.Client
	logger   *slog.Logger
}

// NewClient builds a REST client against baseURL using botToken for
// bot-authorized calls.
func NewClient(baseURL, botToken string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		botToken: botToken,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   slog.Default().With("component", "discord"),
	}
}

// maxRateLimitRetries bounds how many times a rate-limited request is
// reissued before the 429 surfaces to the caller.
const maxRateLimitRetries = 3

// do issues one request with the given token and decodes the response into
// out when non-nil. Rate-limited responses are retried after the
// advertised delay, at most maxRateLimitRetries times; a 429 that outlives
// the budget is returned as an APIError.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		var payload io.Reader
		if raw != nil {
			payload = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Authorization", AuthHeader(token))
		req.Header.Set("User-Agent", version.Full())
		if raw != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRateLimitRetries {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			c.logger.Warn("Discord rate limit hit",
				"path", path, "retry_after", retryAfter, "attempt", attempt+1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfter):
			}
			continue
		}

		err = decodeResponse(method, path, resp, out)
		_ = resp.Body.Close()
		return err
	}
}

func decodeResponse(method, path string, resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func parseRetryAfter(header string) time.Duration {
	secs, err := strconv.ParseFloat(header, 64)
	if err != nil || secs <= 0 {
		return time.Second
	}
	return time.Duration(secs * float64(time.Second))
}

// GetGuild fetches a guild with the bot token.
func (c *Client) GetGuild(ctx context.Context, guildID string) (*Guild, error) {
	var g Guild
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID, c.botToken, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetGuildChannels fetches a guild's channels.
func (c *Client) GetGuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var channels []Channel
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/channels", c.botToken, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// GetGuildRoles fetches a guild's roles.
func (c *Client) GetGuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/roles", c.botToken, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetGuildMember fetches one member, or nil if the user is not a member.
func (c *Client) GetGuildMember(ctx context.Context, guildID, userID string) (*Member, error) {
	var m Member
	err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members/"+userID, c.botToken, nil, &m)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListGuildMembers pages through a guild's full member list.
func (c *Client) ListGuildMembers(ctx context.Context, guildID string) ([]Member, error) {
	const pageSize = 1000
	var members []Member
	after := ""
	for {
		path := fmt.Sprintf("/guilds/%s/members?limit=%d", guildID, pageSize)
		if after != "" {
			path += "&after=" + after
		}
		var page []Member
		if err := c.do(ctx, http.MethodGet, path, c.botToken, nil, &page); err != nil {
			return nil, err
		}
		members = append(members, page...)
		if len(page) < pageSize {
			return members, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// GetCurrentUser fetches the user behind an OAuth bearer token.
func (c *Client) GetCurrentUser(ctx context.Context, bearerToken string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/@me", bearerToken, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetCurrentUserGuilds lists the guilds visible to an OAuth bearer token.
func (c *Client) GetCurrentUserGuilds(ctx context.Context, bearerToken string) ([]Guild, error) {
	var guilds []Guild
	if err := c.do(ctx, http.MethodGet, "/users/@me/guilds", bearerToken, nil, &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}

// CreateMessage posts a message to a channel.
func (c *Client) CreateMessage(ctx context.Context, channelID string, msg MessageCreate) (*Message, error) {
	var created Message
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", c.botToken, msg, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// EditMessage replaces a message's content, embeds, and components.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID string, msg MessageCreate) (*Message, error) {
	var edited Message
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	if err := c.do(ctx, http.MethodPatch, path, c.botToken, msg, &edited); err != nil {
		return nil, err
	}
	return &edited, nil
}

// DeleteMessage removes a message. Already-deleted messages are not an
// error.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID)
	err := c.do(ctx, http.MethodDelete, path, c.botToken, nil, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// SendDM opens (or reuses) the DM channel with a user and posts msg in it.
func (c *Client) SendDM(ctx context.Context, userID string, msg MessageCreate) error {
	var dm Channel
	body := map[string]string{"recipient_id": userID}
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", c.botToken, body, &dm); err != nil {
		return fmt.Errorf("opening DM channel with %s: %w", userID, err)
	}
	if _, err := c.CreateMessage(ctx, dm.ID, msg); err != nil {
		return fmt.Errorf("sending DM to %s: %w", userID, err)
	}
	return nil
}

// RespondToInteraction acknowledges an interaction. Must complete within
// the platform's 3-second window.
func (c *Client) RespondToInteraction(ctx context.Context, interactionID, token string, resp InteractionResponse) error {
	path := fmt.Sprintf("/interactions/%s/%s/callback", interactionID, url.PathEscape(token))
	return c.do(ctx, http.MethodPost, path, c.botToken, resp, nil)
}

// EditInteractionResponse updates the original deferred reply.
func (c *Client) EditInteractionResponse(ctx context.Context, applicationID, token string, data InteractionResponseData) error {
	path := fmt.Sprintf("/webhooks/%s/%s/messages/@original", applicationID, url.PathEscape(token))
	return c.do(ctx, http.MethodPatch, path, c.botToken, data, nil)
}

// RegisterGlobalCommands overwrites the application's global slash
// commands.
func (c *Client) RegisterGlobalCommands(ctx context.Context, applicationID string, commands []ApplicationCommand) error {
	path := "/applications/" + applicationID + "/commands"
	return c.do(ctx, http.MethodPut, path, c.botToken, commands, nil)
}
