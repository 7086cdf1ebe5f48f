// Package discord is the chat-platform client: a REST client unified over
// bot and OAuth bearer tokens, a cache-backed wrapper for hot fetches, and
// the long-lived websocket gateway session.
package discord

import (
	"encoding/json"
	"strconv"
)

// Guild is a Discord guild as returned by the API.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`

	// OwnerID is set on full guild fetches.
	OwnerID string `json:"owner_id,omitempty"`

	// Owner and Permissions are set on the OAuth user-guilds listing.
	Owner       bool   `json:"owner,omitempty"`
	Permissions string `json:"permissions,omitempty"`
}

// Channel types we care about.
const (
	ChannelTypeText         = 0
	ChannelTypeAnnouncement = 5
)

// Channel is a guild channel.
type Channel struct {
	ID       string `json:"id"`
	Type     int    `json:"type"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Role is a guild role.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    int    `json:"color"`
	Position int    `json:"position"`
	Managed  bool   `json:"managed"`

	// Permissions is a stringified permission bitset.
	Permissions string `json:"permissions,omitempty"`
}

// PermissionAdministrator is the administrator bit in a permission bitset.
const PermissionAdministrator = 1 << 3

// HasPermission reports whether the stringified bitset contains bit.
func HasPermission(bitset string, bit int64) bool {
	v, err := strconv.ParseInt(bitset, 10, 64)
	if err != nil {
		return false
	}
	return v&bit != 0
}

// User is a Discord user.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name,omitempty"`
	Discriminator string `json:"discriminator,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// DisplayName returns the name to show for a user.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// Member is a guild member.
type Member struct {
	User  User     `json:"user"`
	Nick  string   `json:"nick,omitempty"`
	Roles []string `json:"roles"`

	// Permissions is set on interaction payloads only.
	Permissions string `json:"permissions,omitempty"`
}

// DisplayName returns the member's in-guild display name.
func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.User.DisplayName()
}

// HasRole reports whether the member holds any of the given role ids. An
// empty want set matches nothing.
func (m Member) HasRole(want []string) bool {
	for _, r := range m.Roles {
		for _, w := range want {
			if r == w {
				return true
			}
		}
	}
	return false
}

// Message is a channel message.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// Embed is a rich message embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Thumbnail   *EmbedImage  `json:"thumbnail,omitempty"`
	Image       *EmbedImage  `json:"image,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField is one labelled embed field.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the embed footer line.
type EmbedFooter struct {
	Text string `json:"text"`
}

// EmbedImage references an embed image by URL.
type EmbedImage struct {
	URL string `json:"url"`
}

// Component types and button styles.
const (
	ComponentActionRow = 1
	ComponentButton    = 2

	ButtonPrimary   = 1
	ButtonSecondary = 2
	ButtonDanger    = 4
)

// Component is a message component (action row or button).
type Component struct {
	Type       int         `json:"type"`
	Style      int         `json:"style,omitempty"`
	Label      string      `json:"label,omitempty"`
	CustomID   string      `json:"custom_id,omitempty"`
	Disabled   bool        `json:"disabled,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// MessageCreate is the body for posting or editing a channel message.
type MessageCreate struct {
	Content         string           `json:"content,omitempty"`
	Embeds          []Embed          `json:"embeds,omitempty"`
	Components      []Component      `json:"components,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
}

// AllowedMentions limits which mentions in Content actually ping.
type AllowedMentions struct {
	Parse []string `json:"parse"`
	Roles []string `json:"roles,omitempty"`
	Users []string `json:"users,omitempty"`
}

// Interaction types.
const (
	InteractionPing               = 1
	InteractionApplicationCommand = 2
	InteractionMessageComponent   = 3
)

// Interaction response types.
const (
	ResponsePong                     = 1
	ResponseChannelMessage           = 4
	ResponseDeferredUpdateMessage    = 6
	ResponseUpdateMessage            = 7
	ResponseDeferredChannelMessage   = 5
	ResponseChannelMessageWithSource = 4
)

// MessageFlagEphemeral marks an interaction reply visible only to its user.
const MessageFlagEphemeral = 1 << 6

// Interaction is an incoming slash-command or button press.
type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          int             `json:"type"`
	Token         string          `json:"token"`
	GuildID       string          `json:"guild_id,omitempty"`
	ChannelID     string          `json:"channel_id,omitempty"`
	Member        *Member         `json:"member,omitempty"`
	User          *User           `json:"user,omitempty"`
	Message       *Message        `json:"message,omitempty"`
	Data          InteractionData `json:"data,omitempty"`
}

// Invoker returns the user behind the interaction regardless of whether it
// arrived from a guild or a DM.
func (i *Interaction) Invoker() User {
	if i.Member != nil {
		return i.Member.User
	}
	if i.User != nil {
		return *i.User
	}
	return User{}
}

// InteractionData carries the command name or button custom id.
type InteractionData struct {
	Name     string              `json:"name,omitempty"`
	CustomID string              `json:"custom_id,omitempty"`
	Options  []InteractionOption `json:"options,omitempty"`
}

// InteractionOption is one slash-command argument.
type InteractionOption struct {
	Name  string          `json:"name"`
	Type  int             `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// InteractionResponse is the reply to an interaction, due within the
// platform's 3-second window.
type InteractionResponse struct {
	Type int                      `json:"type"`
	Data *InteractionResponseData `json:"data,omitempty"`
}

// InteractionResponseData is the visible part of an interaction response.
type InteractionResponseData struct {
	Content    string      `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []Component `json:"components,omitempty"`
	Flags      int         `json:"flags,omitempty"`
}

// ApplicationCommand registers a slash command.
type ApplicationCommand struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Options     []ApplicationCommandOption `json:"options,omitempty"`
}

// ApplicationCommandOption is one declared slash-command argument.
type ApplicationCommandOption struct {
	Type        int    `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
}
