package services

import (
	"strings"

	"github.com/gamenightbot/gamenight/pkg/discord"
)

const maxMentionSuggestions = 5

// ValidateMentions resolves participant entries against a guild's member
// list. Entries starting with "@" (or in raw <@id> form) must resolve to
// exactly one member; anything else is a placeholder and always valid.
//
// On any failure the returned error carries every invalid input with
// disambiguation suggestions plus the entries that did resolve, so the
// client can keep its form state.
func ValidateMentions(entries []ParticipantEntry, members []discord.Member) ([]ResolvedMention, error) {
	valid := make([]ResolvedMention, 0, len(entries))
	var invalid []InvalidMention

	for _, entry := range entries {
		input := strings.TrimSpace(entry.Input)
		if input == "" {
			invalid = append(invalid, InvalidMention{
				Input:       entry.Input,
				Reason:      "empty participant entry",
				Suggestions: []MentionSuggestion{},
			})
			continue
		}

		if id, ok := parseRawMention(input); ok {
			if m := memberByID(members, id); m != nil {
				valid = append(valid, resolved(entry, *m))
			} else {
				invalid = append(invalid, InvalidMention{
					Input:       entry.Input,
					Reason:      "not a member of this server",
					Suggestions: []MentionSuggestion{},
				})
			}
			continue
		}

		if name, ok := strings.CutPrefix(input, "@"); ok {
			matches := membersByName(members, name)
			switch len(matches) {
			case 1:
				valid = append(valid, resolved(entry, matches[0]))
			case 0:
				invalid = append(invalid, InvalidMention{
					Input:       entry.Input,
					Reason:      "no member matches this name",
					Suggestions: suggest(members, name),
				})
			default:
				invalid = append(invalid, InvalidMention{
					Input:       entry.Input,
					Reason:      "name matches more than one member",
					Suggestions: toSuggestions(matches),
				})
			}
			continue
		}

		// Plain text is a placeholder slot.
		valid = append(valid, ResolvedMention{
			Input:        input,
			PositionType: entry.PositionType,
			Position:     entry.Position,
		})
	}

	if len(invalid) > 0 {
		return nil, &MentionValidationError{Invalid: invalid, Valid: valid}
	}
	return valid, nil
}

// parseRawMention recognizes Discord's wire forms <@id> and <@!id>.
func parseRawMention(input string) (string, bool) {
	if !strings.HasPrefix(input, "<@") || !strings.HasSuffix(input, ">") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(input, "<@"), ">")
	id = strings.TrimPrefix(id, "!")
	if id == "" {
		return "", false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return id, true
}

func memberByID(members []discord.Member, id string) *discord.Member {
	for i := range members {
		if members[i].User.ID == id {
			return &members[i]
		}
	}
	return nil
}

// membersByName returns members whose username, global display name, or
// nick equals name, case-insensitively.
func membersByName(members []discord.Member, name string) []discord.Member {
	var matches []discord.Member
	for _, m := range members {
		if strings.EqualFold(m.User.Username, name) ||
			strings.EqualFold(m.User.GlobalName, name) ||
			(m.Nick != "" && strings.EqualFold(m.Nick, name)) {
			matches = append(matches, m)
		}
	}
	return matches
}

// suggest returns up to maxMentionSuggestions members whose names contain
// name as a substring, case-insensitively.
func suggest(members []discord.Member, name string) []MentionSuggestion {
	needle := strings.ToLower(name)
	suggestions := []MentionSuggestion{}
	for _, m := range members {
		if len(suggestions) == maxMentionSuggestions {
			break
		}
		haystack := strings.ToLower(m.User.Username + " " + m.User.GlobalName + " " + m.Nick)
		if strings.Contains(haystack, needle) {
			suggestions = append(suggestions, toSuggestion(m))
		}
	}
	return suggestions
}

func toSuggestions(members []discord.Member) []MentionSuggestion {
	suggestions := make([]MentionSuggestion, 0, len(members))
	for _, m := range members {
		if len(suggestions) == maxMentionSuggestions {
			break
		}
		suggestions = append(suggestions, toSuggestion(m))
	}
	return suggestions
}

func toSuggestion(m discord.Member) MentionSuggestion {
	return MentionSuggestion{
		ID:          m.User.ID,
		Username:    m.User.Username,
		DisplayName: m.DisplayName(),
	}
}

func resolved(entry ParticipantEntry, m discord.Member) ResolvedMention {
	return ResolvedMention{
		Input:         entry.Input,
		PositionType:  entry.PositionType,
		Position:      entry.Position,
		UserDiscordID: m.User.ID,
		Username:      m.User.Username,
		DisplayName:   m.DisplayName(),
	}
}
