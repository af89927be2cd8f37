package discord

import (
	"chat-commander/internal/bot"
	"chat-commander/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// memberBadges resolves the author's standing in the guild the message was
// posted in. Direct messages carry no badges.
func memberBadges(s *discordgo.Session, m *discordgo.MessageCreate) map[string]int {
	if m.GuildID == "" || s == nil || s.State == nil {
		return map[string]int{}
	}

	var owner bool
	if guild, err := s.State.Guild(m.GuildID); err == nil && guild != nil {
		owner = guild.OwnerID == m.Author.ID
	}

	var perms int64
	if p, err := s.State.UserChannelPermissions(m.Author.ID, m.ChannelID); err == nil {
		perms = p
	}

	booster := m.Member != nil && m.Member.PremiumSince != nil
	return badgesFor(owner, perms, booster)
}

// badgesFor maps guild standing onto chat badges: the guild owner is the
// broadcaster, members who can moderate messages are moderators and server
// boosters are subscribers.
func badgesFor(owner bool, perms int64, booster bool) map[string]int {
	badges := map[string]int{}
	if owner {
		badges[string(cmd.Broadcaster)] = 1
	}
	if perms&(discordgo.PermissionAdministrator|discordgo.PermissionManageMessages) != 0 {
		badges[string(cmd.Moderator)] = 1
	}
	if booster {
		badges[string(cmd.Subscriber)] = 1
	}
	return badges
}

func toMessage(m *discordgo.Message, selfID string, badges map[string]int) bot.Message {
	tags := cmd.UserTags{
		UserID:   m.Author.ID,
		Username: m.Author.Username,
		Badges:   badges,
		Raw: map[string]string{
			"message_id": m.ID,
			"guild_id":   m.GuildID,
		},
	}
	switch {
	case m.Member != nil && m.Member.Nick != "":
		tags.DisplayName = m.Member.Nick
	case m.Author.GlobalName != "":
		tags.DisplayName = m.Author.GlobalName
	}

	return bot.Message{
		Channel: m.ChannelID,
		Text:    m.Content,
		Self:    selfID != "" && m.Author.ID == selfID,
		Tags:    tags,
	}
}
