package bot

import (
	"encoding/json"
	"fmt"
	"strings"

	"clubhouse-bot/internal/modules/invites"
	"clubhouse-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
)

// discordAdapter backs every module interface with the live session, keeping
// Discord API details out of the modules themselves.
type discordAdapter struct {
	bot *Bot
}

func (a *discordAdapter) GuildInvites(guildID string) ([]invites.Invite, error) {
	fetched, err := a.bot.session.GuildInvites(guildID)
	if err != nil {
		return nil, err
	}
	result := make([]invites.Invite, 0, len(fetched))
	for _, inv := range fetched {
		inviterID := ""
		if inv.Inviter != nil {
			inviterID = inv.Inviter.ID
		}
		result = append(result, invites.Invite{Code: inv.Code, Uses: inv.Uses, InviterID: inviterID})
	}
	return result, nil
}

func (a *discordAdapter) VanityInvite(guildID string) (invites.Invite, bool, error) {
	guild, err := a.bot.session.State.Guild(guildID)
	if err != nil || guild.VanityURLCode == "" {
		return invites.Invite{}, false, nil
	}
	body, err := a.bot.session.Request("GET", discordgo.EndpointGuild(guildID)+"/vanity-url", nil)
	if err != nil {
		return invites.Invite{}, false, err
	}
	var vanity struct {
		Code string `json:"code"`
		Uses int    `json:"uses"`
	}
	if err := json.Unmarshal(body, &vanity); err != nil {
		return invites.Invite{}, false, err
	}
	if vanity.Code == "" {
		return invites.Invite{}, false, nil
	}
	return invites.Invite{Code: vanity.Code, Uses: vanity.Uses}, true, nil
}

func (a *discordAdapter) CreateTicketChannel(guildID, userID string) (string, error) {
	session := a.bot.session

	parentID, err := a.ticketCategory(guildID)
	if err != nil {
		return "", err
	}

	name := "ticket-" + userID
	if user, err := session.User(userID); err == nil {
		name = "ticket-" + strings.ToLower(user.Username)
	}

	allow := int64(discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory)
	channel, err := session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: parentID,
		PermissionOverwrites: []*discordgo.PermissionOverwrite{
			{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: int64(discordgo.PermissionViewChannel)},
			{ID: userID, Type: discordgo.PermissionOverwriteTypeMember, Allow: allow},
			{ID: session.State.User.ID, Type: discordgo.PermissionOverwriteTypeMember, Allow: allow},
		},
	})
	if err != nil {
		return "", err
	}
	return channel.ID, nil
}

func (a *discordAdapter) ticketCategory(guildID string) (string, error) {
	session := a.bot.session
	name := a.bot.cfg.Tickets.CategoryName

	if guild, err := session.State.Guild(guildID); err == nil {
		for _, channel := range guild.Channels {
			if channel.Type == discordgo.ChannelTypeGuildCategory && channel.Name == name {
				return channel.ID, nil
			}
		}
	}
	category, err := session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildCategory,
	})
	if err != nil {
		return "", err
	}
	return category.ID, nil
}

func (a *discordAdapter) DeleteChannel(guildID, channelID string) error {
	_ = guildID
	_, err := a.bot.session.ChannelDelete(channelID)
	return err
}

func (a *discordAdapter) Publish(g storage.Giveaway) (string, error) {
	session := a.bot.session
	emoji := a.bot.giveaways.Emoji()

	embed := a.bot.embed("\U0001F389 "+g.Prize,
		fmt.Sprintf("React with %s to enter!\nEnds <t:%d:R>\nHosted by <@%s>\nWinners: **%d**",
			emoji, g.EndTime.Unix(), g.HostID, g.WinnerCount),
		a.bot.cfg.Colors.Default, nil)
	message, err := session.ChannelMessageSendEmbed(g.ChannelID, embed)
	if err != nil {
		return "", err
	}
	if err := session.MessageReactionAdd(g.ChannelID, message.ID, emoji); err != nil {
		return message.ID, err
	}
	return message.ID, nil
}

func (a *discordAdapter) Conclude(g storage.Giveaway, winnerIDs []string) error {
	session := a.bot.session

	text := fmt.Sprintf("The giveaway for **%s** ended with no valid entries.", g.Prize)
	if len(winnerIDs) > 0 {
		text = fmt.Sprintf("Congratulations %s, you won **%s**!", mentionList(winnerIDs), g.Prize)
	}
	_, announceErr := session.ChannelMessageSend(g.ChannelID, text)

	embed := a.bot.embed("\U0001F389 "+g.Prize+" (ended)",
		fmt.Sprintf("Ended <t:%d:R>\nHosted by <@%s>\n%s", g.EndTime.Unix(), g.HostID, winnerLine(winnerIDs)),
		a.bot.cfg.Colors.Warning, nil)
	if _, err := session.ChannelMessageEditEmbed(g.ChannelID, g.MessageID, embed); err != nil {
		return err
	}
	return announceErr
}

func (a *discordAdapter) AnnounceReroll(g storage.Giveaway, winnerIDs []string) error {
	_, err := a.bot.session.ChannelMessageSend(g.ChannelID,
		fmt.Sprintf("New winners for **%s**: %s", g.Prize, mentionList(winnerIDs)))
	return err
}

func (a *discordAdapter) IsMember(guildID, userID string) bool {
	session := a.bot.session
	if _, err := session.State.Member(guildID, userID); err == nil {
		return true
	}
	_, err := session.GuildMember(guildID, userID)
	return err == nil
}

func (a *discordAdapter) PublishMenu(menu storage.RoleMenu, options []storage.RoleMenuOption) (string, error) {
	embed, components := buildMenuMessage(a.bot, menu, options)
	message, err := a.bot.session.ChannelMessageSendComplex(menu.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		return "", err
	}
	return message.ID, nil
}

func (a *discordAdapter) RefreshMenu(menu storage.RoleMenu, options []storage.RoleMenuOption) error {
	embed, components := buildMenuMessage(a.bot, menu, options)
	embeds := []*discordgo.MessageEmbed{embed}
	_, err := a.bot.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    menu.ChannelID,
		ID:         menu.MessageID,
		Embeds:     embeds,
		Components: components,
	})
	return err
}

func buildMenuMessage(b *Bot, menu storage.RoleMenu, options []storage.RoleMenuOption) (*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	lines := make([]string, 0, len(options))
	selectOptions := make([]discordgo.SelectMenuOption, 0, len(options))
	for _, opt := range options {
		lines = append(lines, fmt.Sprintf("%s <@&%s>", opt.Emoji, opt.RoleID))
		selectOptions = append(selectOptions, discordgo.SelectMenuOption{
			Label:       opt.Label,
			Value:       opt.RoleID,
			Description: opt.Description,
			Emoji:       discordgo.ComponentEmoji{Name: opt.Emoji},
		})
	}

	minValues := 0
	embed := b.embed(menu.Title, strings.Join(lines, "\n"), b.cfg.Colors.Default, nil)
	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    roleMenuSelectID,
					Placeholder: "Pick your roles",
					MinValues:   &minValues,
					MaxValues:   len(selectOptions),
					Options:     selectOptions,
				},
			},
		},
	}
	return embed, components
}

func (a *discordAdapter) AddRole(guildID, userID, roleID string) error {
	return a.bot.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (a *discordAdapter) RemoveRole(guildID, userID, roleID string) error {
	return a.bot.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func mentionList(ids []string) string {
	mentions := make([]string, 0, len(ids))
	for _, id := range ids {
		mentions = append(mentions, "<@"+id+">")
	}
	return strings.Join(mentions, ", ")
}

func winnerLine(winnerIDs []string) string {
	if len(winnerIDs) == 0 {
		return "No valid entries"
	}
	return "Winners: " + mentionList(winnerIDs)
}
